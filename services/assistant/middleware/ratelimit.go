// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// clientLimiter pairs a token bucket with its last use for eviction.
type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter applies a per-client token bucket to incoming requests.
//
// # Description
//
// Each client IP gets its own rate.Limiter. Buckets idle for more than
// ten minutes are evicted lazily on the next pass so the map does not
// grow without bound. Every LLM call behind the chat endpoint costs real
// money, which is why the public surface is limited at all.
//
// # Thread Safety
//
// Safe for concurrent use.
type RateLimiter struct {
	mu       sync.Mutex
	clients  map[string]*clientLimiter
	rps      rate.Limit
	burst    int
	lastScan time.Time
}

// NewRateLimiter allows rps requests per second with the given burst per
// client IP.
func NewRateLimiter(rps float64, burst int) *RateLimiter {
	return &RateLimiter{
		clients: make(map[string]*clientLimiter),
		rps:     rate.Limit(rps),
		burst:   burst,
	}
}

// allow reports whether key may proceed now.
func (r *RateLimiter) allow(key string, now time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if now.Sub(r.lastScan) > time.Minute {
		for k, cl := range r.clients {
			if now.Sub(cl.lastSeen) > 10*time.Minute {
				delete(r.clients, k)
			}
		}
		r.lastScan = now
	}

	cl, ok := r.clients[key]
	if !ok {
		cl = &clientLimiter{limiter: rate.NewLimiter(r.rps, r.burst)}
		r.clients[key] = cl
	}
	cl.lastSeen = now
	return cl.limiter.Allow()
}

// Middleware returns the Gin handler enforcing the limit. Rejected
// requests get 429 with a localized reply so the chat widget can show it
// directly.
func (r *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !r.allow(c.ClientIP(), time.Now()) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"reply": "تجاوزت الحد المسموح من الطلبات، حاول بعد قليل.",
			})
			return
		}
		c.Next()
	}
}
