// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func newAuthRouter(token string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/admin", AdminAuth(token), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	return router
}

func TestAdminAuth(t *testing.T) {
	tests := []struct {
		name       string
		configured string
		header     string
		wantStatus int
	}{
		{
			name:       "valid token",
			configured: "secret-token",
			header:     "Bearer secret-token",
			wantStatus: http.StatusOK,
		},
		{
			name:       "case insensitive scheme",
			configured: "secret-token",
			header:     "bearer secret-token",
			wantStatus: http.StatusOK,
		},
		{
			name:       "wrong token",
			configured: "secret-token",
			header:     "Bearer nope",
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "missing header",
			configured: "secret-token",
			header:     "",
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "malformed header",
			configured: "secret-token",
			header:     "secret-token",
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "unconfigured token disables surface",
			configured: "",
			header:     "Bearer anything",
			wantStatus: http.StatusForbidden,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newAuthRouter(tt.configured)
			req := httptest.NewRequest(http.MethodGet, "/admin", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)
			assert.Equal(t, tt.wantStatus, w.Code)
		})
	}
}

func TestRateLimiter_AllowsBurstThenBlocks(t *testing.T) {
	rl := NewRateLimiter(1, 2)
	now := time.Now()

	assert.True(t, rl.allow("1.2.3.4", now))
	assert.True(t, rl.allow("1.2.3.4", now))
	assert.False(t, rl.allow("1.2.3.4", now))

	// A different client has its own bucket.
	assert.True(t, rl.allow("5.6.7.8", now))
}

func TestRateLimiter_EvictsIdleClients(t *testing.T) {
	rl := NewRateLimiter(1, 1)
	start := time.Now()

	assert.True(t, rl.allow("1.2.3.4", start))
	assert.Equal(t, 1, len(rl.clients))

	// Past the idle window, a scan triggered by another client drops it.
	later := start.Add(15 * time.Minute)
	assert.True(t, rl.allow("5.6.7.8", later))

	rl.mu.Lock()
	_, stale := rl.clients["1.2.3.4"]
	rl.mu.Unlock()
	assert.False(t, stale)
}

func TestRateLimiter_MiddlewareReturns429(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rl := NewRateLimiter(0.0001, 1)
	router := gin.New()
	router.GET("/chat", rl.Middleware(), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	first := httptest.NewRecorder()
	router.ServeHTTP(first, httptest.NewRequest(http.MethodGet, "/chat", nil))
	assert.Equal(t, http.StatusOK, first.Code)

	second := httptest.NewRecorder()
	router.ServeHTTP(second, httptest.NewRequest(http.MethodGet, "/chat", nil))
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.Contains(t, second.Body.String(), "تجاوزت")
}
