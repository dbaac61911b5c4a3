// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package middleware provides HTTP middleware for the assistant service.
//
// This package contains middleware for the session administration surface
// (bearer token auth) and for per-client rate limiting on the public chat
// endpoint.
package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// AdminAuth creates a Gin middleware that guards admin routes with a
// static bearer token.
//
// # Description
//
// Extracts the bearer token from the Authorization header and compares it
// against the configured token in constant time. An empty configured token
// disables the admin surface entirely (every request is rejected) rather
// than leaving it open.
//
// # Examples
//
//	sessions := v1.Group("/sessions")
//	sessions.Use(middleware.AdminAuth(adminToken))
func AdminAuth(token string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token == "" {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": "admin endpoints disabled",
			})
			return
		}

		presented := extractBearerToken(c)
		if subtle.ConstantTimeCompare([]byte(presented), []byte(token)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "unauthorized",
			})
			return
		}

		c.Next()
	}
}

// extractBearerToken parses "Authorization: Bearer <token>". Returns ""
// when the header is missing or malformed. The scheme is case-insensitive
// per RFC 7235.
func extractBearerToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return ""
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}

	return strings.TrimSpace(parts[1])
}
