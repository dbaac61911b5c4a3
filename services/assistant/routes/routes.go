// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/AleutianAI/CourseAssistant/services/assistant/config"
	"github.com/AleutianAI/CourseAssistant/services/assistant/conversation"
	"github.com/AleutianAI/CourseAssistant/services/assistant/handlers"
	"github.com/AleutianAI/CourseAssistant/services/assistant/middleware"
	"github.com/AleutianAI/CourseAssistant/services/assistant/observability"
	"github.com/AleutianAI/CourseAssistant/services/assistant/services"
)

// SetupRoutes registers every endpoint of the assistant.
//
// The activity endpoints (webhook, feed, click tracking) need the relational
// database and are skipped when db is nil, so the chat widget still works on
// a minimal deployment. Session administration is gated behind the admin
// token; an empty token leaves those endpoints registered but disabled.
func SetupRoutes(router *gin.Engine, svc *services.ChatService, provider *config.Provider,
	store conversation.Store, db *gorm.DB, metrics *observability.AssistantMetrics,
	adminToken string, limiter *middleware.RateLimiter) {

	router.GET("/", handlers.Index)
	router.GET("/health", handlers.HealthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API version 1 group
	v1 := router.Group("/v1")
	{
		chat := v1.Group("")
		if limiter != nil {
			chat.Use(limiter.Middleware())
		}
		chat.POST("/chat", handlers.HandleChat(svc, provider))
		chat.GET("/chat/ws", handlers.HandleChatWebSocket(svc, provider))

		if db != nil {
			v1.POST("/webhooks/teachable", handlers.HandleTeachableWebhook(db, provider, metrics))
			v1.GET("/activity/recent", handlers.HandleRecentActivity(db))
			v1.POST("/track-click", handlers.HandleTrackClick(db))
		}

		// Session administration routes
		sessions := v1.Group("/sessions")
		sessions.Use(middleware.AdminAuth(adminToken))
		{
			sessions.GET("", handlers.ListSessions(store))
			sessions.GET("/:sessionId/history", handlers.GetSessionHistory(store))
			sessions.DELETE("/:sessionId", handlers.DeleteSession(store))
		}
	}
}
