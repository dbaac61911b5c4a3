// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package handlers provides HTTP handlers for the assistant service.
package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"

	"github.com/AleutianAI/CourseAssistant/services/assistant/config"
	"github.com/AleutianAI/CourseAssistant/services/assistant/datatypes"
	"github.com/AleutianAI/CourseAssistant/services/assistant/services"
)

var chatTracer = otel.Tracer("assistant.handlers")

// HandleChat processes one chat turn.
//
// Error semantics follow the chat widget contract: client input errors are
// 400 with a localized message; upstream failures are converted into the
// localized temporary-error reply with HTTP 200 so the widget keeps
// functioning. No structured error codes are exposed to the caller.
func HandleChat(svc *services.ChatService, provider *config.Provider) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := chatTracer.Start(c.Request.Context(), "HandleChat")
		defer span.End()

		cfg := provider.Get()

		var req datatypes.ChatRequest
		if err := c.BindJSON(&req); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "bad request body")
			c.JSON(http.StatusBadRequest, gin.H{"reply": cfg.Replies.MissingMessage})
			return
		}

		resp, err := svc.Process(ctx, &req)
		if err != nil {
			span.RecordError(err)
			if services.IsValidationError(err) {
				span.SetStatus(codes.Error, "validation failed")
				c.JSON(http.StatusBadRequest, gin.H{"reply": cfg.Replies.MissingMessage})
				return
			}

			span.SetStatus(codes.Error, "pipeline failed")
			slog.Error("chat pipeline failed",
				"sessionId", req.SessionId,
				"error", err,
			)
			degraded := datatypes.NewChatResponse(req.SessionId, cfg.Replies.TemporaryError)
			c.JSON(http.StatusOK, degraded)
			return
		}

		c.JSON(http.StatusOK, resp)
	}
}
