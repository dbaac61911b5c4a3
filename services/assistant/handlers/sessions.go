// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/codes"

	"github.com/AleutianAI/CourseAssistant/pkg/validation"
	"github.com/AleutianAI/CourseAssistant/services/assistant/conversation"
)

// ListSessions returns all live sessions, newest activity first.
func ListSessions(store conversation.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := chatTracer.Start(c.Request.Context(), "ListSessions")
		defer span.End()

		sessions, err := store.Sessions(ctx)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "session listing failed")
			slog.Error("failed to list sessions", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list sessions"})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"sessions": sessions,
			"count":    len(sessions),
		})
	}
}

// GetSessionHistory returns the full message history of one session.
func GetSessionHistory(store conversation.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := chatTracer.Start(c.Request.Context(), "GetSessionHistory")
		defer span.End()

		sessionID, err := validation.SanitizeSessionID(c.Param("sessionId"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid session id"})
			return
		}

		history, err := store.History(ctx, sessionID, 0)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "history load failed")
			slog.Error("failed to load session history",
				"sessionId", sessionID,
				"error", err,
			)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load history"})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"session_id": sessionID,
			"history":    history,
		})
	}
}

// DeleteSession removes a session and its history. Deleting an unknown
// session succeeds; the end state is the same.
func DeleteSession(store conversation.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := chatTracer.Start(c.Request.Context(), "DeleteSession")
		defer span.End()

		sessionID, err := validation.SanitizeSessionID(c.Param("sessionId"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid session id"})
			return
		}

		if err := store.Delete(ctx, sessionID); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "session delete failed")
			slog.Error("failed to delete session",
				"sessionId", sessionID,
				"error", err,
			)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete session"})
			return
		}

		slog.Info("session deleted", "sessionId", sessionID)
		c.JSON(http.StatusOK, gin.H{"status": "deleted", "session_id": sessionID})
	}
}
