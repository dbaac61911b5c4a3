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
	"gorm.io/gorm"

	"github.com/AleutianAI/CourseAssistant/pkg/validation"
	"github.com/AleutianAI/CourseAssistant/services/assistant/datatypes"
)

// HealthCheck reports service liveness.
func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Index identifies the service at the root path.
func Index(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service": "course-assistant",
		"status":  "ok",
	})
}

// trackClickRequest is the body of POST /v1/track-click.
type trackClickRequest struct {
	SessionID string `json:"session_id"`
	CourseURL string `json:"course_url"`
}

// HandleTrackClick records a click on a recommended course button.
// Best-effort: bad payloads are dropped with 200 so the widget never sees
// an error from analytics.
func HandleTrackClick(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req trackClickRequest
		if err := c.BindJSON(&req); err != nil || req.CourseURL == "" {
			c.JSON(http.StatusOK, gin.H{"status": "ignored"})
			return
		}

		sessionID, err := validation.SanitizeSessionID(req.SessionID)
		if err != nil {
			sessionID = ""
		}

		click := datatypes.ClickEvent{
			SessionID: sessionID,
			CourseURL: req.CourseURL,
		}
		if err := db.Create(&click).Error; err != nil {
			slog.Error("failed to record click", "error", err)
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}
