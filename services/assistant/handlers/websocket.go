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
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/AleutianAI/CourseAssistant/services/assistant/config"
	"github.com/AleutianAI/CourseAssistant/services/assistant/datatypes"
	"github.com/AleutianAI/CourseAssistant/services/assistant/services"
)

// wsRequest is one inbound chat message on the socket.
type wsRequest struct {
	Message string `json:"message"`
}

var upgrader = websocket.Upgrader{
	// The widget is embedded on the course platform's pages, so
	// cross-origin upgrades are expected.
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:  32 * 1024,
	WriteBufferSize: 32 * 1024,
}

// HandleChatWebSocket serves the same pipeline as POST /v1/chat over a
// persistent socket. The session is created on connect and announced to the
// client, then every inbound message runs one chat turn.
func HandleChatWebSocket(svc *services.ChatService, provider *config.Provider) gin.HandlerFunc {
	return func(c *gin.Context) {
		ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			slog.Error("websocket upgrade failed", "error", err)
			return
		}
		defer ws.Close()

		sessionID := "sess_" + uuid.NewString()
		slog.Info("websocket session started", "sessionId", sessionID)

		if err := ws.WriteJSON(gin.H{
			"action":     "session_created",
			"session_id": sessionID,
		}); err != nil {
			slog.Warn("failed to announce websocket session", "error", err)
			return
		}

		for {
			var req wsRequest
			if err := ws.ReadJSON(&req); err != nil {
				slog.Info("websocket client disconnected",
					"sessionId", sessionID,
					"error", err.Error(),
				)
				return
			}

			resp, err := svc.Process(c.Request.Context(), &datatypes.ChatRequest{
				Message:   req.Message,
				SessionId: sessionID,
			})
			if err != nil {
				cfg := provider.Get()
				reply := cfg.Replies.TemporaryError
				if services.IsValidationError(err) {
					reply = cfg.Replies.MissingMessage
				}
				resp = datatypes.NewChatResponse(sessionID, reply)
			}

			if err := ws.WriteJSON(resp); err != nil {
				slog.Warn("failed to write websocket reply",
					"sessionId", sessionID,
					"error", err,
				)
				return
			}
		}
	}
}
