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
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/CourseAssistant/services/assistant/conversation"
	"github.com/AleutianAI/CourseAssistant/services/assistant/datatypes"
)

func newSessionRouter(t *testing.T) (*gin.Engine, *conversation.MemoryStore) {
	t.Helper()
	store := conversation.NewMemoryStore()

	router := gin.New()
	router.GET("/v1/sessions", ListSessions(store))
	router.GET("/v1/sessions/:sessionId/history", GetSessionHistory(store))
	router.DELETE("/v1/sessions/:sessionId", DeleteSession(store))
	return router, store
}

func seedExchange(t *testing.T, store *conversation.MemoryStore, sessionID string) {
	t.Helper()
	err := store.AppendExchange(context.Background(), sessionID,
		datatypes.Message{Role: "user", Content: "ابغى دورة تصميم"},
		datatypes.Message{Role: "assistant", Content: "نرشح لك دورة التصميم."},
	)
	require.NoError(t, err)
}

func TestListSessions(t *testing.T) {
	router, store := newSessionRouter(t)
	seedExchange(t, store, "sess_a")
	seedExchange(t, store, "sess_b")

	w := performRequest(router, "GET", "/v1/sessions", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Sessions []conversation.SessionInfo `json:"sessions"`
		Count    int                        `json:"count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, 2, body.Count)
	assert.Len(t, body.Sessions, 2)
}

func TestGetSessionHistory(t *testing.T) {
	router, store := newSessionRouter(t)
	seedExchange(t, store, "sess_a")

	w := performRequest(router, "GET", "/v1/sessions/sess_a/history", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		SessionID string              `json:"session_id"`
		History   []datatypes.Message `json:"history"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "sess_a", body.SessionID)
	require.Len(t, body.History, 2)
	assert.Equal(t, "user", body.History[0].Role)
	assert.Equal(t, "assistant", body.History[1].Role)
}

func TestGetSessionHistory_InvalidID(t *testing.T) {
	router, _ := newSessionRouter(t)

	w := performRequest(router, "GET", "/v1/sessions/bad%20id!/history", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDeleteSession(t *testing.T) {
	router, store := newSessionRouter(t)
	seedExchange(t, store, "sess_a")

	w := performRequest(router, "DELETE", "/v1/sessions/sess_a", nil)
	require.Equal(t, http.StatusOK, w.Code)

	history, err := store.History(context.Background(), "sess_a", 0)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestHealthCheck(t *testing.T) {
	router := gin.New()
	router.GET("/health", HealthCheck)

	w := performRequest(router, "GET", "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status": "ok"}`, w.Body.String())
}
