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
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/CourseAssistant/services/assistant/config"
	"github.com/AleutianAI/CourseAssistant/services/assistant/conversation"
	"github.com/AleutianAI/CourseAssistant/services/assistant/datatypes"
	"github.com/AleutianAI/CourseAssistant/services/assistant/retrieval"
	"github.com/AleutianAI/CourseAssistant/services/assistant/services"
	"github.com/AleutianAI/CourseAssistant/services/llm"
)

// =============================================================================
// Test Setup
// =============================================================================

func init() {
	// Set Gin to test mode to reduce noise in test output
	gin.SetMode(gin.TestMode)
}

// MockLLMClient implements llm.LLMClient for handler testing.
type MockLLMClient struct {
	ChatResponse string
	ChatError    error
}

func (m *MockLLMClient) Chat(_ context.Context, _ []datatypes.Message, _ llm.GenerationParams) (string, error) {
	return m.ChatResponse, m.ChatError
}

func (m *MockLLMClient) Generate(_ context.Context, _ string, _ llm.GenerationParams) (string, error) {
	return m.ChatResponse, m.ChatError
}

// MockRetriever implements retrieval.CourseRetriever for handler testing.
type MockRetriever struct {
	Result *retrieval.Result
	Err    error
}

func (m *MockRetriever) Search(_ context.Context, _ *config.PipelineConfig, _ string) (*retrieval.Result, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Result, nil
}

// newChatRouter wires a ChatService over mocks into the chat endpoint.
func newChatRouter(t *testing.T, ret *MockRetriever, model *MockLLMClient) (*gin.Engine, *config.Provider) {
	t.Helper()
	provider, err := config.NewProvider("")
	require.NoError(t, err)

	store := conversation.NewMemoryStore()
	svc := services.NewChatService(provider, store, model, ret, nil)

	router := gin.New()
	router.POST("/v1/chat", HandleChat(svc, provider))
	return router, provider
}

// performRequest executes an HTTP request against the test router.
func performRequest(router *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	var reqBody *bytes.Buffer
	if body != nil {
		jsonBytes, _ := json.Marshal(body)
		reqBody = bytes.NewBuffer(jsonBytes)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req, _ := http.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

// =============================================================================
// HandleChat Tests
// =============================================================================

func TestHandleChat_Success(t *testing.T) {
	ret := &MockRetriever{Result: &retrieval.Result{
		Courses: []datatypes.ScoredCourse{{
			Course: datatypes.Course{
				Title: "دورة التصميم",
				URL:   "https://easyt.online/p/design",
			},
			Certainty: 0.8,
		}},
	}}
	model := &MockLLMClient{ChatResponse: "نرشح لك دورة التصميم."}
	router, _ := newChatRouter(t, ret, model)

	w := performRequest(router, "POST", "/v1/chat", datatypes.ChatRequest{Message: "ابغى أتعلم تصميم"})
	assert.Equal(t, http.StatusOK, w.Code)

	var resp datatypes.ChatResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Contains(t, resp.Reply, "نرشح لك دورة التصميم.")
	assert.Contains(t, resp.Reply, "https://easyt.online/p/design")
	assert.NotEmpty(t, resp.SessionId)
}

func TestHandleChat_MissingMessageReturns400(t *testing.T) {
	router, provider := newChatRouter(t, &MockRetriever{Result: &retrieval.Result{}}, &MockLLMClient{})

	w := performRequest(router, "POST", "/v1/chat", map[string]string{"session_id": "abc"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, provider.Get().Replies.MissingMessage, body["reply"])
}

func TestHandleChat_InvalidJSONReturns400(t *testing.T) {
	router, _ := newChatRouter(t, &MockRetriever{Result: &retrieval.Result{}}, &MockLLMClient{})

	req, _ := http.NewRequest("POST", "/v1/chat", bytes.NewBufferString("{not json"))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleChat_UpstreamFailureDegradesTo200(t *testing.T) {
	ret := &MockRetriever{Err: errors.New("weaviate down")}
	router, provider := newChatRouter(t, ret, &MockLLMClient{})

	w := performRequest(router, "POST", "/v1/chat", datatypes.ChatRequest{
		Message:   "ابغى دورة تسويق",
		SessionId: "sess_x",
	})

	// The widget keeps functioning: degraded replies still return 200.
	assert.Equal(t, http.StatusOK, w.Code)

	var resp datatypes.ChatResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, provider.Get().Replies.TemporaryError, resp.Reply)
}

func TestHandleChat_StaticPhotoshopAnswer(t *testing.T) {
	// Neither upstream should be touched for a hard-keyword match.
	ret := &MockRetriever{Err: errors.New("must not be called")}
	model := &MockLLMClient{ChatError: errors.New("must not be called")}
	router, _ := newChatRouter(t, ret, model)

	w := performRequest(router, "POST", "/v1/chat", datatypes.ChatRequest{Message: "فوتوشوب"})
	assert.Equal(t, http.StatusOK, w.Code)

	var resp datatypes.ChatResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Contains(t, resp.Reply, "https://easyt.online/p/photoshop-ai")
}
