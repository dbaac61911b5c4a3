// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package routes

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/CourseAssistant/services/assistant/config"
	"github.com/AleutianAI/CourseAssistant/services/assistant/conversation"
	"github.com/AleutianAI/CourseAssistant/services/assistant/datatypes"
	"github.com/AleutianAI/CourseAssistant/services/assistant/middleware"
	"github.com/AleutianAI/CourseAssistant/services/assistant/retrieval"
	"github.com/AleutianAI/CourseAssistant/services/assistant/services"
	"github.com/AleutianAI/CourseAssistant/services/llm"
)

// ============================================================================
// Test Setup
// ============================================================================

func init() {
	// Set Gin to test mode to reduce noise in test output
	gin.SetMode(gin.TestMode)
}

// mockLLMClient is a minimal mock for llm.LLMClient
type mockLLMClient struct{}

func (m *mockLLMClient) Generate(_ context.Context, _ string, _ llm.GenerationParams) (string, error) {
	return "mock response", nil
}

func (m *mockLLMClient) Chat(_ context.Context, _ []datatypes.Message, _ llm.GenerationParams) (string, error) {
	return "mock chat response", nil
}

// mockRetriever is a minimal mock for retrieval.CourseRetriever
type mockRetriever struct{}

func (m *mockRetriever) Search(_ context.Context, _ *config.PipelineConfig, _ string) (*retrieval.Result, error) {
	return &retrieval.Result{}, nil
}

func setupTestRouter(t *testing.T, adminToken string) *gin.Engine {
	t.Helper()
	provider, err := config.NewProvider("")
	if err != nil {
		t.Fatalf("failed to build config provider: %v", err)
	}

	store := conversation.NewMemoryStore()
	svc := services.NewChatService(provider, store, &mockLLMClient{}, &mockRetriever{}, nil)

	router := gin.New()
	SetupRoutes(router, svc, provider, store, nil, nil, adminToken,
		middleware.NewRateLimiter(100, 200))
	return router
}

// ============================================================================
// SetupRoutes Tests
// ============================================================================

func TestSetupRoutes_CoreRoutesRegistered(t *testing.T) {
	router := setupTestRouter(t, "")

	coreRoutes := []struct {
		method string
		path   string
	}{
		{"GET", "/"},
		{"GET", "/health"},
		{"GET", "/metrics"},
		{"POST", "/v1/chat"},
		{"GET", "/v1/chat/ws"},
		{"GET", "/v1/sessions"},
		{"GET", "/v1/sessions/:sessionId/history"},
		{"DELETE", "/v1/sessions/:sessionId"},
	}

	routes := router.Routes()
	for _, expected := range coreRoutes {
		found := false
		for _, r := range routes {
			if r.Method == expected.method && r.Path == expected.path {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("Expected route %s %s not found", expected.method, expected.path)
		}
	}
}

func TestSetupRoutes_ActivityRoutesNotRegisteredWithoutDB(t *testing.T) {
	router := setupTestRouter(t, "")

	dbRoutes := []struct {
		method string
		path   string
	}{
		{"POST", "/v1/webhooks/teachable"},
		{"GET", "/v1/activity/recent"},
		{"POST", "/v1/track-click"},
	}

	routes := router.Routes()
	for _, notExpected := range dbRoutes {
		for _, r := range routes {
			if r.Method == notExpected.method && r.Path == notExpected.path {
				t.Errorf("Route %s %s should NOT be registered without a database", notExpected.method, notExpected.path)
			}
		}
	}
}

func TestSetupRoutes_HealthEndpoint(t *testing.T) {
	router := setupTestRouter(t, "")

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/health", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Health endpoint returned %d, want %d", w.Code, http.StatusOK)
	}
}

func TestSetupRoutes_MetricsEndpoint(t *testing.T) {
	router := setupTestRouter(t, "")

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/metrics", nil)
	router.ServeHTTP(w, req)

	// Prometheus metrics endpoint should return 200
	if w.Code != http.StatusOK {
		t.Errorf("Metrics endpoint returned %d, want %d", w.Code, http.StatusOK)
	}
}

func TestSetupRoutes_SessionsDisabledWithoutAdminToken(t *testing.T) {
	router := setupTestRouter(t, "")

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/v1/sessions", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusForbidden {
		t.Errorf("Sessions endpoint without admin token returned %d, want %d", w.Code, http.StatusForbidden)
	}
}

func TestSetupRoutes_SessionsRequireBearerToken(t *testing.T) {
	router := setupTestRouter(t, "secret-token")

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/v1/sessions", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("Sessions endpoint without credentials returned %d, want %d", w.Code, http.StatusUnauthorized)
	}

	w = httptest.NewRecorder()
	req, _ = http.NewRequest("GET", "/v1/sessions", nil)
	req.Header.Set("Authorization", "Bearer secret-token")
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Sessions endpoint with valid token returned %d, want %d", w.Code, http.StatusOK)
	}
}
