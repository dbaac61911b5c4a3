// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package datatypes provides data structures for the assistant service.
//
// This file contains the request and response types for the chat endpoint.
// Course and retrieval types live in course.go; relational models for the
// activity feed live in activity.go.
package datatypes

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

const (
	// MaxMessageContentBytes is the maximum size of a single chat message.
	// Checked in bytes, not runes, to bound memory for multi-byte Arabic text.
	MaxMessageContentBytes = 16 * 1024 // 16KB

	// MaxSessionIDLength bounds the client-supplied session identifier.
	MaxSessionIDLength = 64
)

// chatValidate is the validator instance shared by chat datatypes.
var chatValidate *validator.Validate

func init() {
	chatValidate = validator.New()
	_ = chatValidate.RegisterValidation("maxbytes", validateMaxBytes)
	_ = chatValidate.RegisterValidation("notblank", validateNotBlank)
}

// validateMaxBytes enforces the byte-length cap on message content.
func validateMaxBytes(fl validator.FieldLevel) bool {
	return len(fl.Field().String()) <= MaxMessageContentBytes
}

// validateNotBlank rejects values that are empty after trimming, so a
// whitespace-only message never reaches the embedding or LLM calls.
func validateNotBlank(fl validator.FieldLevel) bool {
	return strings.TrimSpace(fl.Field().String()) != ""
}

// Message is a single conversation turn as exchanged with an LLM backend.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest represents the body of POST /v1/chat.
//
// # Description
//
// ChatRequest carries the user's message plus optional session and user
// identifiers. When SessionId is empty the handler generates one and
// returns it so the widget can correlate follow-up turns.
//
// # Validation
//
//   - Message: required, non-empty after trimming, max 16KB (maxbytes)
//   - SessionId: optional, max 64 chars; format is checked separately by
//     pkg/validation before it reaches any Weaviate filter
//   - UserId: optional, max 64 chars
type ChatRequest struct {
	Message   string `json:"message" validate:"required,notblank,maxbytes"`
	SessionId string `json:"session_id" validate:"omitempty,max=64"`
	UserId    string `json:"user_id" validate:"omitempty,max=64"`
}

// Validate validates the ChatRequest fields after JSON binding.
func (r *ChatRequest) Validate() error {
	return chatValidate.Struct(r)
}

// ChatResponse represents the body returned by POST /v1/chat.
//
// Reply is a constrained-HTML fragment produced by the format package.
// Courses lists the recommendations whose buttons were appended to the
// reply, so programmatic callers do not need to scrape the HTML.
type ChatResponse struct {
	Reply     string         `json:"reply"`
	SessionId string         `json:"session_id"`
	Courses   []ScoredCourse `json:"courses,omitempty"`
	Intent    string         `json:"intent,omitempty"`
	Timestamp int64          `json:"timestamp"`
}

// NewChatResponse builds a ChatResponse with the server timestamp set.
func NewChatResponse(sessionID, reply string) *ChatResponse {
	return &ChatResponse{
		Reply:     reply,
		SessionId: sessionID,
		Timestamp: time.Now().UnixMilli(),
	}
}
