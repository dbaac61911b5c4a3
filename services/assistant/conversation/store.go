// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package conversation provides per-session short-term memory for the chat
// pipeline.
//
// # Description
//
// This package stores the rolling message history of each chat session plus a
// small amount of follow-up state (the last course the assistant presented).
// Two implementations exist: an in-memory store for single-instance
// deployments and a GORM-backed store for deployments that need history to
// survive restarts. Both honor the same ordering contract: messages appended
// by AppendExchange are returned by History in arrival order.
//
// # Thread Safety
//
// All implementations are safe for concurrent use. Concurrent
// AppendExchange calls for the same session are serialized so the
// user/assistant pair of one exchange is never interleaved with another.
package conversation

import (
	"context"
	"time"

	"github.com/AleutianAI/CourseAssistant/services/assistant/datatypes"
)

// SessionInfo is a lightweight summary of a stored session.
type SessionInfo struct {
	SessionID string    `json:"session_id"`
	Messages  int       `json:"messages"`
	LastSeen  time.Time `json:"last_seen"`
}

// Store defines the interface for session memory backends.
//
// # Description
//
// Store holds conversation history keyed by session ID. History is a flat
// list of messages (user and assistant roles interleaved); the follow-up
// state is a single course reference that short-circuit answers like
// "what is the price?" resolve against.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use.
//
// # Example
//
//	store := NewMemoryStore(30 * time.Minute)
//	err := store.AppendExchange(ctx, "sess_123", userMsg, assistantMsg)
//	if err != nil {
//	    // Handle error - history for this turn is lost but the reply was sent
//	}
type Store interface {
	// AppendExchange atomically appends one user/assistant message pair.
	//
	// # Description
	//
	// Both messages are stored together so a concurrent exchange on the same
	// session can never split the pair. The session is created on first
	// append and its last-seen timestamp is refreshed.
	//
	// # Inputs
	//
	//   - ctx: Context for cancellation and timeout.
	//   - sessionID: Validated session identifier.
	//   - userMsg: The user's message for this turn.
	//   - assistantMsg: The assistant's reply for this turn.
	//
	// # Outputs
	//
	//   - error: Non-nil if the backend rejects the write.
	AppendExchange(ctx context.Context, sessionID string, userMsg, assistantMsg datatypes.Message) error

	// History returns up to limit most recent messages in arrival order.
	//
	// # Description
	//
	// When a session holds more than limit messages only the newest limit
	// are returned; ordering within the returned slice is always oldest
	// first. An unknown session yields an empty slice, not an error.
	//
	// # Inputs
	//
	//   - ctx: Context for cancellation and timeout.
	//   - sessionID: Session to load.
	//   - limit: Maximum number of messages to return. Non-positive means no cap.
	History(ctx context.Context, sessionID string, limit int) ([]datatypes.Message, error)

	// LastCourse returns the last course presented in this session.
	//
	// Returns (nil, nil) when nothing has been presented yet.
	LastCourse(ctx context.Context, sessionID string) (*datatypes.ScoredCourse, error)

	// SetLastCourse records the course the assistant just presented.
	//
	// Passing nil clears the follow-up state.
	SetLastCourse(ctx context.Context, sessionID string, course *datatypes.ScoredCourse) error

	// Delete removes a session and all of its history.
	//
	// Deleting an unknown session is not an error.
	Delete(ctx context.Context, sessionID string) error

	// Sessions lists all live sessions, newest activity first.
	Sessions(ctx context.Context) ([]SessionInfo, error)

	// ActiveSessions returns the current live-session count. Cheaper than
	// Sessions for gauges that only need the number.
	ActiveSessions(ctx context.Context) (int, error)

	// PruneIdle deletes sessions whose last activity predates cutoff.
	//
	// # Outputs
	//
	//   - int: Number of sessions removed.
	//   - error: Non-nil if the backend scan fails.
	PruneIdle(ctx context.Context, cutoff time.Time) (int, error)
}
