// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package retrieval provides course retrieval for the chat pipeline:
// query embedding (with retry and caching) and vector search over the
// course catalog with a descending certainty ladder.
package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/AleutianAI/CourseAssistant/services/llm"
)

// Embedder computes a fixed-length vector for a piece of text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// RetryingEmbedder wraps an EmbeddingClient with bounded retries and
// exponential backoff (1s, 2s, 4s). Embedding is the only upstream call
// that is retried: it is cheap, idempotent, and its transient failures
// would otherwise kill an entire chat turn.
type RetryingEmbedder struct {
	client      llm.EmbeddingClient
	maxAttempts int
	baseDelay   time.Duration
}

// NewRetryingEmbedder creates a RetryingEmbedder with 3 attempts and a
// 1 second base delay.
func NewRetryingEmbedder(client llm.EmbeddingClient) *RetryingEmbedder {
	return &RetryingEmbedder{
		client:      client,
		maxAttempts: 3,
		baseDelay:   time.Second,
	}
}

// Embed implements the Embedder interface.
func (e *RetryingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	var lastErr error
	delay := e.baseDelay
	for attempt := 1; attempt <= e.maxAttempts; attempt++ {
		vector, err := e.client.Embed(ctx, text)
		if err == nil {
			return vector, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if attempt < e.maxAttempts {
			slog.Warn("Embedding call failed, retrying",
				"attempt", attempt, "max_attempts", e.maxAttempts, "delay", delay, "error", err)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
		}
	}
	return nil, fmt.Errorf("embedding failed after %d attempts: %w", e.maxAttempts, lastErr)
}

// MeteredEmbedder reports the wall-clock latency of every embedding call
// to an observer, failures included. Wrap it inside the cache layer so
// cache hits do not count as embedding calls.
type MeteredEmbedder struct {
	inner   Embedder
	observe func(seconds float64)
}

// NewMeteredEmbedder wraps inner with latency reporting. A nil observer
// returns inner unchanged.
func NewMeteredEmbedder(inner Embedder, observe func(seconds float64)) Embedder {
	if observe == nil {
		return inner
	}
	return &MeteredEmbedder{inner: inner, observe: observe}
}

// Embed implements the Embedder interface.
func (e *MeteredEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	start := time.Now()
	vector, err := e.inner.Embed(ctx, text)
	e.observe(time.Since(start).Seconds())
	return vector, err
}
