// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package llm

import (
	"context"

	"github.com/AleutianAI/CourseAssistant/services/assistant/datatypes"
)

type GenerationParams struct {
	Temperature *float32 `json:"temperature"`
	TopP        *float32 `json:"top_p"`
	MaxTokens   *int     `json:"max_tokens"`
	Stop        []string `json:"stop"`
}

// LLMClient defines the standard interface for any LLM backend.
type LLMClient interface {
	// Generate produces a completion for a single prompt with the backend's
	// default system persona.
	Generate(ctx context.Context, prompt string, params GenerationParams) (string, error)

	// Chat produces a completion for a full message history. The caller is
	// responsible for including any system message.
	Chat(ctx context.Context, messages []datatypes.Message, params GenerationParams) (string, error)
}

// EmbeddingClient defines the interface for computing text embeddings.
// Kept separate from LLMClient so retrieval can be wired to a different
// backend than generation.
type EmbeddingClient interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}
