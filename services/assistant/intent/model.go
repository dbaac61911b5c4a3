// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package intent

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/AleutianAI/CourseAssistant/services/assistant/config"
	"github.com/AleutianAI/CourseAssistant/services/assistant/datatypes"
	"github.com/AleutianAI/CourseAssistant/services/llm"
)

var modelTracer = otel.Tracer("assistant.intent")

// ModelClassifier makes one deterministic LLM call with the configured
// classifier prompt and a closed label set. The model may answer with a
// bare label or {"intent": "<label>"}; anything else falls back to the
// default label. No retry.
type ModelClassifier struct {
	llmClient llm.LLMClient
}

// intentJSON is the accepted JSON answer shape.
type intentJSON struct {
	Intent string `json:"intent"`
}

// Classify implements the Classifier interface.
func (m *ModelClassifier) Classify(ctx context.Context, cfg *config.PipelineConfig, message string) (string, error) {
	ctx, span := modelTracer.Start(ctx, "ModelClassifier.Classify")
	defer span.End()

	temperature := float32(0)
	maxTokens := 16
	params := llm.GenerationParams{
		Temperature: &temperature,
		MaxTokens:   &maxTokens,
	}
	messages := []datatypes.Message{
		{Role: "system", Content: cfg.Prompts.Classifier},
		{Role: "user", Content: message},
	}

	raw, err := m.llmClient.Chat(ctx, messages, params)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return cfg.DefaultLabel(), err
	}

	label := ParseLabel(raw, cfg)
	span.SetAttributes(attribute.String("intent", label))
	return label, nil
}

// ParseLabel extracts a label from the model's raw answer, accepting
// plain text or the JSON shape, and validates it against the configured
// label set. Unrecognized output maps to the default label.
func ParseLabel(raw string, cfg *config.PipelineConfig) string {
	candidate := strings.TrimSpace(raw)

	if strings.HasPrefix(candidate, "{") {
		var parsed intentJSON
		if err := json.Unmarshal([]byte(candidate), &parsed); err == nil && parsed.Intent != "" {
			candidate = parsed.Intent
		}
	}

	candidate = strings.ToLower(strings.Trim(candidate, "\"'. \n"))
	// Models sometimes answer "intent: search" or add a trailing sentence;
	// keep only the first token.
	if i := strings.IndexAny(candidate, " \n\t"); i > 0 {
		candidate = candidate[:i]
	}
	candidate = strings.TrimPrefix(candidate, "intent:")

	for _, label := range cfg.Intent.Labels {
		if candidate == strings.ToLower(label) {
			return label
		}
	}

	slog.Debug("Classifier returned an unknown label, using default", "raw", raw)
	return cfg.DefaultLabel()
}
