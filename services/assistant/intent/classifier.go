// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package intent provides message intent classification for the chat pipeline.
//
// # Description
//
// Two interchangeable classifiers exist behind one interface: a rule-based
// one driven by configured keyword lists, and a model-based one that makes
// a single deterministic LLM call against a closed label set. Which one
// runs is a configuration decision (intent.mode), so tests can always swap
// in the deterministic rule classifier.
//
// # Thread Safety
//
// All implementations are safe for concurrent use.
package intent

import (
	"context"
	"strings"
	"unicode"

	"github.com/AleutianAI/CourseAssistant/services/assistant/config"
	"github.com/AleutianAI/CourseAssistant/services/llm"
)

// Classifier labels a user message with exactly one intent from the
// configured closed label set.
type Classifier interface {
	// Classify returns one of cfg.Intent.Labels. Implementations fall
	// back to cfg.DefaultLabel() on anything unparsable; a non-nil error
	// means the upstream call itself failed and the caller should degrade
	// to the default label.
	Classify(ctx context.Context, cfg *config.PipelineConfig, message string) (string, error)
}

// New selects the classifier implementation for the configured mode.
func New(mode string, llmClient llm.LLMClient) Classifier {
	if mode == "model" {
		return &ModelClassifier{llmClient: llmClient}
	}
	return &RuleClassifier{}
}

// Normalize prepares a message for keyword matching: trims, lowercases,
// collapses whitespace, and folds the Arabic alef variants (أ إ آ → ا) so
// keyword lists do not need every spelling.
func Normalize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	var b strings.Builder
	b.Grow(len(s))
	lastSpace := false
	for _, r := range s {
		switch r {
		case 'أ', 'إ', 'آ':
			r = 'ا'
		case 'ة':
			r = 'ه'
		}
		if unicode.IsSpace(r) {
			if lastSpace {
				continue
			}
			lastSpace = true
			b.WriteRune(' ')
			continue
		}
		lastSpace = false
		b.WriteRune(r)
	}
	return b.String()
}

// ContainsAny reports whether the normalized message contains any of the
// given keywords (themselves normalized before comparison).
func ContainsAny(normalizedMessage string, keywords []string) bool {
	for _, kw := range keywords {
		if kw == "" {
			continue
		}
		if strings.Contains(normalizedMessage, Normalize(kw)) {
			return true
		}
	}
	return false
}
