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
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/CourseAssistant/services/assistant/config"
	"github.com/AleutianAI/CourseAssistant/services/assistant/datatypes"
	"github.com/AleutianAI/CourseAssistant/services/llm"
)

// mockLLM implements llm.LLMClient for classifier testing.
type mockLLM struct {
	response string
	err      error
}

func (m *mockLLM) Generate(_ context.Context, _ string, _ llm.GenerationParams) (string, error) {
	return m.response, m.err
}

func (m *mockLLM) Chat(_ context.Context, _ []datatypes.Message, _ llm.GenerationParams) (string, error) {
	return m.response, m.err
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "اتعلم تصميم", Normalize("  أتعلم   تصميم "))
	assert.Equal(t, "photoshop", Normalize("PHOTOSHOP"))
	assert.Equal(t, "دوره", Normalize("دورة"))
}

func TestRuleClassifier_MatchesConfiguredKeyword(t *testing.T) {
	cfg := config.Default()
	c := &RuleClassifier{}

	label, err := c.Classify(context.Background(), cfg, "ابغى أتعلم تصميم")
	require.NoError(t, err)
	assert.Equal(t, "learning_intent", label)
}

func TestRuleClassifier_NoMatchFallsBackToDefault(t *testing.T) {
	cfg := config.Default()
	c := &RuleClassifier{}

	label, err := c.Classify(context.Background(), cfg, "مرحبا")
	require.NoError(t, err)
	assert.Equal(t, cfg.DefaultLabel(), label)
}

func TestModelClassifier_PlainTextLabel(t *testing.T) {
	cfg := config.Default()
	c := &ModelClassifier{llmClient: &mockLLM{response: "search"}}

	label, err := c.Classify(context.Background(), cfg, "عندكم دورات تسويق؟")
	require.NoError(t, err)
	assert.Equal(t, "search", label)
}

func TestModelClassifier_JSONLabel(t *testing.T) {
	cfg := config.Default()
	c := &ModelClassifier{llmClient: &mockLLM{response: `{"intent": "identity"}`}}

	label, err := c.Classify(context.Background(), cfg, "من أنت؟")
	require.NoError(t, err)
	assert.Equal(t, "identity", label)
}

func TestModelClassifier_UnparsableFallsBack(t *testing.T) {
	cfg := config.Default()
	c := &ModelClassifier{llmClient: &mockLLM{response: "I think the user wants to chat."}}

	label, err := c.Classify(context.Background(), cfg, "مرحبا")
	require.NoError(t, err)
	assert.Equal(t, cfg.DefaultLabel(), label)
}

func TestModelClassifier_UpstreamErrorReturnsDefaultAndError(t *testing.T) {
	cfg := config.Default()
	upstreamErr := errors.New("connection refused")
	c := &ModelClassifier{llmClient: &mockLLM{err: upstreamErr}}

	label, err := c.Classify(context.Background(), cfg, "مرحبا")
	assert.ErrorIs(t, err, upstreamErr)
	assert.Equal(t, cfg.DefaultLabel(), label)
}

func TestParseLabel_Variants(t *testing.T) {
	cfg := config.Default()
	cases := map[string]string{
		"search":                   "search",
		"  Search \n":              "search",
		`{"intent":"advice"}`:      "advice",
		`"pricing"`:                "pricing",
		"search because the user.": "search",
		"{broken json":             cfg.DefaultLabel(),
		"":                         cfg.DefaultLabel(),
	}
	for raw, want := range cases {
		assert.Equal(t, want, ParseLabel(raw, cfg), "raw=%q", raw)
	}
}
