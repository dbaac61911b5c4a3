// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package retrieval

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/CourseAssistant/services/assistant/config"
	"github.com/AleutianAI/CourseAssistant/services/assistant/datatypes"
)

// stubEmbedder returns a fixed vector and counts calls.
type stubEmbedder struct {
	calls int
	err   error
}

func (s *stubEmbedder) Embed(_ context.Context, _ string) ([]float32, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return []float32{0.1, 0.2, 0.3}, nil
}

func course(title string, certainty float64) datatypes.ScoredCourse {
	return datatypes.ScoredCourse{
		Course:    datatypes.Course{Title: title, URL: "https://easyt.online/p/" + title},
		Certainty: certainty,
	}
}

func TestSearch_FirstTierWins(t *testing.T) {
	cfg := config.Default()
	var queried []float64
	r := &WeaviateCourseRetriever{
		embedder: &stubEmbedder{},
		vectorSearch: func(_ context.Context, _ []float32, certainty float64, _ string, _ int) ([]datatypes.ScoredCourse, error) {
			queried = append(queried, certainty)
			return []datatypes.ScoredCourse{course("photoshop-ai", 0.91)}, nil
		},
	}

	res, err := r.Search(context.Background(), cfg, "دورة فوتوشوب")
	require.NoError(t, err)
	assert.Equal(t, 0, res.Tier)
	assert.Len(t, res.Courses, 1)
	// Only the strictest tier should have been queried.
	assert.Equal(t, []float64{0.75}, queried)
}

func TestSearch_LadderDescendsAndStopsOnFirstHit(t *testing.T) {
	cfg := config.Default()
	var queried []float64
	r := &WeaviateCourseRetriever{
		embedder: &stubEmbedder{},
		vectorSearch: func(_ context.Context, _ []float32, certainty float64, _ string, _ int) ([]datatypes.ScoredCourse, error) {
			queried = append(queried, certainty)
			if certainty <= 0.60 {
				return []datatypes.ScoredCourse{course("python-basics", 0.64)}, nil
			}
			return nil, nil
		},
	}

	res, err := r.Search(context.Background(), cfg, "بايثون")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Tier)
	assert.Equal(t, []float64{0.75, 0.60}, queried)
}

func TestSearch_ExhaustedLadderWithoutFallback(t *testing.T) {
	cfg := config.Default()
	cfg.Retrieval.FallbackScan = false
	listCalled := false
	r := &WeaviateCourseRetriever{
		embedder: &stubEmbedder{},
		vectorSearch: func(_ context.Context, _ []float32, _ float64, _ string, _ int) ([]datatypes.ScoredCourse, error) {
			return nil, nil
		},
		list: func(_ context.Context, _ int) ([]datatypes.ScoredCourse, error) {
			listCalled = true
			return nil, nil
		},
	}

	res, err := r.Search(context.Background(), cfg, "شيء غير موجود")
	require.NoError(t, err)
	assert.Empty(t, res.Courses)
	assert.Equal(t, -1, res.Tier)
	assert.False(t, listCalled)
}

func TestSearch_ExhaustedLadderWithFallback(t *testing.T) {
	cfg := config.Default()
	cfg.Retrieval.FallbackScan = true
	r := &WeaviateCourseRetriever{
		embedder: &stubEmbedder{},
		vectorSearch: func(_ context.Context, _ []float32, _ float64, _ string, _ int) ([]datatypes.ScoredCourse, error) {
			return nil, nil
		},
		list: func(_ context.Context, limit int) ([]datatypes.ScoredCourse, error) {
			assert.Equal(t, cfg.Retrieval.FallbackLimit, limit)
			return []datatypes.ScoredCourse{course("latest", 0)}, nil
		},
	}

	res, err := r.Search(context.Background(), cfg, "شيء غير موجود")
	require.NoError(t, err)
	assert.Len(t, res.Courses, 1)
	assert.Equal(t, -1, res.Tier)
}

func TestSearch_EmbeddingFailureAborts(t *testing.T) {
	cfg := config.Default()
	embedErr := errors.New("embedding service down")
	searchCalled := false
	r := &WeaviateCourseRetriever{
		embedder: &stubEmbedder{err: embedErr},
		vectorSearch: func(_ context.Context, _ []float32, _ float64, _ string, _ int) ([]datatypes.ScoredCourse, error) {
			searchCalled = true
			return nil, nil
		},
	}

	_, err := r.Search(context.Background(), cfg, "دورة")
	assert.ErrorIs(t, err, embedErr)
	assert.False(t, searchCalled)
}

func TestDetectDomain(t *testing.T) {
	cfg := config.Default()
	assert.Equal(t, "design", DetectDomain(cfg, "ابغى أتعلم فوتوشوب"))
	assert.Equal(t, "programming", DetectDomain(cfg, "هل عندكم دورة python؟"))
	assert.Equal(t, "", DetectDomain(cfg, "مرحبا"))
}
