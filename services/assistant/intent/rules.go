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

	"github.com/AleutianAI/CourseAssistant/services/assistant/config"
)

// RuleClassifier matches configured keyword lists against the normalized
// message. Labels are checked in the configured label order so the first
// configured label wins ties; no keywords match means the default label.
type RuleClassifier struct{}

// Classify implements the Classifier interface. It never fails and makes
// no upstream calls.
func (r *RuleClassifier) Classify(_ context.Context, cfg *config.PipelineConfig, message string) (string, error) {
	normalized := Normalize(message)
	for _, label := range cfg.Intent.Labels {
		keywords, ok := cfg.Intent.Keywords[label]
		if !ok {
			continue
		}
		if ContainsAny(normalized, keywords) {
			return label, nil
		}
	}
	return cfg.DefaultLabel(), nil
}
