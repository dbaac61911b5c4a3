// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package services

import (
	"log/slog"
	"sync"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"

	"github.com/AleutianAI/CourseAssistant/services/assistant/datatypes"
)

// tokenCounter returns the token count of a string.
type tokenCounter func(s string) int

var (
	counterOnce    sync.Once
	defaultCounter tokenCounter
)

// newTokenCounter returns a counter backed by the cl100k_base encoding.
// If the encoding cannot be loaded it falls back to a rune-based estimate
// so budgeting degrades instead of breaking the pipeline.
func newTokenCounter() tokenCounter {
	counterOnce.Do(func() {
		enc, err := tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			slog.Warn("token encoding unavailable, using rune estimate",
				"error", err,
			)
			defaultCounter = func(s string) int {
				return utf8.RuneCountInString(s)/4 + 1
			}
			return
		}
		defaultCounter = func(s string) int {
			return len(enc.Encode(s, nil, nil))
		}
	})
	return defaultCounter
}

// trimMessagesToBudget keeps the newest messages that fit within budget
// tokens, preserving chronological order. A non-positive budget returns
// the input unchanged.
func trimMessagesToBudget(count tokenCounter, msgs []datatypes.Message, budget int) []datatypes.Message {
	if budget <= 0 || len(msgs) == 0 {
		return msgs
	}

	total := 0
	cut := len(msgs)
	for i := len(msgs) - 1; i >= 0; i-- {
		total += count(msgs[i].Content)
		if total > budget {
			break
		}
		cut = i
	}
	return msgs[cut:]
}

// truncateToBudget cuts text to the largest prefix (on rune boundaries)
// that fits within budget tokens.
func truncateToBudget(count tokenCounter, text string, budget int) string {
	if budget <= 0 || count(text) <= budget {
		return text
	}

	runes := []rune(text)
	lo, hi := 0, len(runes)
	for lo < hi {
		mid := (lo + hi + 1) / 2
		if count(string(runes[:mid])) <= budget {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	return string(runes[:lo])
}
