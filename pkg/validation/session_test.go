// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateSessionID_Valid(t *testing.T) {
	valid := []string{
		"550e8400-e29b-41d4-a716-446655440000",
		"sess_123",
		"X",
		"abc-DEF_099",
	}
	for _, id := range valid {
		assert.NoError(t, ValidateSessionID(id), "expected %q to be valid", id)
	}
}

func TestValidateSessionID_Invalid(t *testing.T) {
	invalid := []string{
		"",
		"_leading-underscore",
		"-leading-hyphen",
		"has space",
		`has"quote`,
		"semi;colon",
		strings.Repeat("a", 65),
		"عربي",
	}
	for _, id := range invalid {
		assert.Error(t, ValidateSessionID(id), "expected %q to be rejected", id)
	}
}

func TestSanitizeSessionID(t *testing.T) {
	got, err := SanitizeSessionID("  sess_42  ")
	require.NoError(t, err)
	assert.Equal(t, "sess_42", got)

	_, err = SanitizeSessionID("   ")
	assert.Error(t, err)
}
