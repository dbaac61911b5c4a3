// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package validation provides input validation utilities for security-critical operations.
//
// This package contains validators for user-provided inputs that are used in
// database queries and filters. Using these validators prevents injection
// through client-supplied identifiers.
package validation

import (
	"fmt"
	"regexp"
	"strings"
)

// sessionIDPattern matches valid session identifiers.
// Allows: letters, digits, hyphens, underscores (covers UUIDs and the
// widget's legacy "sess_" prefixed ids). Max length: 64 characters.
var sessionIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_\-]{0,63}$`)

// ValidateSessionID validates a client-supplied session identifier before
// it is used in a Weaviate filter or a SQL query.
//
// Valid session ids:
//   - 1-64 characters
//   - Letters A-Z a-z, digits 0-9
//   - Hyphens (-) and underscores (_) after the first character
//
// Returns an error if the id is invalid.
//
// Example:
//
//	if err := validation.ValidateSessionID(id); err != nil {
//	    return nil, fmt.Errorf("invalid session id: %w", err)
//	}
//	// Safe to use in a filter
func ValidateSessionID(id string) error {
	if id == "" {
		return fmt.Errorf("session id cannot be empty")
	}

	if !sessionIDPattern.MatchString(id) {
		return fmt.Errorf("invalid session id format: %q (must be 1-64 alphanumeric chars, hyphens, or underscores)", id)
	}

	return nil
}

// SanitizeSessionID normalizes and validates a session identifier.
// Returns the trimmed id if valid, or an error if invalid.
func SanitizeSessionID(id string) (string, error) {
	normalized := strings.TrimSpace(id)
	if err := ValidateSessionID(normalized); err != nil {
		return "", err
	}
	return normalized, nil
}
