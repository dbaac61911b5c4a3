// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package datatypes

import (
	"encoding/json"
	"fmt"

	"github.com/weaviate/weaviate/entities/models"
)

// Course is a catalog entry as stored in the Weaviate Course class.
//
// The catalog is owned by the platform's ingest pipeline; the assistant
// reads it and the seeder (cmd/assistant seed) writes it.
type Course struct {
	Title       string `json:"title"`
	URL         string `json:"url"`
	Description string `json:"description"`
	Price       string `json:"price"`
	Duration    string `json:"duration"`
	Domain      string `json:"domain"`
}

// ScoredCourse is a Course plus the certainty returned by vector search.
// Certainty is in [0,1]; 0 means the course came from the unvectored
// fallback listing rather than a similarity match.
type ScoredCourse struct {
	Course
	Certainty float64 `json:"certainty"`
}

// CourseProperties is the property set for creating a Course object.
type CourseProperties struct {
	Title       string `json:"title"`
	URL         string `json:"url"`
	Description string `json:"description"`
	Price       string `json:"price"`
	Duration    string `json:"duration"`
	Domain      string `json:"domain"`
	IngestedAt  int64  `json:"ingested_at"`
}

// ToMap converts CourseProperties to the map format required by the
// Weaviate client's WithProperties().
func (p *CourseProperties) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"title":       p.Title,
		"url":         p.URL,
		"description": p.Description,
		"price":       p.Price,
		"duration":    p.Duration,
		"domain":      p.Domain,
		"ingested_at": p.IngestedAt,
	}
}

// =============================================================================
// Generic GraphQL Response Parser
// =============================================================================

// ParseGraphQLResponse parses a Weaviate GraphQL response into the target type.
//
// # Description
//
// Encapsulates the marshal/unmarshal pattern required to convert Weaviate's
// dynamic response (map[string]models.JSONObject) into a strongly-typed Go
// struct. The target type T must have json tags matching the response shape.
//
// # Limitations
//
//   - Type mismatches produce zero values, not errors.
func ParseGraphQLResponse[T any](resp *models.GraphQLResponse) (*T, error) {
	if resp == nil {
		return nil, fmt.Errorf("nil GraphQL response")
	}

	respBytes, err := json.Marshal(resp.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal GraphQL response data: %w", err)
	}

	var result T
	if err := json.Unmarshal(respBytes, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal into target type: %w", err)
	}

	return &result, nil
}

// CourseQueryResponse represents the response from querying the Course class.
type CourseQueryResponse struct {
	Get struct {
		Course []CourseResult `json:"Course"`
	} `json:"Get"`
}

// CourseResult is a single course row from a GraphQL query.
type CourseResult struct {
	Title       string `json:"title"`
	URL         string `json:"url"`
	Description string `json:"description"`
	Price       string `json:"price"`
	Duration    string `json:"duration"`
	Domain      string `json:"domain"`
	Additional  struct {
		ID        string   `json:"id"`
		Certainty *float64 `json:"certainty"`
	} `json:"_additional"`
}

// ToScored converts a query result into a ScoredCourse.
func (r *CourseResult) ToScored() ScoredCourse {
	sc := ScoredCourse{
		Course: Course{
			Title:       r.Title,
			URL:         r.URL,
			Description: r.Description,
			Price:       r.Price,
			Duration:    r.Duration,
			Domain:      r.Domain,
		},
	}
	if r.Additional.Certainty != nil {
		sc.Certainty = *r.Additional.Certainty
	}
	return sc
}
