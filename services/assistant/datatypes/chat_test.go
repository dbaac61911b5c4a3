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
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/weaviate/weaviate/entities/models"
)

func TestChatRequest_Validate(t *testing.T) {
	tests := []struct {
		name    string
		req     ChatRequest
		wantErr bool
	}{
		{
			name: "valid arabic message",
			req:  ChatRequest{Message: "ابغى أتعلم تصميم"},
		},
		{
			name: "valid with session and user",
			req:  ChatRequest{Message: "مرحبا", SessionId: "sess_1", UserId: "u_1"},
		},
		{
			name:    "missing message",
			req:     ChatRequest{SessionId: "sess_1"},
			wantErr: true,
		},
		{
			name:    "whitespace-only message",
			req:     ChatRequest{Message: " \t\n "},
			wantErr: true,
		},
		{
			name:    "message over byte cap",
			req:     ChatRequest{Message: strings.Repeat("م", MaxMessageContentBytes)},
			wantErr: true,
		},
		{
			name:    "session id too long",
			req:     ChatRequest{Message: "مرحبا", SessionId: strings.Repeat("a", 65)},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestParseGraphQLResponse_CourseRows(t *testing.T) {
	certainty := 0.81
	resp := &models.GraphQLResponse{
		Data: map[string]models.JSONObject{
			"Get": map[string]interface{}{
				"Course": []interface{}{
					map[string]interface{}{
						"title":    "دورة التصميم",
						"url":      "https://easyt.online/p/design",
						"price":    "19.99$",
						"duration": "8 ساعات",
						"domain":   "design",
						"_additional": map[string]interface{}{
							"certainty": certainty,
						},
					},
				},
			},
		},
	}

	parsed, err := ParseGraphQLResponse[CourseQueryResponse](resp)
	require.NoError(t, err)
	require.Len(t, parsed.Get.Course, 1)

	scored := parsed.Get.Course[0].ToScored()
	assert.Equal(t, "دورة التصميم", scored.Title)
	assert.Equal(t, "19.99$", scored.Price)
	assert.InDelta(t, certainty, scored.Certainty, 1e-9)
}

func TestParseGraphQLResponse_Nil(t *testing.T) {
	_, err := ParseGraphQLResponse[CourseQueryResponse](nil)
	assert.Error(t, err)
}

func TestToScored_NoCertaintyDefaultsToZero(t *testing.T) {
	r := CourseResult{Title: "دورة"}
	assert.Zero(t, r.ToScored().Certainty)
}
