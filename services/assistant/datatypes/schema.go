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
	"context"
	"log"
	"log/slog"

	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate/entities/models"
)

func GetCourseSchema() *models.Class {
	indexFilterable := new(bool)
	*indexFilterable = true

	return &models.Class{
		Class:       "Course",
		Description: "A course from the platform catalog with its metadata and embedding.",
		Vectorizer:  "none",
		InvertedIndexConfig: &models.InvertedIndexConfig{
			IndexNullState:  true,
			IndexTimestamps: true,
		},
		Properties: []*models.Property{
			{
				Name:         "title",
				DataType:     []string{"text"},
				Description:  "Course title as shown on the platform.",
				Tokenization: "word",
			},
			{
				Name:            "url",
				DataType:        []string{"text"},
				Description:     "Public enrollment URL for the course.",
				IndexFilterable: indexFilterable,
				Tokenization:    "field",
			},
			{
				Name:         "description",
				DataType:     []string{"text"},
				Description:  "Marketing description used for retrieval context.",
				Tokenization: "word",
			},
			{
				Name:        "price",
				DataType:    []string{"text"},
				Description: "Display price string, e.g. '9.99$'.",
			},
			{
				Name:        "duration",
				DataType:    []string{"text"},
				Description: "Display duration string, e.g. '4 ساعات'.",
			},
			{
				Name:            "domain",
				DataType:        []string{"text"},
				Description:     "Topic domain tag used for filtered retrieval (e.g. 'design').",
				IndexFilterable: indexFilterable,
				Tokenization:    "field",
			},
			{
				Name:            "ingested_at",
				DataType:        []string{"number"},
				Description:     "Timestamp (Unix ms) of when the course was last seeded.",
				IndexFilterable: indexFilterable,
			},
		},
	}
}

// EnsureWeaviateSchema creates the assistant's classes if they are missing.
//
// Schema creation failures are fatal: the service cannot answer catalog
// questions without the Course class, and a half-created schema is worse
// than a clean crash at startup.
func EnsureWeaviateSchema(client *weaviate.Client) {
	schemaGetters := []func() *models.Class{
		GetCourseSchema,
	}

	for _, getSchema := range schemaGetters {
		class := getSchema()
		slog.Info("Checking schema", "class", class.Class)

		_, err := client.Schema().ClassGetter().WithClassName(class.Class).Do(context.Background())
		if err != nil {
			slog.Info("Schema not found, creating it...", "class", class.Class)
			err := client.Schema().ClassCreator().WithClass(class).Do(context.Background())
			if err != nil {
				log.Fatalf("Failed to create schema for class %s: %v", class.Class, err)
			}
			slog.Info("Successfully created schema", "class", class.Class)
		} else {
			slog.Info("Schema already exists", "class", class.Class)
		}
	}
}
