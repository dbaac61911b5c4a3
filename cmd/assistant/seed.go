// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/go-openapi/strfmt"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate/entities/models"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/CourseAssistant/services/assistant/datatypes"
	"github.com/AleutianAI/CourseAssistant/services/assistant/retrieval"
	"github.com/AleutianAI/CourseAssistant/services/llm"
)

const seedBatchSize = 50

// seedCourse is one catalog entry as written by the content team.
type seedCourse struct {
	Title       string `yaml:"title"`
	URL         string `yaml:"url"`
	Description string `yaml:"description"`
	Price       string `yaml:"price"`
	Duration    string `yaml:"duration"`
	Domain      string `yaml:"domain"`
}

// embedText is what gets vectorized: title plus description, the same
// text shape user queries are matched against.
func (c *seedCourse) embedText() string {
	if c.Description == "" {
		return c.Title
	}
	return c.Title + "\n" + c.Description
}

// courseObjectID derives a stable object ID from the enrollment URL so
// re-seeding updates courses in place instead of duplicating them.
func courseObjectID(courseURL string) strfmt.UUID {
	return strfmt.UUID(uuid.NewSHA1(uuid.NameSpaceURL, []byte(courseURL)).String())
}

// loadCatalog reads and validates the catalog file.
func loadCatalog(path string) ([]seedCourse, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading catalog file: %w", err)
	}

	var catalog struct {
		Courses []seedCourse `yaml:"courses"`
	}
	if err := yaml.Unmarshal(raw, &catalog); err != nil {
		return nil, fmt.Errorf("parsing catalog file: %w", err)
	}
	if len(catalog.Courses) == 0 {
		return nil, fmt.Errorf("catalog file %s contains no courses", path)
	}

	for i, c := range catalog.Courses {
		if c.Title == "" {
			return nil, fmt.Errorf("course %d is missing a title", i)
		}
		if c.URL == "" {
			return nil, fmt.Errorf("course %q is missing a url", c.Title)
		}
	}
	return catalog.Courses, nil
}

// newSeedWeaviateClient resolves the target vector database from the flag
// or WEAVIATE_SERVICE_URL.
func newSeedWeaviateClient() (*weaviate.Client, error) {
	target := weaviateURL
	if target == "" {
		target = strings.Trim(os.Getenv("WEAVIATE_SERVICE_URL"), "\"' ")
	}
	if target == "" {
		return nil, fmt.Errorf("no vector database configured: pass --weaviate-url or set WEAVIATE_SERVICE_URL")
	}

	parsed, err := url.Parse(target)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("invalid vector database URL %q", target)
	}
	return weaviate.NewClient(weaviate.Config{
		Host:   parsed.Host,
		Scheme: parsed.Scheme,
	})
}

func newSeedEmbedder() (retrieval.Embedder, error) {
	switch os.Getenv("LLM_BACKEND_TYPE") {
	case "ollama":
		client, err := llm.NewOllamaClient()
		if err != nil {
			return nil, err
		}
		return retrieval.NewRetryingEmbedder(client), nil
	case "openai", "":
		client, err := llm.NewOpenAIClient()
		if err != nil {
			return nil, err
		}
		return retrieval.NewRetryingEmbedder(client), nil
	default:
		return nil, fmt.Errorf("unknown LLM_BACKEND_TYPE %q", os.Getenv("LLM_BACKEND_TYPE"))
	}
}

func runSeed(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	courses, err := loadCatalog(catalogPath)
	if err != nil {
		return err
	}
	slog.Info("Loaded course catalog", "path", catalogPath, "courses", len(courses))

	client, err := newSeedWeaviateClient()
	if err != nil {
		return err
	}
	datatypes.EnsureWeaviateSchema(client)

	embedder, err := newSeedEmbedder()
	if err != nil {
		return err
	}

	// Embed concurrently but rate-limited; the embedding API is the
	// bottleneck, not Weaviate.
	limiter := rate.NewLimiter(rate.Limit(seedRate), 1)
	vectors := make([][]float32, len(courses))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(seedConcurrency)
	for i := range courses {
		g.Go(func() error {
			if err := limiter.Wait(gctx); err != nil {
				return err
			}
			vec, err := embedder.Embed(gctx, courses[i].embedText())
			if err != nil {
				return fmt.Errorf("embedding course %q: %w", courses[i].Title, err)
			}
			vectors[i] = vec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	now := time.Now().UnixMilli()
	objects := make([]*models.Object, len(courses))
	for i, c := range courses {
		props := datatypes.CourseProperties{
			Title:       c.Title,
			URL:         c.URL,
			Description: c.Description,
			Price:       c.Price,
			Duration:    c.Duration,
			Domain:      c.Domain,
			IngestedAt:  now,
		}
		objects[i] = &models.Object{
			Class:      "Course",
			ID:         courseObjectID(c.URL),
			Vector:     vectors[i],
			Properties: props.ToMap(),
		}
	}

	indexed := 0
	for i := 0; i < len(objects); i += seedBatchSize {
		end := min(i+seedBatchSize, len(objects))

		result, err := client.Batch().ObjectsBatcher().WithObjects(objects[i:end]...).Do(ctx)
		if err != nil {
			return fmt.Errorf("batch import failed: %w", err)
		}
		for _, obj := range result {
			if obj.Result != nil && obj.Result.Errors == nil {
				indexed++
			}
		}
		slog.Info("Indexed batch", "count", end-i, "total_indexed", indexed)
	}

	slog.Info("Catalog seeding complete", "indexed", indexed, "courses", len(courses))
	return nil
}

func runSchema(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	client, err := newSeedWeaviateClient()
	if err != nil {
		return err
	}

	if recreateSchema {
		slog.Warn("Dropping Course class")
		if err := client.Schema().ClassDeleter().WithClassName("Course").Do(ctx); err != nil {
			return fmt.Errorf("dropping Course class: %w", err)
		}
	}

	datatypes.EnsureWeaviateSchema(client)
	return nil
}
