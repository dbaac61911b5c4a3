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
	"fmt"
	"log/slog"

	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/filters"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/AleutianAI/CourseAssistant/services/assistant/config"
	"github.com/AleutianAI/CourseAssistant/services/assistant/datatypes"
	"github.com/AleutianAI/CourseAssistant/services/assistant/intent"
)

var tracer = otel.Tracer("assistant.retrieval")

// Result is the outcome of a catalog search.
type Result struct {
	// Courses is empty when every ladder tier (and the fallback, if
	// enabled) produced nothing.
	Courses []datatypes.ScoredCourse

	// Tier is the index into the threshold ladder that produced the
	// courses; -1 for the unvectored fallback listing.
	Tier int

	// Domain is the domain filter that was applied, or "".
	Domain string
}

// CourseRetriever finds candidate courses for a user message.
type CourseRetriever interface {
	Search(ctx context.Context, cfg *config.PipelineConfig, message string) (*Result, error)
}

// vectorSearchFunc runs one nearVector query against the catalog.
// Injectable so ladder behavior is testable without a live Weaviate
// instance.
type vectorSearchFunc func(ctx context.Context, vector []float32, certainty float64, domain string, limit int) ([]datatypes.ScoredCourse, error)

// listFunc runs the plain unvectored fallback listing.
type listFunc func(ctx context.Context, limit int) ([]datatypes.ScoredCourse, error)

// WeaviateCourseRetriever implements CourseRetriever against the Course
// class: embed the message once, then walk the certainty ladder from the
// strictest tier down and stop at the first tier that returns rows.
type WeaviateCourseRetriever struct {
	embedder     Embedder
	vectorSearch vectorSearchFunc
	list         listFunc
}

// NewWeaviateCourseRetriever builds a retriever bound to client.
func NewWeaviateCourseRetriever(client *weaviate.Client, embedder Embedder) *WeaviateCourseRetriever {
	return &WeaviateCourseRetriever{
		embedder:     embedder,
		vectorSearch: weaviateVectorSearch(client),
		list:         weaviateList(client),
	}
}

// DetectDomain maps the message onto a configured domain tag, or ""
// when no domain keywords match.
func DetectDomain(cfg *config.PipelineConfig, message string) string {
	normalized := intent.Normalize(message)
	for domain, keywords := range cfg.Retrieval.DomainKeywords {
		if intent.ContainsAny(normalized, keywords) {
			return domain
		}
	}
	return ""
}

// Search implements the CourseRetriever interface.
func (r *WeaviateCourseRetriever) Search(ctx context.Context, cfg *config.PipelineConfig, message string) (*Result, error) {
	ctx, span := tracer.Start(ctx, "WeaviateCourseRetriever.Search")
	defer span.End()

	domain := DetectDomain(cfg, message)
	span.SetAttributes(attribute.String("domain", domain))

	vector, err := r.embedder.Embed(ctx, intent.Normalize(message))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	for tier, certainty := range cfg.Retrieval.ThresholdLadder {
		courses, err := r.vectorSearch(ctx, vector, certainty, domain, cfg.Retrieval.MatchCount)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, fmt.Errorf("vector search failed at tier %d: %w", tier, err)
		}
		if len(courses) > 0 {
			span.SetAttributes(attribute.Int("tier", tier))
			span.SetAttributes(attribute.Int("results", len(courses)))
			slog.Debug("Course search hit", "tier", tier, "certainty", certainty, "results", len(courses))
			return &Result{Courses: courses, Tier: tier, Domain: domain}, nil
		}
	}

	if cfg.Retrieval.FallbackScan {
		courses, err := r.list(ctx, cfg.Retrieval.FallbackLimit)
		if err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("fallback course listing failed: %w", err)
		}
		slog.Debug("Course search fell back to plain listing", "results", len(courses))
		return &Result{Courses: courses, Tier: -1, Domain: domain}, nil
	}

	slog.Debug("Course search exhausted every tier", "domain", domain)
	return &Result{Tier: -1, Domain: domain}, nil
}

// weaviateVectorSearch builds the production vectorSearchFunc.
func weaviateVectorSearch(client *weaviate.Client) vectorSearchFunc {
	return func(ctx context.Context, vector []float32, certainty float64, domain string, limit int) ([]datatypes.ScoredCourse, error) {
		nearVector := client.GraphQL().NearVectorArgBuilder().
			WithVector(vector).
			WithCertainty(float32(certainty))

		fields := []graphql.Field{
			{Name: "title"},
			{Name: "url"},
			{Name: "description"},
			{Name: "price"},
			{Name: "duration"},
			{Name: "domain"},
			{Name: "_additional", Fields: []graphql.Field{
				{Name: "certainty"},
			}},
		}

		query := client.GraphQL().Get().
			WithClassName("Course").
			WithFields(fields...).
			WithNearVector(nearVector).
			WithLimit(limit)

		if domain != "" {
			where := filters.Where().
				WithPath([]string{"domain"}).
				WithOperator(filters.Equal).
				WithValueString(domain)
			query = query.WithWhere(where)
		}

		result, err := query.Do(ctx)
		if err != nil {
			return nil, fmt.Errorf("weaviate search failed: %w", err)
		}

		parsed, err := datatypes.ParseGraphQLResponse[datatypes.CourseQueryResponse](result)
		if err != nil {
			return nil, fmt.Errorf("failed to parse search results: %w", err)
		}

		courses := make([]datatypes.ScoredCourse, 0, len(parsed.Get.Course))
		for i := range parsed.Get.Course {
			courses = append(courses, parsed.Get.Course[i].ToScored())
		}
		return courses, nil
	}
}

// weaviateList builds the production listFunc: newest courses first,
// no vector involved.
func weaviateList(client *weaviate.Client) listFunc {
	return func(ctx context.Context, limit int) ([]datatypes.ScoredCourse, error) {
		sortBy := graphql.Sort{
			Path:  []string{"ingested_at"},
			Order: graphql.Desc,
		}
		fields := []graphql.Field{
			{Name: "title"},
			{Name: "url"},
			{Name: "description"},
			{Name: "price"},
			{Name: "duration"},
			{Name: "domain"},
		}

		result, err := client.GraphQL().Get().
			WithClassName("Course").
			WithFields(fields...).
			WithSort(sortBy).
			WithLimit(limit).
			Do(ctx)
		if err != nil {
			return nil, fmt.Errorf("weaviate listing failed: %w", err)
		}

		parsed, err := datatypes.ParseGraphQLResponse[datatypes.CourseQueryResponse](result)
		if err != nil {
			return nil, fmt.Errorf("failed to parse listing results: %w", err)
		}

		courses := make([]datatypes.ScoredCourse, 0, len(parsed.Get.Course))
		for i := range parsed.Get.Course {
			courses = append(courses, parsed.Get.Course[i].ToScored())
		}
		return courses, nil
	}
}
