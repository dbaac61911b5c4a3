// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package services provides business logic services for the assistant.
//
// This package contains service structs that encapsulate business logic,
// separating it from HTTP handlers. Services are responsible for:
//   - Orchestrating calls to external services (LLM, embeddings, Weaviate)
//   - Applying business rules and validation
//   - Managing session state and error handling
//
// Services are designed to be:
//   - Testable: Dependencies are injected via constructors
//   - Composable: Services can call other services
//   - Traceable: All methods accept context for distributed tracing
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/CourseAssistant/pkg/validation"
	"github.com/AleutianAI/CourseAssistant/services/assistant/config"
	"github.com/AleutianAI/CourseAssistant/services/assistant/conversation"
	"github.com/AleutianAI/CourseAssistant/services/assistant/datatypes"
	"github.com/AleutianAI/CourseAssistant/services/assistant/format"
	"github.com/AleutianAI/CourseAssistant/services/assistant/intent"
	"github.com/AleutianAI/CourseAssistant/services/assistant/observability"
	"github.com/AleutianAI/CourseAssistant/services/assistant/retrieval"
	"github.com/AleutianAI/CourseAssistant/services/llm"
)

// chatTracer is the OpenTelemetry tracer for ChatService operations.
var chatTracer = otel.Tracer("assistant.services.chat")

// Intent labels the pipeline synthesizes for shortcut paths; neither passes
// through the classifier.
const (
	intentStatic   = "static"
	intentFollowUp = "follow_up"
)

// defaultTemperature for the responder call. The classifier runs at 0
// inside the intent package.
var defaultTemperature = float32(0.7)

// turnTimeout bounds one full chat turn across all upstream calls. A hung
// embedding or generation call must not pin the request past this.
const turnTimeout = 90 * time.Second

// =============================================================================
// ChatService
// =============================================================================

// ChatService handles one chat turn end-to-end. It orchestrates the flow
// between:
//   - Session store: conversation history and follow-up state
//   - Intent classifier: rules- or model-based label selection
//   - Course retriever: embedding plus tiered vector search
//   - LLM client: Arabic response generation
//   - Formatter: constrained-HTML rendering with course buttons
//
// All tunable behavior (prompts, thresholds, keyword lists, fixed replies)
// comes from the config provider, so a hot reload changes pipeline behavior
// without a restart.
//
// Usage:
//
//	service := NewChatService(provider, store, llmClient, retriever, metrics)
//	resp, err := service.Process(ctx, &req)
type ChatService struct {
	provider  *config.Provider
	store     conversation.Store
	llmClient llm.LLMClient
	retriever retrieval.CourseRetriever
	metrics   *observability.AssistantMetrics
	count     tokenCounter
}

// NewChatService creates a ChatService with the provided dependencies.
//
// Parameters:
//   - provider: Pipeline configuration source. Must not be nil.
//   - store: Session memory backend. Must not be nil.
//   - llmClient: Backend for response generation. Must not be nil.
//   - retriever: Course search backend. May be nil on deployments without
//     a vector database; retrieval requests then degrade to the
//     temporary-error reply while static answers and follow-ups keep working.
//   - metrics: May be nil; recording is skipped when absent.
func NewChatService(
	provider *config.Provider,
	store conversation.Store,
	llmClient llm.LLMClient,
	retriever retrieval.CourseRetriever,
	metrics *observability.AssistantMetrics,
) *ChatService {
	return &ChatService{
		provider:  provider,
		store:     store,
		llmClient: llmClient,
		retriever: retriever,
		metrics:   metrics,
		count:     newTokenCounter(),
	}
}

// =============================================================================
// Core Processing
// =============================================================================

// Process handles one chat request.
//
// The processing flow is:
//  1. Validate the request (invalid input never reaches an upstream service)
//  2. Ensure a session ID exists
//  3. Check static answers (hard-keyword shortcuts, no upstream calls)
//  4. Check follow-up keywords against the session's last course
//  5. Classify intent and search the catalog concurrently
//  6. Generate the reply with token-budgeted history and context
//  7. Format to constrained HTML and persist the exchange
//
// Returns:
//   - *datatypes.ChatResponse: The rendered reply plus recommendations.
//   - error: *ValidationError for client input errors; any other non-nil
//     error is an upstream failure the handler converts into the localized
//     temporary-error reply.
//
// The method is safe for concurrent use. Concurrent calls sharing a session
// ID serialize their history appends in the store.
func (s *ChatService) Process(ctx context.Context, req *datatypes.ChatRequest) (*datatypes.ChatResponse, error) {
	ctx, span := chatTracer.Start(ctx, "ChatService.Process")
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, turnTimeout)
	defer cancel()

	cfg := s.provider.Get()

	if err := req.Validate(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "validation failed")
		s.recordRequest("", observability.StatusInvalid)
		return nil, &ValidationError{Err: err}
	}

	sessionID := req.SessionId
	if sessionID == "" {
		sessionID = "sess_" + uuid.NewString()
	} else if err := validation.ValidateSessionID(sessionID); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "bad session id")
		s.recordRequest("", observability.StatusInvalid)
		return nil, &ValidationError{Err: err}
	}
	span.SetAttributes(attribute.String("session.id", sessionID))

	normalized := intent.Normalize(req.Message)

	// Step 3: static answers bypass the whole pipeline.
	if resp, err := s.staticAnswer(ctx, cfg, sessionID, req.Message, normalized); resp != nil || err != nil {
		return resp, err
	}

	// Step 4: follow-up shortcut against the last presented course.
	if resp, err := s.followUp(ctx, cfg, sessionID, req.Message, normalized); resp != nil || err != nil {
		return resp, err
	}

	// Step 5: classification and retrieval are independent; run them
	// concurrently. Classification failure degrades to the default label
	// and never fails the request.
	var (
		label  string
		result *retrieval.Result
	)
	classifier := intent.New(cfg.Intent.Mode, s.llmClient)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		start := time.Now()
		l, err := classifier.Classify(gctx, cfg, req.Message)
		s.observe(observability.OpClassify, time.Since(start))
		if err != nil {
			slog.Warn("intent classification failed, using default label",
				"sessionId", sessionID,
				"error", err,
			)
		}
		label = l
		return nil
	})
	g.Go(func() error {
		if s.retriever == nil {
			return fmt.Errorf("course retrieval is not configured")
		}
		start := time.Now()
		r, err := s.retriever.Search(gctx, cfg, req.Message)
		s.observe(observability.OpSearch, time.Since(start))
		if err != nil {
			return fmt.Errorf("course search failed: %w", err)
		}
		result = r
		return nil
	})
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "retrieval failed")
		s.recordRequest(label, observability.StatusDegraded)
		return nil, err
	}

	span.SetAttributes(
		attribute.String("intent.label", label),
		attribute.Int("retrieval.courses", len(result.Courses)),
		attribute.String("retrieval.domain", result.Domain),
	)
	s.recordTier(cfg, result)

	// Step 6: no candidates at any tier means the fixed "not available"
	// reply with no course links.
	if len(result.Courses) == 0 {
		return s.finishTurn(ctx, sessionID, label, req.Message, cfg.Replies.NotAvailable, nil)
	}

	reply, err := s.generate(ctx, cfg, sessionID, req.Message, result)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "generation failed")
		s.recordRequest(label, observability.StatusDegraded)
		return nil, fmt.Errorf("response generation failed: %w", err)
	}

	top := result.Courses[0]
	if err := s.store.SetLastCourse(ctx, sessionID, &top); err != nil {
		slog.Warn("failed to store last course",
			"sessionId", sessionID,
			"error", err,
		)
	}

	return s.finishTurn(ctx, sessionID, label, req.Message, reply, result.Courses)
}

// =============================================================================
// Shortcut Paths
// =============================================================================

// staticAnswer returns a response when the message matches a hard-keyword
// static answer, nil otherwise. No upstream service is called.
func (s *ChatService) staticAnswer(ctx context.Context, cfg *config.PipelineConfig, sessionID, message, normalized string) (*datatypes.ChatResponse, error) {
	for _, sa := range cfg.StaticAnswers {
		if !intent.ContainsAny(normalized, sa.Keywords) {
			continue
		}

		var courses []datatypes.ScoredCourse
		if sa.CourseURL != "" {
			courses = append(courses, datatypes.ScoredCourse{
				Course: datatypes.Course{
					Title:    sa.CourseTitle,
					URL:      sa.CourseURL,
					Price:    sa.Price,
					Duration: sa.Duration,
				},
				Certainty: 1,
			})
			if err := s.store.SetLastCourse(ctx, sessionID, &courses[0]); err != nil {
				slog.Warn("failed to store last course",
					"sessionId", sessionID,
					"error", err,
				)
			}
		}

		slog.Info("static answer matched",
			"sessionId", sessionID,
			"course", sa.CourseURL,
		)
		return s.finishTurn(ctx, sessionID, intentStatic, message, sa.Reply, courses)
	}
	return nil, nil
}

// followUp answers price/duration/link questions from the session's last
// course without any LLM or embedding call. Returns nil when the message is
// not a follow-up, the session has no last course, or the requested field
// is empty on the stored course.
func (s *ChatService) followUp(ctx context.Context, cfg *config.PipelineConfig, sessionID, message, normalized string) (*datatypes.ChatResponse, error) {
	field := matchFollowUp(cfg, normalized)
	if field == "" {
		return nil, nil
	}

	course, err := s.store.LastCourse(ctx, sessionID)
	if err != nil {
		slog.Warn("failed to load last course",
			"sessionId", sessionID,
			"error", err,
		)
		return nil, nil
	}
	if course == nil {
		return nil, nil
	}

	var reply string
	switch field {
	case "price":
		if course.Course.Price != "" {
			reply = fmt.Sprintf(cfg.Replies.FollowUpPrice, course.Course.Price)
		}
	case "duration":
		if course.Course.Duration != "" {
			reply = fmt.Sprintf(cfg.Replies.FollowUpDuration, course.Course.Duration)
		}
	case "link":
		if course.Course.URL != "" {
			reply = fmt.Sprintf(cfg.Replies.FollowUpLink, course.Course.URL)
		}
	}
	if reply == "" {
		return nil, nil
	}

	slog.Info("follow-up answered from session state",
		"sessionId", sessionID,
		"field", field,
	)

	if err := s.store.AppendExchange(ctx, sessionID,
		datatypes.Message{Role: "user", Content: message},
		datatypes.Message{Role: "assistant", Content: reply},
	); err != nil {
		slog.Warn("failed to persist exchange",
			"sessionId", sessionID,
			"error", err,
		)
	}

	s.recordRequest(intentFollowUp, observability.StatusOK)
	resp := datatypes.NewChatResponse(sessionID, reply)
	resp.Intent = intentFollowUp
	return resp, nil
}

// matchFollowUp returns the course field a follow-up keyword maps to, or "".
// The longest matching keyword wins so iteration order over the config map
// cannot change the outcome.
func matchFollowUp(cfg *config.PipelineConfig, normalized string) string {
	best := ""
	field := ""
	for kw, f := range cfg.FollowUp.Keywords {
		n := intent.Normalize(kw)
		if n == "" || !strings.Contains(normalized, n) {
			continue
		}
		if len(n) > len(best) {
			best = n
			field = f
		}
	}
	return field
}

// =============================================================================
// Generation
// =============================================================================

// generate runs the responder LLM call with token-budgeted history and
// retrieved course context.
func (s *ChatService) generate(ctx context.Context, cfg *config.PipelineConfig, sessionID, message string, result *retrieval.Result) (string, error) {
	ctx, span := chatTracer.Start(ctx, "ChatService.generate")
	defer span.End()

	history, err := s.store.History(ctx, sessionID, cfg.History.MaxTurns*2)
	if err != nil {
		slog.Warn("failed to load history, generating without it",
			"sessionId", sessionID,
			"error", err,
		)
		history = nil
	}
	history = trimMessagesToBudget(s.count, history, cfg.History.TokenBudget)

	system := cfg.Prompts.System
	if contextBlock := buildCourseContext(s.count, result.Courses, cfg.History.ContextTokenBudget); contextBlock != "" {
		system = system + "\n\n" + contextBlock
	}

	messages := make([]datatypes.Message, 0, len(history)+2)
	messages = append(messages, datatypes.Message{Role: "system", Content: system})
	messages = append(messages, history...)
	messages = append(messages, datatypes.Message{Role: "user", Content: message})

	span.SetAttributes(
		attribute.Int("history.messages", len(history)),
		attribute.Int("context.courses", len(result.Courses)),
	)

	start := time.Now()
	reply, err := s.llmClient.Chat(ctx, messages, llm.GenerationParams{
		Temperature: &defaultTemperature,
	})
	s.observe(observability.OpGenerate, time.Since(start))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "llm chat failed")
		return "", err
	}
	return reply, nil
}

// buildCourseContext renders retrieved courses as a plain-text block for the
// system prompt, truncated to budget tokens.
func buildCourseContext(count tokenCounter, courses []datatypes.ScoredCourse, budget int) string {
	if len(courses) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("الدورات المتاحة:\n")
	for i, c := range courses {
		fmt.Fprintf(&b, "%d. %s", i+1, c.Course.Title)
		if c.Course.Price != "" {
			fmt.Fprintf(&b, " — السعر: %s", c.Course.Price)
		}
		if c.Course.Duration != "" {
			fmt.Fprintf(&b, " — المدة: %s", c.Course.Duration)
		}
		b.WriteString("\n")
		if c.Course.Description != "" {
			b.WriteString(c.Course.Description)
			b.WriteString("\n")
		}
	}
	return truncateToBudget(count, b.String(), budget)
}

// finishTurn formats the reply, persists the exchange, and builds the
// response. The raw (pre-HTML) reply goes into history so later LLM calls
// see prose, not markup.
func (s *ChatService) finishTurn(ctx context.Context, sessionID, label, userMessage, reply string, courses []datatypes.ScoredCourse) (*datatypes.ChatResponse, error) {
	formatted, err := format.FormatReply(reply, courses)
	if err != nil {
		s.recordRequest(label, observability.StatusDegraded)
		return nil, fmt.Errorf("reply formatting failed: %w", err)
	}

	if err := s.store.AppendExchange(ctx, sessionID,
		datatypes.Message{Role: "user", Content: userMessage},
		datatypes.Message{Role: "assistant", Content: reply},
	); err != nil {
		slog.Warn("failed to persist exchange",
			"sessionId", sessionID,
			"error", err,
		)
	}

	s.recordRequest(label, observability.StatusOK)
	resp := datatypes.NewChatResponse(sessionID, formatted)
	resp.Intent = label
	resp.Courses = courses
	return resp, nil
}

// =============================================================================
// Metrics Helpers
// =============================================================================

func (s *ChatService) recordRequest(label string, status observability.RequestStatus) {
	if s.metrics != nil {
		s.metrics.RecordRequest(label, status)
	}
}

func (s *ChatService) observe(operation string, d time.Duration) {
	if s.metrics != nil {
		s.metrics.ObserveUpstream(operation, d.Seconds())
	}
}

func (s *ChatService) recordTier(cfg *config.PipelineConfig, result *retrieval.Result) {
	if s.metrics == nil {
		return
	}
	switch {
	case len(result.Courses) == 0:
		s.metrics.RecordRetrievalTier("none")
	case result.Tier < 0 || result.Tier >= len(cfg.Retrieval.ThresholdLadder):
		s.metrics.RecordRetrievalTier("fallback")
	default:
		s.metrics.RecordRetrievalTier(
			strconv.FormatFloat(cfg.Retrieval.ThresholdLadder[result.Tier], 'f', -1, 64))
	}
}

// =============================================================================
// Error Types
// =============================================================================

// ValidationError marks client input errors so handlers can return 400
// instead of the degraded 200 used for upstream failures.
type ValidationError struct {
	Err error
}

// Error implements the error interface for ValidationError.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid request: %v", e.Err)
}

// Unwrap exposes the underlying validation failure.
func (e *ValidationError) Unwrap() error {
	return e.Err
}

// IsValidationError checks if an error is a *ValidationError.
//
// Example:
//
//	resp, err := service.Process(ctx, req)
//	if services.IsValidationError(err) {
//	    c.JSON(http.StatusBadRequest, gin.H{"reply": cfg.Replies.MissingMessage})
//	    return
//	}
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
