// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config provides pipeline configuration for the assistant service.
//
// Everything that used to vary between hand-forked copies of the chat
// endpoint is data here: prompt wording, similarity thresholds, intent and
// follow-up keyword lists, static promotional answers, and webhook
// allow-lists. A default configuration is embedded in the binary; an
// operator file can override it and is hot-reloaded on change.
//
// Thread Safety:
//
//	Provider is safe for concurrent use. PipelineConfig values handed out
//	by Provider.Get() are immutable snapshots.
package config

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"gopkg.in/yaml.v3"
)

const (
	// MaxYAMLFileSize is the maximum allowed pipeline config size (1MB).
	MaxYAMLFileSize = 1024 * 1024

	// MaxKeywordsPerList bounds each keyword list to keep matching cheap.
	MaxKeywordsPerList = 100
)

//go:embed pipeline.yaml
var defaultPipelineYAML []byte

var configReloads = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "assistant_config_reloads_total",
	Help: "Pipeline configuration reloads by result",
}, []string{"result"})

// PromptsConfig holds the two LLM prompts used by the pipeline.
type PromptsConfig struct {
	// System constrains the responder: tone, Arabic output, no invented
	// facts, no external links.
	System string `yaml:"system"`

	// Classifier instructs the intent model to return exactly one label
	// from the closed set.
	Classifier string `yaml:"classifier"`
}

// RepliesConfig holds the localized fixed replies. Follow-up entries are
// fmt format strings with a single %s verb.
type RepliesConfig struct {
	MissingMessage   string `yaml:"missing_message"`
	TemporaryError   string `yaml:"temporary_error"`
	NotAvailable     string `yaml:"not_available"`
	FollowUpPrice    string `yaml:"follow_up_price"`
	FollowUpDuration string `yaml:"follow_up_duration"`
	FollowUpLink     string `yaml:"follow_up_link"`
}

// IntentConfig selects and parameterizes the intent classifier.
type IntentConfig struct {
	// Mode is "rules" or "model".
	Mode string `yaml:"mode"`

	// Labels is the closed label set. The first entry is the default
	// label used when classification fails or matches nothing.
	Labels []string `yaml:"labels"`

	// Keywords maps a label to the keyword list that triggers it in
	// rules mode. Matching is substring-based on the normalized message.
	Keywords map[string][]string `yaml:"keywords"`
}

// RetrievalConfig parameterizes the course search.
type RetrievalConfig struct {
	// ThresholdLadder is tried in order; the first tier returning rows
	// wins. Values are Weaviate certainties in (0,1], strictly descending.
	ThresholdLadder []float64 `yaml:"threshold_ladder"`

	// MatchCount is the per-tier result limit.
	MatchCount int `yaml:"match_count"`

	// FallbackScan enables a plain unvectored course listing when every
	// tier is empty. Off by default: with it off, an exhausted ladder
	// produces the fixed NotAvailable reply and no recommendations.
	FallbackScan  bool `yaml:"fallback_scan"`
	FallbackLimit int  `yaml:"fallback_limit"`

	// DomainKeywords maps a domain tag to keywords that activate it as a
	// Weaviate filter, e.g. "design" for messages mentioning تصميم.
	DomainKeywords map[string][]string `yaml:"domain_keywords"`
}

// HistoryConfig bounds the conversation context fed to the responder.
type HistoryConfig struct {
	MaxTurns           int `yaml:"max_turns"`
	TokenBudget        int `yaml:"token_budget"`
	ContextTokenBudget int `yaml:"context_token_budget"`
}

// FollowUpConfig maps follow-up keywords to course fields
// (price, duration, link).
type FollowUpConfig struct {
	Keywords map[string]string `yaml:"keywords"`
}

// StaticAnswer is a hard-keyword shortcut that bypasses the whole
// pipeline and returns a fixed promotional reply.
type StaticAnswer struct {
	Keywords    []string `yaml:"keywords"`
	Reply       string   `yaml:"reply"`
	CourseTitle string   `yaml:"course_title"`
	CourseURL   string   `yaml:"course_url"`
	Price       string   `yaml:"price"`
	Duration    string   `yaml:"duration"`
}

// WebhookConfig parameterizes the purchase-webhook ingest.
type WebhookConfig struct {
	AllowedEvents      []string `yaml:"allowed_events"`
	PremiumProducts    []string `yaml:"premium_products"`
	DedupWindowMinutes int      `yaml:"dedup_window_minutes"`
}

// PipelineConfig is the full configuration for one chat pipeline.
type PipelineConfig struct {
	Prompts       PromptsConfig  `yaml:"prompts"`
	Replies       RepliesConfig  `yaml:"replies"`
	Intent        IntentConfig   `yaml:"intent"`
	Retrieval     RetrievalConfig `yaml:"retrieval"`
	History       HistoryConfig  `yaml:"history"`
	FollowUp      FollowUpConfig `yaml:"follow_up"`
	StaticAnswers []StaticAnswer `yaml:"static_answers"`
	Webhook       WebhookConfig  `yaml:"webhook"`
}

// DefaultLabel returns the fallback intent label.
func (c *PipelineConfig) DefaultLabel() string {
	if len(c.Intent.Labels) == 0 {
		return "general"
	}
	return c.Intent.Labels[0]
}

// validate rejects configurations the pipeline cannot run with.
func (c *PipelineConfig) validate() error {
	if strings.TrimSpace(c.Prompts.System) == "" {
		return fmt.Errorf("prompts.system must not be empty")
	}
	if c.Intent.Mode != "rules" && c.Intent.Mode != "model" {
		return fmt.Errorf("intent.mode must be 'rules' or 'model', got %q", c.Intent.Mode)
	}
	if len(c.Intent.Labels) == 0 {
		return fmt.Errorf("intent.labels must not be empty")
	}
	if len(c.Retrieval.ThresholdLadder) == 0 {
		return fmt.Errorf("retrieval.threshold_ladder must not be empty")
	}
	prev := 1.1
	for i, t := range c.Retrieval.ThresholdLadder {
		if t <= 0 || t > 1 {
			return fmt.Errorf("retrieval.threshold_ladder[%d]=%v out of (0,1]", i, t)
		}
		if t >= prev {
			return fmt.Errorf("retrieval.threshold_ladder must be strictly descending")
		}
		prev = t
	}
	if c.Retrieval.MatchCount <= 0 {
		return fmt.Errorf("retrieval.match_count must be positive")
	}
	for label, kws := range c.Intent.Keywords {
		if len(kws) > MaxKeywordsPerList {
			return fmt.Errorf("intent.keywords[%s] exceeds %d entries", label, MaxKeywordsPerList)
		}
	}
	for _, field := range c.FollowUp.Keywords {
		switch field {
		case "price", "duration", "link":
		default:
			return fmt.Errorf("follow_up.keywords maps to unknown field %q", field)
		}
	}
	for _, r := range []struct{ name, val string }{
		{"replies.missing_message", c.Replies.MissingMessage},
		{"replies.temporary_error", c.Replies.TemporaryError},
		{"replies.not_available", c.Replies.NotAvailable},
	} {
		if strings.TrimSpace(r.val) == "" {
			return fmt.Errorf("%s must not be empty", r.name)
		}
	}
	return nil
}

// parse unmarshals and validates raw YAML bytes.
func parse(raw []byte) (*PipelineConfig, error) {
	if len(raw) > MaxYAMLFileSize {
		return nil, fmt.Errorf("pipeline config exceeds %d bytes", MaxYAMLFileSize)
	}
	var cfg PipelineConfig
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse pipeline config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid pipeline config: %w", err)
	}
	return &cfg, nil
}

// Default returns the embedded pipeline configuration.
func Default() *PipelineConfig {
	cfg, err := parse(defaultPipelineYAML)
	if err != nil {
		// The embedded default is part of the build; failing to parse it
		// is a programming error, not an operational one.
		panic(fmt.Sprintf("embedded pipeline.yaml is invalid: %v", err))
	}
	return cfg
}

// =============================================================================
// Provider
// =============================================================================

// Provider hands out the current pipeline configuration and hot-reloads
// an operator override file when it changes on disk.
type Provider struct {
	mu   sync.RWMutex
	cfg  *PipelineConfig
	path string
}

// NewProvider loads the configuration from path, falling back to the
// embedded default when path is empty.
func NewProvider(path string) (*Provider, error) {
	p := &Provider{path: path}
	if path == "" {
		p.cfg = Default()
		slog.Info("Using embedded pipeline configuration")
		return p, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read pipeline config %s: %w", path, err)
	}
	cfg, err := parse(raw)
	if err != nil {
		return nil, err
	}
	p.cfg = cfg
	slog.Info("Loaded pipeline configuration", "path", path)
	return p, nil
}

// Get returns the current configuration snapshot.
func (p *Provider) Get() *PipelineConfig {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.cfg
}

// reload re-reads the override file. A broken file keeps the previous
// snapshot so a bad edit never takes the pipeline down.
func (p *Provider) reload() {
	raw, err := os.ReadFile(p.path)
	if err != nil {
		configReloads.WithLabelValues("read_error").Inc()
		slog.Error("Failed to re-read pipeline config, keeping previous", "path", p.path, "error", err)
		return
	}
	cfg, err := parse(raw)
	if err != nil {
		configReloads.WithLabelValues("parse_error").Inc()
		slog.Error("Rejected pipeline config reload, keeping previous", "path", p.path, "error", err)
		return
	}
	p.mu.Lock()
	p.cfg = cfg
	p.mu.Unlock()
	configReloads.WithLabelValues("success").Inc()
	slog.Info("Reloaded pipeline configuration", "path", p.path)
}

// Watch blocks until ctx is canceled, reloading the override file on
// every write event. No-op when the provider uses the embedded default.
func (p *Provider) Watch(ctx context.Context) error {
	if p.path == "" {
		<-ctx.Done()
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create config watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(p.path); err != nil {
		return fmt.Errorf("failed to watch %s: %w", p.path, err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op.Has(fsnotify.Write) || event.Op.Has(fsnotify.Create) {
				p.reload()
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Warn("Config watcher error", "error", err)
		}
	}
}
