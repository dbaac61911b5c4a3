// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package observability provides Prometheus metrics for the assistant.
//
// # Description
//
// Metrics cover the chat pipeline end to end:
//   - Request counters (by intent and outcome)
//   - Upstream latency histograms (classification, embedding, search, generation)
//   - Retrieval tier counters (which ladder threshold produced results)
//   - Active session gauge
//   - Webhook ingestion counters
//
// # Integration
//
// Exposed on the /metrics endpoint. Use with Prometheus + Grafana for
// dashboards and alerting.
//
// # Thread Safety
//
// All metric operations are thread-safe via Prometheus's internal locking.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Namespace for all metrics
const metricsNamespace = "assistant"

// Subsystem for the chat pipeline
const chatSubsystem = "chat"

// AssistantMetrics holds all Prometheus metrics for the chat pipeline.
//
// # Description
//
// Initialize once at startup via InitMetrics(). Handlers and the chat
// service record through the helper methods rather than touching the
// collectors directly.
type AssistantMetrics struct {
	// RequestsTotal counts chat requests by classified intent and outcome.
	// Labels: intent, status (ok, degraded, invalid)
	RequestsTotal *prometheus.CounterVec

	// UpstreamLatencySeconds measures outbound call latency.
	// Labels: operation (classify, embed, search, generate)
	UpstreamLatencySeconds *prometheus.HistogramVec

	// RetrievalTierTotal counts which similarity tier satisfied retrieval.
	// Labels: tier (threshold value, "fallback", or "none")
	RetrievalTierTotal *prometheus.CounterVec

	// ActiveSessions tracks the number of live sessions in the store.
	ActiveSessions prometheus.Gauge

	// WebhookEventsTotal counts webhook deliveries by event and disposition.
	// Labels: event, disposition (accepted, duplicate, ignored)
	WebhookEventsTotal *prometheus.CounterVec
}

// DefaultMetrics is the singleton instance of AssistantMetrics.
// Initialized by InitMetrics().
var DefaultMetrics *AssistantMetrics

// InitMetrics creates and registers all Prometheus metrics.
//
// # Description
//
// Should be called once at application startup. Panics if called twice
// (duplicate registration with the default registry).
func InitMetrics() *AssistantMetrics {
	DefaultMetrics = &AssistantMetrics{
		RequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: chatSubsystem,
				Name:      "requests_total",
				Help:      "Total chat requests by intent and outcome",
			},
			[]string{"intent", "status"},
		),

		UpstreamLatencySeconds: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: chatSubsystem,
				Name:      "upstream_latency_seconds",
				Help:      "Latency of outbound LLM and vector store calls",
				Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0},
			},
			[]string{"operation"},
		),

		RetrievalTierTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: chatSubsystem,
				Name:      "retrieval_tier_total",
				Help:      "Which similarity tier produced retrieval results",
			},
			[]string{"tier"},
		),

		ActiveSessions: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Subsystem: chatSubsystem,
				Name:      "active_sessions",
				Help:      "Number of live sessions in the session store",
			},
		),

		WebhookEventsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: chatSubsystem,
				Name:      "webhook_events_total",
				Help:      "Webhook deliveries by event name and disposition",
			},
			[]string{"event", "disposition"},
		),
	}

	return DefaultMetrics
}

// =============================================================================
// Label Values
// =============================================================================

// RequestStatus categorizes how a chat request ended.
type RequestStatus string

const (
	// StatusOK indicates the full pipeline produced a reply.
	StatusOK RequestStatus = "ok"

	// StatusDegraded indicates an upstream failure was converted into the
	// localized temporary-error reply.
	StatusDegraded RequestStatus = "degraded"

	// StatusInvalid indicates the request failed validation.
	StatusInvalid RequestStatus = "invalid"
)

// Upstream operation names for latency labeling.
const (
	OpClassify = "classify"
	OpEmbed    = "embed"
	OpSearch   = "search"
	OpGenerate = "generate"
)

// =============================================================================
// Helper Methods
// =============================================================================

// RecordRequest records a completed chat request.
func (m *AssistantMetrics) RecordRequest(intent string, status RequestStatus) {
	if intent == "" {
		intent = "unknown"
	}
	m.RequestsTotal.WithLabelValues(intent, string(status)).Inc()
}

// ObserveUpstream records the latency of one outbound call.
func (m *AssistantMetrics) ObserveUpstream(operation string, seconds float64) {
	m.UpstreamLatencySeconds.WithLabelValues(operation).Observe(seconds)
}

// RecordRetrievalTier records which ladder tier satisfied a search.
// Pass "fallback" for the table-scan path and "none" for empty results.
func (m *AssistantMetrics) RecordRetrievalTier(tier string) {
	m.RetrievalTierTotal.WithLabelValues(tier).Inc()
}

// SetActiveSessions updates the live-session gauge.
func (m *AssistantMetrics) SetActiveSessions(n int) {
	m.ActiveSessions.Set(float64(n))
}

// RecordWebhookEvent records one webhook delivery.
func (m *AssistantMetrics) RecordWebhookEvent(event, disposition string) {
	if event == "" {
		event = "unknown"
	}
	m.WebhookEventsTotal.WithLabelValues(event, disposition).Inc()
}
