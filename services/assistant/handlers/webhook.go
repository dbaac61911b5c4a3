// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package handlers

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/AleutianAI/CourseAssistant/services/assistant/config"
	"github.com/AleutianAI/CourseAssistant/services/assistant/datatypes"
	"github.com/AleutianAI/CourseAssistant/services/assistant/observability"
)

// TeachablePayload is the subset of the course-platform webhook body the
// assistant consumes.
type TeachablePayload struct {
	Event   string `json:"event"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	Product string `json:"product"`
}

// dedupKey digests the identifying fields of one purchase event.
func dedupKey(p *TeachablePayload) string {
	sum := sha256.Sum256([]byte(strings.ToLower(p.Name) + "|" + strings.ToLower(p.Product) + "|" + p.Event))
	return hex.EncodeToString(sum[:])
}

// HandleTeachableWebhook ingests purchase events from the course platform.
//
// Events outside the configured allow-list are ignored. Deliveries are
// de-duplicated by a digest of (name, product, event) within the configured
// window, since the platform redelivers on slow responses. Purchases of
// premium products additionally upsert the buyer into premium_users.
//
// The endpoint always answers 200: a rejected delivery would only make the
// platform retry, and the feed is best-effort anyway.
func HandleTeachableWebhook(db *gorm.DB, provider *config.Provider, metrics *observability.AssistantMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		_, span := chatTracer.Start(c.Request.Context(), "HandleTeachableWebhook")
		defer span.End()

		record := func(event, disposition string) {
			if metrics != nil {
				metrics.RecordWebhookEvent(event, disposition)
			}
		}

		var payload TeachablePayload
		if err := c.BindJSON(&payload); err != nil {
			span.RecordError(err)
			record("", "ignored")
			c.JSON(http.StatusOK, gin.H{"status": "ignored"})
			return
		}
		span.SetAttributes(attribute.String("webhook.event", payload.Event))

		cfg := provider.Get()
		if !slices.Contains(cfg.Webhook.AllowedEvents, payload.Event) {
			record(payload.Event, "ignored")
			c.JSON(http.StatusOK, gin.H{"status": "ignored"})
			return
		}

		key := dedupKey(&payload)
		window := time.Duration(cfg.Webhook.DedupWindowMinutes) * time.Minute
		var dupes int64
		err := db.Model(&datatypes.ActivityRecord{}).
			Where("dedup_key = ? AND created_at > ?", key, time.Now().Add(-window)).
			Count(&dupes).Error
		if err != nil {
			slog.Error("webhook dedup lookup failed", "error", err)
		}
		if dupes > 0 {
			record(payload.Event, "duplicate")
			c.JSON(http.StatusOK, gin.H{"status": "duplicate"})
			return
		}

		activity := datatypes.ActivityRecord{
			Name:     payload.Name,
			Product:  payload.Product,
			Event:    payload.Event,
			DedupKey: key,
		}
		if err := db.Create(&activity).Error; err != nil {
			span.RecordError(err)
			slog.Error("failed to append activity record", "error", err)
			record(payload.Event, "ignored")
			c.JSON(http.StatusOK, gin.H{"status": "ignored"})
			return
		}

		if payload.Email != "" && isPremiumProduct(cfg, payload.Product) {
			premium := datatypes.PremiumUser{
				Email:   strings.ToLower(payload.Email),
				Product: payload.Product,
			}
			err := db.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "email"}},
				DoUpdates: clause.Assignments(map[string]interface{}{"product": payload.Product}),
			}).Create(&premium).Error
			if err != nil {
				slog.Error("failed to upsert premium user", "error", err)
			}
		}

		slog.Info("webhook accepted",
			"event", payload.Event,
			"product", payload.Product,
		)
		record(payload.Event, "accepted")
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}

// isPremiumProduct matches the product name against the configured premium
// list, case-insensitively on substrings so minor title edits on the
// platform side do not silently drop buyers.
func isPremiumProduct(cfg *config.PipelineConfig, product string) bool {
	p := strings.ToLower(product)
	for _, premium := range cfg.Webhook.PremiumProducts {
		if premium == "" {
			continue
		}
		if strings.Contains(p, strings.ToLower(premium)) {
			return true
		}
	}
	return false
}

// HandleRecentActivity returns the latest activity rows for the social
// proof ticker. Supports ?limit= (default 20, max 100) and
// ?since_minutes= for a time window.
func HandleRecentActivity(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit := intQuery(c, "limit", 20)
		if limit < 1 {
			limit = 1
		}
		if limit > 100 {
			limit = 100
		}

		q := db.Model(&datatypes.ActivityRecord{}).Order("created_at DESC").Limit(limit)
		if since := intQuery(c, "since_minutes", 0); since > 0 {
			q = q.Where("created_at > ?", time.Now().Add(-time.Duration(since)*time.Minute))
		}

		var rows []datatypes.ActivityRecord
		if err := q.Find(&rows).Error; err != nil {
			slog.Error("failed to load recent activity", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load activity"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"activity": rows})
	}
}

// intQuery parses an integer query parameter with a default.
func intQuery(c *gin.Context, name string, def int) int {
	raw := c.Query(name)
	if raw == "" {
		return def
	}
	var v int
	if _, err := fmt.Sscanf(raw, "%d", &v); err != nil {
		return def
	}
	return v
}
