// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/AleutianAI/CourseAssistant/services/assistant/datatypes"
)

// GormStore is a database-backed Store implementation.
//
// # Description
//
// Persists turns to the chat_turn_records table and per-session follow-up
// state to session_records, so history and the "last course" pointer survive
// restarts. Each exchange is written inside a transaction: both turns plus
// the session's last-seen refresh commit together or not at all.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore wraps an already-migrated gorm connection.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// AppendExchange writes the user/assistant pair in one transaction.
func (g *GormStore) AppendExchange(ctx context.Context, sessionID string, userMsg, assistantMsg datatypes.Message) error {
	nowMs := time.Now().UnixMilli()
	err := g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		turns := []datatypes.ChatTurnRecord{
			{SessionID: sessionID, Role: userMsg.Role, Content: userMsg.Content},
			{SessionID: sessionID, Role: assistantMsg.Role, Content: assistantMsg.Content},
		}
		if err := tx.Create(&turns).Error; err != nil {
			return err
		}
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "session_id"}},
			DoUpdates: clause.Assignments(map[string]interface{}{"last_seen_ms": nowMs}),
		}).Create(&datatypes.SessionRecord{
			SessionID:  sessionID,
			LastSeenMs: nowMs,
		}).Error
	})
	if err != nil {
		return fmt.Errorf("failed to persist exchange for session %s: %w", sessionID, err)
	}
	return nil
}

// History loads the newest limit turns and returns them oldest first.
func (g *GormStore) History(ctx context.Context, sessionID string, limit int) ([]datatypes.Message, error) {
	q := g.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}

	var rows []datatypes.ChatTurnRecord
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to load history for session %s: %w", sessionID, err)
	}

	// Rows come back newest first; reverse into arrival order.
	out := make([]datatypes.Message, len(rows))
	for i, row := range rows {
		out[len(rows)-1-i] = datatypes.Message{Role: row.Role, Content: row.Content}
	}
	return out, nil
}

// LastCourse decodes the stored follow-up pointer, or returns nil.
func (g *GormStore) LastCourse(ctx context.Context, sessionID string) (*datatypes.ScoredCourse, error) {
	var rec datatypes.SessionRecord
	err := g.db.WithContext(ctx).Where("session_id = ?", sessionID).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session %s: %w", sessionID, err)
	}
	if rec.LastCourseJSON == "" {
		return nil, nil
	}

	var course datatypes.ScoredCourse
	if err := json.Unmarshal([]byte(rec.LastCourseJSON), &course); err != nil {
		return nil, fmt.Errorf("corrupt last-course payload for session %s: %w", sessionID, err)
	}
	return &course, nil
}

// SetLastCourse upserts the follow-up pointer for this session.
func (g *GormStore) SetLastCourse(ctx context.Context, sessionID string, course *datatypes.ScoredCourse) error {
	payload := ""
	if course != nil {
		raw, err := json.Marshal(course)
		if err != nil {
			return fmt.Errorf("failed to encode course: %w", err)
		}
		payload = string(raw)
	}

	nowMs := time.Now().UnixMilli()
	err := g.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "session_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"last_course_json": payload,
			"last_seen_ms":     nowMs,
		}),
	}).Create(&datatypes.SessionRecord{
		SessionID:      sessionID,
		LastCourseJSON: payload,
		LastSeenMs:     nowMs,
	}).Error
	if err != nil {
		return fmt.Errorf("failed to store last course for session %s: %w", sessionID, err)
	}
	return nil
}

// Delete removes the session row and all of its turns.
func (g *GormStore) Delete(ctx context.Context, sessionID string) error {
	err := g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("session_id = ?", sessionID).
			Delete(&datatypes.ChatTurnRecord{}).Error; err != nil {
			return err
		}
		return tx.Where("session_id = ?", sessionID).
			Delete(&datatypes.SessionRecord{}).Error
	})
	if err != nil {
		return fmt.Errorf("failed to delete session %s: %w", sessionID, err)
	}
	return nil
}

// Sessions lists persisted sessions, newest activity first.
func (g *GormStore) Sessions(ctx context.Context) ([]SessionInfo, error) {
	var recs []datatypes.SessionRecord
	if err := g.db.WithContext(ctx).Order("last_seen_ms DESC").Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}

	out := make([]SessionInfo, 0, len(recs))
	for _, rec := range recs {
		var count int64
		if err := g.db.WithContext(ctx).Model(&datatypes.ChatTurnRecord{}).
			Where("session_id = ?", rec.SessionID).Count(&count).Error; err != nil {
			return nil, fmt.Errorf("failed to count turns for session %s: %w", rec.SessionID, err)
		}
		out = append(out, SessionInfo{
			SessionID: rec.SessionID,
			Messages:  int(count),
			LastSeen:  time.UnixMilli(rec.LastSeenMs),
		})
	}
	return out, nil
}

// ActiveSessions returns the persisted session count.
func (g *GormStore) ActiveSessions(ctx context.Context) (int, error) {
	var count int64
	if err := g.db.WithContext(ctx).Model(&datatypes.SessionRecord{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count sessions: %w", err)
	}
	return int(count), nil
}

// PruneIdle deletes sessions whose last activity predates cutoff.
func (g *GormStore) PruneIdle(ctx context.Context, cutoff time.Time) (int, error) {
	var stale []datatypes.SessionRecord
	if err := g.db.WithContext(ctx).
		Where("last_seen_ms < ?", cutoff.UnixMilli()).
		Find(&stale).Error; err != nil {
		return 0, fmt.Errorf("failed to scan idle sessions: %w", err)
	}

	for _, rec := range stale {
		if err := g.Delete(ctx, rec.SessionID); err != nil {
			return 0, err
		}
	}
	return len(stale), nil
}
