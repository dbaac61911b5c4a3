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
	"gorm.io/gorm"
)

// ActivityRecord is one row of the purchase activity feed. Append-only;
// DedupKey carries the (name, product, event) digest used to suppress
// duplicate webhook deliveries.
type ActivityRecord struct {
	gorm.Model
	Name     string `json:"name"`
	Product  string `json:"product"`
	Event    string `json:"event"`
	DedupKey string `json:"-" gorm:"index"`
}

// ClickEvent records a click on a recommended course link.
type ClickEvent struct {
	gorm.Model
	SessionID string `json:"session_id" gorm:"index"`
	CourseURL string `json:"course_url"`
}

// PremiumUser marks an email as having purchased a premium product.
type PremiumUser struct {
	gorm.Model
	Email   string `json:"email" gorm:"uniqueIndex"`
	Product string `json:"product"`
}

// ChatTurnRecord is a persisted conversation turn, used by the
// database-backed session store.
type ChatTurnRecord struct {
	gorm.Model
	SessionID string `json:"session_id" gorm:"index"`
	Role      string `json:"role"`
	Content   string `json:"content"`
}

// SessionRecord holds per-session state for the database-backed store,
// most importantly the last course a recommendation resolved to so that
// follow-up questions (price/duration/link) survive a restart.
type SessionRecord struct {
	gorm.Model
	SessionID      string `json:"session_id" gorm:"uniqueIndex"`
	LastCourseJSON string `json:"-"`
	LastSeenMs     int64  `json:"last_seen_ms" gorm:"index"`
}

// AutoMigrate creates or updates all relational tables for the assistant.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&ActivityRecord{},
		&ClickEvent{},
		&PremiumUser{},
		&ChatTurnRecord{},
		&SessionRecord{},
	)
}
