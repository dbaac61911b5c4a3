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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/AleutianAI/CourseAssistant/services/assistant/datatypes"
)

func newTestGormStore(t *testing.T) *GormStore {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, datatypes.AutoMigrate(db))
	return NewGormStore(db)
}

func TestGormStore_AppendAndHistory(t *testing.T) {
	ctx := context.Background()
	store := newTestGormStore(t)

	require.NoError(t, store.AppendExchange(ctx, "sess_1", userMsg("ابغى أتعلم تصميم"), assistantMsg("تفضل")))
	require.NoError(t, store.AppendExchange(ctx, "sess_1", userMsg("كم السعر؟"), assistantMsg("9.99$")))
	require.NoError(t, store.AppendExchange(ctx, "sess_2", userMsg("other"), assistantMsg("other")))

	history, err := store.History(ctx, "sess_1", 0)
	require.NoError(t, err)
	require.Len(t, history, 4)
	assert.Equal(t, "ابغى أتعلم تصميم", history[0].Content)
	assert.Equal(t, "9.99$", history[3].Content)

	limited, err := store.History(ctx, "sess_1", 2)
	require.NoError(t, err)
	require.Len(t, limited, 2)
	assert.Equal(t, "كم السعر؟", limited[0].Content)
	assert.Equal(t, "9.99$", limited[1].Content)
}

func TestGormStore_LastCourseSurvivesReload(t *testing.T) {
	ctx := context.Background()
	store := newTestGormStore(t)

	course := &datatypes.ScoredCourse{
		Course: datatypes.Course{
			Title:    "فوتوشوب بالذكاء الاصطناعي",
			URL:      "https://easyt.online/p/photoshop-ai",
			Price:    "9.99$",
			Duration: "4 ساعات",
		},
		Certainty: 0.78,
	}
	require.NoError(t, store.SetLastCourse(ctx, "sess_1", course))

	// A second store over the same connection sees the pointer.
	reopened := NewGormStore(store.db)
	got, err := reopened.LastCourse(ctx, "sess_1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "https://easyt.online/p/photoshop-ai", got.Course.URL)
	assert.Equal(t, "9.99$", got.Course.Price)

	require.NoError(t, store.SetLastCourse(ctx, "sess_1", nil))
	cleared, err := store.LastCourse(ctx, "sess_1")
	require.NoError(t, err)
	assert.Nil(t, cleared)
}

func TestGormStore_DeleteRemovesTurnsAndSession(t *testing.T) {
	ctx := context.Background()
	store := newTestGormStore(t)

	require.NoError(t, store.AppendExchange(ctx, "sess_1", userMsg("hi"), assistantMsg("hi")))
	require.NoError(t, store.Delete(ctx, "sess_1"))

	history, err := store.History(ctx, "sess_1", 0)
	require.NoError(t, err)
	assert.Empty(t, history)

	sessions, err := store.Sessions(ctx)
	require.NoError(t, err)
	assert.Empty(t, sessions)
}

func TestGormStore_PruneIdle(t *testing.T) {
	ctx := context.Background()
	store := newTestGormStore(t)

	require.NoError(t, store.AppendExchange(ctx, "stale", userMsg("hi"), assistantMsg("hi")))

	// Backdate the stale session well past any cutoff.
	err := store.db.Model(&datatypes.SessionRecord{}).
		Where("session_id = ?", "stale").
		Update("last_seen_ms", time.Now().Add(-2*time.Hour).UnixMilli()).Error
	require.NoError(t, err)

	require.NoError(t, store.AppendExchange(ctx, "fresh", userMsg("hi"), assistantMsg("hi")))

	removed, err := store.PruneIdle(ctx, time.Now().Add(-30*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	sessions, err := store.Sessions(ctx)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, "fresh", sessions[0].SessionID)
	assert.Equal(t, 2, sessions[0].Messages)

	active, err := store.ActiveSessions(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, active)
}
