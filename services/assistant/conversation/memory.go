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
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/AleutianAI/CourseAssistant/services/assistant/datatypes"
)

// nowFunc returns the current time. Injectable for TTL tests.
type nowFunc func() time.Time

// sessionState holds everything remembered about a single session.
//
// The embedded mutex serializes appends per session so the map-level lock
// can stay read-mostly.
type sessionState struct {
	mu         sync.Mutex
	messages   []datatypes.Message
	lastCourse *datatypes.ScoredCourse
	lastSeen   time.Time
}

// MemoryStore is an in-process Store implementation.
//
// # Description
//
// Sessions live in a map guarded by a RWMutex; each session additionally
// carries its own mutex so concurrent exchanges on different sessions never
// contend. History is bounded per session to keep long-lived sessions from
// growing without limit.
//
// # Limitations
//
//   - History does not survive process restarts. Use NewGormStore when
//     durability matters.
//   - Eviction only happens when a Janitor is running or PruneIdle is
//     called explicitly.
type MemoryStore struct {
	mu          sync.RWMutex
	sessions    map[string]*sessionState
	maxMessages int
	now         nowFunc
}

// DefaultMaxMessagesPerSession bounds per-session history growth. At the
// usual ten-turn context window this is far more than the pipeline reads.
const DefaultMaxMessagesPerSession = 200

// NewMemoryStore creates an empty in-memory session store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions:    make(map[string]*sessionState),
		maxMessages: DefaultMaxMessagesPerSession,
		now:         time.Now,
	}
}

// session returns the state for sessionID, creating it if needed.
func (m *MemoryStore) session(sessionID string) *sessionState {
	m.mu.RLock()
	s, ok := m.sessions[sessionID]
	m.mu.RUnlock()
	if ok {
		return s
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok = m.sessions[sessionID]; ok {
		return s
	}
	s = &sessionState{}
	m.sessions[sessionID] = s
	return s
}

// AppendExchange appends one user/assistant pair under the session lock.
func (m *MemoryStore) AppendExchange(_ context.Context, sessionID string, userMsg, assistantMsg datatypes.Message) error {
	s := m.session(sessionID)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.messages = append(s.messages, userMsg, assistantMsg)
	if len(s.messages) > m.maxMessages {
		// Drop oldest messages in pairs so history always starts on a
		// user turn.
		excess := len(s.messages) - m.maxMessages
		if excess%2 != 0 {
			excess++
		}
		s.messages = append([]datatypes.Message(nil), s.messages[excess:]...)
	}
	s.lastSeen = m.now()
	return nil
}

// History returns the newest limit messages in arrival order.
func (m *MemoryStore) History(_ context.Context, sessionID string, limit int) ([]datatypes.Message, error) {
	m.mu.RLock()
	s, ok := m.sessions[sessionID]
	m.mu.RUnlock()
	if !ok {
		return nil, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	msgs := s.messages
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	out := make([]datatypes.Message, len(msgs))
	copy(out, msgs)
	return out, nil
}

// LastCourse returns the most recently presented course, or nil.
func (m *MemoryStore) LastCourse(_ context.Context, sessionID string) (*datatypes.ScoredCourse, error) {
	m.mu.RLock()
	s, ok := m.sessions[sessionID]
	m.mu.RUnlock()
	if !ok {
		return nil, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastCourse == nil {
		return nil, nil
	}
	c := *s.lastCourse
	return &c, nil
}

// SetLastCourse records the follow-up target for this session.
func (m *MemoryStore) SetLastCourse(_ context.Context, sessionID string, course *datatypes.ScoredCourse) error {
	s := m.session(sessionID)

	s.mu.Lock()
	defer s.mu.Unlock()
	if course == nil {
		s.lastCourse = nil
	} else {
		c := *course
		s.lastCourse = &c
	}
	s.lastSeen = m.now()
	return nil
}

// Delete removes the session outright.
func (m *MemoryStore) Delete(_ context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, sessionID)
	return nil
}

// Sessions lists live sessions, newest activity first.
func (m *MemoryStore) Sessions(_ context.Context) ([]SessionInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]SessionInfo, 0, len(m.sessions))
	for id, s := range m.sessions {
		s.mu.Lock()
		out = append(out, SessionInfo{
			SessionID: id,
			Messages:  len(s.messages),
			LastSeen:  s.lastSeen,
		})
		s.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LastSeen.After(out[j].LastSeen) })
	return out, nil
}

// PruneIdle evicts sessions idle since before cutoff.
func (m *MemoryStore) PruneIdle(_ context.Context, cutoff time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for id, s := range m.sessions {
		s.mu.Lock()
		idle := s.lastSeen.Before(cutoff)
		s.mu.Unlock()
		if idle {
			delete(m.sessions, id)
			removed++
		}
	}
	return removed, nil
}

// ActiveSessions returns the current session count.
func (m *MemoryStore) ActiveSessions(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions), nil
}

// =============================================================================
// Idle Session Janitor
// =============================================================================

// Janitor periodically prunes idle sessions from a Store.
//
// # Description
//
// Runs PruneIdle on a fixed interval until the context is cancelled.
// The clock is injectable so expiry behavior can be tested without
// sleeping.
type Janitor struct {
	store    Store
	ttl      time.Duration
	interval time.Duration
	now      nowFunc
	onActive func(count int)
}

// NewJanitor creates a janitor that evicts sessions idle longer than ttl,
// checking every interval.
func NewJanitor(store Store, ttl, interval time.Duration) *Janitor {
	return &Janitor{
		store:    store,
		ttl:      ttl,
		interval: interval,
		now:      time.Now,
	}
}

// OnActive registers a callback receiving the live-session count after
// every sweep. Used to feed the active-sessions gauge.
func (j *Janitor) OnActive(fn func(count int)) {
	j.onActive = fn
}

// Run blocks until ctx is cancelled, pruning on each tick.
func (j *Janitor) Run(ctx context.Context) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	slog.Info("session janitor started",
		"ttl", j.ttl.String(),
		"interval", j.interval.String(),
	)

	for {
		select {
		case <-ctx.Done():
			slog.Info("session janitor stopped")
			return
		case <-ticker.C:
			j.Sweep(ctx)
		}
	}
}

// Sweep performs a single prune pass.
func (j *Janitor) Sweep(ctx context.Context) {
	removed, err := j.store.PruneIdle(ctx, j.now().Add(-j.ttl))
	if err != nil {
		slog.Warn("session prune failed",
			"error", err,
		)
		return
	}
	if removed > 0 {
		slog.Info("pruned idle sessions",
			"removed", removed,
		)
	}

	if j.onActive != nil {
		active, err := j.store.ActiveSessions(ctx)
		if err != nil {
			slog.Warn("session count failed",
				"error", err,
			)
			return
		}
		j.onActive(active)
	}
}
