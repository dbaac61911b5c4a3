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
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	badger "github.com/dgraph-io/badger/v4"
)

// embeddingKeyPrefix namespaces embedding entries in the shared Badger DB.
const embeddingKeyPrefix = "emb:"

// DefaultEmbeddingTTL is how long a cached embedding stays valid. The
// catalog's embedding model changes rarely; a day keeps repeated queries
// (price checks, common course names) from re-hitting the embedding API.
const DefaultEmbeddingTTL = 24 * time.Hour

// CachedEmbedder caches embeddings in Badger keyed by a digest of the
// normalized query text. The cache is a performance optimization, not a
// source of truth: any cache failure degrades to the wrapped embedder.
type CachedEmbedder struct {
	db    *badger.DB
	inner Embedder
	ttl   time.Duration
}

// NewCachedEmbedder wraps inner with a Badger-backed cache. A nil db
// returns the inner embedder unchanged so callers do not need to branch.
func NewCachedEmbedder(db *badger.DB, inner Embedder) Embedder {
	if db == nil {
		return inner
	}
	return &CachedEmbedder{
		db:    db,
		inner: inner,
		ttl:   DefaultEmbeddingTTL,
	}
}

// OpenEmbeddingCache opens (or creates) the Badger database at path.
// An empty path opens an in-memory database, used by tests and by
// deployments that do not want a disk cache.
func OpenEmbeddingCache(path string) (*badger.DB, error) {
	var opts badger.Options
	if path == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		opts = badger.DefaultOptions(path)
	}
	opts = opts.WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open embedding cache: %w", err)
	}
	return db, nil
}

func embeddingKey(text string) []byte {
	digest := sha256.Sum256([]byte(text))
	return []byte(fmt.Sprintf("%s%x", embeddingKeyPrefix, digest))
}

// Embed implements the Embedder interface.
func (c *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	key := embeddingKey(text)

	var cached []float32
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &cached)
		})
	})
	if err == nil && len(cached) > 0 {
		return cached, nil
	}
	if err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
		slog.Warn("Embedding cache read failed, falling through", "error", err)
	}

	vector, err := c.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	encoded, err := json.Marshal(vector)
	if err == nil {
		writeErr := c.db.Update(func(txn *badger.Txn) error {
			entry := badger.NewEntry(key, encoded).WithTTL(c.ttl)
			return txn.SetEntry(entry)
		})
		if writeErr != nil {
			slog.Warn("Embedding cache write failed", "error", writeErr)
		}
	}
	return vector, nil
}
