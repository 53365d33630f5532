// Cinematch - Content-Based Movie Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cinematch

package durable

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/tomtom215/cinematch/internal/recommend"
)

var _ recommend.DurableStore = (*MemoryStore)(nil)

// MemoryStore is an in-process DurableStore.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[int]recommend.CachedMovieRecord
	space   *recommend.FeatureSpace
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[int]recommend.CachedMovieRecord)}
}

// Upsert writes records by movie ID.
func (m *MemoryStore) Upsert(ctx context.Context, records []recommend.CachedMovieRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range records {
		m.records[records[i].ID] = records[i]
	}
	return nil
}

// ReadAll returns every record ordered by movie ID.
func (m *MemoryStore) ReadAll(ctx context.Context) ([]recommend.CachedMovieRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]recommend.CachedMovieRecord, 0, len(m.records))
	for _, r := range m.records {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// PutSpace stores the feature space.
func (m *MemoryStore) PutSpace(ctx context.Context, space *recommend.FeatureSpace) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.space = space
	return nil
}

// GetSpace returns the stored feature space, or nil.
func (m *MemoryStore) GetSpace(ctx context.Context) (*recommend.FeatureSpace, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.space, nil
}

// PruneStale deletes every record not built in generation.
func (m *MemoryStore) PruneStale(ctx context.Context, generation string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if generation == "" {
		return 0, errors.New("prune requires a generation")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for id, r := range m.records {
		if r.Generation != generation {
			delete(m.records, id)
			removed++
		}
	}
	return removed, nil
}

// Len returns the number of stored records.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}
