// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCapacity bounds how many clients MemoryStore tracks.
const DefaultCapacity = 10000

type window struct {
	count   int64
	resetAt time.Time
}

// MemoryStore keeps per-key windows in a fixed-size LRU. When full, the
// least recently seen key is evicted, which at worst grants that client a
// fresh window.
type MemoryStore struct {
	mu    sync.Mutex
	cache *lru.Cache[string, *window]
	now   func() time.Time
}

// NewMemoryStore creates a MemoryStore holding at most capacity keys.
func NewMemoryStore(capacity int) (*MemoryStore, error) {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	cache, err := lru.NewWithEvict(capacity, func(key string, _ *window) {
		slog.Debug("rate limit entry evicted", "key", key)
	})
	if err != nil {
		return nil, fmt.Errorf("rate limit lru: %w", err)
	}
	return &MemoryStore{cache: cache, now: time.Now}, nil
}

// Incr implements CounterStore.
func (m *MemoryStore) Incr(_ context.Context, key string, length time.Duration) (int64, time.Duration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	w, ok := m.cache.Get(key)
	if !ok || !now.Before(w.resetAt) {
		w = &window{resetAt: now.Add(length)}
		m.cache.Add(key, w)
	}
	w.count++
	return w.count, w.resetAt.Sub(now), nil
}

// Len returns the number of tracked keys.
func (m *MemoryStore) Len() int {
	return m.cache.Len()
}
