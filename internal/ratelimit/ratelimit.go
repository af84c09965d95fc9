// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package ratelimit implements fixed-window request limiting over a
// pluggable counter store: a bounded in-process LRU for single instances
// and Valkey for deployments that share a budget across instances.
package ratelimit

import (
	"context"
	"fmt"
	"time"
)

// Default policy for the post API.
const (
	DefaultLimit  = 100
	DefaultWindow = time.Minute
)

// CounterStore counts hits per key in fixed windows. Incr increments the
// counter for key, starting a new window of the given length when none is
// open, and returns the new count and the time left in the window.
type CounterStore interface {
	Incr(ctx context.Context, key string, window time.Duration) (count int64, resetIn time.Duration, err error)
}

// Result describes the outcome of one Allow call.
type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetIn   time.Duration
}

// Limiter admits at most limit hits per key per window.
type Limiter struct {
	store  CounterStore
	limit  int
	window time.Duration
}

// New returns a Limiter. Non-positive limit or window fall back to the
// defaults.
func New(store CounterStore, limit int, window time.Duration) *Limiter {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if window <= 0 {
		window = DefaultWindow
	}
	return &Limiter{store: store, limit: limit, window: window}
}

// Limit returns the configured hits per window.
func (l *Limiter) Limit() int { return l.limit }

// Window returns the configured window length.
func (l *Limiter) Window() time.Duration { return l.window }

// Allow records a hit for key. When the store fails the hit is allowed and
// the error is returned so the caller can log it.
func (l *Limiter) Allow(ctx context.Context, key string) (Result, error) {
	count, resetIn, err := l.store.Incr(ctx, key, l.window)
	if err != nil {
		return Result{Allowed: true, Limit: l.limit, Remaining: l.limit, ResetIn: l.window},
			fmt.Errorf("rate limit incr: %w", err)
	}

	remaining := l.limit - int(count)
	if remaining < 0 {
		remaining = 0
	}
	return Result{
		Allowed:   count <= int64(l.limit),
		Limit:     l.limit,
		Remaining: remaining,
		ResetIn:   resetIn,
	}, nil
}
