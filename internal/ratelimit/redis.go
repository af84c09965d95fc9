// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "ratelimit:"

// RedisStore counts hits in Valkey so every instance shares one budget.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a RedisStore on the given client.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// Incr implements CounterStore. INCR and PTTL run in one MULTI block; the
// expiry is attached only when INCR opened a new window.
func (s *RedisStore) Incr(ctx context.Context, key string, length time.Duration) (int64, time.Duration, error) {
	k := keyPrefix + key

	var (
		incr *redis.IntCmd
		ttl  *redis.DurationCmd
	)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, k)
		ttl = pipe.PTTL(ctx, k)
		return nil
	})
	if err != nil {
		return 0, 0, fmt.Errorf("valkey incr: %w", err)
	}

	resetIn := ttl.Val()
	if resetIn < 0 {
		if err := s.client.PExpire(ctx, k, length).Err(); err != nil {
			return 0, 0, fmt.Errorf("valkey pexpire: %w", err)
		}
		resetIn = length
	}
	return incr.Val(), resetIn, nil
}
