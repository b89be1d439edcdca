// Copyright 2026 The Authz-Core Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConfig holds connection settings for RedisCache.
type RedisConfig struct {
	Addr         string
	Password     string
	DB           int
	MaxRetries   int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	PoolSize     int

	// FailureThreshold and Cooldown configure the circuit breaker
	// guarding this cache.
	FailureThreshold int
	Cooldown         time.Duration
}

// DefaultRedisConfig returns a RedisConfig with sensible defaults.
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:             "localhost:6379",
		DB:               0,
		MaxRetries:       3,
		DialTimeout:      5 * time.Second,
		ReadTimeout:      3 * time.Second,
		WriteTimeout:     3 * time.Second,
		PoolSize:         10,
		FailureThreshold: 3,
		Cooldown:         10 * time.Second,
	}
}

// RedisCache implements Cache over go-redis, guarded by a Breaker so
// sustained Redis unavailability degrades to cache misses instead of
// blocking every request on failing round trips (spec.md §4.7).
//
// Purpose: Production decision-cache backend.
// Domain: Authz
type RedisCache struct {
	client  *redis.Client
	breaker *Breaker
}

// NewRedisCache constructs a RedisCache from cfg.
func NewRedisCache(cfg RedisConfig) *RedisCache {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		MaxRetries:   cfg.MaxRetries,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		PoolSize:     cfg.PoolSize,
	})
	return &RedisCache{
		client:  client,
		breaker: NewBreaker(cfg.FailureThreshold, cfg.Cooldown),
	}
}

// NewRedisCacheFromClient wraps an existing redis client, used by
// tests against miniredis.
func NewRedisCacheFromClient(client *redis.Client, breaker *Breaker) *RedisCache {
	if breaker == nil {
		breaker = NewBreaker(3, 10*time.Second)
	}
	return &RedisCache{client: client, breaker: breaker}
}

// Get returns the cached decision for key. If the breaker is open it
// returns ErrUnavailable immediately without contacting Redis.
func (c *RedisCache) Get(ctx context.Context, key string) (Decision, error) {
	if !c.breaker.Allow() {
		return Decision{}, ErrUnavailable
	}

	raw, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			c.breaker.RecordSuccess()
			return Decision{}, ErrMiss
		}
		c.breaker.RecordFailure()
		return Decision{}, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	c.breaker.RecordSuccess()

	var decision Decision
	if err := json.Unmarshal(raw, &decision); err != nil {
		return Decision{}, fmt.Errorf("cache: unmarshal decision: %w", err)
	}
	return decision, nil
}

// Put stores decision under key with the given ttl.
func (c *RedisCache) Put(ctx context.Context, key string, decision Decision, ttl time.Duration) error {
	if !c.breaker.Allow() {
		return ErrUnavailable
	}

	raw, err := json.Marshal(decision)
	if err != nil {
		return fmt.Errorf("cache: marshal decision: %w", err)
	}

	if err := c.client.Set(ctx, key, raw, ttl).Err(); err != nil {
		c.breaker.RecordFailure()
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	c.breaker.RecordSuccess()
	return nil
}

// Invalidate scans for and deletes every key with the given prefix
// using SCAN so a large keyspace does not block Redis the way KEYS
// would.
func (c *RedisCache) Invalidate(ctx context.Context, prefix string) error {
	if prefix == "" {
		return nil
	}
	if !c.breaker.Allow() {
		return ErrUnavailable
	}

	var cursor uint64
	pattern := prefix + "*"
	for {
		keys, next, err := c.client.Scan(ctx, cursor, pattern, 200).Result()
		if err != nil {
			c.breaker.RecordFailure()
			return fmt.Errorf("%w: %w", ErrUnavailable, err)
		}
		if len(keys) > 0 {
			if err := c.client.Del(ctx, keys...).Err(); err != nil {
				c.breaker.RecordFailure()
				return fmt.Errorf("%w: %w", ErrUnavailable, err)
			}
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	c.breaker.RecordSuccess()
	return nil
}

// Close releases the underlying Redis connection pool.
func (c *RedisCache) Close() error {
	return c.client.Close()
}

// BreakerState exposes the breaker's state for metrics reporting.
func (c *RedisCache) BreakerState() int {
	return c.breaker.State()
}

// Ping checks whether Redis is reachable.
func (c *RedisCache) Ping(ctx context.Context) error {
	if err := c.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return nil
}
