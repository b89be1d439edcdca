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
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedisCache(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewRedisCacheFromClient(client, NewBreaker(2, 20*time.Millisecond)), mr
}

func TestRedisCacheGetMissWhenAbsent(t *testing.T) {
	c, _ := newTestRedisCache(t)
	if _, err := c.Get(context.Background(), "authz:t1:p1:read:document:d1"); err != ErrMiss {
		t.Fatalf("expected ErrMiss, got %v", err)
	}
}

func TestRedisCachePutThenGetRoundTrips(t *testing.T) {
	c, _ := newTestRedisCache(t)
	key := Key("t1", "p1", "read", "document", "d1")
	want := Decision{Allowed: true, Reason: "matched rule r1", PolicyID: "pol-1"}

	if err := c.Put(context.Background(), key, want, time.Minute); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, err := c.Get(context.Background(), key)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Allowed != want.Allowed || got.Reason != want.Reason || got.PolicyID != want.PolicyID {
		t.Fatalf("expected %+v, got %+v", want, got)
	}
}

func TestRedisCacheInvalidateByPrefixScansAndDeletes(t *testing.T) {
	c, _ := newTestRedisCache(t)
	keyP1 := Key("t1", "p1", "read", "document", "d1")
	keyP2 := Key("t1", "p2", "read", "document", "d1")
	_ = c.Put(context.Background(), keyP1, Decision{Allowed: true}, time.Minute)
	_ = c.Put(context.Background(), keyP2, Decision{Allowed: true}, time.Minute)

	if err := c.Invalidate(context.Background(), PrincipalPrefix("t1", "p1")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := c.Get(context.Background(), keyP1); err != ErrMiss {
		t.Fatalf("expected p1's key to be evicted")
	}
	if _, err := c.Get(context.Background(), keyP2); err != nil {
		t.Fatalf("expected p2's key to survive, got %v", err)
	}
}

func TestRedisCacheBreakerOpensOnSustainedFailureAndBlocksCalls(t *testing.T) {
	c, mr := newTestRedisCache(t)
	mr.Close() // subsequent calls now fail to dial

	key := Key("t1", "p1", "read", "document", "d1")
	if _, err := c.Get(context.Background(), key); err == nil {
		t.Fatalf("expected the first failed call to report an error")
	}
	if _, err := c.Get(context.Background(), key); err == nil {
		t.Fatalf("expected the second failed call to trip the breaker")
	}

	if !c.breaker.Open() {
		t.Fatalf("expected the breaker to be open after reaching the failure threshold")
	}

	if _, err := c.Get(context.Background(), key); err != ErrUnavailable {
		t.Fatalf("expected an open breaker to short-circuit with ErrUnavailable, got %v", err)
	}
	if c.BreakerState() != 1 {
		t.Fatalf("expected BreakerState()==1 (open), got %d", c.BreakerState())
	}
}
