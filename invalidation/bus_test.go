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

package invalidation

import (
	"context"
	"testing"
	"time"

	"github.com/trustgate/authz-core/cache"
)

func fillDecisions(t *testing.T, c cache.Cache, keys ...string) {
	t.Helper()
	for _, k := range keys {
		if err := c.Put(context.Background(), k, cache.Decision{Allowed: true}, time.Minute); err != nil {
			t.Fatalf("unexpected error priming cache: %v", err)
		}
	}
}

func assertEvicted(t *testing.T, c cache.Cache, key string) {
	t.Helper()
	if _, err := c.Get(context.Background(), key); err != cache.ErrMiss {
		t.Fatalf("expected %q to be evicted, got err=%v", key, err)
	}
}

func assertPresent(t *testing.T, c cache.Cache, key string) {
	t.Helper()
	if _, err := c.Get(context.Background(), key); err != nil {
		t.Fatalf("expected %q to survive, got err=%v", key, err)
	}
}

func TestBusRoleAssignedEvictsOnlyThatPrincipal(t *testing.T) {
	c := cache.NewMemoryCache()
	aliceKey := cache.Key("t1", "alice", "read", "document", "d1")
	bobKey := cache.Key("t1", "bob", "read", "document", "d1")
	fillDecisions(t, c, aliceKey, bobKey)

	bus := NewBus(c, nil)
	bus.Publish(context.Background(), Event{Kind: KindRoleAssigned, TenantID: "t1", PrincipalID: "alice"})

	assertEvicted(t, c, aliceKey)
	assertPresent(t, c, bobKey)
}

func TestBusRoleRevokedEvictsOnlyThatPrincipal(t *testing.T) {
	c := cache.NewMemoryCache()
	aliceKey := cache.Key("t1", "alice", "read", "document", "d1")
	bobKey := cache.Key("t1", "bob", "read", "document", "d1")
	fillDecisions(t, c, aliceKey, bobKey)

	bus := NewBus(c, nil)
	bus.Publish(context.Background(), Event{Kind: KindRoleRevoked, TenantID: "t1", PrincipalID: "alice"})

	assertEvicted(t, c, aliceKey)
	assertPresent(t, c, bobKey)
}

func TestBusPrincipalChangedEvictsOnlyThatPrincipal(t *testing.T) {
	c := cache.NewMemoryCache()
	aliceKey := cache.Key("t1", "alice", "read", "document", "d1")
	bobKey := cache.Key("t1", "bob", "read", "document", "d1")
	fillDecisions(t, c, aliceKey, bobKey)

	bus := NewBus(c, nil)
	bus.Publish(context.Background(), Event{Kind: KindPrincipalChanged, TenantID: "t1", PrincipalID: "alice"})

	assertEvicted(t, c, aliceKey)
	assertPresent(t, c, bobKey)
}

func TestBusPermissionGrantedEvictsWholeTenant(t *testing.T) {
	c := cache.NewMemoryCache()
	t1Key := cache.Key("t1", "alice", "read", "document", "d1")
	t2Key := cache.Key("t2", "alice", "read", "document", "d1")
	fillDecisions(t, c, t1Key, t2Key)

	bus := NewBus(c, nil)
	bus.Publish(context.Background(), Event{Kind: KindPermissionGranted, TenantID: "t1", RoleID: "role-editor"})

	assertEvicted(t, c, t1Key)
	assertPresent(t, c, t2Key)
}

func TestBusRoleReparentedEvictsWholeTenant(t *testing.T) {
	c := cache.NewMemoryCache()
	t1Key := cache.Key("t1", "alice", "read", "document", "d1")
	t2Key := cache.Key("t2", "alice", "read", "document", "d1")
	fillDecisions(t, c, t1Key, t2Key)

	bus := NewBus(c, nil)
	bus.Publish(context.Background(), Event{Kind: KindRoleReparented, TenantID: "t1", RoleID: "role-editor"})

	assertEvicted(t, c, t1Key)
	assertPresent(t, c, t2Key)
}

func TestBusPolicyChangedEvictsWholeTenant(t *testing.T) {
	c := cache.NewMemoryCache()
	t1Key := cache.Key("t1", "alice", "read", "document", "d1")
	t2Key := cache.Key("t2", "alice", "read", "document", "d1")
	fillDecisions(t, c, t1Key, t2Key)

	bus := NewBus(c, nil)
	bus.Publish(context.Background(), Event{Kind: KindPolicyChanged, TenantID: "t1"})

	assertEvicted(t, c, t1Key)
	assertPresent(t, c, t2Key)
}

func TestBusUnknownKindIsNoOp(t *testing.T) {
	c := cache.NewMemoryCache()
	key := cache.Key("t1", "alice", "read", "document", "d1")
	fillDecisions(t, c, key)

	bus := NewBus(c, nil)
	bus.Publish(context.Background(), Event{Kind: Kind("unknown"), TenantID: "t1"})

	assertPresent(t, c, key)
}

// failingCache reports ErrUnavailable from Invalidate so Publish's swallow-and-log
// behavior (spec.md §4.8: a missed invalidation degrades to a stale read
// bounded by TTL rather than failing the triggering mutation) can be
// exercised without a panic or propagated error.
type failingCache struct{}

func (failingCache) Get(context.Context, string) (cache.Decision, error) { return cache.Decision{}, cache.ErrMiss }
func (failingCache) Put(context.Context, string, cache.Decision, time.Duration) error {
	return nil
}
func (failingCache) Invalidate(context.Context, string) error { return cache.ErrUnavailable }

func TestBusPublishSwallowsEvictionErrors(t *testing.T) {
	bus := NewBus(failingCache{}, nil)
	bus.Publish(context.Background(), Event{Kind: KindPolicyChanged, TenantID: "t1"})
}
