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

// Package invalidation implements the mutation-to-eviction bus (C8):
// write-side events are translated into decision-cache evictions.
// Principal-scoped events evict that principal's cached decisions;
// permission, role-reparent and policy events evict every cached
// decision in the tenant.
package invalidation

import (
	"context"
	"log/slog"

	"github.com/trustgate/authz-core/cache"
	"github.com/trustgate/authz-core/rbac"
)

// Kind enumerates the mutation events the bus understands.
type Kind string

const (
	KindRoleAssigned      Kind = "role_assigned"
	KindRoleRevoked       Kind = "role_revoked"
	KindRoleReparented    Kind = "role_reparented"
	KindPermissionGranted Kind = "permission_granted"
	KindPermissionRevoked Kind = "permission_revoked"
	KindPolicyChanged     Kind = "policy_changed"
	KindPrincipalChanged  Kind = "principal_attributes_changed"
)

// Event describes a single write-side mutation that may invalidate
// cached decisions.
type Event struct {
	Kind        Kind
	TenantID    string
	PrincipalID string // populated for principal/assignment-scoped events
	RoleID      string // populated for role/permission-scoped events
	Action      string // populated when the mutation is scoped to one permission's action
}

// Bus translates Events into Cache.Invalidate calls (C8).
//
// Purpose: Keep the decision cache consistent with the write side
// without requiring every writer to know the cache's key scheme.
// Domain: Authz
type Bus struct {
	cache    cache.Cache
	resolver *rbac.Resolver
}

// NewBus constructs a Bus over the given cache and role-closure
// resolver. resolver is used to find every role affected by a
// permission change on an ancestor role.
func NewBus(c cache.Cache, resolver *rbac.Resolver) *Bus {
	return &Bus{cache: c, resolver: resolver}
}

// Publish applies the cache eviction implied by evt. Eviction errors
// are logged, not returned: a missed invalidation degrades to stale
// reads bounded by TTL, which is preferable to failing the mutation
// that triggered it (spec.md §4.8).
func (b *Bus) Publish(ctx context.Context, evt Event) {
	if err := b.apply(ctx, evt); err != nil {
		slog.ErrorContext(ctx, "invalidation: failed to apply cache eviction",
			"kind", evt.Kind, "tenant_id", evt.TenantID, "error", err)
	}
}

func (b *Bus) apply(ctx context.Context, evt Event) error {
	switch evt.Kind {
	case KindRoleAssigned, KindRoleRevoked, KindPrincipalChanged:
		// A principal's effective role set or attributes changed: every
		// cached decision for that principal may now be wrong.
		return b.cache.Invalidate(ctx, cache.PrincipalPrefix(evt.TenantID, evt.PrincipalID))

	case KindPermissionGranted, KindPermissionRevoked, KindRoleReparented:
		// A role's own or inherited permission set changed. Every role
		// whose closure includes this role is affected, so every
		// principal holding any of those roles needs its cache cleared.
		// ReverseClosure is called so a lookup failure is reported, but
		// its result does not narrow the eviction: every cached decision
		// in the tenant is evicted, not only those of the affected
		// principals.
		if b.resolver != nil {
			if _, err := b.resolver.ReverseClosure(ctx, evt.TenantID, evt.RoleID); err != nil {
				return err
			}
		}
		return b.cache.Invalidate(ctx, cache.TenantPrefix(evt.TenantID))

	case KindPolicyChanged:
		// Policy evaluation output can change for any request in the
		// tenant regardless of role, so the whole tenant namespace is
		// evicted.
		return b.cache.Invalidate(ctx, cache.TenantPrefix(evt.TenantID))

	default:
		return nil
	}
}
