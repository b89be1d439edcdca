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

// Package cache implements the namespaced, TTL'd decision cache (C7):
// a tenant-scoped key space over a pluggable backend, guarded by a
// circuit breaker so a down cache degrades to pass-through instead of
// failing requests.
package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrUnavailable is returned by a Cache implementation when its
// backend cannot currently be reached. Callers (the orchestrator)
// treat this as a cache miss rather than a request failure.
var ErrUnavailable = errors.New("cache: backend unavailable")

// ErrMiss is returned by Get when the key is not present.
var ErrMiss = errors.New("cache: miss")

// Decision is the cached shape of one evaluated authorization result.
type Decision struct {
	Allowed     bool      `json:"allowed"`
	Reason      string    `json:"reason"`
	PolicyID    string    `json:"policy_id,omitempty"`
	RuleID      string    `json:"rule_id,omitempty"`
	EvaluatedAt time.Time `json:"evaluated_at"`
}

// Cache stores decisions under tenant-scoped keys with a TTL (spec.md
// §4.7).
//
// Purpose: Abstraction over the decision cache backend.
// Domain: Authz
type Cache interface {
	Get(ctx context.Context, key string) (Decision, error)
	Put(ctx context.Context, key string, decision Decision, ttl time.Duration) error
	// Invalidate removes every key with the given prefix. An empty
	// prefix is ignored (nil is returned and nothing is removed) to
	// prevent an accidental full-namespace wipe from a zero-valued
	// caller.
	Invalidate(ctx context.Context, prefix string) error
}

// Key builds the canonical decision-cache key for a request, matching
// spec.md §4.7: "authz:<tenant_id>:<principal_id>:<action>:<resource_type>:<resource_id>".
func Key(tenantID, principalID, action, resourceType, resourceID string) string {
	return fmt.Sprintf("authz:%s:%s:%s:%s:%s", tenantID, principalID, action, resourceType, resourceID)
}

// TenantPrefix builds the prefix covering every cached decision for a
// tenant.
func TenantPrefix(tenantID string) string {
	return fmt.Sprintf("authz:%s:", tenantID)
}

// PrincipalPrefix builds the prefix covering every cached decision for
// a principal within a tenant.
func PrincipalPrefix(tenantID, principalID string) string {
	return fmt.Sprintf("authz:%s:%s:", tenantID, principalID)
}

// ActionPrefix builds the prefix covering every cached decision for a
// principal/action pair.
func ActionPrefix(tenantID, principalID, action string) string {
	return fmt.Sprintf("authz:%s:%s:%s:", tenantID, principalID, action)
}

// matchesPrefix reports whether key falls under prefix, used by the
// in-memory backend's Invalidate.
func matchesPrefix(key, prefix string) bool {
	return strings.HasPrefix(key, prefix)
}
