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

// Package principal models the acting entity whose permission is
// checked by an authorization decision: a human user or a service
// account.
package principal

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"
)

// Domain errors
var (
	ErrPrincipalNotFound      = errors.New("principal not found")
	ErrPrincipalAlreadyExists = errors.New("principal already exists")
)

// Kind distinguishes a human user from a service account.
type Kind string

const (
	KindUser           Kind = "user"
	KindServiceAccount Kind = "service_account"
)

// Status mirrors tenant.Status for a principal's lifecycle.
type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

// Well-known attribute keys consulted by the ABAC evaluator.
const (
	AttrDepartment     = "department"
	AttrClearanceLevel = "clearance_level"
)

// Attributes is a heterogeneous, dotted-path-resolvable attribute
// bag used by both ABAC and the policy condition engine. Values may
// be strings, numbers, bools, or lists of the former.
type Attributes map[string]any

// Get resolves a dotted path (e.g. "team.name") by walking nested
// map[string]any values. It returns (nil, false) if any segment of
// the path is missing or not a map.
func (a Attributes) Get(path string) (any, bool) {
	if a == nil {
		return nil, false
	}
	segments := strings.Split(path, ".")
	var cur any = map[string]any(a)
	for _, seg := range segments {
		m, ok := cur.(map[string]any)
		if !ok {
			if am, ok2 := cur.(Attributes); ok2 {
				m = map[string]any(am)
			} else {
				return nil, false
			}
		}
		v, ok := m[seg]
		if !ok {
			return nil, false
		}
		cur = v
	}
	return cur, true
}

// Int coerces a resolved attribute into an integer, accepting the
// numeric kinds JSON unmarshaling and direct construction both
// produce (float64, int, int64, and numeric strings).
func Int(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	case string:
		i, err := strconv.Atoi(n)
		if err != nil {
			return 0, false
		}
		return i, true
	default:
		return 0, false
	}
}

// Principal represents a user or service account authenticated within
// a tenant.
//
// Purpose: Subject of an authorization decision.
// Domain: Identity
// Invariants: Email unique per tenant. Status is Active or Inactive.
type Principal struct {
	ID          string     `json:"id"`
	TenantID    string     `json:"tenant_id"`
	Email       string     `json:"email"`
	DisplayName string     `json:"display_name"`
	Kind        Kind       `json:"kind"`
	Status      Status     `json:"status"`
	Attributes  Attributes `json:"attributes"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Active reports whether the principal may currently be authorized.
func (p *Principal) Active() bool {
	return p.Status == StatusActive
}

// Repository defines tenant-scoped persistence for Principal records.
//
// Purpose: Abstraction for managing principal storage.
// Domain: Identity
type Repository interface {
	Create(ctx context.Context, tenantID string, p *Principal) error
	GetByID(ctx context.Context, tenantID, id string) (*Principal, error)
	GetByEmail(ctx context.Context, tenantID, email string) (*Principal, error)
	Update(ctx context.Context, tenantID string, p *Principal) error
	Delete(ctx context.Context, tenantID, id string) error
	List(ctx context.Context, tenantID string, limit, offset int) ([]*Principal, error)
}
