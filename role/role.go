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

// Package role models the hierarchical RBAC role graph: roles carry a
// nullable parent edge, and a principal's effective permission set is
// the union of permissions across the transitive ancestor closure.
package role

import (
	"context"
	"errors"
	"time"
)

// Domain errors
var (
	ErrRoleNotFound         = errors.New("role not found")
	ErrRoleAlreadyExists    = errors.New("role already exists")
	ErrCycleWouldBeCreated  = errors.New("reparenting this role would create a cycle")
	ErrCrossTenantParent    = errors.New("parent role belongs to a different tenant")
	ErrDepthLimitReached    = errors.New("role closure depth limit reached")
)

// MaxClosureDepth bounds the ancestor walk performed when computing a
// role closure (spec.md §4.2).
const MaxClosureDepth = 10

// Role is a named bundle of permissions, optionally inheriting from a
// parent role.
//
// Purpose: Node in the RBAC role hierarchy.
// Domain: Authz
// Invariants: Name unique per tenant. ParentRoleID, if set, names a
// role in the same tenant and never introduces a cycle. Level is a
// denormalized distance to the nearest root; the parent edge is
// authoritative.
type Role struct {
	ID           string    `json:"id"`
	TenantID     string    `json:"tenant_id"`
	Name         string    `json:"name"`
	Description  string    `json:"description"`
	ParentRoleID *string   `json:"parent_role_id,omitempty"`
	Level        int       `json:"level"`
	IsSystem     bool      `json:"is_system"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Repository defines tenant-scoped persistence for the role graph.
//
// Purpose: Abstraction for managing role hierarchy storage.
// Domain: Authz
type Repository interface {
	Create(ctx context.Context, tenantID string, r *Role) error
	GetByID(ctx context.Context, tenantID, id string) (*Role, error)
	GetByName(ctx context.Context, tenantID, name string) (*Role, error)
	// Reparent changes a role's parent edge, recomputing Level for the
	// role and its descendants. Implementations must reject any change
	// that would introduce a cycle (ErrCycleWouldBeCreated).
	Reparent(ctx context.Context, tenantID, roleID string, newParentID *string) error
	Delete(ctx context.Context, tenantID, id string) error
	List(ctx context.Context, tenantID string) ([]*Role, error)
	// Children returns the roles directly parented by roleID.
	Children(ctx context.Context, tenantID, roleID string) ([]*Role, error)
}
