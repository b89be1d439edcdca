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

// Package assignment models PrincipalRole: the association between a
// principal and a role it holds, with optional expiry.
package assignment

import (
	"context"
	"errors"
	"time"
)

// Domain errors
var (
	ErrAssignmentNotFound      = errors.New("role assignment not found")
	ErrAssignmentAlreadyExists = errors.New("role assignment already exists")
)

// PrincipalRole is a role granted to a principal.
//
// Purpose: Association between an identity and a role.
// Domain: Authz
// Invariants: At most one active row per (principal_id, role_id).
// Never considered active if the underlying role is inactive or the
// assignment itself has expired.
type PrincipalRole struct {
	PrincipalID string     `json:"principal_id"`
	RoleID      string     `json:"role_id"`
	GrantedBy   string     `json:"granted_by"`
	GrantedAt   time.Time  `json:"granted_at"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	IsActive    bool       `json:"is_active"`
}

// Expired reports whether the assignment has passed its expiry time
// as of now.
func (a *PrincipalRole) Expired(now time.Time) bool {
	return a.ExpiresAt != nil && now.After(*a.ExpiresAt)
}

// Live reports whether the assignment currently grants its role:
// active and not expired. It does not know about the role's own
// active flag — callers must join against role.Repository for that.
func (a *PrincipalRole) Live(now time.Time) bool {
	return a.IsActive && !a.Expired(now)
}

// Repository defines tenant-scoped persistence for role assignments.
//
// Purpose: Abstraction for managing principal-role association
// storage.
// Domain: Authz
type Repository interface {
	Grant(ctx context.Context, tenantID string, a *PrincipalRole) error
	Revoke(ctx context.Context, tenantID, principalID, roleID string) error
	// ListForPrincipal returns all live assignments (is_active and not
	// expired) held directly by a principal.
	ListForPrincipal(ctx context.Context, tenantID, principalID string) ([]*PrincipalRole, error)
	// ListHoldersOfRole returns the principal ids with a live direct
	// assignment to roleID.
	ListHoldersOfRole(ctx context.Context, tenantID, roleID string) ([]string, error)
}
