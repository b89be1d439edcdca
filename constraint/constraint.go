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

// Package constraint implements Separation-of-Duties constraints and
// the checker that enforces them at role-assignment time (C6).
package constraint

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Domain errors
var (
	ErrConstraintNotFound    = errors.New("role constraint not found")
	ErrConstraintViolation   = errors.New("separation of duties constraint violated")
	ErrInvalidRoleSet        = errors.New("constraint role set must name at least two roles in the same tenant")
)

// Kind distinguishes static (enforced at assignment) from dynamic
// (session-scoped, not enforced by this decision engine) SoD.
type Kind string

const (
	KindStaticSoD  Kind = "static_sod"
	KindDynamicSoD Kind = "dynamic_sod"
)

// ViolationAction controls what happens when a constraint is
// violated: reject the assignment outright, or merely record it.
type ViolationAction string

const (
	ActionDeny  ViolationAction = "deny"
	ActionAlert ViolationAction = "alert"
)

// RoleConstraint forbids a principal from simultaneously holding two
// or more roles from RoleIDs.
//
// Purpose: Separation-of-Duties policy definition.
// Domain: Authz
// Invariants: len(RoleIDs) >= 2; all roles belong to TenantID.
type RoleConstraint struct {
	ID              string          `json:"id"`
	TenantID        string          `json:"tenant_id"`
	Name            string          `json:"name"`
	Kind            Kind            `json:"kind"`
	RoleIDs         []string        `json:"role_ids"`
	ViolationAction ViolationAction `json:"violation_action"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// Validate enforces the RoleConstraint shape invariants.
func (c *RoleConstraint) Validate() error {
	if len(c.RoleIDs) < 2 {
		return ErrInvalidRoleSet
	}
	return nil
}

// Violation describes a single constraint breach detected during a
// check.
type Violation struct {
	Constraint *RoleConstraint
	Matched    []string // role ids present in both the constraint and the candidate closure
}

// Repository defines tenant-scoped persistence for RoleConstraint
// records.
//
// Purpose: Abstraction for managing SoD constraint storage.
// Domain: Authz
type Repository interface {
	Create(ctx context.Context, tenantID string, c *RoleConstraint) error
	GetByID(ctx context.Context, tenantID, id string) (*RoleConstraint, error)
	Delete(ctx context.Context, tenantID, id string) error
	// ListActive returns every constraint of kind static_sod for the
	// tenant; the checker only ever needs the static set (spec.md
	// §4.6: dynamic SoD is not enforced by the decision engine).
	ListActive(ctx context.Context, tenantID string) ([]*RoleConstraint, error)
}

// Checker detects static Separation-of-Duties violations against a
// principal's candidate role set (C6).
//
// Purpose: Pre-assignment SoD enforcement.
// Domain: Authz
type Checker struct {
	constraints Repository
}

// NewChecker constructs a Checker over the given constraint
// repository.
func NewChecker(constraints Repository) *Checker {
	return &Checker{constraints: constraints}
}

// Check evaluates every active static_sod constraint in tenantID
// against closureIDs ∪ {candidateRoleID} (spec.md §3 invariant 4,
// §4.6). It returns all violations found, plus a boolean indicating
// whether any violation requires the assignment to be rejected
// (ViolationAction == deny).
func (c *Checker) Check(ctx context.Context, tenantID string, closureIDs map[string]struct{}, candidateRoleID string) ([]Violation, bool, error) {
	constraints, err := c.constraints.ListActive(ctx, tenantID)
	if err != nil {
		return nil, false, fmt.Errorf("constraint: list active: %w", err)
	}

	candidate := make(map[string]struct{}, len(closureIDs)+1)
	for id := range closureIDs {
		candidate[id] = struct{}{}
	}
	candidate[candidateRoleID] = struct{}{}

	var violations []Violation
	var mustDeny bool

	for _, constr := range constraints {
		if constr.Kind != KindStaticSoD {
			continue
		}
		var matched []string
		for _, roleID := range constr.RoleIDs {
			if _, ok := candidate[roleID]; ok {
				matched = append(matched, roleID)
			}
		}
		if len(matched) >= 2 {
			violations = append(violations, Violation{Constraint: constr, Matched: matched})
			if constr.ViolationAction == ActionDeny {
				mustDeny = true
			}
		}
	}

	return violations, mustDeny, nil
}
