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

// Package rbac implements the role closure resolver (C2) and the RBAC
// permission evaluator (C3).
package rbac

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/trustgate/authz-core/assignment"
	"github.com/trustgate/authz-core/permission"
	"github.com/trustgate/authz-core/role"
)

// ClosureResult is the output of resolving a principal's transitive
// role set.
type ClosureResult struct {
	Roles []*role.Role
	// DepthLimitReached is set when the traversal hit role.MaxClosureDepth
	// before exhausting the ancestor chain; the evaluation still
	// completes with whatever was accumulated (spec.md §4.2).
	DepthLimitReached bool
}

// RoleNames returns the held role names, in closure order, for
// diagnostic messages.
func (c ClosureResult) RoleNames() []string {
	names := make([]string, len(c.Roles))
	for i, r := range c.Roles {
		names[i] = r.Name
	}
	return names
}

// IDs returns the set of role ids in the closure.
func (c ClosureResult) IDs() map[string]struct{} {
	ids := make(map[string]struct{}, len(c.Roles))
	for _, r := range c.Roles {
		ids[r.ID] = struct{}{}
	}
	return ids
}

// Resolver computes the transitive role closure for a principal by
// walking the role-parent graph (C2).
//
// Purpose: Cycle-safe, depth-bounded ancestor resolution for RBAC.
// Domain: Authz
type Resolver struct {
	roles       role.Repository
	assignments assignment.Repository
	permissions permission.Repository
}

// NewResolver constructs a Resolver over the given repositories.
func NewResolver(roles role.Repository, assignments assignment.Repository, permissions permission.Repository) *Resolver {
	return &Resolver{roles: roles, assignments: assignments, permissions: permissions}
}

// Closure resolves the ordered set of roles directly assigned to a
// principal plus all transitive ancestors, filtering out inactive
// roles and assignments that are not currently live.
//
// Ordering is deterministic: by Level ascending, then Name, matching
// spec.md §4.2.
func (r *Resolver) Closure(ctx context.Context, tenantID, principalID string) (ClosureResult, error) {
	direct, err := r.assignments.ListForPrincipal(ctx, tenantID, principalID)
	if err != nil {
		return ClosureResult{}, fmt.Errorf("rbac: list assignments: %w", err)
	}

	now := time.Now()
	visited := make(map[string]struct{})
	var collected []*role.Role
	var depthLimitReached bool

	for _, a := range direct {
		if !a.Live(now) {
			continue
		}
		reached := r.walk(ctx, tenantID, a.RoleID, visited, &collected, 0)
		depthLimitReached = depthLimitReached || reached
	}

	sort.Slice(collected, func(i, j int) bool {
		if collected[i].Level != collected[j].Level {
			return collected[i].Level < collected[j].Level
		}
		return collected[i].Name < collected[j].Name
	})

	return ClosureResult{Roles: collected, DepthLimitReached: depthLimitReached}, nil
}

// walk performs the cycle-safe depth-bounded DFS up the parent chain
// starting at roleID. It returns true if the depth bound was hit.
func (r *Resolver) walk(ctx context.Context, tenantID, roleID string, visited map[string]struct{}, out *[]*role.Role, depth int) bool {
	if _, seen := visited[roleID]; seen {
		return false
	}
	if depth >= role.MaxClosureDepth {
		return true
	}
	visited[roleID] = struct{}{}

	rl, err := r.roles.GetByID(ctx, tenantID, roleID)
	if err != nil || rl == nil || !rl.IsActive {
		return false
	}
	*out = append(*out, rl)

	if rl.ParentRoleID == nil {
		return false
	}
	return r.walk(ctx, tenantID, *rl.ParentRoleID, visited, out, depth+1)
}

// Permissions returns the flattened set of permission names granted
// by the principal's role closure, joining RolePermission for each
// role in the closure (spec.md §4.2: "The resolver is also
// responsible for producing the flattened permission set").
func (r *Resolver) Permissions(ctx context.Context, tenantID string, closure ClosureResult) (map[string]struct{}, error) {
	names := make(map[string]struct{})
	for _, rl := range closure.Roles {
		perms, err := r.permissions.ListForRole(ctx, tenantID, rl.ID)
		if err != nil {
			return nil, fmt.Errorf("rbac: list permissions for role %s: %w", rl.ID, err)
		}
		for _, p := range perms {
			names[p.Name] = struct{}{}
		}
	}
	return names, nil
}

// PermissionsByRole returns, for each role in the closure, only the
// permission names directly attached to that role — the per-role view
// the evaluator needs to name the actual granting role (spec.md §4.3:
// "On grant, the reason names the specific role"), as opposed to
// Permissions' flattened union.
func (r *Resolver) PermissionsByRole(ctx context.Context, tenantID string, closure ClosureResult) (map[string][]string, error) {
	byRole := make(map[string][]string, len(closure.Roles))
	for _, rl := range closure.Roles {
		perms, err := r.permissions.ListForRole(ctx, tenantID, rl.ID)
		if err != nil {
			return nil, fmt.Errorf("rbac: list permissions for role %s: %w", rl.ID, err)
		}
		names := make([]string, len(perms))
		for i, p := range perms {
			names[i] = p.Name
		}
		byRole[rl.ID] = names
	}
	return byRole, nil
}

// ReverseClosure finds every role whose closure contains roleID — the
// inverse of Closure's ancestor walk, used by the invalidation bus to
// determine which roles are affected when a permission changes on
// roleID (spec.md §4.8).
func (r *Resolver) ReverseClosure(ctx context.Context, tenantID, roleID string) ([]*role.Role, error) {
	all, err := r.roles.List(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("rbac: list roles: %w", err)
	}

	byID := make(map[string]*role.Role, len(all))
	for _, rl := range all {
		byID[rl.ID] = rl
	}

	var affected []*role.Role
	for _, rl := range all {
		if r.ancestorContains(rl, byID, roleID, 0) {
			affected = append(affected, rl)
		}
	}
	return affected, nil
}

func (r *Resolver) ancestorContains(start *role.Role, byID map[string]*role.Role, targetID string, depth int) bool {
	if start == nil || depth > role.MaxClosureDepth {
		return false
	}
	if start.ID == targetID {
		return true
	}
	if start.ParentRoleID == nil {
		return false
	}
	parent, ok := byID[*start.ParentRoleID]
	if !ok {
		return false
	}
	return r.ancestorContains(parent, byID, targetID, depth+1)
}
