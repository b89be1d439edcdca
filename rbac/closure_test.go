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

package rbac

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/trustgate/authz-core/assignment"
	"github.com/trustgate/authz-core/permission"
	"github.com/trustgate/authz-core/role"
)

type fakeRoleRepo struct {
	role.Repository
	roles map[string]*role.Role
}

func (f *fakeRoleRepo) GetByID(ctx context.Context, tenantID, id string) (*role.Role, error) {
	r, ok := f.roles[id]
	if !ok {
		return nil, role.ErrRoleNotFound
	}
	return r, nil
}

func (f *fakeRoleRepo) List(ctx context.Context, tenantID string) ([]*role.Role, error) {
	out := make([]*role.Role, 0, len(f.roles))
	for _, r := range f.roles {
		out = append(out, r)
	}
	return out, nil
}

type fakeAssignmentRepo struct {
	assignment.Repository
	assignments map[string][]*assignment.PrincipalRole
}

func (f *fakeAssignmentRepo) ListForPrincipal(ctx context.Context, tenantID, principalID string) ([]*assignment.PrincipalRole, error) {
	return f.assignments[principalID], nil
}

type fakePermissionRepo struct {
	permission.Repository
	byRole map[string][]*permission.Permission
}

func (f *fakePermissionRepo) ListForRole(ctx context.Context, tenantID, roleID string) ([]*permission.Permission, error) {
	return f.byRole[roleID], nil
}

func strPtr(s string) *string { return &s }

func chain(n int) map[string]*role.Role {
	roles := make(map[string]*role.Role, n)
	var parent *string
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("r%d", i)
		roles[id] = &role.Role{ID: id, Name: id, TenantID: "t1", ParentRoleID: parent, Level: i, IsActive: true}
		p := id
		parent = &p
	}
	return roles
}

func TestResolverClosureWalksAncestorChain(t *testing.T) {
	roles := chain(3) // r0 <- r1 <- r2 (r2's parent is r1, r1's parent is r0)
	resolver := NewResolver(
		&fakeRoleRepo{roles: roles},
		&fakeAssignmentRepo{assignments: map[string][]*assignment.PrincipalRole{
			"alice": {{PrincipalID: "alice", RoleID: "r2", IsActive: true}},
		}},
		&fakePermissionRepo{},
	)

	result, err := resolver.Closure(context.Background(), "t1", "alice")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Roles) != 3 {
		t.Fatalf("expected 3 roles in closure, got %d: %v", len(result.Roles), result.RoleNames())
	}
	if result.DepthLimitReached {
		t.Fatalf("did not expect depth limit to be reached")
	}
}

func TestResolverClosureIgnoresExpiredAssignment(t *testing.T) {
	roles := chain(1)
	past := time.Now().Add(-time.Hour)
	resolver := NewResolver(
		&fakeRoleRepo{roles: roles},
		&fakeAssignmentRepo{assignments: map[string][]*assignment.PrincipalRole{
			"alice": {{PrincipalID: "alice", RoleID: "r0", IsActive: true, ExpiresAt: &past}},
		}},
		&fakePermissionRepo{},
	)

	result, err := resolver.Closure(context.Background(), "t1", "alice")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Roles) != 0 {
		t.Fatalf("expected no roles from an expired assignment, got %v", result.RoleNames())
	}
}

func TestResolverClosureHandlesCycleWithoutInfiniteLoop(t *testing.T) {
	roles := map[string]*role.Role{
		"a": {ID: "a", Name: "a", TenantID: "t1", ParentRoleID: strPtr("b"), IsActive: true},
		"b": {ID: "b", Name: "b", TenantID: "t1", ParentRoleID: strPtr("a"), IsActive: true},
	}
	resolver := NewResolver(
		&fakeRoleRepo{roles: roles},
		&fakeAssignmentRepo{assignments: map[string][]*assignment.PrincipalRole{
			"alice": {{PrincipalID: "alice", RoleID: "a", IsActive: true}},
		}},
		&fakePermissionRepo{},
	)

	done := make(chan ClosureResult, 1)
	go func() {
		result, err := resolver.Closure(context.Background(), "t1", "alice")
		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
		done <- result
	}()

	select {
	case result := <-done:
		if len(result.Roles) != 2 {
			t.Fatalf("expected both roles in the cycle visited once, got %v", result.RoleNames())
		}
	case <-time.After(time.Second):
		t.Fatal("closure resolution did not terminate on a cyclic role graph")
	}
}

func TestResolverClosureStopsAtDepthLimit(t *testing.T) {
	roles := chain(role.MaxClosureDepth + 5)
	deepestID := fmt.Sprintf("r%d", role.MaxClosureDepth+4)
	resolver := NewResolver(
		&fakeRoleRepo{roles: roles},
		&fakeAssignmentRepo{assignments: map[string][]*assignment.PrincipalRole{
			"alice": {{PrincipalID: "alice", RoleID: deepestID, IsActive: true}},
		}},
		&fakePermissionRepo{},
	)

	result, err := resolver.Closure(context.Background(), "t1", "alice")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.DepthLimitReached {
		t.Fatalf("expected depth limit to be reached for a %d-deep chain", role.MaxClosureDepth+5)
	}
	if len(result.Roles) != role.MaxClosureDepth {
		t.Fatalf("expected exactly MaxClosureDepth roles collected, got %d", len(result.Roles))
	}
}

func TestResolverPermissionsFlattensAcrossClosure(t *testing.T) {
	closure := ClosureResult{Roles: []*role.Role{{ID: "r0"}, {ID: "r1"}}}
	resolver := NewResolver(nil, nil, &fakePermissionRepo{byRole: map[string][]*permission.Permission{
		"r0": {{Name: "document.read"}},
		"r1": {{Name: "document.write"}, {Name: "document.read"}},
	}})

	names, err := resolver.Permissions(context.Background(), "t1", closure)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(names) != 2 {
		t.Fatalf("expected 2 distinct permission names, got %d: %v", len(names), names)
	}
	if _, ok := names["document.read"]; !ok {
		t.Fatalf("expected document.read to be present")
	}
	if _, ok := names["document.write"]; !ok {
		t.Fatalf("expected document.write to be present")
	}
}

func TestResolverPermissionsByRoleKeepsEachRoleDistinct(t *testing.T) {
	closure := ClosureResult{Roles: []*role.Role{{ID: "r0"}, {ID: "r1"}}}
	resolver := NewResolver(nil, nil, &fakePermissionRepo{byRole: map[string][]*permission.Permission{
		"r0": {{Name: "document.read"}},
		"r1": {{Name: "document.write"}, {Name: "document.read"}},
	}})

	byRole, err := resolver.PermissionsByRole(context.Background(), "t1", closure)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(byRole["r0"]) != 1 || byRole["r0"][0] != "document.read" {
		t.Fatalf("expected r0 to be credited only with its own permission, got %v", byRole["r0"])
	}
	if len(byRole["r1"]) != 2 {
		t.Fatalf("expected r1 to be credited with both of its own permissions, got %v", byRole["r1"])
	}
}

func TestResolverReverseClosureFindsDescendants(t *testing.T) {
	roles := chain(3) // r0 <- r1 <- r2
	resolver := NewResolver(&fakeRoleRepo{roles: roles}, nil, nil)

	affected, err := resolver.ReverseClosure(context.Background(), "t1", "r0")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(affected) != 3 {
		t.Fatalf("expected r0, r1, r2 to all trace back to r0, got %d", len(affected))
	}
}
