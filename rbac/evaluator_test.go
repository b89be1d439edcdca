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
	"testing"

	"github.com/trustgate/authz-core/role"
)

func TestEvaluatorAllowsWhenAnyRoleGrantsPermission(t *testing.T) {
	closure := ClosureResult{Roles: []*role.Role{
		{ID: "r0", Name: "viewer", Level: 0},
		{ID: "r1", Name: "editor", Level: 1},
	}}
	rolePerms := map[string][]string{
		"r0": {"document.read"},
		"r1": {"document.write"},
	}

	result := NewEvaluator().Evaluate(closure, rolePerms, "document.write")
	if !result.Allowed {
		t.Fatalf("expected allow, got deny: %s", result.Reason)
	}
	if result.GrantingRole == nil || result.GrantingRole.ID != "r1" {
		t.Fatalf("expected granting role r1, got %+v", result.GrantingRole)
	}
}

func TestEvaluatorDeniesWhenNoRoleGrantsPermission(t *testing.T) {
	closure := ClosureResult{Roles: []*role.Role{{ID: "r0", Name: "viewer"}}}
	rolePerms := map[string][]string{"r0": {"document.read"}}

	result := NewEvaluator().Evaluate(closure, rolePerms, "document.delete")
	if result.Allowed {
		t.Fatalf("expected deny")
	}
	if result.GrantingRole != nil {
		t.Fatalf("expected no granting role on denial")
	}
}

func TestEvaluatorDeniesWithNoRolesHeld(t *testing.T) {
	result := NewEvaluator().Evaluate(ClosureResult{}, nil, "document.read")
	if result.Allowed {
		t.Fatalf("expected deny for a principal holding no roles")
	}
}
