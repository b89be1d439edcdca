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
	"fmt"
	"strings"

	"github.com/trustgate/authz-core/role"
)

// Result is the outcome of an RBAC permission check.
type Result struct {
	Allowed      bool
	GrantingRole *role.Role
	Reason       string
}

// Evaluator answers "does any role in a closure carry the required
// permission" (C3).
//
// Purpose: Exact-match permission lookup over a resolved role
// closure.
// Domain: Authz
type Evaluator struct{}

// NewEvaluator constructs an Evaluator. It holds no state: the closure
// and permission set are supplied per call.
func NewEvaluator() *Evaluator {
	return &Evaluator{}
}

// Evaluate checks whether permissionName is granted by any role in
// closure, using the role-id-to-permission-names index built by
// Resolver.PermissionsByRole; the first role in closure order that
// holds it is reported as the granting role.
func (e *Evaluator) Evaluate(closure ClosureResult, rolePermissions map[string][]string, permissionName string) Result {
	for _, r := range closure.Roles {
		for _, p := range rolePermissions[r.ID] {
			if p == permissionName {
				return Result{
					Allowed:      true,
					GrantingRole: r,
					Reason:       fmt.Sprintf("Granted by role %s (Level %d)", r.Name, r.Level),
				}
			}
		}
	}

	names := closure.RoleNames()
	reason := fmt.Sprintf("Missing required permission: %s. Held roles: %s", permissionName, strings.Join(names, ", "))
	if len(names) == 0 {
		reason = fmt.Sprintf("Missing required permission: %s. Principal holds no roles", permissionName)
	}
	return Result{Allowed: false, Reason: reason}
}
