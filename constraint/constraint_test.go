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

package constraint

import (
	"context"
	"testing"
)

type fakeConstraintRepo struct {
	Repository
	constraints []*RoleConstraint
}

func (f *fakeConstraintRepo) ListActive(ctx context.Context, tenantID string) ([]*RoleConstraint, error) {
	return f.constraints, nil
}

func TestCheckerDeniesOnActionDeny(t *testing.T) {
	repo := &fakeConstraintRepo{constraints: []*RoleConstraint{
		{ID: "c1", Kind: KindStaticSoD, RoleIDs: []string{"role-approver", "role-requester"}, ViolationAction: ActionDeny},
	}}
	checker := NewChecker(repo)

	violations, mustDeny, err := checker.Check(context.Background(), "t1", map[string]struct{}{"role-requester": {}}, "role-approver")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !mustDeny {
		t.Fatalf("expected mustDeny=true for an ActionDeny constraint")
	}
	if len(violations) != 1 {
		t.Fatalf("expected one violation, got %d", len(violations))
	}
}

func TestCheckerAlertsWithoutDenying(t *testing.T) {
	repo := &fakeConstraintRepo{constraints: []*RoleConstraint{
		{ID: "c1", Kind: KindStaticSoD, RoleIDs: []string{"role-approver", "role-requester"}, ViolationAction: ActionAlert},
	}}
	checker := NewChecker(repo)

	violations, mustDeny, err := checker.Check(context.Background(), "t1", map[string]struct{}{"role-requester": {}}, "role-approver")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if mustDeny {
		t.Fatalf("expected mustDeny=false for an ActionAlert constraint")
	}
	if len(violations) != 1 {
		t.Fatalf("expected the alert violation to still be reported, got %d", len(violations))
	}
}

func TestCheckerIgnoresDynamicSoD(t *testing.T) {
	repo := &fakeConstraintRepo{constraints: []*RoleConstraint{
		{ID: "c1", Kind: KindDynamicSoD, RoleIDs: []string{"role-approver", "role-requester"}, ViolationAction: ActionDeny},
	}}
	checker := NewChecker(repo)

	violations, mustDeny, err := checker.Check(context.Background(), "t1", map[string]struct{}{"role-requester": {}}, "role-approver")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if mustDeny || len(violations) != 0 {
		t.Fatalf("expected dynamic_sod constraints to be ignored by the assignment-time checker")
	}
}

func TestCheckerAllowsDisjointRoleSet(t *testing.T) {
	repo := &fakeConstraintRepo{constraints: []*RoleConstraint{
		{ID: "c1", Kind: KindStaticSoD, RoleIDs: []string{"role-a", "role-b"}, ViolationAction: ActionDeny},
	}}
	checker := NewChecker(repo)

	violations, mustDeny, err := checker.Check(context.Background(), "t1", map[string]struct{}{"role-c": {}}, "role-d")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if mustDeny || len(violations) != 0 {
		t.Fatalf("expected no violation when the candidate set shares no roles with the constraint")
	}
}

func TestRoleConstraintValidateRejectsSingleRole(t *testing.T) {
	c := &RoleConstraint{RoleIDs: []string{"role-a"}}
	if err := c.Validate(); err != ErrInvalidRoleSet {
		t.Fatalf("expected ErrInvalidRoleSet, got %v", err)
	}
}
