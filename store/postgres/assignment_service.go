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

package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/trustgate/authz-core/assignment"
	"github.com/trustgate/authz-core/constraint"
)

// AssignmentService grants roles under the tenant+principal advisory
// lock required by spec.md §5 so two concurrent assignments can never
// jointly violate a Separation-of-Duties constraint.
//
// Purpose: Transactional boundary around role assignment + SoD check.
// Domain: Authz
type AssignmentService struct {
	db          *DB
	assignments *AssignmentRepository
	constraints *ConstraintRepository
}

// NewAssignmentService constructs an AssignmentService.
func NewAssignmentService(db *DB) *AssignmentService {
	return &AssignmentService{
		db:          db,
		assignments: NewAssignmentRepository(db),
		constraints: NewConstraintRepository(db),
	}
}

// Grant checks roleID against every active static_sod constraint
// given the principal's current live role set, then performs the
// grant, all inside one transaction holding the principal's advisory
// lock. On an ActionDeny violation, neither the check nor the grant
// has any visible effect and constraint.ErrConstraintViolation is
// returned with the violating constraints.
func (s *AssignmentService) Grant(ctx context.Context, tenantID string, a *assignment.PrincipalRole) ([]constraint.Violation, error) {
	var violations []constraint.Violation

	err := withAdvisoryLock(ctx, s.db.pool, tenantID, "principal:"+a.PrincipalID, func(ctx context.Context, tx pgx.Tx) error {
		if err := requireRoleInTenant(ctx, tx, tenantID, a.RoleID); err != nil {
			return err
		}

		closureIDs, err := s.assignments.closureRoleIDs(ctx, tx, tenantID, a.PrincipalID)
		if err != nil {
			return err
		}

		checker := constraint.NewChecker(txConstraintRepository{repo: s.constraints, tx: tx})
		v, mustDeny, err := checker.Check(ctx, tenantID, closureIDs, a.RoleID)
		if err != nil {
			return fmt.Errorf("sod check: %w", err)
		}
		violations = v
		if mustDeny {
			return constraint.ErrConstraintViolation
		}

		var grantedBy any = a.GrantedBy
		if a.GrantedBy == "" {
			grantedBy = nil
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO principal_roles (principal_id, role_id, granted_by, granted_at, expires_at, is_active)
			VALUES ($1, $2, $3, $4, $5, TRUE)
			ON CONFLICT (principal_id, role_id) DO UPDATE SET
				granted_by = EXCLUDED.granted_by, granted_at = EXCLUDED.granted_at,
				expires_at = EXCLUDED.expires_at, is_active = TRUE
		`, a.PrincipalID, a.RoleID, grantedBy, a.GrantedAt, a.ExpiresAt)
		if err != nil {
			return fmt.Errorf("failed to grant role: %w", err)
		}
		return nil
	})

	return violations, err
}
