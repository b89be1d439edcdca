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
)

// AssignmentRepository implements assignment.Repository.
type AssignmentRepository struct {
	db *DB
}

// NewAssignmentRepository creates a new assignment repository.
func NewAssignmentRepository(db *DB) *AssignmentRepository {
	return &AssignmentRepository{db: db}
}

// Grant assigns a role to a principal.
func (r *AssignmentRepository) Grant(ctx context.Context, tenantID string, a *assignment.PrincipalRole) error {
	if err := requireRoleInTenant(ctx, r.db.pool, tenantID, a.RoleID); err != nil {
		return err
	}

	var grantedBy any = a.GrantedBy
	if a.GrantedBy == "" {
		grantedBy = nil
	}

	_, err := r.db.pool.Exec(ctx, `
		INSERT INTO principal_roles (principal_id, role_id, granted_by, granted_at, expires_at, is_active)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (principal_id, role_id) DO UPDATE SET
			granted_by = EXCLUDED.granted_by,
			granted_at = EXCLUDED.granted_at,
			expires_at = EXCLUDED.expires_at,
			is_active = TRUE
	`, a.PrincipalID, a.RoleID, grantedBy, a.GrantedAt, a.ExpiresAt, true)

	if err != nil {
		return fmt.Errorf("failed to grant role: %w", err)
	}
	return nil
}

// Revoke deactivates a principal's role assignment.
func (r *AssignmentRepository) Revoke(ctx context.Context, tenantID, principalID, roleID string) error {
	if err := requireRoleInTenant(ctx, r.db.pool, tenantID, roleID); err != nil {
		return err
	}

	result, err := r.db.pool.Exec(ctx, `
		UPDATE principal_roles SET is_active = FALSE
		WHERE principal_id = $1 AND role_id = $2
	`, principalID, roleID)
	if err != nil {
		return fmt.Errorf("failed to revoke role: %w", err)
	}
	if result.RowsAffected() == 0 {
		return assignment.ErrAssignmentNotFound
	}
	return nil
}

// ListForPrincipal returns every assignment held directly by a
// principal, live or not; callers filter with PrincipalRole.Live.
func (r *AssignmentRepository) ListForPrincipal(ctx context.Context, tenantID, principalID string) ([]*assignment.PrincipalRole, error) {
	rows, err := r.db.pool.Query(ctx, `
		SELECT pr.principal_id, pr.role_id, COALESCE(pr.granted_by::text, ''), pr.granted_at, pr.expires_at, pr.is_active
		FROM principal_roles pr
		JOIN roles ro ON ro.id = pr.role_id
		WHERE ro.tenant_id = $1 AND pr.principal_id = $2
	`, tenantID, principalID)
	if err != nil {
		return nil, fmt.Errorf("failed to list assignments: %w", err)
	}
	defer rows.Close()

	var out []*assignment.PrincipalRole
	for rows.Next() {
		var a assignment.PrincipalRole
		if err := rows.Scan(&a.PrincipalID, &a.RoleID, &a.GrantedBy, &a.GrantedAt, &a.ExpiresAt, &a.IsActive); err != nil {
			return nil, fmt.Errorf("failed to scan assignment: %w", err)
		}
		out = append(out, &a)
	}
	return out, rows.Err()
}

// ListHoldersOfRole returns the principal ids with a live direct
// assignment to roleID.
func (r *AssignmentRepository) ListHoldersOfRole(ctx context.Context, tenantID, roleID string) ([]string, error) {
	rows, err := r.db.pool.Query(ctx, `
		SELECT pr.principal_id FROM principal_roles pr
		JOIN roles ro ON ro.id = pr.role_id
		WHERE ro.tenant_id = $1 AND pr.role_id = $2 AND pr.is_active
		  AND (pr.expires_at IS NULL OR pr.expires_at > NOW())
	`, tenantID, roleID)
	if err != nil {
		return nil, fmt.Errorf("failed to list role holders: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan principal id: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// closureRoleIDs returns the set of role ids currently active and
// live for principalID, used by GrantWithConstraintCheck to build the
// candidate set handed to the SoD checker without re-running the full
// rbac.Resolver (which would need to be supplied here, inverting the
// dependency graph).
func (r *AssignmentRepository) closureRoleIDs(ctx context.Context, tx pgx.Tx, tenantID, principalID string) (map[string]struct{}, error) {
	rows, err := tx.Query(ctx, `
		SELECT pr.role_id FROM principal_roles pr
		JOIN roles ro ON ro.id = pr.role_id
		WHERE ro.tenant_id = $1 AND pr.principal_id = $2 AND pr.is_active
		  AND (pr.expires_at IS NULL OR pr.expires_at > NOW())
	`, tenantID, principalID)
	if err != nil {
		return nil, fmt.Errorf("failed to list current roles: %w", err)
	}
	defer rows.Close()

	out := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan role id: %w", err)
		}
		out[id] = struct{}{}
	}
	return out, rows.Err()
}
