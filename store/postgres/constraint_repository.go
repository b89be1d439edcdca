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
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/trustgate/authz-core/constraint"
)

// ConstraintRepository implements constraint.Repository.
type ConstraintRepository struct {
	db *DB
}

// NewConstraintRepository creates a new constraint repository.
func NewConstraintRepository(db *DB) *ConstraintRepository {
	return &ConstraintRepository{db: db}
}

// Create inserts a new role constraint.
func (r *ConstraintRepository) Create(ctx context.Context, tenantID string, c *constraint.RoleConstraint) error {
	if err := c.Validate(); err != nil {
		return err
	}
	_, err := r.db.pool.Exec(ctx, `
		INSERT INTO role_constraints (id, tenant_id, name, kind, role_ids, violation_action, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
	`, c.ID, tenantID, c.Name, string(c.Kind), c.RoleIDs, string(c.ViolationAction))
	if err != nil {
		return fmt.Errorf("failed to create constraint: %w", err)
	}
	return nil
}

// GetByID retrieves a constraint scoped to tenantID.
func (r *ConstraintRepository) GetByID(ctx context.Context, tenantID, id string) (*constraint.RoleConstraint, error) {
	return scanConstraint(ctx, r.db.pool, tenantID, id)
}

// Delete removes a constraint.
func (r *ConstraintRepository) Delete(ctx context.Context, tenantID, id string) error {
	result, err := r.db.pool.Exec(ctx, `DELETE FROM role_constraints WHERE tenant_id = $1 AND id = $2`, tenantID, id)
	if err != nil {
		return fmt.Errorf("failed to delete constraint: %w", err)
	}
	if result.RowsAffected() == 0 {
		return constraint.ErrConstraintNotFound
	}
	return nil
}

// ListActive returns every static_sod constraint for the tenant.
func (r *ConstraintRepository) ListActive(ctx context.Context, tenantID string) ([]*constraint.RoleConstraint, error) {
	return listConstraints(ctx, r.db.pool, tenantID)
}

// querier is satisfied by both *pgxpool.Pool and pgx.Tx, letting the
// scan helpers below run identically inside or outside a transaction.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func scanConstraint(ctx context.Context, q querier, tenantID, id string) (*constraint.RoleConstraint, error) {
	var c constraint.RoleConstraint
	var kind, action string
	err := q.QueryRow(ctx, `
		SELECT id, tenant_id, name, kind, role_ids, violation_action, created_at, updated_at
		FROM role_constraints WHERE tenant_id = $1 AND id = $2
	`, tenantID, id).Scan(&c.ID, &c.TenantID, &c.Name, &kind, &c.RoleIDs, &action, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, constraint.ErrConstraintNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get constraint: %w", err)
	}
	c.Kind = constraint.Kind(kind)
	c.ViolationAction = constraint.ViolationAction(action)
	return &c, nil
}

func listConstraints(ctx context.Context, q querier, tenantID string) ([]*constraint.RoleConstraint, error) {
	rows, err := q.Query(ctx, `
		SELECT id, tenant_id, name, kind, role_ids, violation_action, created_at, updated_at
		FROM role_constraints WHERE tenant_id = $1 AND kind = 'static_sod'
	`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list constraints: %w", err)
	}
	defer rows.Close()

	var out []*constraint.RoleConstraint
	for rows.Next() {
		var c constraint.RoleConstraint
		var kind, action string
		if err := rows.Scan(&c.ID, &c.TenantID, &c.Name, &kind, &c.RoleIDs, &action, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan constraint: %w", err)
		}
		c.Kind = constraint.Kind(kind)
		c.ViolationAction = constraint.ViolationAction(action)
		out = append(out, &c)
	}
	return out, rows.Err()
}

// txConstraintRepository adapts a pgx.Tx to constraint.Repository so
// AssignmentService.Grant can run the SoD check inside its own
// transaction rather than opening a second connection.
type txConstraintRepository struct {
	repo *ConstraintRepository
	tx   pgx.Tx
}

func (t txConstraintRepository) Create(ctx context.Context, tenantID string, c *constraint.RoleConstraint) error {
	return t.repo.Create(ctx, tenantID, c)
}

func (t txConstraintRepository) GetByID(ctx context.Context, tenantID, id string) (*constraint.RoleConstraint, error) {
	return scanConstraint(ctx, t.tx, tenantID, id)
}

func (t txConstraintRepository) Delete(ctx context.Context, tenantID, id string) error {
	return t.repo.Delete(ctx, tenantID, id)
}

func (t txConstraintRepository) ListActive(ctx context.Context, tenantID string) ([]*constraint.RoleConstraint, error) {
	return listConstraints(ctx, t.tx, tenantID)
}
