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

	"github.com/trustgate/authz-core/role"
)

// RoleRepository implements role.Repository.
type RoleRepository struct {
	db *DB
}

// NewRoleRepository creates a new role repository.
func NewRoleRepository(db *DB) *RoleRepository {
	return &RoleRepository{db: db}
}

// Create inserts a new role. Level is computed from the parent's
// level, if any.
func (r *RoleRepository) Create(ctx context.Context, tenantID string, ro *role.Role) error {
	level := 0
	if ro.ParentRoleID != nil {
		parent, err := r.GetByID(ctx, tenantID, *ro.ParentRoleID)
		if err != nil {
			return err
		}
		level = parent.Level + 1
	}
	ro.Level = level

	_, err := r.db.pool.Exec(ctx, `
		INSERT INTO roles (id, tenant_id, name, description, parent_role_id, level, is_system, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW())
	`, ro.ID, tenantID, ro.Name, ro.Description, ro.ParentRoleID, ro.Level, ro.IsSystem, ro.IsActive)

	if isUniqueViolation(err) {
		return role.ErrRoleAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("failed to create role: %w", err)
	}
	return nil
}

// GetByID retrieves a role scoped to tenantID.
func (r *RoleRepository) GetByID(ctx context.Context, tenantID, id string) (*role.Role, error) {
	return r.scanOne(ctx, `
		SELECT id, tenant_id, name, description, parent_role_id, level, is_system, is_active, created_at, updated_at
		FROM roles WHERE tenant_id = $1 AND id = $2
	`, tenantID, id)
}

// GetByName retrieves a role by name scoped to tenantID.
func (r *RoleRepository) GetByName(ctx context.Context, tenantID, name string) (*role.Role, error) {
	return r.scanOne(ctx, `
		SELECT id, tenant_id, name, description, parent_role_id, level, is_system, is_active, created_at, updated_at
		FROM roles WHERE tenant_id = $1 AND name = $2
	`, tenantID, name)
}

func (r *RoleRepository) scanOne(ctx context.Context, query, tenantID, key string) (*role.Role, error) {
	var ro role.Role
	err := r.db.pool.QueryRow(ctx, query, tenantID, key).Scan(
		&ro.ID, &ro.TenantID, &ro.Name, &ro.Description, &ro.ParentRoleID, &ro.Level, &ro.IsSystem, &ro.IsActive, &ro.CreatedAt, &ro.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, role.ErrRoleNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get role: %w", err)
	}
	return &ro, nil
}

// Reparent changes roleID's parent edge, rejecting the change if
// newParentID is roleID itself or a descendant of roleID (which would
// create a cycle), then recomputes Level for roleID and every
// descendant.
func (r *RoleRepository) Reparent(ctx context.Context, tenantID, roleID string, newParentID *string) error {
	return withAdvisoryLock(ctx, r.db.pool, tenantID, "role:"+roleID, func(ctx context.Context, tx pgx.Tx) error {
		if newParentID != nil {
			if *newParentID == roleID {
				return role.ErrCycleWouldBeCreated
			}
			descendants, err := r.descendantIDs(ctx, tx, tenantID, roleID)
			if err != nil {
				return err
			}
			if _, ok := descendants[*newParentID]; ok {
				return role.ErrCycleWouldBeCreated
			}

			var parentTenant string
			var parentLevel int
			err = tx.QueryRow(ctx, `SELECT tenant_id, level FROM roles WHERE id = $1`, *newParentID).Scan(&parentTenant, &parentLevel)
			if errors.Is(err, pgx.ErrNoRows) {
				return role.ErrRoleNotFound
			}
			if err != nil {
				return fmt.Errorf("failed to look up new parent: %w", err)
			}
			if parentTenant != tenantID {
				return role.ErrCrossTenantParent
			}
		}

		result, err := tx.Exec(ctx, `
			UPDATE roles SET parent_role_id = $3, updated_at = NOW() WHERE tenant_id = $1 AND id = $2
		`, tenantID, roleID, newParentID)
		if err != nil {
			return fmt.Errorf("failed to reparent role: %w", err)
		}
		if result.RowsAffected() == 0 {
			return role.ErrRoleNotFound
		}

		return r.recomputeLevels(ctx, tx, tenantID, roleID, 0)
	})
}

// descendantIDs returns the set of role ids reachable from roleID by
// following child edges, used to reject a reparent that would
// introduce a cycle.
func (r *RoleRepository) descendantIDs(ctx context.Context, tx pgx.Tx, tenantID, roleID string) (map[string]struct{}, error) {
	out := map[string]struct{}{roleID: {}}
	frontier := []string{roleID}

	for depth := 0; len(frontier) > 0 && depth < role.MaxClosureDepth; depth++ {
		rows, err := tx.Query(ctx, `SELECT id FROM roles WHERE tenant_id = $1 AND parent_role_id = ANY($2)`, tenantID, frontier)
		if err != nil {
			return nil, fmt.Errorf("failed to walk descendants: %w", err)
		}
		var next []string
		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return nil, fmt.Errorf("failed to scan descendant: %w", err)
			}
			if _, seen := out[id]; !seen {
				out[id] = struct{}{}
				next = append(next, id)
			}
		}
		rows.Close()
		frontier = next
	}
	return out, nil
}

// recomputeLevels recursively sets Level = parent level + 1 starting
// at roleID (the new root of this subtree), propagating to every
// descendant.
func (r *RoleRepository) recomputeLevels(ctx context.Context, tx pgx.Tx, tenantID, roleID string, depth int) error {
	if depth > role.MaxClosureDepth {
		return role.ErrDepthLimitReached
	}

	var level int
	var parentID *string
	if err := tx.QueryRow(ctx, `SELECT level, parent_role_id FROM roles WHERE id = $1`, roleID).Scan(&level, &parentID); err != nil {
		return fmt.Errorf("failed to read role level: %w", err)
	}

	newLevel := 0
	if parentID != nil {
		var parentLevel int
		if err := tx.QueryRow(ctx, `SELECT level FROM roles WHERE id = $1`, *parentID).Scan(&parentLevel); err != nil {
			return fmt.Errorf("failed to read parent level: %w", err)
		}
		newLevel = parentLevel + 1
	}

	if _, err := tx.Exec(ctx, `UPDATE roles SET level = $2 WHERE id = $1`, roleID, newLevel); err != nil {
		return fmt.Errorf("failed to update level: %w", err)
	}

	rows, err := tx.Query(ctx, `SELECT id FROM roles WHERE tenant_id = $1 AND parent_role_id = $2`, tenantID, roleID)
	if err != nil {
		return fmt.Errorf("failed to list children: %w", err)
	}
	var children []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan child: %w", err)
		}
		children = append(children, id)
	}
	rows.Close()

	for _, child := range children {
		if err := r.recomputeLevels(ctx, tx, tenantID, child, depth+1); err != nil {
			return err
		}
	}
	return nil
}

// Delete removes a role.
func (r *RoleRepository) Delete(ctx context.Context, tenantID, id string) error {
	result, err := r.db.pool.Exec(ctx, `DELETE FROM roles WHERE tenant_id = $1 AND id = $2`, tenantID, id)
	if err != nil {
		return fmt.Errorf("failed to delete role: %w", err)
	}
	if result.RowsAffected() == 0 {
		return role.ErrRoleNotFound
	}
	return nil
}

// List returns every role for a tenant.
func (r *RoleRepository) List(ctx context.Context, tenantID string) ([]*role.Role, error) {
	rows, err := r.db.pool.Query(ctx, `
		SELECT id, tenant_id, name, description, parent_role_id, level, is_system, is_active, created_at, updated_at
		FROM roles WHERE tenant_id = $1 ORDER BY level ASC, name ASC
	`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list roles: %w", err)
	}
	defer rows.Close()

	var out []*role.Role
	for rows.Next() {
		var ro role.Role
		if err := rows.Scan(&ro.ID, &ro.TenantID, &ro.Name, &ro.Description, &ro.ParentRoleID, &ro.Level, &ro.IsSystem, &ro.IsActive, &ro.CreatedAt, &ro.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan role: %w", err)
		}
		out = append(out, &ro)
	}
	return out, rows.Err()
}

// Children returns the roles directly parented by roleID.
func (r *RoleRepository) Children(ctx context.Context, tenantID, roleID string) ([]*role.Role, error) {
	rows, err := r.db.pool.Query(ctx, `
		SELECT id, tenant_id, name, description, parent_role_id, level, is_system, is_active, created_at, updated_at
		FROM roles WHERE tenant_id = $1 AND parent_role_id = $2 ORDER BY name ASC
	`, tenantID, roleID)
	if err != nil {
		return nil, fmt.Errorf("failed to list children: %w", err)
	}
	defer rows.Close()

	var out []*role.Role
	for rows.Next() {
		var ro role.Role
		if err := rows.Scan(&ro.ID, &ro.TenantID, &ro.Name, &ro.Description, &ro.ParentRoleID, &ro.Level, &ro.IsSystem, &ro.IsActive, &ro.CreatedAt, &ro.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan role: %w", err)
		}
		out = append(out, &ro)
	}
	return out, rows.Err()
}
