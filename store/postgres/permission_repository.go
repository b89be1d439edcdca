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

	"github.com/trustgate/authz-core/permission"
)

// PermissionRepository implements permission.Repository.
type PermissionRepository struct {
	db *DB
}

// NewPermissionRepository creates a new permission repository.
func NewPermissionRepository(db *DB) *PermissionRepository {
	return &PermissionRepository{db: db}
}

// Create inserts a new permission.
func (r *PermissionRepository) Create(ctx context.Context, tenantID string, p *permission.Permission) error {
	_, err := r.db.pool.Exec(ctx, `
		INSERT INTO permissions (id, tenant_id, name, resource_type, action, description, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
	`, p.ID, tenantID, p.Name, p.ResourceType, p.Action, p.Description)

	if isUniqueViolation(err) {
		return permission.ErrPermissionAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("failed to create permission: %w", err)
	}
	return nil
}

// GetByID retrieves a permission scoped to tenantID.
func (r *PermissionRepository) GetByID(ctx context.Context, tenantID, id string) (*permission.Permission, error) {
	return r.scanOne(ctx, `
		SELECT id, tenant_id, name, resource_type, action, description, created_at, updated_at
		FROM permissions WHERE tenant_id = $1 AND id = $2
	`, tenantID, id)
}

// GetByName retrieves a permission by name scoped to tenantID.
func (r *PermissionRepository) GetByName(ctx context.Context, tenantID, name string) (*permission.Permission, error) {
	return r.scanOne(ctx, `
		SELECT id, tenant_id, name, resource_type, action, description, created_at, updated_at
		FROM permissions WHERE tenant_id = $1 AND name = $2
	`, tenantID, name)
}

func (r *PermissionRepository) scanOne(ctx context.Context, query, tenantID, key string) (*permission.Permission, error) {
	var p permission.Permission
	err := r.db.pool.QueryRow(ctx, query, tenantID, key).Scan(
		&p.ID, &p.TenantID, &p.Name, &p.ResourceType, &p.Action, &p.Description, &p.CreatedAt, &p.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, permission.ErrPermissionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get permission: %w", err)
	}
	return &p, nil
}

// Delete removes a permission.
func (r *PermissionRepository) Delete(ctx context.Context, tenantID, id string) error {
	result, err := r.db.pool.Exec(ctx, `DELETE FROM permissions WHERE tenant_id = $1 AND id = $2`, tenantID, id)
	if err != nil {
		return fmt.Errorf("failed to delete permission: %w", err)
	}
	if result.RowsAffected() == 0 {
		return permission.ErrPermissionNotFound
	}
	return nil
}

// List returns every permission for a tenant.
func (r *PermissionRepository) List(ctx context.Context, tenantID string) ([]*permission.Permission, error) {
	rows, err := r.db.pool.Query(ctx, `
		SELECT id, tenant_id, name, resource_type, action, description, created_at, updated_at
		FROM permissions WHERE tenant_id = $1 ORDER BY name ASC
	`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list permissions: %w", err)
	}
	defer rows.Close()

	var out []*permission.Permission
	for rows.Next() {
		var p permission.Permission
		if err := rows.Scan(&p.ID, &p.TenantID, &p.Name, &p.ResourceType, &p.Action, &p.Description, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan permission: %w", err)
		}
		out = append(out, &p)
	}
	return out, rows.Err()
}

// GrantToRole associates a permission with a role.
func (r *PermissionRepository) GrantToRole(ctx context.Context, tenantID, roleID, permissionID string) error {
	if err := requireRoleInTenant(ctx, r.db.pool, tenantID, roleID); err != nil {
		return err
	}
	if err := requirePermissionInTenant(ctx, r.db.pool, tenantID, permissionID); err != nil {
		return err
	}

	_, err := r.db.pool.Exec(ctx, `
		INSERT INTO role_permissions (role_id, permission_id) VALUES ($1, $2)
		ON CONFLICT DO NOTHING
	`, roleID, permissionID)
	if err != nil {
		return fmt.Errorf("failed to grant permission to role: %w", err)
	}
	return nil
}

// RevokeFromRole removes a permission from a role.
func (r *PermissionRepository) RevokeFromRole(ctx context.Context, tenantID, roleID, permissionID string) error {
	if err := requireRoleInTenant(ctx, r.db.pool, tenantID, roleID); err != nil {
		return err
	}
	if err := requirePermissionInTenant(ctx, r.db.pool, tenantID, permissionID); err != nil {
		return err
	}

	_, err := r.db.pool.Exec(ctx, `
		DELETE FROM role_permissions WHERE role_id = $1 AND permission_id = $2
	`, roleID, permissionID)
	if err != nil {
		return fmt.Errorf("failed to revoke permission from role: %w", err)
	}
	return nil
}

// ListForRole returns every permission directly attached to roleID.
func (r *PermissionRepository) ListForRole(ctx context.Context, tenantID, roleID string) ([]*permission.Permission, error) {
	rows, err := r.db.pool.Query(ctx, `
		SELECT p.id, p.tenant_id, p.name, p.resource_type, p.action, p.description, p.created_at, p.updated_at
		FROM permissions p
		JOIN role_permissions rp ON rp.permission_id = p.id
		WHERE p.tenant_id = $1 AND rp.role_id = $2
	`, tenantID, roleID)
	if err != nil {
		return nil, fmt.Errorf("failed to list permissions for role: %w", err)
	}
	defer rows.Close()

	var out []*permission.Permission
	for rows.Next() {
		var p permission.Permission
		if err := rows.Scan(&p.ID, &p.TenantID, &p.Name, &p.ResourceType, &p.Action, &p.Description, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan permission: %w", err)
		}
		out = append(out, &p)
	}
	return out, rows.Err()
}
