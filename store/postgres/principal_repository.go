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
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/trustgate/authz-core/principal"
)

// PrincipalRepository implements principal.Repository.
type PrincipalRepository struct {
	db *DB
}

// NewPrincipalRepository creates a new principal repository.
func NewPrincipalRepository(db *DB) *PrincipalRepository {
	return &PrincipalRepository{db: db}
}

// Create inserts a new principal.
func (r *PrincipalRepository) Create(ctx context.Context, tenantID string, p *principal.Principal) error {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
	p.UpdatedAt = p.CreatedAt

	attrs, err := json.Marshal(p.Attributes)
	if err != nil {
		return fmt.Errorf("failed to marshal attributes: %w", err)
	}

	_, err = r.db.pool.Exec(ctx, `
		INSERT INTO principals (id, tenant_id, email, display_name, kind, status, attributes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, p.ID, tenantID, p.Email, p.DisplayName, string(p.Kind), string(p.Status), attrs, p.CreatedAt, p.UpdatedAt)

	if isUniqueViolation(err) {
		return principal.ErrPrincipalAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("failed to create principal: %w", err)
	}
	return nil
}

// GetByID retrieves a principal scoped to tenantID.
func (r *PrincipalRepository) GetByID(ctx context.Context, tenantID, id string) (*principal.Principal, error) {
	return r.scanOne(ctx, `
		SELECT id, tenant_id, email, display_name, kind, status, attributes, created_at, updated_at
		FROM principals WHERE tenant_id = $1 AND id = $2
	`, tenantID, id)
}

// GetByEmail retrieves a principal by email scoped to tenantID.
func (r *PrincipalRepository) GetByEmail(ctx context.Context, tenantID, email string) (*principal.Principal, error) {
	return r.scanOne(ctx, `
		SELECT id, tenant_id, email, display_name, kind, status, attributes, created_at, updated_at
		FROM principals WHERE tenant_id = $1 AND email = $2
	`, tenantID, email)
}

func (r *PrincipalRepository) scanOne(ctx context.Context, query, tenantID, key string) (*principal.Principal, error) {
	var p principal.Principal
	var kind, status string
	var attrs []byte

	err := r.db.pool.QueryRow(ctx, query, tenantID, key).Scan(
		&p.ID, &p.TenantID, &p.Email, &p.DisplayName, &kind, &status, &attrs, &p.CreatedAt, &p.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, principal.ErrPrincipalNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get principal: %w", err)
	}

	p.Kind = principal.Kind(kind)
	p.Status = principal.Status(status)
	if err := json.Unmarshal(attrs, &p.Attributes); err != nil {
		return nil, fmt.Errorf("failed to unmarshal attributes: %w", err)
	}
	return &p, nil
}

// Update updates a principal's mutable fields.
func (r *PrincipalRepository) Update(ctx context.Context, tenantID string, p *principal.Principal) error {
	p.UpdatedAt = time.Now()
	attrs, err := json.Marshal(p.Attributes)
	if err != nil {
		return fmt.Errorf("failed to marshal attributes: %w", err)
	}

	result, err := r.db.pool.Exec(ctx, `
		UPDATE principals SET display_name = $3, status = $4, attributes = $5, updated_at = $6
		WHERE tenant_id = $1 AND id = $2
	`, tenantID, p.ID, p.DisplayName, string(p.Status), attrs, p.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to update principal: %w", err)
	}
	if result.RowsAffected() == 0 {
		return principal.ErrPrincipalNotFound
	}
	return nil
}

// Delete removes a principal.
func (r *PrincipalRepository) Delete(ctx context.Context, tenantID, id string) error {
	result, err := r.db.pool.Exec(ctx, `DELETE FROM principals WHERE tenant_id = $1 AND id = $2`, tenantID, id)
	if err != nil {
		return fmt.Errorf("failed to delete principal: %w", err)
	}
	if result.RowsAffected() == 0 {
		return principal.ErrPrincipalNotFound
	}
	return nil
}

// List returns principals for a tenant ordered by creation time.
func (r *PrincipalRepository) List(ctx context.Context, tenantID string, limit, offset int) ([]*principal.Principal, error) {
	rows, err := r.db.pool.Query(ctx, `
		SELECT id, tenant_id, email, display_name, kind, status, attributes, created_at, updated_at
		FROM principals WHERE tenant_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3
	`, tenantID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list principals: %w", err)
	}
	defer rows.Close()

	var out []*principal.Principal
	for rows.Next() {
		var p principal.Principal
		var kind, status string
		var attrs []byte
		if err := rows.Scan(&p.ID, &p.TenantID, &p.Email, &p.DisplayName, &kind, &status, &attrs, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan principal: %w", err)
		}
		p.Kind = principal.Kind(kind)
		p.Status = principal.Status(status)
		if err := json.Unmarshal(attrs, &p.Attributes); err != nil {
			return nil, fmt.Errorf("failed to unmarshal attributes: %w", err)
		}
		out = append(out, &p)
	}
	return out, rows.Err()
}
