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

	"github.com/jackc/pgx/v5"

	"github.com/trustgate/authz-core/policy"
)

// PolicyRepository implements policy.Repository.
type PolicyRepository struct {
	db *DB
}

// NewPolicyRepository creates a new policy repository.
func NewPolicyRepository(db *DB) *PolicyRepository {
	return &PolicyRepository{db: db}
}

// Create inserts a new policy after validating its rule set.
func (r *PolicyRepository) Create(ctx context.Context, tenantID string, p *policy.Policy) error {
	if err := p.Validate(); err != nil {
		return err
	}

	rules, err := json.Marshal(p.Rules)
	if err != nil {
		return fmt.Errorf("failed to marshal rules: %w", err)
	}

	_, err = r.db.pool.Exec(ctx, `
		INSERT INTO policies (id, tenant_id, name, version, priority, status, rules, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
	`, p.ID, tenantID, p.Name, p.Version, p.Priority, string(p.Status), rules)

	if isUniqueViolation(err) {
		return policy.ErrPolicyAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("failed to create policy: %w", err)
	}
	return nil
}

// GetByID retrieves a policy scoped to tenantID.
func (r *PolicyRepository) GetByID(ctx context.Context, tenantID, id string) (*policy.Policy, error) {
	var p policy.Policy
	var status string
	var rules []byte

	err := r.db.pool.QueryRow(ctx, `
		SELECT id, tenant_id, name, version, priority, status, rules, created_at, updated_at
		FROM policies WHERE tenant_id = $1 AND id = $2
	`, tenantID, id).Scan(&p.ID, &p.TenantID, &p.Name, &p.Version, &p.Priority, &status, &rules, &p.CreatedAt, &p.UpdatedAt)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, policy.ErrPolicyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get policy: %w", err)
	}
	p.Status = policy.Status(status)
	if err := json.Unmarshal(rules, &p.Rules); err != nil {
		return nil, fmt.Errorf("failed to unmarshal rules: %w", err)
	}
	return &p, nil
}

// Update validates and persists a policy's rule set and status.
func (r *PolicyRepository) Update(ctx context.Context, tenantID string, p *policy.Policy) error {
	if err := p.Validate(); err != nil {
		return err
	}

	rules, err := json.Marshal(p.Rules)
	if err != nil {
		return fmt.Errorf("failed to marshal rules: %w", err)
	}

	result, err := r.db.pool.Exec(ctx, `
		UPDATE policies SET priority = $3, status = $4, rules = $5, updated_at = NOW()
		WHERE tenant_id = $1 AND id = $2
	`, tenantID, p.ID, p.Priority, string(p.Status), rules)
	if err != nil {
		return fmt.Errorf("failed to update policy: %w", err)
	}
	if result.RowsAffected() == 0 {
		return policy.ErrPolicyNotFound
	}
	return nil
}

// Delete removes a policy.
func (r *PolicyRepository) Delete(ctx context.Context, tenantID, id string) error {
	result, err := r.db.pool.Exec(ctx, `DELETE FROM policies WHERE tenant_id = $1 AND id = $2`, tenantID, id)
	if err != nil {
		return fmt.Errorf("failed to delete policy: %w", err)
	}
	if result.RowsAffected() == 0 {
		return policy.ErrPolicyNotFound
	}
	return nil
}

// ListActive returns every policy with status = active for the tenant.
func (r *PolicyRepository) ListActive(ctx context.Context, tenantID string) ([]*policy.Policy, error) {
	rows, err := r.db.pool.Query(ctx, `
		SELECT id, tenant_id, name, version, priority, status, rules, created_at, updated_at
		FROM policies WHERE tenant_id = $1 AND status = 'active'
	`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list active policies: %w", err)
	}
	defer rows.Close()

	var out []*policy.Policy
	for rows.Next() {
		var p policy.Policy
		var status string
		var rules []byte
		if err := rows.Scan(&p.ID, &p.TenantID, &p.Name, &p.Version, &p.Priority, &status, &rules, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan policy: %w", err)
		}
		p.Status = policy.Status(status)
		if err := json.Unmarshal(rules, &p.Rules); err != nil {
			return nil, fmt.Errorf("failed to unmarshal rules: %w", err)
		}
		out = append(out, &p)
	}
	return out, rows.Err()
}
