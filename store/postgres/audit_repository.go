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

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/trustgate/authz-core/audit"
)

// AuditRepository implements audit.Repository, serializing chain-head
// advancement per tenant with an advisory lock (spec.md §5, §4.9).
type AuditRepository struct {
	db *DB
}

// NewAuditRepository creates a new audit repository.
func NewAuditRepository(db *DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// Append reads the current chain head for entry.TenantID, computes
// PreviousHash/DerivedHash, writes the row, and advances the head, all
// inside one advisory-locked transaction so concurrent appends for the
// same tenant cannot interleave.
func (r *AuditRepository) Append(ctx context.Context, entry audit.Entry) (audit.Entry, error) {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}

	err := withAdvisoryLock(ctx, r.db.pool, entry.TenantID, "audit_chain", func(ctx context.Context, tx pgx.Tx) error {
		head, err := headInTx(ctx, tx, entry.TenantID)
		if err != nil {
			return err
		}

		if entry.RequestHash == "" {
			entry.RequestHash = audit.RequestHash(entry)
		}
		entry.PreviousHash = head
		entry.DerivedHash = audit.DerivedHash(head, audit.CanonicalRequest(entry))

		metadata, err := json.Marshal(entry.Metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal metadata: %w", err)
		}

		if err := ensureMonthPartition(ctx, tx, entry.CreatedAt); err != nil {
			return err
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO audit_entries (
				id, tenant_id, principal_id, action, resource_type, resource_id,
				decision, reason, metadata, request_hash, previous_hash, derived_hash, created_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		`, entry.ID, entry.TenantID, entry.PrincipalID, entry.Action, entry.ResourceType, entry.ResourceID,
			entry.Decision, entry.Reason, metadata, entry.RequestHash, entry.PreviousHash, entry.DerivedHash, entry.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to insert audit entry: %w", err)
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO audit_chain_heads (tenant_id, head_hash) VALUES ($1, $2)
			ON CONFLICT (tenant_id) DO UPDATE SET head_hash = EXCLUDED.head_hash
		`, entry.TenantID, entry.DerivedHash)
		if err != nil {
			return fmt.Errorf("failed to advance chain head: %w", err)
		}
		return nil
	})

	if err != nil {
		return audit.Entry{}, err
	}
	return entry, nil
}

func headInTx(ctx context.Context, tx pgx.Tx, tenantID string) (string, error) {
	var head string
	err := tx.QueryRow(ctx, `SELECT head_hash FROM audit_chain_heads WHERE tenant_id = $1`, tenantID).Scan(&head)
	if errors.Is(err, pgx.ErrNoRows) {
		return audit.SeedHash, nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read chain head: %w", err)
	}
	return head, nil
}

// ensureMonthPartition creates the month-scoped partition of
// audit_entries for ts if it does not already exist (spec.md §6:
// "Audit partitioning is auto-managed: on first write into a new
// month, the partition is created"). Append calls it inside its
// transaction before every insert, so each append issues a
// CREATE TABLE IF NOT EXISTS statement for the entry's month.
func ensureMonthPartition(ctx context.Context, tx pgx.Tx, ts time.Time) error {
	partition := fmt.Sprintf("audit_entries_%s", ts.Format("200601"))
	rangeStart := time.Date(ts.Year(), ts.Month(), 1, 0, 0, 0, 0, time.UTC)
	rangeEnd := rangeStart.AddDate(0, 1, 0)

	_, err := tx.Exec(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s PARTITION OF audit_entries
		FOR VALUES FROM ('%s') TO ('%s')
	`, partition, rangeStart.Format(time.RFC3339), rangeEnd.Format(time.RFC3339)))
	if err != nil {
		return fmt.Errorf("failed to create audit partition: %w", err)
	}
	return nil
}

// ChainHead returns the most recently written DerivedHash for
// tenantID, or audit.SeedHash if the tenant has no entries yet.
func (r *AuditRepository) ChainHead(ctx context.Context, tenantID string) (string, error) {
	var head string
	err := r.db.pool.QueryRow(ctx, `SELECT head_hash FROM audit_chain_heads WHERE tenant_id = $1`, tenantID).Scan(&head)
	if errors.Is(err, pgx.ErrNoRows) {
		return audit.SeedHash, nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read chain head: %w", err)
	}
	return head, nil
}

// List returns audit entries matching filter, ordered by creation
// time ascending so audit.VerifyChain can walk them in order.
func (r *AuditRepository) List(ctx context.Context, filter audit.Filter) ([]audit.Entry, int, error) {
	query := `
		SELECT id, tenant_id, principal_id, action, resource_type, resource_id,
		       decision, reason, metadata, request_hash, previous_hash, derived_hash, created_at
		FROM audit_entries WHERE tenant_id = $1
	`
	args := []any{filter.TenantID}

	if filter.PrincipalID != nil {
		args = append(args, *filter.PrincipalID)
		query += fmt.Sprintf(" AND principal_id = $%d", len(args))
	}
	if filter.StartDate != nil {
		args = append(args, *filter.StartDate)
		query += fmt.Sprintf(" AND created_at >= $%d", len(args))
	}
	if filter.EndDate != nil {
		args = append(args, *filter.EndDate)
		query += fmt.Sprintf(" AND created_at <= $%d", len(args))
	}
	query += " ORDER BY created_at ASC"

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	args = append(args, limit)
	query += fmt.Sprintf(" LIMIT $%d", len(args))
	args = append(args, filter.Offset)
	query += fmt.Sprintf(" OFFSET $%d", len(args))

	rows, err := r.db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list audit entries: %w", err)
	}
	defer rows.Close()

	var out []audit.Entry
	for rows.Next() {
		var e audit.Entry
		var metadata []byte
		if err := rows.Scan(&e.ID, &e.TenantID, &e.PrincipalID, &e.Action, &e.ResourceType, &e.ResourceID,
			&e.Decision, &e.Reason, &metadata, &e.RequestHash, &e.PreviousHash, &e.DerivedHash, &e.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		if err := json.Unmarshal(metadata, &e.Metadata); err != nil {
			return nil, 0, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
		out = append(out, e)
	}

	var total int
	if err := r.db.pool.QueryRow(ctx, `SELECT count(*) FROM audit_entries WHERE tenant_id = $1`, filter.TenantID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count audit entries: %w", err)
	}

	return out, total, rows.Err()
}
