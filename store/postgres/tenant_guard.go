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

	"github.com/trustgate/authz-core/store"
)

// requireRoleInTenant rejects roleID if it does not belong to
// tenantID, returning a store.CodeTenantMismatch error so the gateway
// never links a tenant's principal to another tenant's role.
func requireRoleInTenant(ctx context.Context, q querier, tenantID, roleID string) error {
	var exists bool
	if err := q.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM roles WHERE id = $1 AND tenant_id = $2)`, roleID, tenantID).Scan(&exists); err != nil {
		return fmt.Errorf("failed to verify role tenant: %w", err)
	}
	if !exists {
		return store.New(store.CodeTenantMismatch, fmt.Errorf("role %s does not belong to tenant %s", roleID, tenantID))
	}
	return nil
}

// requirePermissionInTenant rejects permissionID if it does not belong
// to tenantID, returning a store.CodeTenantMismatch error.
func requirePermissionInTenant(ctx context.Context, q querier, tenantID, permissionID string) error {
	var exists bool
	if err := q.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM permissions WHERE id = $1 AND tenant_id = $2)`, permissionID, tenantID).Scan(&exists); err != nil {
		return fmt.Errorf("failed to verify permission tenant: %w", err)
	}
	if !exists {
		return store.New(store.CodeTenantMismatch, fmt.Errorf("permission %s does not belong to tenant %s", permissionID, tenantID))
	}
	return nil
}
