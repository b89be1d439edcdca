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

// Package audit implements the tamper-evident decision log (C9): every
// evaluated request is hashed and chained to the previous entry so a
// deleted or edited record breaks the chain.
package audit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"sort"
	"strings"
	"time"
)

// SeedHash is the literal previous_hash value chained from by the
// first entry ever written for a tenant.
const SeedHash = "initial"

// Standard audit attribute keys, matched to the fields logged via
// slog so log aggregation queries stay stable across releases.
const (
	AttrAuditType   = "audit_type"
	AttrTenantID    = "tenant_id"
	AttrPrincipalID = "principal_id"
	AttrAction      = "action"
	AttrResource    = "resource"
	AttrDecision    = "decision"
	AttrComponent   = "component"
	AttrMetadata    = "metadata"
)

// Decision record
const (
	DecisionAllow = "allow"
	DecisionDeny  = "deny"
)

// Entry is a single hash-chained audit record for one evaluated
// authorization request.
//
// Purpose: Canonical, tamper-evident record of one decision.
// Domain: Audit
// Invariants: RequestHash is the SHA-256 of the canonical JSON
// encoding of {tenant_id, principal_id, action, resource:{type, id}}.
// DerivedHash is SHA-256("audit-log:" || PreviousHash || ":" ||
// canonical request encoding). The first entry in a tenant's chain has
// PreviousHash == SeedHash.
type Entry struct {
	ID           string         `json:"id"`
	TenantID     string         `json:"tenant_id"`
	PrincipalID  string         `json:"principal_id"`
	Action       string         `json:"action"`
	ResourceType string         `json:"resource_type"`
	ResourceID   string         `json:"resource_id"`
	Decision     string         `json:"decision"`
	Reason       string         `json:"reason"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	RequestHash  string         `json:"request_hash"`
	PreviousHash string         `json:"previous_hash"`
	DerivedHash  string         `json:"derived_hash"`
	CreatedAt    time.Time      `json:"created_at"`
}

// requestFields is the subset of Entry that feeds RequestHash and the
// hash chain, fixed to exactly {tenant_id, principal_id, action,
// resource:{type, id}}.
type requestFields struct {
	TenantID    string         `json:"tenant_id"`
	PrincipalID string         `json:"principal_id"`
	Action      string         `json:"action"`
	Resource    resourceFields `json:"resource"`
}

type resourceFields struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

// CanonicalRequest returns the canonical JSON encoding of entry's
// fixed request field set, the value both RequestHash and DerivedHash
// chain from.
func CanonicalRequest(e Entry) string {
	return canonicalJSON(requestFields{
		TenantID:    e.TenantID,
		PrincipalID: e.PrincipalID,
		Action:      e.Action,
		Resource:    resourceFields{Type: e.ResourceType, ID: e.ResourceID},
	})
}

// RequestHash computes the SHA-256 hash of the canonical JSON encoding
// of an entry's request fields.
func RequestHash(e Entry) string {
	sum := sha256.Sum256([]byte(CanonicalRequest(e)))
	return hex.EncodeToString(sum[:])
}

// DerivedHash computes the chained hash linking previousHash to
// canonicalRequest: SHA-256("audit-log:" || previousHash || ":" ||
// canonicalRequest).
func DerivedHash(previousHash, canonicalRequest string) string {
	sum := sha256.Sum256([]byte("audit-log:" + previousHash + ":" + canonicalRequest))
	return hex.EncodeToString(sum[:])
}

// canonicalJSON marshals v to JSON with map keys sorted and no
// insignificant whitespace, so semantically identical values always
// hash identically regardless of field iteration order.
func canonicalJSON(v any) string {
	raw, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return string(raw)
	}
	var b strings.Builder
	writeCanonical(&b, generic)
	return b.String()
}

func writeCanonical(b *strings.Builder, v any) {
	switch val := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				b.WriteByte(',')
			}
			keyBytes, _ := json.Marshal(k)
			b.Write(keyBytes)
			b.WriteByte(':')
			writeCanonical(b, val[k])
		}
		b.WriteByte('}')
	case []any:
		b.WriteByte('[')
		for i, item := range val {
			if i > 0 {
				b.WriteByte(',')
			}
			writeCanonical(b, item)
		}
		b.WriteByte(']')
	default:
		out, _ := json.Marshal(val)
		b.Write(out)
	}
}

// Logger defines the interface for emitting audit entries.
//
// Purpose: Abstraction over where audit entries end up.
// Domain: Audit
type Logger interface {
	Log(ctx context.Context, entry Entry) error
}

// Filter defines criteria for listing audit entries.
type Filter struct {
	TenantID    string
	PrincipalID *string
	StartDate   *time.Time
	EndDate     *time.Time
	Limit       int
	Offset      int
}

// Repository defines persistence and chain-head tracking for audit
// entries (C9, C1).
//
// Purpose: Append-only storage with per-tenant chain continuity.
// Domain: Audit
type Repository interface {
	// Append writes entry and returns it with RequestHash, PreviousHash,
	// and DerivedHash populated. Implementations must serialize
	// concurrent appends for the same tenant (spec.md §4.9: "the chain
	// head read and the entry write happen atomically").
	Append(ctx context.Context, entry Entry) (Entry, error)
	// ChainHead returns the DerivedHash of the most recently appended
	// entry for tenantID, or SeedHash if none exists.
	ChainHead(ctx context.Context, tenantID string) (string, error)
	List(ctx context.Context, filter Filter) ([]Entry, int, error)
}

// SlogLogger implements Logger using structured logging only, useful
// when audit persistence is not required (e.g. local development).
type SlogLogger struct{}

// NewSlogLogger constructs a SlogLogger.
func NewSlogLogger() *SlogLogger {
	return &SlogLogger{}
}

// Log emits entry at INFO level via slog.
func (l *SlogLogger) Log(ctx context.Context, entry Entry) error {
	logEntry(ctx, entry)
	return nil
}

// RepositoryLogger persists entries through a Repository, computing
// the hash chain, and mirrors every entry to slog.
//
// Purpose: Default production audit logger (C9).
// Domain: Audit
type RepositoryLogger struct {
	repo Repository
}

// NewRepositoryLogger constructs a RepositoryLogger over repo.
func NewRepositoryLogger(repo Repository) *RepositoryLogger {
	return &RepositoryLogger{repo: repo}
}

// Log computes entry's request hash, appends it through the
// repository (which links it to the current chain head), and mirrors
// the result to slog. Persistence errors are returned rather than
// swallowed; the orchestrator logs a failed audit append and returns
// its decision unchanged.
func (l *RepositoryLogger) Log(ctx context.Context, entry Entry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	entry.RequestHash = RequestHash(entry)

	stored, err := l.repo.Append(ctx, entry)
	if err != nil {
		return err
	}
	logEntry(ctx, stored)
	return nil
}

func logEntry(ctx context.Context, entry Entry) {
	attrs := []any{
		slog.String(AttrTenantID, entry.TenantID),
		slog.String(AttrPrincipalID, entry.PrincipalID),
		slog.String(AttrAction, entry.Action),
		slog.String(AttrResource, entry.ResourceType+":"+entry.ResourceID),
		slog.String(AttrDecision, entry.Decision),
		slog.String("request_hash", entry.RequestHash),
		slog.String("derived_hash", entry.DerivedHash),
	}
	if len(entry.Metadata) > 0 {
		group := make([]any, 0, len(entry.Metadata)*2)
		for k, v := range entry.Metadata {
			if isSecret(k) {
				v = "[REDACTED]"
			}
			group = append(group, slog.Any(k, v))
		}
		attrs = append(attrs, slog.Group(AttrMetadata, group...))
	}
	slog.InfoContext(ctx, "AUDIT_DECISION", append(attrs, slog.String(AttrComponent, "audit"))...)
}

// isSecret reports whether key likely names a sensitive value that
// must be redacted before logging.
func isSecret(key string) bool {
	k := strings.ToLower(key)
	secrets := []string{"password", "secret", "token", "key", "authorization", "hash", "credential", "private", "api_key"}
	for _, s := range secrets {
		if strings.Contains(k, s) {
			return true
		}
	}
	return false
}

// VerifyChain walks entries in order and confirms each one's
// RequestHash and DerivedHash are internally consistent and correctly
// linked to its predecessor, starting from SeedHash. It returns the
// index of the first broken entry, or -1 if the chain is intact.
func VerifyChain(entries []Entry) int {
	previous := SeedHash
	for i, e := range entries {
		if RequestHash(e) != e.RequestHash {
			return i
		}
		if DerivedHash(previous, CanonicalRequest(e)) != e.DerivedHash {
			return i
		}
		previous = e.DerivedHash
	}
	return -1
}
