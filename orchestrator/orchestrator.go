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

// Package orchestrator implements the public evaluate() contract
// (C10): validate, cache lookup, RBAC, ABAC, policy, cache write,
// audit append, in that order, with strict short-circuit semantics.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/trustgate/authz-core/abac"
	"github.com/trustgate/authz-core/audit"
	"github.com/trustgate/authz-core/cache"
	"github.com/trustgate/authz-core/permission"
	"github.com/trustgate/authz-core/policy"
	"github.com/trustgate/authz-core/principal"
	"github.com/trustgate/authz-core/rbac"
)

// reasonInternalError is the fixed denial reason for fail-closed
// conversions, distinguishing internal faults from authoritative
// denials per spec.md §4.10.
const reasonInternalError = "Internal authorization error"

// DefaultCacheTTL is used for decision cache writes unless the
// orchestrator is configured with an override.
const DefaultCacheTTL = 5 * time.Minute

// Request is the public evaluate() input.
type Request struct {
	TenantID            string
	PrincipalID         string
	Action              string
	ResourceType        string
	ResourceID          string
	PrincipalAttributes principal.Attributes
	ResourceAttributes  principal.Attributes
	Context             principal.Attributes
}

// Response is the public evaluate() output.
type Response struct {
	Allowed          bool
	Reason           string
	Explanation      string
	PolicyEvaluated  string
	FailedConditions []string
	EvaluatedAt      time.Time
	CacheHit         bool
}

func (r Request) valid() string {
	switch {
	case r.TenantID == "":
		return "tenant_id"
	case r.PrincipalID == "":
		return "principal_id"
	case r.Action == "":
		return "action"
	case r.ResourceType == "":
		return "resource.type"
	case r.ResourceID == "":
		return "resource.id"
	default:
		return ""
	}
}

// Orchestrator wires the role closure resolver, RBAC/ABAC evaluators,
// policy engine, decision cache, and audit logger into the single
// public evaluate() operation (C10).
//
// Purpose: Top-level request handler for one authorization decision.
// Domain: Authz
type Orchestrator struct {
	resolver      *rbac.Resolver
	rbacEval      *rbac.Evaluator
	abacEval      *abac.Evaluator
	policyEngine  *policy.Engine
	cache         cache.Cache
	auditLogger   audit.Logger
	cacheTTL      time.Duration
	actionToPerms func(resourceType, action string) string
}

// Option configures an Orchestrator at construction time.
type Option func(*Orchestrator)

// WithCacheTTL overrides DefaultCacheTTL.
func WithCacheTTL(ttl time.Duration) Option {
	return func(o *Orchestrator) { o.cacheTTL = ttl }
}

// New constructs an Orchestrator. The RBAC stage checks for the
// permission named permission.Name(resourceType, action).
func New(resolver *rbac.Resolver, rbacEval *rbac.Evaluator, abacEval *abac.Evaluator, policyEngine *policy.Engine, c cache.Cache, auditLogger audit.Logger, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		resolver:      resolver,
		rbacEval:      rbacEval,
		abacEval:      abacEval,
		policyEngine:  policyEngine,
		cache:         c,
		auditLogger:   auditLogger,
		cacheTTL:      DefaultCacheTTL,
		actionToPerms: permission.Name,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Evaluate runs the full decision pipeline for req (C10).
func (o *Orchestrator) Evaluate(ctx context.Context, req Request) (Response, error) {
	if field := req.valid(); field != "" {
		return Response{
			Allowed:     false,
			Reason:      fmt.Sprintf("Invalid request: missing %s", field),
			EvaluatedAt: time.Now(),
		}, nil
	}

	key := cache.Key(req.TenantID, req.PrincipalID, req.Action, req.ResourceType, req.ResourceID)

	if cached, err := o.cache.Get(ctx, key); err == nil {
		return Response{
			Allowed:     cached.Allowed,
			Reason:      cached.Reason,
			PolicyEvaluated: cached.PolicyID,
			EvaluatedAt: time.Now(),
			CacheHit:    true,
		}, nil
	} else if !errors.Is(err, cache.ErrMiss) && !errors.Is(err, cache.ErrUnavailable) {
		return o.fail(ctx, req, fmt.Errorf("cache get: %w", err))
	}

	if ctx.Err() != nil {
		return Response{}, ctx.Err()
	}

	resp, evalErr := o.decide(ctx, req)
	if evalErr != nil {
		return o.fail(ctx, req, evalErr)
	}

	if ctx.Err() != nil {
		return Response{}, ctx.Err()
	}

	if putErr := o.cache.Put(ctx, key, cache.Decision{
		Allowed:     resp.Allowed,
		Reason:      resp.Reason,
		PolicyID:    resp.PolicyEvaluated,
		EvaluatedAt: resp.EvaluatedAt,
	}, o.cacheTTL); putErr != nil && !errors.Is(putErr, cache.ErrUnavailable) {
		slog.WarnContext(ctx, "orchestrator: cache write failed", "error", putErr)
	}

	o.appendAudit(ctx, req, resp)

	return resp, nil
}

// decide runs RBAC, then ABAC, then policy, implementing the
// short-circuit contract of spec.md §4.10 steps 3-5.
func (o *Orchestrator) decide(ctx context.Context, req Request) (Response, error) {
	now := time.Now()

	closure, err := o.resolver.Closure(ctx, req.TenantID, req.PrincipalID)
	if err != nil {
		return Response{}, fmt.Errorf("resolve closure: %w", err)
	}
	rolePerms, err := o.loadRolePermissions(ctx, req.TenantID, closure)
	if err != nil {
		return Response{}, err
	}

	permName := o.actionToPerms(req.ResourceType, req.Action)
	rbacResult := o.rbacEval.Evaluate(closure, rolePerms, permName)
	if !rbacResult.Allowed {
		return Response{Allowed: false, Reason: rbacResult.Reason, EvaluatedAt: now}, nil
	}

	abacResult := o.abacEval.Evaluate(abac.Request{
		PrincipalID:         req.PrincipalID,
		PrincipalAttributes: req.PrincipalAttributes,
		ResourceAttributes:  req.ResourceAttributes,
	})
	if !abacResult.Allowed {
		return Response{
			Allowed:          false,
			Reason:           "Attribute-based access control denied the request",
			FailedConditions: abacResult.FailedConditions,
			EvaluatedAt:      now,
		}, nil
	}

	decision, err := o.policyEngine.Evaluate(ctx, policy.Request{
		TenantID:            req.TenantID,
		PrincipalID:         req.PrincipalID,
		Action:              req.Action,
		ResourceType:        req.ResourceType,
		ResourceID:          req.ResourceID,
		PrincipalAttributes: req.PrincipalAttributes,
		ResourceAttributes:  req.ResourceAttributes,
		Context:             req.Context,
	})
	if err != nil {
		return Response{}, fmt.Errorf("policy evaluate: %w", err)
	}

	if !decision.Matched {
		// No rule matched: carry over the RBAC+ABAC allow unchanged
		// (spec.md §4.10 step 5, Open Question resolution: no-match is
		// neutral, not a denial).
		return Response{Allowed: true, Reason: rbacResult.Reason, EvaluatedAt: now}, nil
	}

	if decision.Effect == policy.EffectDeny {
		return Response{
			Allowed:         false,
			Reason:          decision.Reason,
			Explanation:     decision.Reason,
			PolicyEvaluated: decision.RuleID,
			EvaluatedAt:     now,
		}, nil
	}

	return Response{
		Allowed:         true,
		Reason:          decision.Reason,
		Explanation:     decision.Reason,
		PolicyEvaluated: decision.RuleID,
		EvaluatedAt:     now,
	}, nil
}

func (o *Orchestrator) loadRolePermissions(ctx context.Context, tenantID string, closure rbac.ClosureResult) (map[string][]string, error) {
	byRole, err := o.resolver.PermissionsByRole(ctx, tenantID, closure)
	if err != nil {
		return nil, fmt.Errorf("load permissions: %w", err)
	}
	return byRole, nil
}

// fail converts an evaluation-path error into the fixed fail-closed
// denial response, logging the underlying cause (spec.md §7).
func (o *Orchestrator) fail(ctx context.Context, req Request, cause error) (Response, error) {
	slog.ErrorContext(ctx, "orchestrator: evaluation failed, denying closed",
		"tenant_id", req.TenantID, "principal_id", req.PrincipalID, "error", cause)
	resp := Response{Allowed: false, Reason: reasonInternalError, EvaluatedAt: time.Now()}
	o.appendAudit(ctx, req, resp)
	return resp, nil
}

// appendAudit writes the audit entry for a completed evaluation.
// Failures are logged, not propagated: spec.md §4.10 step 7 states
// audit is best-effort with respect to the returned decision.
func (o *Orchestrator) appendAudit(ctx context.Context, req Request, resp Response) {
	if o.auditLogger == nil {
		return
	}
	decision := audit.DecisionDeny
	if resp.Allowed {
		decision = audit.DecisionAllow
	}
	entry := audit.Entry{
		TenantID:     req.TenantID,
		PrincipalID:  req.PrincipalID,
		Action:       req.Action,
		ResourceType: req.ResourceType,
		ResourceID:   req.ResourceID,
		Decision:     decision,
		Reason:       resp.Reason,
	}
	if err := o.auditLogger.Log(ctx, entry); err != nil {
		slog.ErrorContext(ctx, "orchestrator: audit append failed", "error", err)
	}
}
