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

// Package policy implements the JSON policy language (C5): policies
// made of priority-ordered rules, each guarded by a recursive
// condition tree of leaf attribute predicates and and/or/not groups.
package policy

import (
	"context"
	"errors"
	"time"
)

// Domain errors
var (
	ErrPolicyNotFound      = errors.New("policy not found")
	ErrPolicyAlreadyExists = errors.New("policy already exists")
	ErrPolicyMalformed     = errors.New("policy failed validation")
)

// Status controls whether a policy participates in evaluation.
type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
	StatusDraft    Status = "draft"
)

// Effect is the outcome a matching rule produces.
type Effect string

const (
	EffectAllow Effect = "allow"
	EffectDeny  Effect = "deny"
)

// Operator enumerates the leaf comparison operators and the group
// boolean operators. Leaf and group operators are disjoint sets but
// share a type for simplicity of the Condition tagged union.
type Operator string

const (
	OpEquals      Operator = "="
	OpNotEquals   Operator = "!="
	OpLessThan    Operator = "<"
	OpGreaterThan Operator = ">"
	OpLessEq      Operator = "<="
	OpGreaterEq   Operator = ">="
	OpIn          Operator = "in"
	OpContains    Operator = "contains"
	OpExists      Operator = "exists"

	OpAnd Operator = "and"
	OpOr  Operator = "or"
	OpNot Operator = "not"
)

// leafOperators and groupOperators classify an Operator for
// validation purposes.
var leafOperators = map[Operator]bool{
	OpEquals: true, OpNotEquals: true, OpLessThan: true, OpGreaterThan: true,
	OpLessEq: true, OpGreaterEq: true, OpIn: true, OpContains: true, OpExists: true,
}

var groupOperators = map[Operator]bool{OpAnd: true, OpOr: true, OpNot: true}

// principalIDLiteral is substituted with the request's principal id
// before a leaf comparison runs, enabling owner-equality rules
// (spec.md §4.5).
const principalIDLiteral = "principal.id"

// Condition is a recursive tagged value: a leaf attribute predicate,
// or a boolean group over child Conditions. Exactly one of the leaf
// fields or the group fields is populated, discriminated by Operator.
//
// Purpose: Policy rule guard expression.
// Domain: Policy
// Invariants: validated eagerly at construction time via Validate, so
// the evaluator never encounters a malformed tree.
type Condition struct {
	// Leaf fields.
	Attribute string   `json:"attribute,omitempty"`
	Operator  Operator `json:"operator"`
	Value     any      `json:"value,omitempty"`
	Values    []any    `json:"values,omitempty"`

	// Group fields.
	Operands []Condition `json:"operands,omitempty"`
}

// IsGroup reports whether this condition is a boolean group rather
// than a leaf.
func (c Condition) IsGroup() bool {
	return groupOperators[c.Operator]
}

// Validate checks a Condition tree for structural well-formedness per
// spec.md §4.5: "every leaf has attribute+operator; non-exists leaves
// have value or values; groups have a non-empty operand list; not has
// exactly one operand."
func (c Condition) Validate() error {
	if c.IsGroup() {
		if len(c.Operands) == 0 {
			return errors.Join(ErrPolicyMalformed, errors.New("group condition must have at least one operand"))
		}
		if c.Operator == OpNot && len(c.Operands) != 1 {
			return errors.Join(ErrPolicyMalformed, errors.New("not condition must have exactly one operand"))
		}
		for _, operand := range c.Operands {
			if err := operand.Validate(); err != nil {
				return err
			}
		}
		return nil
	}

	if !leafOperators[c.Operator] {
		return errors.Join(ErrPolicyMalformed, errors.New("unknown condition operator"))
	}
	if c.Attribute == "" {
		return errors.Join(ErrPolicyMalformed, errors.New("leaf condition requires an attribute"))
	}
	if c.Operator != OpExists && c.Value == nil && c.Values == nil {
		return errors.Join(ErrPolicyMalformed, errors.New("non-exists leaf condition requires value or values"))
	}
	if c.Operator == OpIn && c.Values == nil {
		return errors.Join(ErrPolicyMalformed, errors.New("in operator requires a values list"))
	}
	return nil
}

// Rule guards a single allow/deny decision with a Condition.
//
// Purpose: Single branch of a Policy.
// Domain: Policy
// Invariants: ID unique within its Policy. Priority controls
// evaluation order within the policy (higher first).
type Rule struct {
	ID          string    `json:"id"`
	Description string    `json:"description"`
	Condition   Condition `json:"condition"`
	Effect      Effect    `json:"effect"`
	Priority    int       `json:"priority"`
}

// Validate checks rule-level invariants beyond the condition tree
// itself.
func (r Rule) Validate() error {
	if r.ID == "" {
		return errors.Join(ErrPolicyMalformed, errors.New("rule requires an id"))
	}
	if r.Effect != EffectAllow && r.Effect != EffectDeny {
		return errors.Join(ErrPolicyMalformed, errors.New("rule effect must be allow or deny"))
	}
	return r.Condition.Validate()
}

// Policy is a named, versioned, priority-ordered set of Rules.
//
// Purpose: Tenant-scoped authorization rule bundle.
// Domain: Policy
// Invariants: (Name, Version) unique per tenant. Priority controls
// cross-policy evaluation order (higher first).
type Policy struct {
	ID        string    `json:"id"`
	TenantID  string    `json:"tenant_id"`
	Name      string    `json:"name"`
	Version   int       `json:"version"`
	Priority  int       `json:"priority"`
	Status    Status    `json:"status"`
	Rules     []Rule    `json:"rules"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Validate checks every rule in the policy.
func (p *Policy) Validate() error {
	for _, r := range p.Rules {
		if err := r.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Repository defines tenant-scoped persistence for Policy records.
//
// Purpose: Abstraction for managing policy storage.
// Domain: Policy
type Repository interface {
	Create(ctx context.Context, tenantID string, p *Policy) error
	GetByID(ctx context.Context, tenantID, id string) (*Policy, error)
	Update(ctx context.Context, tenantID string, p *Policy) error
	Delete(ctx context.Context, tenantID, id string) error
	// ListActive returns every policy with Status == StatusActive for
	// the tenant, in no particular order; the engine sorts by
	// priority itself.
	ListActive(ctx context.Context, tenantID string) ([]*Policy, error)
}
