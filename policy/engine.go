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

package policy

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/trustgate/authz-core/principal"
)

// Request carries the attribute context a policy is evaluated
// against: the request principal/resource/action triple plus whatever
// free-form context values the caller supplied.
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

// Decision is the outcome of evaluating the full policy set.
type Decision struct {
	// Matched is true when some rule's condition matched. When false,
	// Effect is the zero value and the caller should treat policy as
	// neutral (spec.md §4.5: a request with no matching rule carries
	// over whatever RBAC/ABAC already decided).
	Matched    bool
	Effect     Effect
	PolicyID   string
	PolicyName string
	RuleID     string
	Reason     string
}

// Engine evaluates the active policy set for a tenant against a
// Request using first-match-wins semantics across policies ordered by
// priority, then rules within a policy ordered by priority.
//
// Purpose: Attribute-driven policy language evaluation (C5).
// Domain: Policy
type Engine struct {
	policies Repository
}

// NewEngine constructs an Engine over the given policy repository.
func NewEngine(policies Repository) *Engine {
	return &Engine{policies: policies}
}

// Evaluate loads the tenant's active policies, orders them by
// priority descending (ties broken by name for determinism), and
// returns the first rule whose condition matches, in rule-priority
// order within each policy. If no rule matches across any policy,
// Decision.Matched is false.
func (e *Engine) Evaluate(ctx context.Context, req Request) (Decision, error) {
	policies, err := e.policies.ListActive(ctx, req.TenantID)
	if err != nil {
		return Decision{}, fmt.Errorf("policy: list active: %w", err)
	}

	sort.Slice(policies, func(i, j int) bool {
		if policies[i].Priority != policies[j].Priority {
			return policies[i].Priority > policies[j].Priority
		}
		return policies[i].Name < policies[j].Name
	})

	for _, p := range policies {
		rules := make([]Rule, len(p.Rules))
		copy(rules, p.Rules)
		sort.SliceStable(rules, func(i, j int) bool {
			return rules[i].Priority > rules[j].Priority
		})

		for _, rule := range rules {
			matched, err := e.evaluateCondition(rule.Condition, req)
			if err != nil {
				return Decision{}, fmt.Errorf("policy: evaluate policy %s rule %s: %w", p.ID, rule.ID, err)
			}
			if matched {
				return Decision{
					Matched:    true,
					Effect:     rule.Effect,
					PolicyID:   p.ID,
					PolicyName: p.Name,
					RuleID:     rule.ID,
					Reason:     fmt.Sprintf("Matched rule %s in policy %s: %s", rule.ID, p.Name, rule.Description),
				}, nil
			}
		}
	}

	return Decision{Matched: false}, nil
}

// evaluateCondition recursively evaluates a Condition tree against
// req, resolving attribute paths and applying operator semantics.
func (e *Engine) evaluateCondition(c Condition, req Request) (bool, error) {
	switch c.Operator {
	case OpAnd:
		for _, operand := range c.Operands {
			ok, err := e.evaluateCondition(operand, req)
			if err != nil {
				return false, err
			}
			if !ok {
				return false, nil
			}
		}
		return true, nil

	case OpOr:
		for _, operand := range c.Operands {
			ok, err := e.evaluateCondition(operand, req)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil

	case OpNot:
		ok, err := e.evaluateCondition(c.Operands[0], req)
		if err != nil {
			return false, err
		}
		return !ok, nil

	default:
		return e.evaluateLeaf(c, req)
	}
}

// evaluateLeaf resolves the condition's attribute path against the
// request and applies its comparison operator.
func (e *Engine) evaluateLeaf(c Condition, req Request) (bool, error) {
	actual, found := e.resolveAttribute(c.Attribute, req)

	if c.Operator == OpExists {
		return found, nil
	}
	if !found {
		return false, nil
	}

	expected := e.resolveLiteral(c.Value, req)

	switch c.Operator {
	case OpEquals:
		return compareEqual(actual, expected), nil
	case OpNotEquals:
		return !compareEqual(actual, expected), nil
	case OpLessThan, OpGreaterThan, OpLessEq, OpGreaterEq:
		return compareOrdered(actual, expected, c.Operator)
	case OpIn:
		for _, v := range c.Values {
			if compareEqual(actual, e.resolveLiteral(v, req)) {
				return true, nil
			}
		}
		return false, nil
	case OpContains:
		return containsValue(actual, expected), nil
	default:
		return false, fmt.Errorf("unsupported leaf operator %q", c.Operator)
	}
}

// resolveAttribute resolves an attribute path from one of the
// request's namespaces: the request fields action, resource.type,
// resource.id and principal.id, or principal.<path>, resource.<path>
// and context.<path> attribute lookups.
func (e *Engine) resolveAttribute(path string, req Request) (any, bool) {
	switch {
	case path == "action":
		return req.Action, true
	case path == "resource.type":
		return req.ResourceType, true
	case path == "resource.id":
		return req.ResourceID, true
	case path == "principal.id":
		return req.PrincipalID, true
	case strings.HasPrefix(path, "principal."):
		return req.PrincipalAttributes.Get(strings.TrimPrefix(path, "principal."))
	case strings.HasPrefix(path, "resource."):
		return req.ResourceAttributes.Get(strings.TrimPrefix(path, "resource."))
	case strings.HasPrefix(path, "context."):
		return req.Context.Get(strings.TrimPrefix(path, "context."))
	default:
		return nil, false
	}
}

// resolveLiteral substitutes the principal.id literal for the actual
// request principal id (spec.md §4.5's owner-equality rule), passing
// every other literal through unchanged.
func (e *Engine) resolveLiteral(v any, req Request) any {
	if s, ok := v.(string); ok && s == principalIDLiteral {
		return req.PrincipalID
	}
	return v
}

func compareEqual(a, b any) bool {
	af, aIsNum := principal.Int(a)
	bf, bIsNum := principal.Int(b)
	if aIsNum && bIsNum {
		return af == bf
	}
	return fmt.Sprintf("%v", a) == fmt.Sprintf("%v", b)
}

// compareOrdered implements the ordering operators. Both sides must be
// comparable: either both numeric, or both strings (spec.md §4.5).
// Any other pairing leaves the leaf unsatisfied rather than erroring,
// so a type mismatch never turns a non-match into a fail-closed denial.
func compareOrdered(a, b any, op Operator) (bool, error) {
	if as, aIsStr := a.(string); aIsStr {
		if bs, bIsStr := b.(string); bIsStr {
			return compareOrderedStrings(as, bs, op), nil
		}
	}

	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if !aok || !bok {
		return false, nil
	}
	switch op {
	case OpLessThan:
		return af < bf, nil
	case OpGreaterThan:
		return af > bf, nil
	case OpLessEq:
		return af <= bf, nil
	case OpGreaterEq:
		return af >= bf, nil
	default:
		return false, fmt.Errorf("unreachable ordered operator %q", op)
	}
}

func compareOrderedStrings(a, b string, op Operator) bool {
	switch op {
	case OpLessThan:
		return a < b
	case OpGreaterThan:
		return a > b
	case OpLessEq:
		return a <= b
	case OpGreaterEq:
		return a >= b
	default:
		return false
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		if i, ok := principal.Int(v); ok {
			return float64(i), true
		}
		return 0, false
	}
}

// containsValue implements the "contains" operator: substring match
// for strings, membership for slices.
func containsValue(haystack, needle any) bool {
	switch h := haystack.(type) {
	case string:
		s, ok := needle.(string)
		return ok && strings.Contains(h, s)
	case []any:
		for _, item := range h {
			if compareEqual(item, needle) {
				return true
			}
		}
		return false
	case []string:
		s, ok := needle.(string)
		if !ok {
			return false
		}
		for _, item := range h {
			if item == s {
				return true
			}
		}
		return false
	default:
		return false
	}
}
