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
	"testing"

	"github.com/trustgate/authz-core/principal"
)

type fakePolicyRepo struct {
	Repository
	policies []*Policy
}

func (f *fakePolicyRepo) ListActive(ctx context.Context, tenantID string) ([]*Policy, error) {
	var active []*Policy
	for _, p := range f.policies {
		if p.Status == StatusActive {
			active = append(active, p)
		}
	}
	return active, nil
}

func TestConditionValidateLeafRequiresAttribute(t *testing.T) {
	c := Condition{Operator: OpEquals, Value: "x"}
	if err := c.Validate(); err == nil {
		t.Fatalf("expected validation error for a leaf without an attribute")
	}
}

func TestConditionValidateNotRequiresSingleOperand(t *testing.T) {
	c := Condition{Operator: OpNot, Operands: []Condition{
		{Attribute: "action", Operator: OpEquals, Value: "read"},
		{Attribute: "action", Operator: OpEquals, Value: "write"},
	}}
	if err := c.Validate(); err == nil {
		t.Fatalf("expected validation error for not with two operands")
	}
}

func TestConditionValidateInRequiresValues(t *testing.T) {
	c := Condition{Attribute: "action", Operator: OpIn}
	if err := c.Validate(); err == nil {
		t.Fatalf("expected validation error for in without a values list")
	}
}

func TestConditionValidateAcceptsWellFormedTree(t *testing.T) {
	c := Condition{Operator: OpAnd, Operands: []Condition{
		{Attribute: "action", Operator: OpEquals, Value: "read"},
		{Attribute: "resource.owner_id", Operator: OpExists},
	}}
	if err := c.Validate(); err != nil {
		t.Fatalf("unexpected validation error: %v", err)
	}
}

func allowPolicy(name string, priority int, rule Rule) *Policy {
	return &Policy{ID: name, Name: name, Priority: priority, Status: StatusActive, Rules: []Rule{rule}}
}

func TestEngineEvaluateReturnsFirstMatchByPolicyPriority(t *testing.T) {
	low := allowPolicy("low", 1, Rule{ID: "r1", Effect: EffectAllow, Condition: Condition{
		Attribute: "action", Operator: OpEquals, Value: "read",
	}})
	high := allowPolicy("high", 10, Rule{ID: "r1", Effect: EffectDeny, Condition: Condition{
		Attribute: "action", Operator: OpEquals, Value: "read",
	}})
	engine := NewEngine(&fakePolicyRepo{policies: []*Policy{low, high}})

	decision, err := engine.Evaluate(context.Background(), Request{TenantID: "t1", Action: "read"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !decision.Matched || decision.PolicyName != "high" || decision.Effect != EffectDeny {
		t.Fatalf("expected the higher-priority policy to win, got %+v", decision)
	}
}

func TestEngineEvaluateOrdersRulesWithinPolicyByPriority(t *testing.T) {
	p := &Policy{ID: "p1", Name: "p1", Status: StatusActive, Rules: []Rule{
		{ID: "low", Effect: EffectAllow, Priority: 1, Condition: Condition{Attribute: "action", Operator: OpEquals, Value: "read"}},
		{ID: "high", Effect: EffectDeny, Priority: 5, Condition: Condition{Attribute: "action", Operator: OpEquals, Value: "read"}},
	}}
	engine := NewEngine(&fakePolicyRepo{policies: []*Policy{p}})

	decision, err := engine.Evaluate(context.Background(), Request{TenantID: "t1", Action: "read"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decision.RuleID != "high" {
		t.Fatalf("expected the higher-priority rule within the policy to win, got %s", decision.RuleID)
	}
}

func TestEngineEvaluateReturnsUnmatchedWhenNoRuleFires(t *testing.T) {
	p := allowPolicy("p1", 1, Rule{ID: "r1", Effect: EffectAllow, Condition: Condition{
		Attribute: "action", Operator: OpEquals, Value: "write",
	}})
	engine := NewEngine(&fakePolicyRepo{policies: []*Policy{p}})

	decision, err := engine.Evaluate(context.Background(), Request{TenantID: "t1", Action: "read"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decision.Matched {
		t.Fatalf("expected no match, got %+v", decision)
	}
}

func TestEngineEvaluateOwnerEqualityViaPrincipalIDLiteral(t *testing.T) {
	p := allowPolicy("owner-only", 1, Rule{ID: "r1", Effect: EffectAllow, Condition: Condition{
		Attribute: "resource.owner_id", Operator: OpEquals, Value: "principal.id",
	}})
	engine := NewEngine(&fakePolicyRepo{policies: []*Policy{p}})

	matchingReq := Request{
		TenantID:           "t1",
		PrincipalID:        "alice",
		ResourceAttributes: principal.Attributes{"owner_id": "alice"},
	}
	decision, err := engine.Evaluate(context.Background(), matchingReq)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !decision.Matched {
		t.Fatalf("expected the owner-equality rule to match when owner_id equals the principal id")
	}

	mismatchReq := matchingReq
	mismatchReq.ResourceAttributes = principal.Attributes{"owner_id": "bob"}
	decision, err = engine.Evaluate(context.Background(), mismatchReq)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decision.Matched {
		t.Fatalf("expected no match when owner_id differs from the principal id")
	}
}

func TestEngineEvaluateAndGroupRequiresAllOperands(t *testing.T) {
	p := allowPolicy("and-rule", 1, Rule{ID: "r1", Effect: EffectAllow, Condition: Condition{
		Operator: OpAnd,
		Operands: []Condition{
			{Attribute: "action", Operator: OpEquals, Value: "read"},
			{Attribute: "resource.type", Operator: OpEquals, Value: "document"},
		},
	}})
	engine := NewEngine(&fakePolicyRepo{policies: []*Policy{p}})

	decision, err := engine.Evaluate(context.Background(), Request{TenantID: "t1", Action: "read", ResourceType: "image"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decision.Matched {
		t.Fatalf("expected no match when only one and-operand holds")
	}

	decision, err = engine.Evaluate(context.Background(), Request{TenantID: "t1", Action: "read", ResourceType: "document"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !decision.Matched {
		t.Fatalf("expected a match when both and-operands hold")
	}
}

func TestEngineEvaluateOrGroupRequiresAnyOperand(t *testing.T) {
	p := allowPolicy("or-rule", 1, Rule{ID: "r1", Effect: EffectAllow, Condition: Condition{
		Operator: OpOr,
		Operands: []Condition{
			{Attribute: "action", Operator: OpEquals, Value: "write"},
			{Attribute: "action", Operator: OpEquals, Value: "read"},
		},
	}})
	engine := NewEngine(&fakePolicyRepo{policies: []*Policy{p}})

	decision, err := engine.Evaluate(context.Background(), Request{TenantID: "t1", Action: "read"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !decision.Matched {
		t.Fatalf("expected a match since one or-operand holds")
	}
}

func TestEngineEvaluateNotGroupNegatesOperand(t *testing.T) {
	p := allowPolicy("not-rule", 1, Rule{ID: "r1", Effect: EffectDeny, Condition: Condition{
		Operator: OpNot,
		Operands: []Condition{{Attribute: "action", Operator: OpEquals, Value: "read"}},
	}})
	engine := NewEngine(&fakePolicyRepo{policies: []*Policy{p}})

	decision, err := engine.Evaluate(context.Background(), Request{TenantID: "t1", Action: "write"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !decision.Matched {
		t.Fatalf("expected not(action=read) to match when action is write")
	}
}

func TestEngineEvaluateExistsOperator(t *testing.T) {
	p := allowPolicy("exists-rule", 1, Rule{ID: "r1", Effect: EffectAllow, Condition: Condition{
		Attribute: "resource.owner_id", Operator: OpExists,
	}})
	engine := NewEngine(&fakePolicyRepo{policies: []*Policy{p}})

	decision, err := engine.Evaluate(context.Background(), Request{TenantID: "t1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decision.Matched {
		t.Fatalf("expected no match when the resource attribute is absent")
	}

	decision, err = engine.Evaluate(context.Background(), Request{
		TenantID:           "t1",
		ResourceAttributes: principal.Attributes{"owner_id": "alice"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !decision.Matched {
		t.Fatalf("expected a match when the resource attribute is present")
	}
}

func TestEngineEvaluateOrderedComparison(t *testing.T) {
	p := allowPolicy("clearance-rule", 1, Rule{ID: "r1", Effect: EffectAllow, Condition: Condition{
		Attribute: "principal.clearance_level", Operator: OpGreaterEq, Value: 5,
	}})
	engine := NewEngine(&fakePolicyRepo{policies: []*Policy{p}})

	decision, err := engine.Evaluate(context.Background(), Request{
		TenantID:            "t1",
		PrincipalAttributes: principal.Attributes{"clearance_level": 3},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decision.Matched {
		t.Fatalf("expected no match for insufficient clearance")
	}

	decision, err = engine.Evaluate(context.Background(), Request{
		TenantID:            "t1",
		PrincipalAttributes: principal.Attributes{"clearance_level": 7},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !decision.Matched {
		t.Fatalf("expected a match for sufficient clearance")
	}
}

func TestEngineEvaluateOrderedComparisonOnSameTypedStrings(t *testing.T) {
	p := allowPolicy("expiry-rule", 1, Rule{ID: "r1", Effect: EffectAllow, Condition: Condition{
		Attribute: "resource.expires_on", Operator: OpLessEq, Value: "2026-06-01",
	}})
	engine := NewEngine(&fakePolicyRepo{policies: []*Policy{p}})

	decision, err := engine.Evaluate(context.Background(), Request{
		TenantID:           "t1",
		ResourceAttributes: principal.Attributes{"expires_on": "2026-08-01"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decision.Matched {
		t.Fatalf("expected no match when the resource date sorts after the rule's bound")
	}

	decision, err = engine.Evaluate(context.Background(), Request{
		TenantID:           "t1",
		ResourceAttributes: principal.Attributes{"expires_on": "2026-01-15"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !decision.Matched {
		t.Fatalf("expected a match when the resource date sorts on or before the rule's bound")
	}
}

func TestEngineEvaluateOrderedComparisonOnIncomparableOperandsIsUnsatisfiedNotError(t *testing.T) {
	p := allowPolicy("mismatched-rule", 1, Rule{ID: "r1", Effect: EffectAllow, Condition: Condition{
		Attribute: "principal.clearance_level", Operator: OpGreaterEq, Value: 5,
	}})
	engine := NewEngine(&fakePolicyRepo{policies: []*Policy{p}})

	decision, err := engine.Evaluate(context.Background(), Request{
		TenantID:            "t1",
		PrincipalAttributes: principal.Attributes{"clearance_level": "top-secret"},
	})
	if err != nil {
		t.Fatalf("expected a type-mismatched ordering comparison to leave the leaf unsatisfied rather than error, got %v", err)
	}
	if decision.Matched {
		t.Fatalf("expected no match for an incomparable operand pairing")
	}
}

func TestEngineEvaluateInOperator(t *testing.T) {
	p := allowPolicy("in-rule", 1, Rule{ID: "r1", Effect: EffectAllow, Condition: Condition{
		Attribute: "resource.type", Operator: OpIn, Values: []any{"document", "image"},
	}})
	engine := NewEngine(&fakePolicyRepo{policies: []*Policy{p}})

	decision, err := engine.Evaluate(context.Background(), Request{TenantID: "t1", ResourceType: "video"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decision.Matched {
		t.Fatalf("expected no match when resource type is not in the values list")
	}

	decision, err = engine.Evaluate(context.Background(), Request{TenantID: "t1", ResourceType: "image"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !decision.Matched {
		t.Fatalf("expected a match when resource type is in the values list")
	}
}

func TestEngineEvaluateContainsOperator(t *testing.T) {
	p := allowPolicy("contains-rule", 1, Rule{ID: "r1", Effect: EffectAllow, Condition: Condition{
		Attribute: "context.tags", Operator: OpContains, Value: "urgent",
	}})
	engine := NewEngine(&fakePolicyRepo{policies: []*Policy{p}})

	decision, err := engine.Evaluate(context.Background(), Request{
		TenantID: "t1",
		Context:  principal.Attributes{"tags": []any{"low-priority"}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decision.Matched {
		t.Fatalf("expected no match when tags does not contain urgent")
	}

	decision, err = engine.Evaluate(context.Background(), Request{
		TenantID: "t1",
		Context:  principal.Attributes{"tags": []any{"urgent", "escalated"}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !decision.Matched {
		t.Fatalf("expected a match when tags contains urgent")
	}
}

func TestEngineEvaluateSkipsInactivePolicies(t *testing.T) {
	draft := &Policy{ID: "draft", Name: "draft", Status: StatusDraft, Priority: 100, Rules: []Rule{
		{ID: "r1", Effect: EffectDeny, Condition: Condition{Attribute: "action", Operator: OpEquals, Value: "read"}},
	}}
	engine := NewEngine(&fakePolicyRepo{policies: []*Policy{draft}})

	decision, err := engine.Evaluate(context.Background(), Request{TenantID: "t1", Action: "read"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decision.Matched {
		t.Fatalf("expected inactive policies to never be evaluated by the caller's active-only repository contract, got %+v", decision)
	}
}
