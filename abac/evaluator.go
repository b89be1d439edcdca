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

// Package abac implements the fixed attribute-predicate evaluator
// (C4): ownership, department match, and clearance comparisons
// between principal and resource attributes.
package abac

import (
	"fmt"

	"github.com/trustgate/authz-core/principal"
)

const (
	attrOwnerID             = "owner_id"
	attrRequiredDepartment  = "required_department"
	attrSensitivity         = "sensitivity"
)

// Request carries the values the ABAC predicates are evaluated
// against.
type Request struct {
	PrincipalID         string
	PrincipalAttributes principal.Attributes
	ResourceAttributes  principal.Attributes
}

// Result is the outcome of evaluating all ABAC predicates.
type Result struct {
	Allowed         bool
	FailedConditions []string
}

// Evaluator evaluates the fixed ABAC predicate set (C4).
//
// Purpose: Attribute-based checks layered on top of RBAC.
// Domain: Authz
type Evaluator struct{}

// NewEvaluator constructs an Evaluator.
func NewEvaluator() *Evaluator {
	return &Evaluator{}
}

// Evaluate runs the ownership, department, and clearance predicates.
// The ownership and department predicates are skipped, not failed,
// when their inputs are absent, and the clearance predicate is skipped
// when the resource has no sensitivity. When sensitivity is present,
// a missing or non-numeric clearance_level (or a non-numeric
// sensitivity) fails the clearance check.
func (e *Evaluator) Evaluate(req Request) Result {
	var failed []string

	if v, ok := req.ResourceAttributes.Get(attrOwnerID); ok {
		if ownerID, ok := v.(string); ok && ownerID != "" && ownerID != req.PrincipalID {
			failed = append(failed, "Resource owner mismatch")
		}
	}

	dept, deptOK := req.PrincipalAttributes.Get(principal.AttrDepartment)
	reqDept, reqDeptOK := req.ResourceAttributes.Get(attrRequiredDepartment)
	if deptOK && reqDeptOK {
		deptStr, _ := dept.(string)
		reqDeptStr, _ := reqDept.(string)
		if deptStr != reqDeptStr {
			failed = append(failed, fmt.Sprintf("Department mismatch: principal department %q does not match required department %q", deptStr, reqDeptStr))
		}
	}

	if sv, ok := req.ResourceAttributes.Get(attrSensitivity); ok {
		sensitivity, sensOK := principal.Int(sv)
		clearanceRaw, clearOK := req.PrincipalAttributes.Get(principal.AttrClearanceLevel)
		clearance, clearIntOK := principal.Int(clearanceRaw)
		if !sensOK || !clearOK || !clearIntOK {
			failed = append(failed, "Clearance check requires a numeric sensitivity and clearance_level")
		} else if clearance < sensitivity {
			failed = append(failed, fmt.Sprintf("Insufficient clearance: principal clearance %d is below resource sensitivity %d", clearance, sensitivity))
		}
	}

	return Result{Allowed: len(failed) == 0, FailedConditions: failed}
}
