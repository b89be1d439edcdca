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

// Package store defines the error taxonomy shared by the persistence
// and evaluation layers, letting the HTTP edge map a failure to a
// status code without depending on any particular repository package.
package store

import (
	"errors"
	"fmt"
)

// Code classifies an Error for status-code mapping at the HTTP edge.
type Code string

const (
	CodeInvalidRequest      Code = "invalid_request"
	CodeNotFound            Code = "not_found"
	CodeTenantMismatch      Code = "tenant_mismatch"
	CodeConstraintViolation Code = "constraint_violation"
	CodeCycleWouldBeCreated Code = "cycle_would_be_created"
	CodePolicyMalformed     Code = "policy_malformed"
	CodeTransientBackend    Code = "transient_backend"
	CodeRateLimited         Code = "rate_limited"
	CodeInternalError       Code = "internal_error"
)

// Error wraps a domain failure with a Code, so callers that only know
// about store.Code can decide how to respond without importing every
// domain package's sentinel errors.
type Error struct {
	Code  Code
	Cause error
}

func (e *Error) Error() string {
	if e.Cause == nil {
		return string(e.Code)
	}
	return fmt.Sprintf("%s: %v", e.Code, e.Cause)
}

func (e *Error) Unwrap() error { return e.Cause }

// New wraps cause in an Error carrying code.
func New(code Code, cause error) error {
	return &Error{Code: code, Cause: cause}
}

// CodeOf returns the Code carried by err if it is (or wraps) a
// *store.Error, and CodeInternalError otherwise.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternalError
}
