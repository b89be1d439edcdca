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

package httpserver

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/trustgate/authz-core/audit"
	"github.com/trustgate/authz-core/orchestrator"
	"github.com/trustgate/authz-core/principal"
)

// authorizeRequestBody mirrors the wire shape fixed by spec.md §6.
type authorizeRequestBody struct {
	TenantID    string `json:"tenantId" binding:"required"`
	PrincipalID string `json:"principalId" binding:"required"`
	Action      string `json:"action" binding:"required"`
	Resource    struct {
		Type       string         `json:"type" binding:"required"`
		ID         string         `json:"id" binding:"required"`
		Attributes map[string]any `json:"attributes"`
	} `json:"resource" binding:"required"`
	Principal struct {
		Attributes map[string]any `json:"attributes"`
	} `json:"principal"`
	Context map[string]any `json:"context"`
}

type authorizeResponseBody struct {
	Allowed          bool      `json:"allowed"`
	Reason           string    `json:"reason"`
	Explanation      string    `json:"explanation"`
	PolicyEvaluated  *string   `json:"policy_evaluated,omitempty"`
	FailedConditions []string  `json:"failed_conditions,omitempty"`
	EvaluatedAt      time.Time `json:"evaluated_at"`
	CacheHit         bool      `json:"cache_hit"`
}

// handleAuthorize implements POST /authorize (C10 evaluate()).
func (s *Server) handleAuthorize(c *gin.Context) {
	var body authorizeRequestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed or incomplete request: " + err.Error()})
		return
	}

	req := orchestrator.Request{
		TenantID:            body.TenantID,
		PrincipalID:         body.PrincipalID,
		Action:              body.Action,
		ResourceType:        body.Resource.Type,
		ResourceID:          body.Resource.ID,
		PrincipalAttributes: principal.Attributes(body.Principal.Attributes),
		ResourceAttributes:  principal.Attributes(body.Resource.Attributes),
		Context:             principal.Attributes(body.Context),
	}

	resp, err := s.orchestrator.Evaluate(c.Request.Context(), req)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal authorization error"})
		return
	}

	out := authorizeResponseBody{
		Allowed:          resp.Allowed,
		Reason:           resp.Reason,
		Explanation:      resp.Explanation,
		FailedConditions: resp.FailedConditions,
		EvaluatedAt:      resp.EvaluatedAt,
		CacheHit:         resp.CacheHit,
	}
	if resp.PolicyEvaluated != "" {
		out.PolicyEvaluated = &resp.PolicyEvaluated
	}

	if s.metrics != nil {
		decision := "deny"
		if resp.Allowed {
			decision = "allow"
		}
		s.metrics.DecisionsTotal.WithLabelValues(decision).Inc()
		if resp.CacheHit {
			s.metrics.CacheHitsTotal.Inc()
		} else {
			s.metrics.CacheMissesTotal.Inc()
		}
		if s.breakerState != nil {
			s.metrics.CircuitBreakerState.Set(float64(s.breakerState()))
		}
	}

	c.JSON(http.StatusOK, out)
}

type healthResponseBody struct {
	Status    string    `json:"status"`
	Service   string    `json:"service"`
	Timestamp time.Time `json:"timestamp"`
}

// handleHealth implements GET /health. The service reports "degraded"
// when the decision cache's circuit breaker is not closed (open or
// half-open), signaling the best-effort cache path is currently
// bypassed or being probed (spec.md §7's
// "surfaced via a health-degraded signal").
func (s *Server) handleHealth(c *gin.Context) {
	status := "healthy"
	if s.breakerState != nil && s.breakerState() != 0 {
		status = "degraded"
	}
	c.JSON(http.StatusOK, healthResponseBody{
		Status:    status,
		Service:   "authz-engine",
		Timestamp: time.Now(),
	})
}

// handleAudit implements GET /audit.
func (s *Server) handleAudit(c *gin.Context) {
	tenantID := c.Query("tenantId")
	if tenantID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "tenantId is required"})
		return
	}

	filter := audit.Filter{TenantID: tenantID, Limit: 100}
	if v := c.Query("principalId"); v != "" {
		filter.PrincipalID = &v
	}
	if v := c.Query("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid from timestamp"})
			return
		}
		filter.StartDate = &t
	}
	if v := c.Query("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid to timestamp"})
			return
		}
		filter.EndDate = &t
	}

	entries, total, err := s.auditRepo.List(c.Request.Context(), filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list audit entries"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"entries": entries, "total": total})
}
