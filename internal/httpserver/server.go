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

// Package httpserver exposes the authz-core decision, health, and
// audit query endpoints over HTTP, following
// piwi3910-netweave/internal/server/server.go's Gin router and
// graceful-shutdown shape.
package httpserver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/trustgate/authz-core/audit"
	"github.com/trustgate/authz-core/internal/observability"
	"github.com/trustgate/authz-core/orchestrator"
)

// Config configures a Server.
type Config struct {
	Host                string
	Port                int
	ServiceTokens       []string
	RateLimitMaxTokens  int
	RateLimitIntervalS  int
	GinMode             string
}

// Server wraps the Gin router and its dependencies for the authz-core
// HTTP surface.
type Server struct {
	router       *gin.Engine
	httpServer   *http.Server
	orchestrator *orchestrator.Orchestrator
	auditRepo    audit.Repository
	logger       *observability.Logger
	metrics      *observability.Metrics
	breakerState func() int
}

// New constructs a Server. rateLimitRedis may be nil, in which case
// the rate limiter degrades to an in-process bucket per caller.
func New(cfg Config, orch *orchestrator.Orchestrator, auditRepo audit.Repository, rateLimitRedis redis.UniversalClient,
	logger *observability.Logger, metrics *observability.Metrics, breakerState func() int) *Server {

	if cfg.GinMode != "" {
		gin.SetMode(cfg.GinMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())

	s := &Server{
		router:       router,
		orchestrator: orch,
		auditRepo:    auditRepo,
		logger:       logger,
		metrics:      metrics,
		breakerState: breakerState,
	}

	tokens := make(map[string]struct{}, len(cfg.ServiceTokens))
	for _, t := range cfg.ServiceTokens {
		if t != "" {
			tokens[t] = struct{}{}
		}
	}

	limiter := newRateLimiter(rateLimitRedis, cfg.RateLimitMaxTokens, cfg.RateLimitIntervalS, logger.Logger)

	router.Use(requestLogger(logger, metrics))
	router.GET("/health", s.handleHealth)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	protected := router.Group("/")
	protected.Use(authMiddleware(tokens), limiter.middleware())
	protected.POST("/authorize", s.handleAuthorize)
	protected.GET("/audit", s.handleAudit)

	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:           router,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return s
}

// Router exposes the underlying Gin engine, for tests that drive
// requests with httptest without starting a real listener.
func (s *Server) Router() *gin.Engine {
	return s.router
}

// ListenAndServe starts the HTTP server and blocks until it returns.
func (s *Server) ListenAndServe() error {
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}
	return nil
}
