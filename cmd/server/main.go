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

// Command server runs the authz-core decision service: it wires
// configuration, the Postgres storage gateway, the Redis decision
// cache, the RBAC/ABAC/policy evaluators, and the orchestrator behind
// the HTTP surface defined in internal/httpserver.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/trustgate/authz-core/abac"
	"github.com/trustgate/authz-core/audit"
	"github.com/trustgate/authz-core/cache"
	"github.com/trustgate/authz-core/internal/config"
	"github.com/trustgate/authz-core/internal/httpserver"
	"github.com/trustgate/authz-core/internal/observability"
	"github.com/trustgate/authz-core/orchestrator"
	"github.com/trustgate/authz-core/policy"
	"github.com/trustgate/authz-core/rbac"
	"github.com/trustgate/authz-core/store/postgres"

	"go.uber.org/zap"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		return err
	}

	logger, err := observability.NewLogger(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := postgres.Open(ctx, cfg.DB.URL)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.Migrate(ctx, postgres.InitialSchema); err != nil {
		return err
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer func() { _ = redisClient.Close() }()

	decisionCache := cache.NewRedisCacheFromClient(redisClient, cache.NewBreaker(3, 10*time.Second))

	roleRepo := postgres.NewRoleRepository(db)
	permRepo := postgres.NewPermissionRepository(db)
	assignmentRepo := postgres.NewAssignmentRepository(db)
	policyRepo := postgres.NewPolicyRepository(db)
	auditRepo := postgres.NewAuditRepository(db)

	resolver := rbac.NewResolver(roleRepo, assignmentRepo, permRepo)
	rbacEval := rbac.NewEvaluator()
	abacEval := abac.NewEvaluator()
	policyEngine := policy.NewEngine(policyRepo)
	auditLogger := audit.NewRepositoryLogger(auditRepo)

	orch := orchestrator.New(resolver, rbacEval, abacEval, policyEngine, decisionCache, auditLogger,
		orchestrator.WithCacheTTL(cfg.Cache.TTLAuthorization))

	metrics := observability.NewMetrics(prometheus.DefaultRegisterer)

	serviceTokens := splitNonEmpty(os.Getenv("SERVICE_TOKENS"), ",")

	httpCfg := httpserver.Config{
		Host:               cfg.Server.Host,
		Port:               cfg.Server.Port,
		ServiceTokens:      serviceTokens,
		RateLimitMaxTokens: cfg.Rate.MaxTokens,
		RateLimitIntervalS: cfg.Rate.IntervalSeconds,
		GinMode:            "release",
	}

	srv := httpserver.New(httpCfg, orch, auditRepo, redisClient, logger, metrics, decisionCache.BreakerState)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("authz-core listening", zap.String("host", httpCfg.Host), zap.Int("port", httpCfg.Port))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
	}
	return nil
}

func splitNonEmpty(s, sep string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, sep)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
