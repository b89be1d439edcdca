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
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/trustgate/authz-core/internal/observability"
)

// authMiddleware rejects requests to the decision endpoint that carry
// no Authorization header (401) or one that does not match a
// configured service token (403), per spec.md §6.
func authMiddleware(tokens map[string]struct{}) gin.HandlerFunc {
	return func(c *gin.Context) {
		if len(tokens) == 0 {
			c.Next()
			return
		}
		header := c.GetHeader("Authorization")
		if header == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing service token"})
			return
		}
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "malformed authorization header"})
			return
		}
		if _, valid := tokens[token]; !valid {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "invalid service token"})
			return
		}
		c.Next()
	}
}

// rateLimiter enforces a token bucket per caller (service token, or
// client IP if unauthenticated) fronting the decision endpoint
// (spec.md §5 "Rate limiting"). It is backed by a Redis Lua script
// when redisClient is non-nil, following
// piwi3910-netweave/internal/middleware/ratelimit.go's atomic
// GET/SET token bucket; otherwise, and for any request whose Redis
// call fails, it uses an in-process golang.org/x/time/rate limiter
// per caller key.
type rateLimiter struct {
	redisClient  redis.UniversalClient
	maxTokens    int
	intervalSecs int
	logger       *zap.Logger

	localMu      sync.Mutex
	localBuckets map[string]*rate.Limiter
}

const rateLimitScript = `
local tokens_key = KEYS[1] .. ":tokens"
local ts_key = KEYS[1] .. ":ts"
local now = tonumber(ARGV[1])
local rate_per_sec = tonumber(ARGV[2])
local burst = tonumber(ARGV[3])
local window = tonumber(ARGV[4])

local tokens = tonumber(redis.call('GET', tokens_key) or burst)
local last = tonumber(redis.call('GET', ts_key) or now)

local elapsed = now - last
tokens = math.min(burst, tokens + elapsed * rate_per_sec)

if tokens >= 1 then
	tokens = tokens - 1
	redis.call('SET', tokens_key, tokens, 'EX', window * 2)
	redis.call('SET', ts_key, now, 'EX', window * 2)
	return {1, tokens}
else
	redis.call('SET', ts_key, now, 'EX', window * 2)
	return {0, tokens}
end
`

// newRateLimiter constructs a rateLimiter allowing maxTokens requests
// per intervalSecs per caller key.
func newRateLimiter(redisClient redis.UniversalClient, maxTokens, intervalSecs int, logger *zap.Logger) *rateLimiter {
	return &rateLimiter{
		redisClient:  redisClient,
		maxTokens:    maxTokens,
		intervalSecs: intervalSecs,
		logger:       logger,
		localBuckets: make(map[string]*rate.Limiter),
	}
}

func (rl *rateLimiter) middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := callerKey(c)

		allowed, err := rl.allow(c, key)
		if err != nil {
			rl.logger.Warn("rate limiter backend error, using in-process bucket", zap.Error(err))
		}
		if !allowed {
			c.Header("Retry-After", strconv.Itoa(rl.intervalSecs))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":       "rate limit exceeded",
				"retry_after": rl.intervalSecs,
			})
			return
		}
		c.Next()
	}
}

func (rl *rateLimiter) allow(c *gin.Context, key string) (bool, error) {
	ratePerSec := float64(rl.maxTokens) / float64(rl.intervalSecs)

	if rl.redisClient == nil {
		return rl.allowLocal(key, ratePerSec), nil
	}

	now := time.Now().Unix()
	result, err := rl.redisClient.Eval(c.Request.Context(), rateLimitScript,
		[]string{"ratelimit:" + key}, now, ratePerSec, rl.maxTokens, rl.intervalSecs).Result()
	if err != nil {
		return rl.allowLocal(key, ratePerSec), fmt.Errorf("rate limit script: %w", err)
	}

	slice, ok := result.([]interface{})
	if !ok || len(slice) < 1 {
		return true, nil
	}
	granted, _ := slice[0].(int64)
	return granted == 1, nil
}

func (rl *rateLimiter) allowLocal(key string, ratePerSec float64) bool {
	rl.localMu.Lock()
	limiter, ok := rl.localBuckets[key]
	if !ok {
		limiter = rate.NewLimiter(rate.Limit(ratePerSec), rl.maxTokens)
		rl.localBuckets[key] = limiter
	}
	rl.localMu.Unlock()
	return limiter.Allow()
}

func callerKey(c *gin.Context) string {
	if header := c.GetHeader("Authorization"); header != "" {
		if token, ok := strings.CutPrefix(header, "Bearer "); ok {
			return "token:" + token
		}
	}
	return "ip:" + c.ClientIP()
}

// requestLogger logs each request at info level with latency and
// status, following Logger.LogRequest's field set in the teacher
// pack's observability wrapper.
func requestLogger(logger *observability.Logger, metrics *observability.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		c.Next()

		duration := time.Since(start)
		status := c.Writer.Status()

		logger.Info("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Int("status", status),
			zap.Duration("duration", duration),
		)

		if metrics != nil {
			metrics.HTTPRequestsTotal.WithLabelValues(c.Request.Method, path, strconv.Itoa(status)).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(c.Request.Method, path).Observe(duration.Seconds())
		}
	}
}
