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

package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus instruments exposed on /metrics.
type Metrics struct {
	DecisionsTotal      *prometheus.CounterVec
	DecisionDuration    prometheus.Histogram
	CacheHitsTotal      prometheus.Counter
	CacheMissesTotal    prometheus.Counter
	CircuitBreakerState prometheus.Gauge
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// NewMetrics registers and returns the authz-core metrics set against
// reg. Tests should pass a fresh prometheus.NewRegistry() to avoid
// colliding with the global default registry across test binaries.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		DecisionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "authz",
				Name:      "decisions_total",
				Help:      "Total number of authorization decisions by outcome.",
			},
			[]string{"decision"},
		),
		DecisionDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "authz",
				Name:      "decision_duration_seconds",
				Help:      "Latency of the evaluate() pipeline.",
				Buckets:   prometheus.DefBuckets,
			},
		),
		CacheHitsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "authz",
				Subsystem: "cache",
				Name:      "hits_total",
				Help:      "Total number of decision cache hits.",
			},
		),
		CacheMissesTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "authz",
				Subsystem: "cache",
				Name:      "misses_total",
				Help:      "Total number of decision cache misses.",
			},
		),
		CircuitBreakerState: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "authz",
				Subsystem: "cache",
				Name:      "circuit_breaker_state",
				Help:      "Decision cache circuit breaker state: 0=closed, 1=open, 2=half_open.",
			},
		),
		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "authz",
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total number of HTTP requests.",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "authz",
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "HTTP request latency in seconds.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
	}
}
