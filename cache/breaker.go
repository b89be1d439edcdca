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

package cache

import (
	"sync"
	"time"
)

// breakerState is the circuit breaker's three-state machine.
type breakerState int

const (
	stateClosed breakerState = iota
	stateOpen
	stateHalfOpen
)

// Breaker trips open after a run of consecutive backend failures and
// stays open for a cooldown window (spec.md §4.7: "sustained Redis
// unavailability must not serialize every request behind failing
// round trips"). After the cooldown it turns half-open and lets calls
// through: the first recorded success closes it and the first recorded
// failure opens it again. The number of calls let through while
// half-open is not limited.
//
// Purpose: Fail-fast guard in front of a Cache backend.
// Domain: Authz
type Breaker struct {
	mu               sync.Mutex
	state            breakerState
	failureThreshold int
	cooldown         time.Duration
	consecutiveFails int
	openedAt         time.Time
}

// NewBreaker constructs a Breaker that opens after failureThreshold
// consecutive failures and stays open for cooldown before probing
// again.
func NewBreaker(failureThreshold int, cooldown time.Duration) *Breaker {
	if failureThreshold <= 0 {
		failureThreshold = 3
	}
	if cooldown <= 0 {
		cooldown = 10 * time.Second
	}
	return &Breaker{failureThreshold: failureThreshold, cooldown: cooldown}
}

// Allow reports whether a call should be attempted against the
// backend right now. It transitions Open to HalfOpen once the
// cooldown has elapsed.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case stateOpen:
		if time.Since(b.openedAt) >= b.cooldown {
			b.state = stateHalfOpen
			return true
		}
		return false
	default:
		return true
	}
}

// RecordSuccess resets the breaker to fully closed.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = stateClosed
	b.consecutiveFails = 0
}

// RecordFailure counts a failed call and opens the breaker once the
// threshold is reached, including immediately on a failed half-open
// probe.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == stateHalfOpen {
		b.trip()
		return
	}

	b.consecutiveFails++
	if b.consecutiveFails >= b.failureThreshold {
		b.trip()
	}
}

func (b *Breaker) trip() {
	b.state = stateOpen
	b.openedAt = time.Now()
	b.consecutiveFails = 0
}

// Open reports whether the breaker currently rejects calls.
func (b *Breaker) Open() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state == stateOpen
}

// State returns the breaker's current state as closed=0, open=1,
// half_open=2, matching the authz_cache_circuit_breaker_state gauge.
func (b *Breaker) State() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch b.state {
	case stateOpen:
		return 1
	case stateHalfOpen:
		return 2
	default:
		return 0
	}
}
