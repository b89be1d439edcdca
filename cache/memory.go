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
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	decision  Decision
	expiresAt time.Time
}

// MemoryCache is an in-process Cache implementation for local
// development and tests. It never fails, so it is never wrapped in a
// Breaker.
//
// Purpose: Dependency-free Cache for environments without Redis.
// Domain: Authz
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
}

// NewMemoryCache constructs an empty MemoryCache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]memoryEntry)}
}

// Get returns the cached decision for key, or ErrMiss if absent or
// expired.
func (m *MemoryCache) Get(_ context.Context, key string) (Decision, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entry, ok := m.entries[key]
	if !ok || time.Now().After(entry.expiresAt) {
		return Decision{}, ErrMiss
	}
	return entry.decision, nil
}

// Put stores decision under key with the given ttl.
func (m *MemoryCache) Put(_ context.Context, key string, decision Decision, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = memoryEntry{decision: decision, expiresAt: time.Now().Add(ttl)}
	return nil
}

// Invalidate removes every key with the given prefix.
func (m *MemoryCache) Invalidate(_ context.Context, prefix string) error {
	if prefix == "" {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for key := range m.entries {
		if matchesPrefix(key, prefix) {
			delete(m.entries, key)
		}
	}
	return nil
}
