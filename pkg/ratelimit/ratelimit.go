// Copyright 2026 The cms Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package ratelimit provides per-client request limiting for the HTTP API.
// Limiters are values injected into the server; there is no process-global
// state, so several servers (or tests) in one process never share budgets.
package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter decides whether a request from the client identified by key may
// proceed.
type Limiter interface {
	Allow(key string) bool
}

// Unlimited allows every request.
type Unlimited struct{}

func (Unlimited) Allow(string) bool { return true }

// Store hands out the token bucket of a client.
type Store interface {
	Get(key string) *rate.Limiter
}

// KeyedLimiter applies the bucket provided by a Store.
type KeyedLimiter struct {
	Store Store
}

func (l KeyedLimiter) Allow(key string) bool {
	return l.Store.Get(key).Allow()
}

// New returns a limiter allowing rps requests per second with the given
// burst for every client. A non-positive rps disables limiting.
func New(rps float64, burst int) Limiter {
	if rps <= 0 {
		return Unlimited{}
	}
	return KeyedLimiter{Store: NewMemoryStore(rate.Limit(rps), burst, DefaultIdleTimeout)}
}

// DefaultIdleTimeout is how long an unused bucket is kept.
const DefaultIdleTimeout = 10 * time.Minute

type entry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// MemoryStore keeps buckets in memory and evicts the ones idle for longer
// than idle.
type MemoryStore struct {
	limit rate.Limit
	burst int
	idle  time.Duration
	now   func() time.Time

	mu        sync.Mutex
	entries   map[string]*entry
	lastSweep time.Time
}

var _ Store = &MemoryStore{}

func NewMemoryStore(limit rate.Limit, burst int, idle time.Duration) *MemoryStore {
	if burst < 1 {
		burst = 1
	}
	return &MemoryStore{
		limit:   limit,
		burst:   burst,
		idle:    idle,
		now:     time.Now,
		entries: map[string]*entry{},
	}
}

func (s *MemoryStore) Get(key string) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if s.idle > 0 && now.Sub(s.lastSweep) >= s.idle {
		s.sweep(now)
	}
	e, ok := s.entries[key]
	if !ok {
		e = &entry{limiter: rate.NewLimiter(s.limit, s.burst)}
		s.entries[key] = e
	}
	e.lastSeen = now
	return e.limiter
}

func (s *MemoryStore) sweep(now time.Time) {
	for k, e := range s.entries {
		if now.Sub(e.lastSeen) >= s.idle {
			delete(s.entries, k)
		}
	}
	s.lastSweep = now
}

// Len returns the number of tracked clients.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
