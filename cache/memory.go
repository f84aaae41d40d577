// Package cache provides implementations of charter.Cache for the
// current-policy read path.
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/xraph/charter"
	"github.com/xraph/charter/policy"
)

// Compile-time interface check.
var _ charter.Cache = (*Memory)(nil)

// Memory is an in-process cache with TTL-based expiration.
type Memory struct {
	mu      sync.RWMutex
	entries map[policy.Type]*entry
	ttl     time.Duration
}

type entry struct {
	p         *policy.Policy
	expiresAt time.Time
}

// MemoryOption configures the memory cache.
type MemoryOption func(*Memory)

// WithTTL sets the cache entry time-to-live.
func WithTTL(ttl time.Duration) MemoryOption {
	return func(m *Memory) { m.ttl = ttl }
}

// NewMemory creates a new in-memory cache.
func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{
		entries: make(map[policy.Type]*entry),
		ttl:     5 * time.Minute,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Get returns a copy of the cached active policy for t.
func (m *Memory) Get(_ context.Context, t policy.Type) (*policy.Policy, bool) {
	m.mu.RLock()
	e, ok := m.entries[t]
	m.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if time.Now().After(e.expiresAt) {
		m.mu.Lock()
		if cur, ok := m.entries[t]; ok && cur == e {
			delete(m.entries, t)
		}
		m.mu.Unlock()
		return nil, false
	}
	return e.p.Clone(), true
}

// Set stores p as the active policy of its type.
func (m *Memory) Set(_ context.Context, p *policy.Policy) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[p.Type] = &entry{
		p:         p.Clone(),
		expiresAt: time.Now().Add(m.ttl),
	}
}

// Invalidate drops the entry for t.
func (m *Memory) Invalidate(_ context.Context, t policy.Type) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, t)
}

// Len reports the number of entries, expired or not.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}
