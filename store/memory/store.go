// Package memory provides an in-memory implementation of the charter
// composite store. It is intended for testing and development.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/xraph/charter/audit"
	"github.com/xraph/charter/id"
	"github.com/xraph/charter/policy"
	"github.com/xraph/charter/store"
)

// Compile-time interface checks.
var (
	_ policy.Store = (*Store)(nil)
	_ audit.Store  = (*Store)(nil)
	_ store.Store  = (*Store)(nil)
)

// Store is a thread-safe in-memory store. A single mutex serialises every
// write, which makes version assignment and activation atomic.
type Store struct {
	mu sync.RWMutex

	policies map[string]*policy.Policy
	entries  map[string]*audit.Entry
}

// New creates a new in-memory store.
func New() *Store {
	return &Store{
		policies: make(map[string]*policy.Policy),
		entries:  make(map[string]*audit.Entry),
	}
}

// Migrate is a no-op for the memory store.
func (s *Store) Migrate(_ context.Context) error { return nil }

// Ping is a no-op for the memory store.
func (s *Store) Ping(_ context.Context) error { return nil }

// Close is a no-op for the memory store.
func (s *Store) Close() error { return nil }

// ──────────────────────────────────────────────────
// Policy Store
// ──────────────────────────────────────────────────

func (s *Store) CreatePolicy(_ context.Context, p *policy.Policy) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.policies[p.ID.String()]; ok {
		return fmt.Errorf("policy %s: %w", p.ID, store.ErrConflict)
	}
	latest := 0
	for _, existing := range s.policies {
		if existing.Type == p.Type && existing.Version > latest {
			latest = existing.Version
		}
	}
	p.Version = latest + 1
	p.IsActive = false
	s.policies[p.ID.String()] = p.Clone()
	return nil
}

func (s *Store) GetPolicy(_ context.Context, polID id.PolicyID) (*policy.Policy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.policies[polID.String()]
	if !ok {
		return nil, fmt.Errorf("policy %s: %w", polID, store.ErrNotFound)
	}
	return p.Clone(), nil
}

func (s *Store) UpdatePolicyContent(_ context.Context, p *policy.Policy) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.policies[p.ID.String()]
	if !ok {
		return fmt.Errorf("policy %s: %w", p.ID, store.ErrNotFound)
	}
	if cur.IsActive {
		return fmt.Errorf("policy %s is active: %w", p.ID, store.ErrConflict)
	}
	next := p.Clone()
	next.Type = cur.Type
	next.Version = cur.Version
	next.IsActive = cur.IsActive
	next.CreatedBy = cur.CreatedBy
	next.CreatedAt = cur.CreatedAt
	s.policies[p.ID.String()] = next
	return nil
}

func (s *Store) DeletePolicy(_ context.Context, polID id.PolicyID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.policies[polID.String()]; !ok {
		return fmt.Errorf("policy %s: %w", polID, store.ErrNotFound)
	}
	delete(s.policies, polID.String())
	return nil
}

func (s *Store) ListPolicies(_ context.Context, filter *policy.ListFilter) ([]*policy.Policy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := s.filterPolicies(filter)
	sortPolicies(result)
	if filter == nil {
		return result, nil
	}
	return applyPagination(result, filter.Limit, filter.Offset), nil
}

func (s *Store) CountPolicies(_ context.Context, filter *policy.ListFilter) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.filterPolicies(filter))), nil
}

func (s *Store) ActivatePolicy(_ context.Context, polID id.PolicyID) (*policy.Policy, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	target, ok := s.policies[polID.String()]
	if !ok {
		return nil, fmt.Errorf("policy %s: %w", polID, store.ErrNotFound)
	}
	now := time.Now().UTC()
	for _, p := range s.policies {
		if p.Type != target.Type {
			continue
		}
		active := p.ID == target.ID
		if p.IsActive != active {
			p.IsActive = active
			p.UpdatedAt = now
		}
	}
	return target.Clone(), nil
}

func (s *Store) DeactivatePolicy(_ context.Context, polID id.PolicyID) (*policy.Policy, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.policies[polID.String()]
	if !ok {
		return nil, fmt.Errorf("policy %s: %w", polID, store.ErrNotFound)
	}
	if p.IsActive {
		p.IsActive = false
		p.UpdatedAt = time.Now().UTC()
	}
	return p.Clone(), nil
}

func (s *Store) GetActivePolicy(_ context.Context, t policy.Type) (*policy.Policy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.policies {
		if p.Type == t && p.IsActive {
			return p.Clone(), nil
		}
	}
	return nil, fmt.Errorf("active %s policy: %w", t, store.ErrNotFound)
}

func (s *Store) ListActivePolicies(_ context.Context) ([]*policy.Policy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []*policy.Policy
	for _, p := range s.policies {
		if p.IsActive {
			result = append(result, p.Clone())
		}
	}
	sortPolicies(result)
	return result, nil
}

func (s *Store) filterPolicies(filter *policy.ListFilter) []*policy.Policy {
	result := make([]*policy.Policy, 0, len(s.policies))
	for _, p := range s.policies {
		if filter != nil {
			if filter.Type != "" && p.Type != filter.Type {
				continue
			}
			if filter.IsActive != nil && p.IsActive != *filter.IsActive {
				continue
			}
		}
		result = append(result, p.Clone())
	}
	return result
}

// ──────────────────────────────────────────────────
// Audit Store
// ──────────────────────────────────────────────────

func (s *Store) RecordEntry(_ context.Context, e *audit.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[e.ID.String()] = copyEntry(e)
	return nil
}

func (s *Store) ListEntries(_ context.Context, filter *audit.ListFilter) ([]*audit.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := s.filterEntries(filter)
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID.String() > result[j].ID.String()
		}
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	if filter == nil {
		return result, nil
	}
	return applyPagination(result, filter.Limit, filter.Offset), nil
}

func (s *Store) CountEntries(_ context.Context, filter *audit.ListFilter) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.filterEntries(filter))), nil
}

func (s *Store) PurgeEntries(_ context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var count int64
	for k, e := range s.entries {
		if e.CreatedAt.Before(before) {
			delete(s.entries, k)
			count++
		}
	}
	return count, nil
}

func (s *Store) filterEntries(filter *audit.ListFilter) []*audit.Entry {
	result := make([]*audit.Entry, 0, len(s.entries))
	for _, e := range s.entries {
		if filter != nil {
			if !filter.PolicyID.IsNil() && e.PolicyID != filter.PolicyID {
				continue
			}
			if filter.PolicyType != "" && e.PolicyType != filter.PolicyType {
				continue
			}
			if filter.Action != "" && e.Action != filter.Action {
				continue
			}
			if filter.ActorID != "" && e.ActorID != filter.ActorID {
				continue
			}
			if filter.After != nil && e.CreatedAt.Before(*filter.After) {
				continue
			}
			if filter.Before != nil && e.CreatedAt.After(*filter.Before) {
				continue
			}
		}
		result = append(result, copyEntry(e))
	}
	return result
}

// ──────────────────────────────────────────────────
// Helpers
// ──────────────────────────────────────────────────

func copyEntry(e *audit.Entry) *audit.Entry {
	c := *e
	if e.Detail != nil {
		c.Detail = make(map[string]any, len(e.Detail))
		for k, v := range e.Detail {
			c.Detail[k] = v
		}
	}
	return &c
}

// sortPolicies orders by type, then newest version first.
func sortPolicies(ps []*policy.Policy) {
	sort.Slice(ps, func(i, j int) bool {
		if ps[i].Type != ps[j].Type {
			return ps[i].Type < ps[j].Type
		}
		return ps[i].Version > ps[j].Version
	})
}

func applyPagination[T any](items []*T, limit, offset int) []*T {
	if offset > 0 && offset < len(items) {
		items = items[offset:]
	} else if offset >= len(items) && offset > 0 {
		return nil
	}
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
