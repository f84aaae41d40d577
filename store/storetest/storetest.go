// Package storetest is a conformance suite shared by every store backend.
package storetest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/xraph/charter/audit"
	"github.com/xraph/charter/id"
	"github.com/xraph/charter/policy"
	"github.com/xraph/charter/store"
)

// Factory returns an empty, migrated store. Cleanup is the caller's job
// (typically t.Cleanup inside the factory).
type Factory func(t *testing.T) store.Store

// Run executes the full suite against stores built by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Helper()
	t.Run("VersionsPerType", func(t *testing.T) { testVersionsPerType(t, newStore(t)) })
	t.Run("ConcurrentCreate", func(t *testing.T) { testConcurrentCreate(t, newStore(t)) })
	t.Run("GetAndNotFound", func(t *testing.T) { testGetAndNotFound(t, newStore(t)) })
	t.Run("UpdateContent", func(t *testing.T) { testUpdateContent(t, newStore(t)) })
	t.Run("Activate", func(t *testing.T) { testActivate(t, newStore(t)) })
	t.Run("ConcurrentActivate", func(t *testing.T) { testConcurrentActivate(t, newStore(t)) })
	t.Run("Deactivate", func(t *testing.T) { testDeactivate(t, newStore(t)) })
	t.Run("Delete", func(t *testing.T) { testDelete(t, newStore(t)) })
	t.Run("ListAndCount", func(t *testing.T) { testListAndCount(t, newStore(t)) })
	t.Run("Audit", func(t *testing.T) { testAudit(t, newStore(t)) })
}

// NewPolicy returns a draft ready for CreatePolicy.
func NewPolicy(t policy.Type, title string) *policy.Policy {
	now := time.Now().UTC().Truncate(time.Millisecond)
	return &policy.Policy{
		ID:            id.NewPolicyID(),
		Type:          t,
		Title:         title,
		Summary:       "summary of " + title,
		BodyPlainText: "body of " + title,
		Config:        map[string]any{},
		EffectiveFrom: now,
		CreatedBy:     "user-1",
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func mustCreate(t *testing.T, s store.Store, typ policy.Type, title string) *policy.Policy {
	t.Helper()
	p := NewPolicy(typ, title)
	if err := s.CreatePolicy(context.Background(), p); err != nil {
		t.Fatalf("create %s: %v", title, err)
	}
	return p
}

func activeCount(t *testing.T, s store.Store, typ policy.Type) int {
	t.Helper()
	active := true
	n, err := s.CountPolicies(context.Background(), &policy.ListFilter{Type: typ, IsActive: &active})
	if err != nil {
		t.Fatalf("count active: %v", err)
	}
	return int(n)
}

func testVersionsPerType(t *testing.T, s store.Store) {
	r1 := mustCreate(t, s, policy.TypeReturn, "return v1")
	r2 := mustCreate(t, s, policy.TypeReturn, "return v2")
	w1 := mustCreate(t, s, policy.TypeWarranty, "warranty v1")
	r3 := mustCreate(t, s, policy.TypeReturn, "return v3")

	if r1.Version != 1 || r2.Version != 2 || r3.Version != 3 {
		t.Fatalf("expected return versions 1,2,3, got %d,%d,%d", r1.Version, r2.Version, r3.Version)
	}
	if w1.Version != 1 {
		t.Fatalf("expected warranty version 1, got %d", w1.Version)
	}

	got, err := s.GetPolicy(context.Background(), r2.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Version != 2 || got.IsActive {
		t.Fatalf("stored draft mismatch: version=%d active=%v", got.Version, got.IsActive)
	}
}

func testConcurrentCreate(t *testing.T, s store.Store) {
	const n = 8
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		versions = make(map[int]int)
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p := NewPolicy(policy.TypeShipping, "shipping")
			if err := s.CreatePolicy(context.Background(), p); err != nil {
				if !errors.Is(err, store.ErrConflict) {
					t.Errorf("create: %v", err)
				}
				return
			}
			mu.Lock()
			versions[p.Version]++
			mu.Unlock()
		}()
	}
	wg.Wait()

	if len(versions) == 0 {
		t.Fatal("no create succeeded")
	}
	for v, c := range versions {
		if c != 1 {
			t.Fatalf("version %d assigned %d times", v, c)
		}
	}
}

func testGetAndNotFound(t *testing.T, s store.Store) {
	ctx := context.Background()
	p := mustCreate(t, s, policy.TypeTerms, "terms")

	got, err := s.GetPolicy(ctx, p.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Title != "terms" || got.Type != policy.TypeTerms || got.CreatedBy != "user-1" {
		t.Fatalf("unexpected policy: %+v", got)
	}
	if !got.CreatedAt.Equal(p.CreatedAt) || !got.EffectiveFrom.Equal(p.EffectiveFrom) || !got.UpdatedAt.Equal(p.UpdatedAt) {
		t.Fatalf("timestamps did not round-trip: got %v/%v/%v, want %v/%v/%v",
			got.CreatedAt, got.EffectiveFrom, got.UpdatedAt, p.CreatedAt, p.EffectiveFrom, p.UpdatedAt)
	}

	if _, err := s.GetPolicy(ctx, id.NewPolicyID());!errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := s.GetActivePolicy(ctx, policy.TypeTerms); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for no active policy, got %v", err)
	}
}

func testUpdateContent(t *testing.T, s store.Store) {
	ctx := context.Background()
	p := mustCreate(t, s, policy.TypeRefund, "refund")

	p.Title = "refund (edited)"
	p.Config = map[string]any{"refundToOriginalMethodOnly": true}
	p.Type = policy.TypeTerms
	p.Version = 99
	p.UpdatedAt = time.Now().UTC().Add(time.Minute).Truncate(time.Millisecond)
	if err := s.UpdatePolicyContent(ctx, p); err != nil {
		t.Fatal(err)
	}

	got, err := s.GetPolicy(ctx, p.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Title != "refund (edited)" {
		t.Fatalf("title not updated: %q", got.Title)
	}
	if got.Config["refundToOriginalMethodOnly"] != true {
		t.Fatalf("config not updated: %v", got.Config)
	}
	if got.Type != policy.TypeRefund || got.Version != 1 {
		t.Fatalf("type/version must not change, got %s v%d", got.Type, got.Version)
	}

	if _, err := s.ActivatePolicy(ctx, p.ID); err != nil {
		t.Fatal(err)
	}
	got.Title = "while active"
	if err := s.UpdatePolicyContent(ctx, got); !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected ErrConflict updating active policy, got %v", err)
	}

	missing := NewPolicy(policy.TypeRefund, "missing")
	if err := s.UpdatePolicyContent(ctx, missing); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func testActivate(t *testing.T, s store.Store) {
	ctx := context.Background()
	a := mustCreate(t, s, policy.TypeReturn, "a")
	b := mustCreate(t, s, policy.TypeReturn, "b")
	other := mustCreate(t, s, policy.TypeWarranty, "other")

	if _, err := s.ActivatePolicy(ctx, other.ID); err != nil {
		t.Fatal(err)
	}

	for _, target := range []*policy.Policy{a, b, a, a, b} {
		got, err := s.ActivatePolicy(ctx, target.ID)
		if err != nil {
			t.Fatal(err)
		}
		if !got.IsActive || got.ID != target.ID {
			t.Fatalf("activate returned %s active=%v", got.ID, got.IsActive)
		}
		cur, err := s.GetActivePolicy(ctx, policy.TypeReturn)
		if err != nil {
			t.Fatal(err)
		}
		if cur.ID != target.ID {
			t.Fatalf("current is %s, want %s", cur.ID, target.ID)
		}
		if n := activeCount(t, s, policy.TypeReturn); n != 1 {
			t.Fatalf("expected exactly one active return policy, got %d", n)
		}
	}

	w, err := s.GetActivePolicy(ctx, policy.TypeWarranty)
	if err != nil || w.ID != other.ID {
		t.Fatalf("activating return versions touched warranty: %v %v", w, err)
	}

	all, err := s.ListActivePolicies(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 active policies, got %d", len(all))
	}

	if _, err := s.ActivatePolicy(ctx, id.NewPolicyID()); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if n := activeCount(t, s, policy.TypeReturn); n != 1 {
		t.Fatalf("failed activation changed state: %d active", n)
	}
}

func testConcurrentActivate(t *testing.T, s store.Store) {
	ctx := context.Background()
	const n = 6
	ps := make([]*policy.Policy, n)
	for i := range ps {
		ps[i] = mustCreate(t, s, policy.TypeCancellation, "cancel")
	}

	var (
		wg sync.WaitGroup
		mu sync.Mutex
		ok int
	)
	for _, p := range ps {
		wg.Add(1)
		go func(p *policy.Policy) {
			defer wg.Done()
			if _, err := s.ActivatePolicy(ctx, p.ID); err == nil {
				mu.Lock()
				ok++
				mu.Unlock()
			}
		}(p)
	}
	wg.Wait()

	if ok == 0 {
		t.Fatal("no activation succeeded")
	}
	if c := activeCount(t, s, policy.TypeCancellation); c != 1 {
		t.Fatalf("expected exactly one active cancellation policy, got %d", c)
	}
}

func testDeactivate(t *testing.T, s store.Store) {
	ctx := context.Background()
	a := mustCreate(t, s, policy.TypePrivacy, "a")
	b := mustCreate(t, s, policy.TypePrivacy, "b")

	if _, err := s.ActivatePolicy(ctx, a.ID); err != nil {
		t.Fatal(err)
	}
	got, err := s.DeactivatePolicy(ctx, a.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.IsActive {
		t.Fatal("expected inactive after deactivate")
	}
	if n := activeCount(t, s, policy.TypePrivacy); n != 0 {
		t.Fatalf("deactivate must not promote another version, %d active", n)
	}
	if _, err := s.GetActivePolicy(ctx, policy.TypePrivacy); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	// Deactivating a draft is a no-op.
	if _, err := s.DeactivatePolicy(ctx, b.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := s.DeactivatePolicy(ctx, id.NewPolicyID()); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func testDelete(t *testing.T, s store.Store) {
	ctx := context.Background()
	p := mustCreate(t, s, policy.TypePrescription, "rx")
	if err := s.DeletePolicy(ctx, p.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := s.GetPolicy(ctx, p.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
	if err := s.DeletePolicy(ctx, p.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound deleting twice, got %v", err)
	}
}

func testListAndCount(t *testing.T, s store.Store) {
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		mustCreate(t, s, policy.TypeShipping, "ship")
	}
	w := mustCreate(t, s, policy.TypeWarranty, "warranty")
	if _, err := s.ActivatePolicy(ctx, w.ID); err != nil {
		t.Fatal(err)
	}

	all, err := s.ListPolicies(ctx, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 4 {
		t.Fatalf("expected 4 policies, got %d", len(all))
	}

	ship, err := s.ListPolicies(ctx, &policy.ListFilter{Type: policy.TypeShipping})
	if err != nil {
		t.Fatal(err)
	}
	if len(ship) != 3 {
		t.Fatalf("expected 3 shipping policies, got %d", len(ship))
	}
	for i := 1; i < len(ship); i++ {
		if ship[i-1].Version <= ship[i].Version {
			t.Fatalf("history must be version-descending: %d then %d", ship[i-1].Version, ship[i].Version)
		}
	}

	page, err := s.ListPolicies(ctx, &policy.ListFilter{Type: policy.TypeShipping, Limit: 2, Offset: 1})
	if err != nil {
		t.Fatal(err)
	}
	if len(page) != 2 || page[0].Version != 2 {
		t.Fatalf("unexpected page: %d items", len(page))
	}

	inactive := false
	n, err := s.CountPolicies(ctx, &policy.ListFilter{IsActive: &inactive})
	if err != nil {
		t.Fatal(err)
	}
	if n != 3 {
		t.Fatalf("expected 3 inactive, got %d", n)
	}
}

func testAudit(t *testing.T, s store.Store) {
	ctx := context.Background()
	polID := id.NewPolicyID()
	base := time.Now().UTC().Truncate(time.Millisecond)

	actions := []audit.Action{audit.ActionCreated, audit.ActionUpdated, audit.ActionActivated}
	for i, a := range actions {
		e := &audit.Entry{
			ID:         id.NewAuditID(),
			PolicyID:   polID,
			PolicyType: string(policy.TypeReturn),
			Version:    1,
			Action:     a,
			ActorID:    "user-1",
			Detail:     map[string]any{"step": float64(i)},
			CreatedAt:  base.Add(time.Duration(i) * time.Second),
		}
		if err := s.RecordEntry(ctx, e); err != nil {
			t.Fatal(err)
		}
	}
	other := &audit.Entry{
		ID:         id.NewAuditID(),
		PolicyID:   id.NewPolicyID(),
		PolicyType: string(policy.TypeTerms),
		Version:    1,
		Action:     audit.ActionCreated,
		ActorID:    "user-2",
		CreatedAt:  base.Add(-time.Hour),
	}
	if err := s.RecordEntry(ctx, other); err != nil {
		t.Fatal(err)
	}

	list, err := s.ListEntries(ctx, &audit.ListFilter{PolicyID: polID})
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(list))
	}
	if list[0].Action != audit.ActionActivated {
		t.Fatalf("expected newest first, got %s", list[0].Action)
	}

	n, err := s.CountEntries(ctx, &audit.ListFilter{ActorID: "user-2"})
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("expected 1 entry for user-2, got %d", n)
	}

	purged, err := s.PurgeEntries(ctx, base.Add(-time.Minute))
	if err != nil {
		t.Fatal(err)
	}
	if purged != 1 {
		t.Fatalf("expected 1 purged, got %d", purged)
	}
	n, err = s.CountEntries(ctx, nil)
	if err != nil {
		t.Fatal(err)
	}
	if n != 3 {
		t.Fatalf("expected 3 remaining, got %d", n)
	}
}
