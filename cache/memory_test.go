package cache

import (
	"context"
	"testing"
	"time"

	"github.com/xraph/charter/id"
	"github.com/xraph/charter/policy"
)

func activePolicy(t policy.Type, version int) *policy.Policy {
	return &policy.Policy{
		ID:       id.NewPolicyID(),
		Type:     t,
		Version:  version,
		Title:    string(t) + " policy",
		Config:   map[string]any{"k": "v"},
		IsActive: true,
	}
}

func TestMemoryCacheHitMiss(t *testing.T) {
	ctx := context.Background()
	c := NewMemory(WithTTL(time.Minute))

	if _, ok := c.Get(ctx, policy.TypeReturn); ok {
		t.Fatal("expected cache miss")
	}

	p := activePolicy(policy.TypeReturn, 3)
	c.Set(ctx, p)
	got, ok := c.Get(ctx, policy.TypeReturn)
	if !ok {
		t.Fatal("expected cache hit")
	}
	if got.ID != p.ID || got.Version != 3 {
		t.Fatalf("unexpected cached policy: %+v", got)
	}

	// Callers get copies.
	got.Config["k"] = "mutated"
	again, _ := c.Get(ctx, policy.TypeReturn)
	if again.Config["k"] != "v" {
		t.Fatal("cached entry was mutated through a returned copy")
	}
}

func TestMemoryCacheTTLExpiry(t *testing.T) {
	ctx := context.Background()
	c := NewMemory(WithTTL(1 * time.Millisecond))

	c.Set(ctx, activePolicy(policy.TypeShipping, 1))
	time.Sleep(5 * time.Millisecond)

	if _, ok := c.Get(ctx, policy.TypeShipping); ok {
		t.Fatal("expected cache miss after TTL expiry")
	}
	if c.Len() != 0 {
		t.Fatalf("expected expired entry to be evicted, have %d", c.Len())
	}
}

func TestMemoryCacheInvalidate(t *testing.T) {
	ctx := context.Background()
	c := NewMemory()

	c.Set(ctx, activePolicy(policy.TypeReturn, 1))
	c.Set(ctx, activePolicy(policy.TypeWarranty, 1))
	c.Invalidate(ctx, policy.TypeReturn)

	if _, ok := c.Get(ctx, policy.TypeReturn); ok {
		t.Fatal("expected return entry to be invalidated")
	}
	if _, ok := c.Get(ctx, policy.TypeWarranty); !ok {
		t.Fatal("warranty entry should survive")
	}
}
