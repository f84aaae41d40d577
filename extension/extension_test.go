package extension

import (
	"context"
	"testing"
	"time"

	"github.com/xraph/vessel"

	"github.com/xraph/charter"
	"github.com/xraph/charter/cache"
	"github.com/xraph/charter/store/memory"
)

func TestNewAppliesOptions(t *testing.T) {
	s := memory.New()
	e := New(
		WithStore(s),
		WithTokenSecret("s3cret"),
		WithGroveDriver("sqlite"),
		WithDisableMigrate(),
	)

	if e.store != s {
		t.Fatal("expected explicit store to be kept")
	}
	if e.config.TokenSecret != "s3cret" || e.config.GroveDriver != "sqlite" {
		t.Fatalf("unexpected config: %+v", e.config)
	}
	if !e.config.DisableMigrate {
		t.Fatal("expected DisableMigrate")
	}
	if e.config.CacheTTL != 5*time.Minute {
		t.Fatalf("default cache TTL = %v", e.config.CacheTTL)
	}
}

func TestStoreForUnknownDriver(t *testing.T) {
	if _, err := storeForDriver("cassandra", nil); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}

func TestUninitializedExtension(t *testing.T) {
	e := New()
	ctx := context.Background()
	if err := e.Start(ctx); err == nil {
		t.Fatal("Start before Register must fail")
	}
	if err := e.Health(ctx); err == nil {
		t.Fatal("Health before Register must fail")
	}
	if err := e.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if e.Handler() == nil {
		t.Fatal("expected a fallback handler")
	}
	if e.Name() != "charter" {
		t.Fatalf("name = %q", e.Name())
	}
}

func TestResolveCache(t *testing.T) {
	explicit := cache.NewMemory()
	if got := New(WithCache(explicit)).resolveCache(vessel.New()); got != explicit {
		t.Fatalf("explicit cache not used: %T", got)
	}

	shared := cache.NewMemory(cache.WithTTL(time.Second))
	c := vessel.New()
	if err := vessel.Provide(c, func() (charter.Cache, error) { return shared, nil }); err != nil {
		t.Fatal(err)
	}
	if got := New().resolveCache(c); got != shared {
		t.Fatalf("container cache not used: %T", got)
	}
	if got := New(WithCache(explicit)).resolveCache(c); got != explicit {
		t.Fatal("explicit cache must win over the container")
	}

	got := New().resolveCache(vessel.New())
	if _, ok := got.(*cache.Memory); !ok || got == shared {
		t.Fatalf("fallback cache = %T, want a fresh *cache.Memory", got)
	}
}
