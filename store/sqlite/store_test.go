package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/sqlitedriver"
	"github.com/xraph/grove/migrate"

	"github.com/xraph/charter/policy"
	"github.com/xraph/charter/store"
	"github.com/xraph/charter/store/storetest"
)

func TestStoreConformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store {
		t.Helper()
		ctx := context.Background()
		s, err := Open(ctx, filepath.Join(t.TempDir(), "charter.db"))
		if err != nil {
			t.Fatal(err)
		}
		t.Cleanup(func() { _ = s.Close() })
		if err := s.Migrate(ctx); err != nil {
			t.Fatal(err)
		}
		return s
	})
}

func TestMigrationExecutorRegistered(t *testing.T) {
	db, err := grove.Open(sqlitedriver.New())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := migrate.NewExecutorFor(New(db).sdb); err != nil {
		t.Fatalf("no migration executor for sqlite: %v", err)
	}
}

func TestTimestampsRoundTrip(t *testing.T) {
	ctx := context.Background()
	s, err := Open(ctx, filepath.Join(t.TempDir(), "charter.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = s.Close() })
	if err := s.Migrate(ctx); err != nil {
		t.Fatal(err)
	}

	p := storetest.NewPolicy(policy.TypeShipping, "shipping")
	p.EffectiveFrom = time.Date(2025, 3, 1, 9, 30, 0, 0, time.FixedZone("CET", 3600))
	if err := s.CreatePolicy(ctx, p); err != nil {
		t.Fatal(err)
	}
	got, err := s.GetPolicy(ctx, p.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !got.EffectiveFrom.Equal(p.EffectiveFrom) || got.EffectiveFrom.Location() != time.UTC {
		t.Fatalf("effectiveFrom = %v, want %v in UTC", got.EffectiveFrom, p.EffectiveFrom)
	}
	if !got.CreatedAt.Equal(p.CreatedAt) {
		t.Fatalf("createdAt = %v, want %v", got.CreatedAt, p.CreatedAt)
	}
}
