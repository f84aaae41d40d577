package postgres

import (
	"context"
	"testing"
	"time"

	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/pgdriver"
	"github.com/xraph/grove/migrate"

	"github.com/xraph/charter/store"
	"github.com/xraph/charter/store/storetest"
)

func TestStoreConformance(t *testing.T) {
	if testing.Short() {
		t.Skip("postgres conformance needs Docker; skipped in -short mode")
	}
	ctx := context.Background()

	ctr, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("charter"),
		tcpostgres.WithUsername("charter"),
		tcpostgres.WithPassword("charter"),
		tcpostgres.BasicWaitStrategies(),
	)
	if err != nil {
		t.Skipf("postgres container unavailable: %v", err)
	}
	t.Cleanup(func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		_ = ctr.Terminate(stopCtx)
	})

	dsn, err := ctr.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatal(err)
	}
	s, err := Open(ctx, dsn)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = s.Close() })
	if err := s.Migrate(ctx); err != nil {
		t.Fatal(err)
	}
	// Migrations are idempotent.
	if err := s.Migrate(ctx); err != nil {
		t.Fatalf("second migrate: %v", err)
	}

	storetest.Run(t, func(t *testing.T) store.Store {
		t.Helper()
		truncate(t, s)
		return s
	})
}

func truncate(t *testing.T, s *Store) {
	t.Helper()
	ctx := context.Background()
	if _, err := s.pgdb.NewDelete((*policyModel)(nil)).Where("1 = 1").Exec(ctx); err != nil {
		t.Fatalf("truncate policies: %v", err)
	}
	if _, err := s.pgdb.NewDelete((*auditModel)(nil)).Where("1 = 1").Exec(ctx); err != nil {
		t.Fatalf("truncate audit: %v", err)
	}
}

func TestMigrationExecutorRegistered(t *testing.T) {
	db, err := grove.Open(pgdriver.New())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := migrate.NewExecutorFor(New(db).pgdb); err != nil {
		t.Fatalf("no migration executor for postgres: %v", err)
	}
}
