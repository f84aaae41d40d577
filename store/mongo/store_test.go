package mongo

import (
	"context"
	"os"
	"testing"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/xraph/charter/store"
	"github.com/xraph/charter/store/storetest"
)

// TestStoreConformance needs a replica set, for example
// CHARTER_TEST_MONGO_URI=mongodb://localhost:27017/charter_test?replicaSet=rs0
func TestStoreConformance(t *testing.T) {
	uri := os.Getenv("CHARTER_TEST_MONGO_URI")
	if uri == "" {
		t.Skip("CHARTER_TEST_MONGO_URI not set")
	}
	ctx := context.Background()

	s, err := Open(ctx, uri)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = s.Close() })
	if err := s.Migrate(ctx); err != nil {
		t.Fatal(err)
	}

	storetest.Run(t, func(t *testing.T) store.Store {
		t.Helper()
		for _, col := range []string{colPolicies, colAudit} {
			if _, err := s.mdb.Collection(col).DeleteMany(ctx, bson.M{}); err != nil {
				t.Fatalf("clear %s: %v", col, err)
			}
		}
		return s
	})
}

func TestMigrationIndexes(t *testing.T) {
	idx := migrationIndexes()
	if len(idx[colPolicies]) != 3 {
		t.Fatalf("expected 3 policy indexes, got %d", len(idx[colPolicies]))
	}
	if len(idx[colAudit]) == 0 {
		t.Fatal("expected audit indexes")
	}
}
