// Package store defines the aggregate persistence interface. The policy and
// audit packages each define their own store interface; Store composes them.
// Backends: Memory, Postgres, SQLite and MongoDB.
package store

import (
	"context"
	"errors"

	"github.com/xraph/charter/audit"
	"github.com/xraph/charter/policy"
)

var (
	// ErrNotFound is wrapped by backends when a record does not exist.
	ErrNotFound = errors.New("store: not found")

	// ErrConflict is wrapped by backends when a write loses a uniqueness
	// race or targets a record in the wrong state.
	ErrConflict = errors.New("store: conflict")
)

// Store is the aggregate persistence interface implemented by every backend.
type Store interface {
	policy.Store
	audit.Store

	// Migrate runs all schema migrations.
	Migrate(ctx context.Context) error

	// Ping checks database connectivity.
	Ping(ctx context.Context) error

	// Close closes the store connection.
	Close() error
}
