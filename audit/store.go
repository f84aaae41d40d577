package audit

import (
	"context"
	"time"
)

// Store persists the audit trail. Entries are append-only.
type Store interface {
	// RecordEntry appends an entry.
	RecordEntry(ctx context.Context, e *Entry) error

	// ListEntries returns entries matching the filter, newest first.
	ListEntries(ctx context.Context, filter *ListFilter) ([]*Entry, error)

	// CountEntries returns the number of entries matching the filter.
	CountEntries(ctx context.Context, filter *ListFilter) (int64, error)

	// PurgeEntries removes entries created before the given time and
	// reports how many were removed.
	PurgeEntries(ctx context.Context, before time.Time) (int64, error)
}
