// Package sqlite provides a SQLite implementation of the Charter composite
// store using grove ORM with Go-based migrations.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/sqlitedriver"
	_ "github.com/xraph/grove/drivers/sqlitedriver/sqlitemigrate" // registers the "sqlite" migration executor
	"github.com/xraph/grove/migrate"

	"github.com/xraph/charter/audit"
	"github.com/xraph/charter/id"
	"github.com/xraph/charter/policy"
	"github.com/xraph/charter/store"
)

// Compile-time interface check.
var _ store.Store = (*Store)(nil)

// Store is a SQLite implementation of the composite Charter store.
//
// SQLite allows one writer at a time. Policy writes take writeMu so that
// goroutines in this process queue up instead of failing with SQLITE_BUSY.
type Store struct {
	db      *grove.DB
	sdb     *sqlitedriver.SqliteDB
	writeMu sync.Mutex
}

// New creates a new SQLite store.
func New(db *grove.DB) *Store {
	return &Store{
		db:  db,
		sdb: sqlitedriver.Unwrap(db),
	}
}

// Open opens the SQLite database at path and returns a store over it.
func Open(ctx context.Context, path string) (*Store, error) {
	drv := sqlitedriver.New()
	if err := drv.Open(ctx, path); err != nil {
		return nil, fmt.Errorf("charter/sqlite: open: %w", err)
	}
	db, err := grove.Open(drv)
	if err != nil {
		return nil, fmt.Errorf("charter/sqlite: open grove: %w", err)
	}
	return New(db), nil
}

// Migrate runs programmatic migrations via the grove orchestrator.
func (s *Store) Migrate(ctx context.Context) error {
	executor, err := migrate.NewExecutorFor(s.sdb)
	if err != nil {
		return fmt.Errorf("charter/sqlite: create migration executor: %w", err)
	}
	orch := migrate.NewOrchestrator(executor, Migrations)
	if _, err := orch.Migrate(ctx); err != nil {
		return fmt.Errorf("charter/sqlite: migration failed: %w", err)
	}
	return nil
}

// Ping verifies the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// ──────────────────────────────────────────────────
// Policy operations
// ──────────────────────────────────────────────────

func (s *Store) CreatePolicy(ctx context.Context, p *policy.Policy) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.sdb.BeginTxQuery(ctx, nil)
	if err != nil {
		return fmt.Errorf("charter/sqlite: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback on error is intentional

	latest := new(policyModel)
	err = tx.NewSelect(latest).
		Where("type = ?", string(p.Type)).
		OrderExpr("version DESC").
		Limit(1).
		Scan(ctx)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		p.Version = 1
	case err != nil:
		return fmt.Errorf("charter/sqlite: latest version: %w", err)
	default:
		p.Version = latest.Version + 1
	}
	p.IsActive = false

	m, err := policyToModel(p)
	if err != nil {
		return fmt.Errorf("charter/sqlite: create policy: %w", err)
	}
	if _, err := tx.NewInsert(m).Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("policy %s v%d: %w", p.Type, p.Version, store.ErrConflict)
		}
		return fmt.Errorf("charter/sqlite: create policy: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("charter/sqlite: commit tx: %w", err)
	}
	return nil
}

func (s *Store) GetPolicy(ctx context.Context, polID id.PolicyID) (*policy.Policy, error) {
	m := new(policyModel)
	err := s.sdb.NewSelect(m).Where("id = ?", polID.String()).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("policy %s: %w", polID, store.ErrNotFound)
		}
		return nil, fmt.Errorf("charter/sqlite: get policy: %w", err)
	}
	return policyFromModel(m)
}

func (s *Store) UpdatePolicyContent(ctx context.Context, p *policy.Policy) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	cur, err := s.GetPolicy(ctx, p.ID)
	if err != nil {
		return err
	}
	if cur.IsActive {
		return fmt.Errorf("policy %s is active: %w", p.ID, store.ErrConflict)
	}

	m, err := policyToModel(p)
	if err != nil {
		return fmt.Errorf("charter/sqlite: update policy: %w", err)
	}
	m.Type = string(cur.Type)
	m.Version = cur.Version
	m.IsActive = false
	m.CreatedBy = cur.CreatedBy
	m.CreatedAt = cur.CreatedAt

	if _, err := s.sdb.NewUpdate(m).WherePK().Exec(ctx); err != nil {
		return fmt.Errorf("charter/sqlite: update policy: %w", err)
	}
	return nil
}

func (s *Store) DeletePolicy(ctx context.Context, polID id.PolicyID) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	res, err := s.sdb.NewDelete((*policyModel)(nil)).
		Where("id = ?", polID.String()).Exec(ctx)
	if err != nil {
		return fmt.Errorf("charter/sqlite: delete policy: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("charter/sqlite: delete policy rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("policy %s: %w", polID, store.ErrNotFound)
	}
	return nil
}

func (s *Store) ListPolicies(ctx context.Context, filter *policy.ListFilter) ([]*policy.Policy, error) {
	var models []policyModel
	q := s.sdb.NewSelect(&models).OrderExpr("type ASC, version DESC")
	if filter != nil {
		if filter.Type != "" {
			q = q.Where("type = ?", string(filter.Type))
		}
		if filter.IsActive != nil {
			q = q.Where("is_active = ?", *filter.IsActive)
		}
		if filter.Limit > 0 {
			q = q.Limit(filter.Limit)
		}
		if filter.Offset > 0 {
			q = q.Offset(filter.Offset)
		}
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("charter/sqlite: list policies: %w", err)
	}
	return policiesFromModels(models)
}

func (s *Store) CountPolicies(ctx context.Context, filter *policy.ListFilter) (int64, error) {
	q := s.sdb.NewSelect((*policyModel)(nil))
	if filter != nil {
		if filter.Type != "" {
			q = q.Where("type = ?", string(filter.Type))
		}
		if filter.IsActive != nil {
			q = q.Where("is_active = ?", *filter.IsActive)
		}
	}
	count, err := q.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("charter/sqlite: count policies: %w", err)
	}
	return count, nil
}

// ActivatePolicy clears the active flag across the type, then sets it on
// the target, in one transaction. SQLite checks the partial unique index
// row by row, so the two steps cannot be folded into one UPDATE.
func (s *Store) ActivatePolicy(ctx context.Context, polID id.PolicyID) (*policy.Policy, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.sdb.BeginTxQuery(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("charter/sqlite: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback on error is intentional

	target := new(policyModel)
	if err := tx.NewSelect(target).Where("id = ?", polID.String()).Scan(ctx); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("policy %s: %w", polID, store.ErrNotFound)
		}
		return nil, fmt.Errorf("charter/sqlite: get policy: %w", err)
	}

	now := time.Now().UTC()
	_, err = tx.NewUpdate((*policyModel)(nil)).
		Set("is_active = ?", false).
		Set("updated_at = ?", now).
		Where("type = ?", target.Type).
		Where("is_active = ?", true).
		Where("id <> ?", polID.String()).
		Exec(ctx)
	if err != nil {
		return nil, fmt.Errorf("charter/sqlite: deactivate siblings: %w", err)
	}
	if !target.IsActive {
		_, err = tx.NewUpdate((*policyModel)(nil)).
			Set("is_active = ?", true).
			Set("updated_at = ?", now).
			Where("id = ?", polID.String()).
			Exec(ctx)
		if err != nil {
			if isUniqueViolation(err) {
				return nil, fmt.Errorf("activate %s: %w", polID, store.ErrConflict)
			}
			return nil, fmt.Errorf("charter/sqlite: activate policy: %w", err)
		}
		target.IsActive = true
		target.UpdatedAt = now
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("charter/sqlite: commit tx: %w", err)
	}
	return policyFromModel(target)
}

func (s *Store) DeactivatePolicy(ctx context.Context, polID id.PolicyID) (*policy.Policy, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	_, err := s.sdb.NewUpdate((*policyModel)(nil)).
		Set("is_active = ?", false).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", polID.String()).
		Where("is_active = ?", true).
		Exec(ctx)
	if err != nil {
		return nil, fmt.Errorf("charter/sqlite: deactivate policy: %w", err)
	}
	return s.GetPolicy(ctx, polID)
}

func (s *Store) GetActivePolicy(ctx context.Context, t policy.Type) (*policy.Policy, error) {
	m := new(policyModel)
	err := s.sdb.NewSelect(m).
		Where("type = ?", string(t)).
		Where("is_active = ?", true).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("active %s policy: %w", t, store.ErrNotFound)
		}
		return nil, fmt.Errorf("charter/sqlite: get active policy: %w", err)
	}
	return policyFromModel(m)
}

func (s *Store) ListActivePolicies(ctx context.Context) ([]*policy.Policy, error) {
	var models []policyModel
	err := s.sdb.NewSelect(&models).
		Where("is_active = ?", true).
		OrderExpr("type ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("charter/sqlite: list active policies: %w", err)
	}
	return policiesFromModels(models)
}

// ──────────────────────────────────────────────────
// Audit operations
// ──────────────────────────────────────────────────

func (s *Store) RecordEntry(ctx context.Context, e *audit.Entry) error {
	m, err := auditToModel(e)
	if err != nil {
		return fmt.Errorf("charter/sqlite: record audit entry: %w", err)
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if _, err := s.sdb.NewInsert(m).Exec(ctx); err != nil {
		return fmt.Errorf("charter/sqlite: record audit entry: %w", err)
	}
	return nil
}

func (s *Store) ListEntries(ctx context.Context, filter *audit.ListFilter) ([]*audit.Entry, error) {
	var models []auditModel
	q := s.sdb.NewSelect(&models).OrderExpr("created_at DESC, id DESC")
	if filter != nil {
		if !filter.PolicyID.IsNil() {
			q = q.Where("policy_id = ?", filter.PolicyID.String())
		}
		if filter.PolicyType != "" {
			q = q.Where("policy_type = ?", filter.PolicyType)
		}
		if filter.Action != "" {
			q = q.Where("action = ?", string(filter.Action))
		}
		if filter.ActorID != "" {
			q = q.Where("actor_id = ?", filter.ActorID)
		}
		if filter.After != nil {
			q = q.Where("created_at >= ?", filter.After.UTC())
		}
		if filter.Before != nil {
			q = q.Where("created_at <= ?", filter.Before.UTC())
		}
		if filter.Limit > 0 {
			q = q.Limit(filter.Limit)
		}
		if filter.Offset > 0 {
			q = q.Offset(filter.Offset)
		}
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("charter/sqlite: list audit entries: %w", err)
	}
	result := make([]*audit.Entry, len(models))
	for i := range models {
		e, err := auditFromModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = e
	}
	return result, nil
}

func (s *Store) CountEntries(ctx context.Context, filter *audit.ListFilter) (int64, error) {
	q := s.sdb.NewSelect((*auditModel)(nil))
	if filter != nil {
		if !filter.PolicyID.IsNil() {
			q = q.Where("policy_id = ?", filter.PolicyID.String())
		}
		if filter.PolicyType != "" {
			q = q.Where("policy_type = ?", filter.PolicyType)
		}
		if filter.Action != "" {
			q = q.Where("action = ?", string(filter.Action))
		}
		if filter.ActorID != "" {
			q = q.Where("actor_id = ?", filter.ActorID)
		}
		if filter.After != nil {
			q = q.Where("created_at >= ?", filter.After.UTC())
		}
		if filter.Before != nil {
			q = q.Where("created_at <= ?", filter.Before.UTC())
		}
	}
	count, err := q.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("charter/sqlite: count audit entries: %w", err)
	}
	return count, nil
}

func (s *Store) PurgeEntries(ctx context.Context, before time.Time) (int64, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	res, err := s.sdb.NewDelete((*auditModel)(nil)).
		Where("created_at < ?", before.UTC()).Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("charter/sqlite: purge audit entries: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("charter/sqlite: purge audit rows: %w", err)
	}
	return n, nil
}
