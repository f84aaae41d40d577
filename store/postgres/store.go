// Package postgres provides a PostgreSQL implementation of the Charter
// composite store using grove ORM with Go-based migrations.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/pgdriver"
	_ "github.com/xraph/grove/drivers/pgdriver/pgmigrate" // registers the "pg" migration executor
	"github.com/xraph/grove/migrate"

	"github.com/xraph/charter/audit"
	"github.com/xraph/charter/id"
	"github.com/xraph/charter/policy"
	"github.com/xraph/charter/store"
)

// Compile-time interface check.
var _ store.Store = (*Store)(nil)

// Store is a PostgreSQL implementation of the composite Charter store.
type Store struct {
	db   *grove.DB
	pgdb *pgdriver.PgDB
}

// New creates a new PostgreSQL store.
func New(db *grove.DB) *Store {
	return &Store{
		db:   db,
		pgdb: pgdriver.Unwrap(db),
	}
}

// Open connects to the PostgreSQL server at dsn and returns a store over it.
func Open(ctx context.Context, dsn string) (*Store, error) {
	drv := pgdriver.New()
	if err := drv.Open(ctx, dsn); err != nil {
		return nil, fmt.Errorf("charter/postgres: open: %w", err)
	}
	db, err := grove.Open(drv)
	if err != nil {
		return nil, fmt.Errorf("charter/postgres: open grove: %w", err)
	}
	return New(db), nil
}

// Migrate runs programmatic migrations via the grove orchestrator.
func (s *Store) Migrate(ctx context.Context) error {
	executor, err := migrate.NewExecutorFor(s.pgdb)
	if err != nil {
		return fmt.Errorf("charter/postgres: create migration executor: %w", err)
	}
	orch := migrate.NewOrchestrator(executor, Migrations)
	if _, err := orch.Migrate(ctx); err != nil {
		return fmt.Errorf("charter/postgres: migration failed: %w", err)
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

// isUniqueViolation reports a unique or exclusion constraint failure.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == "23505" || pgErr.Code == "23P01"
}

// ──────────────────────────────────────────────────
// Policy operations
// ──────────────────────────────────────────────────

// CreatePolicy assigns the next version of the type inside a transaction.
// A concurrent create that claims the same version fails on the
// (type, version) constraint and is reported as store.ErrConflict.
func (s *Store) CreatePolicy(ctx context.Context, p *policy.Policy) error {
	tx, err := s.pgdb.BeginTxQuery(ctx, nil)
	if err != nil {
		return fmt.Errorf("charter/postgres: begin tx: %w", err)
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
		return fmt.Errorf("charter/postgres: latest version: %w", err)
	default:
		p.Version = latest.Version + 1
	}
	p.IsActive = false

	if _, err := tx.NewInsert(policyToModel(p)).Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("policy %s v%d: %w", p.Type, p.Version, store.ErrConflict)
		}
		return fmt.Errorf("charter/postgres: create policy: %w", err)
	}
	if err := tx.Commit(); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("policy %s v%d: %w", p.Type, p.Version, store.ErrConflict)
		}
		return fmt.Errorf("charter/postgres: commit tx: %w", err)
	}
	return nil
}

func (s *Store) GetPolicy(ctx context.Context, polID id.PolicyID) (*policy.Policy, error) {
	m := new(policyModel)
	err := s.pgdb.NewSelect(m).Where("id = ?", polID.String()).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("policy %s: %w", polID, store.ErrNotFound)
		}
		return nil, fmt.Errorf("charter/postgres: get policy: %w", err)
	}
	return policyFromModel(m), nil
}

// UpdatePolicyContent rewrites the content columns of an inactive version.
// Type, version, activation and creation fields keep their stored values.
func (s *Store) UpdatePolicyContent(ctx context.Context, p *policy.Policy) error {
	cur, err := s.GetPolicy(ctx, p.ID)
	if err != nil {
		return err
	}
	if cur.IsActive {
		return fmt.Errorf("policy %s is active: %w", p.ID, store.ErrConflict)
	}

	m := policyToModel(p)
	m.Type = string(cur.Type)
	m.Version = cur.Version
	m.IsActive = false
	m.CreatedBy = cur.CreatedBy
	m.CreatedAt = cur.CreatedAt

	res, err := s.pgdb.NewUpdate(m).WherePK().Where("is_active = ?", false).Exec(ctx)
	if err != nil {
		return fmt.Errorf("charter/postgres: update policy: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("charter/postgres: update policy rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("policy %s was activated concurrently: %w", p.ID, store.ErrConflict)
	}
	return nil
}

func (s *Store) DeletePolicy(ctx context.Context, polID id.PolicyID) error {
	res, err := s.pgdb.NewDelete((*policyModel)(nil)).
		Where("id = ?", polID.String()).Exec(ctx)
	if err != nil {
		return fmt.Errorf("charter/postgres: delete policy: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("charter/postgres: delete policy rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("policy %s: %w", polID, store.ErrNotFound)
	}
	return nil
}

func (s *Store) ListPolicies(ctx context.Context, filter *policy.ListFilter) ([]*policy.Policy, error) {
	var models []policyModel
	q := s.pgdb.NewSelect(&models).OrderExpr("type ASC, version DESC")
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
		return nil, fmt.Errorf("charter/postgres: list policies: %w", err)
	}
	result := make([]*policy.Policy, len(models))
	for i := range models {
		result[i] = policyFromModel(&models[i])
	}
	return result, nil
}

func (s *Store) CountPolicies(ctx context.Context, filter *policy.ListFilter) (int64, error) {
	q := s.pgdb.NewSelect((*policyModel)(nil))
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
		return 0, fmt.Errorf("charter/postgres: count policies: %w", err)
	}
	return count, nil
}

// ActivatePolicy flips every version of the target's type in one UPDATE:
// the target becomes active and its siblings inactive. The statement locks
// all rows of the type, so concurrent activations serialise and the last
// one wins. The deferred exclusion constraint backs this up at commit.
func (s *Store) ActivatePolicy(ctx context.Context, polID id.PolicyID) (*policy.Policy, error) {
	tx, err := s.pgdb.BeginTxQuery(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("charter/postgres: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback on error is intentional

	target := new(policyModel)
	if err := tx.NewSelect(target).Where("id = ?", polID.String()).Scan(ctx); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("policy %s: %w", polID, store.ErrNotFound)
		}
		return nil, fmt.Errorf("charter/postgres: get policy: %w", err)
	}

	now := time.Now().UTC()
	_, err = tx.NewUpdate((*policyModel)(nil)).
		Set("updated_at = CASE WHEN is_active <> (id = ?) THEN ? ELSE updated_at END", polID.String(), now).
		Set("is_active = (id = ?)", polID.String()).
		Where("type = ?", target.Type).
		Exec(ctx)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("activate %s: %w", polID, store.ErrConflict)
		}
		return nil, fmt.Errorf("charter/postgres: activate policy: %w", err)
	}

	if err := tx.NewSelect(target).Where("id = ?", polID.String()).Scan(ctx); err != nil {
		return nil, fmt.Errorf("charter/postgres: reload policy: %w", err)
	}
	if err := tx.Commit(); err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("activate %s: %w", polID, store.ErrConflict)
		}
		return nil, fmt.Errorf("charter/postgres: commit tx: %w", err)
	}
	return policyFromModel(target), nil
}

func (s *Store) DeactivatePolicy(ctx context.Context, polID id.PolicyID) (*policy.Policy, error) {
	_, err := s.pgdb.NewUpdate((*policyModel)(nil)).
		Set("is_active = ?", false).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", polID.String()).
		Where("is_active = ?", true).
		Exec(ctx)
	if err != nil {
		return nil, fmt.Errorf("charter/postgres: deactivate policy: %w", err)
	}
	return s.GetPolicy(ctx, polID)
}

func (s *Store) GetActivePolicy(ctx context.Context, t policy.Type) (*policy.Policy, error) {
	m := new(policyModel)
	err := s.pgdb.NewSelect(m).
		Where("type = ?", string(t)).
		Where("is_active = ?", true).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("active %s policy: %w", t, store.ErrNotFound)
		}
		return nil, fmt.Errorf("charter/postgres: get active policy: %w", err)
	}
	return policyFromModel(m), nil
}

func (s *Store) ListActivePolicies(ctx context.Context) ([]*policy.Policy, error) {
	var models []policyModel
	err := s.pgdb.NewSelect(&models).
		Where("is_active = ?", true).
		OrderExpr("type ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("charter/postgres: list active policies: %w", err)
	}
	result := make([]*policy.Policy, len(models))
	for i := range models {
		result[i] = policyFromModel(&models[i])
	}
	return result, nil
}

// ──────────────────────────────────────────────────
// Audit operations
// ──────────────────────────────────────────────────

func (s *Store) RecordEntry(ctx context.Context, e *audit.Entry) error {
	if _, err := s.pgdb.NewInsert(auditToModel(e)).Exec(ctx); err != nil {
		return fmt.Errorf("charter/postgres: record audit entry: %w", err)
	}
	return nil
}

func (s *Store) ListEntries(ctx context.Context, filter *audit.ListFilter) ([]*audit.Entry, error) {
	var models []auditModel
	q := s.pgdb.NewSelect(&models).OrderExpr("created_at DESC, id DESC")
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
			q = q.Where("created_at >= ?", *filter.After)
		}
		if filter.Before != nil {
			q = q.Where("created_at <= ?", *filter.Before)
		}
		if filter.Limit > 0 {
			q = q.Limit(filter.Limit)
		}
		if filter.Offset > 0 {
			q = q.Offset(filter.Offset)
		}
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("charter/postgres: list audit entries: %w", err)
	}
	result := make([]*audit.Entry, len(models))
	for i := range models {
		result[i] = auditFromModel(&models[i])
	}
	return result, nil
}

func (s *Store) CountEntries(ctx context.Context, filter *audit.ListFilter) (int64, error) {
	q := s.pgdb.NewSelect((*auditModel)(nil))
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
			q = q.Where("created_at >= ?", *filter.After)
		}
		if filter.Before != nil {
			q = q.Where("created_at <= ?", *filter.Before)
		}
	}
	count, err := q.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("charter/postgres: count audit entries: %w", err)
	}
	return count, nil
}

func (s *Store) PurgeEntries(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.pgdb.NewDelete((*auditModel)(nil)).
		Where("created_at < ?", before).Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("charter/postgres: purge audit entries: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("charter/postgres: purge audit rows: %w", err)
	}
	return n, nil
}
