// Package mongo provides a MongoDB implementation of the Charter composite
// store. Activation and version assignment run in multi-document
// transactions, which require a replica set or sharded cluster.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	mongod "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/mongodriver"

	"github.com/xraph/charter/audit"
	"github.com/xraph/charter/id"
	"github.com/xraph/charter/policy"
	"github.com/xraph/charter/store"
)

// Collection name constants.
const (
	colPolicies = "charter_policies"
	colAudit    = "charter_policy_audit"
)

// Compile-time interface check.
var _ store.Store = (*Store)(nil)

// Store is a MongoDB implementation of the composite Charter store.
type Store struct {
	db  *grove.DB
	mdb *mongodriver.MongoDB
}

// New creates a new MongoDB store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db:  db,
		mdb: mongodriver.Unwrap(db),
	}
}

// Open connects to the MongoDB deployment at uri and returns a store over
// it. The database is taken from the URI path.
func Open(ctx context.Context, uri string) (*Store, error) {
	drv := mongodriver.New()
	if err := drv.Open(ctx, uri); err != nil {
		return nil, fmt.Errorf("charter/mongo: open: %w", err)
	}
	db, err := grove.Open(drv)
	if err != nil {
		return nil, fmt.Errorf("charter/mongo: open grove: %w", err)
	}
	return New(db), nil
}

// Migrate creates indexes for all charter collections.
func (s *Store) Migrate(ctx context.Context) error {
	indexes := migrationIndexes()
	for col, models := range indexes {
		if len(models) == 0 {
			continue
		}
		_, err := s.mdb.Collection(col).Indexes().CreateMany(ctx, models)
		if err != nil {
			return fmt.Errorf("charter/mongo: migrate %s indexes: %w", col, err)
		}
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

// now returns the current UTC time.
func now() time.Time {
	return time.Now().UTC()
}

// isNoDocuments checks if an error wraps mongo.ErrNoDocuments.
func isNoDocuments(err error) bool {
	return errors.Is(err, mongod.ErrNoDocuments)
}

// migrationIndexes returns the index definitions for all charter collections.
func migrationIndexes() map[string][]mongod.IndexModel {
	return map[string][]mongod.IndexModel{
		colPolicies: {
			{
				Keys:    bson.D{{Key: "type", Value: 1}, {Key: "version", Value: -1}},
				Options: options.Index().SetUnique(true).SetName("type_version"),
			},
			{
				Keys: bson.D{{Key: "type", Value: 1}},
				Options: options.Index().
					SetUnique(true).
					SetName("one_active_per_type").
					SetPartialFilterExpression(bson.M{"is_active": true}),
			},
			{Keys: bson.D{{Key: "is_active", Value: 1}}},
		},
		colAudit: {
			{Keys: bson.D{{Key: "policy_id", Value: 1}}},
			{Keys: bson.D{{Key: "policy_type", Value: 1}, {Key: "created_at", Value: -1}}},
			{Keys: bson.D{{Key: "created_at", Value: -1}}},
		},
	}
}

// withTx runs fn inside a multi-document transaction. The driver retries
// fn on transient errors such as write conflicts between concurrent
// activations.
func (s *Store) withTx(ctx context.Context, fn func(ctx context.Context) error) error {
	client := s.mdb.Collection(colPolicies).Database().Client()
	sess, err := client.StartSession()
	if err != nil {
		return fmt.Errorf("charter/mongo: start session: %w", err)
	}
	defer sess.EndSession(ctx)

	_, err = sess.WithTransaction(ctx, func(ctx context.Context) (any, error) {
		return nil, fn(ctx)
	})
	return err
}

// ──────────────────────────────────────────────────
// Policy operations
// ──────────────────────────────────────────────────

func (s *Store) CreatePolicy(ctx context.Context, p *policy.Policy) error {
	coll := s.mdb.Collection(colPolicies)
	err := s.withTx(ctx, func(ctx context.Context) error {
		var latest policyModel
		err := coll.FindOne(ctx,
			bson.M{"type": string(p.Type)},
			options.FindOne().SetSort(bson.D{{Key: "version", Value: -1}}),
		).Decode(&latest)
		switch {
		case isNoDocuments(err):
			p.Version = 1
		case err != nil:
			return fmt.Errorf("latest version: %w", err)
		default:
			p.Version = latest.Version + 1
		}
		p.IsActive = false
		_, err = coll.InsertOne(ctx, policyToModel(p))
		return err
	})
	if err != nil {
		if mongod.IsDuplicateKeyError(err) {
			return fmt.Errorf("policy %s v%d: %w", p.Type, p.Version, store.ErrConflict)
		}
		return fmt.Errorf("charter/mongo: create policy: %w", err)
	}
	return nil
}

func (s *Store) GetPolicy(ctx context.Context, polID id.PolicyID) (*policy.Policy, error) {
	var m policyModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": polID.String()}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, fmt.Errorf("policy %s: %w", polID, store.ErrNotFound)
		}
		return nil, fmt.Errorf("charter/mongo: get policy: %w", err)
	}
	return policyFromModel(&m), nil
}

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

	res, err := s.mdb.NewUpdate(m).
		Filter(bson.M{"_id": m.ID, "is_active": false}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("charter/mongo: update policy: %w", err)
	}
	if res.MatchedCount() == 0 {
		return fmt.Errorf("policy %s was activated concurrently: %w", p.ID, store.ErrConflict)
	}
	return nil
}

func (s *Store) DeletePolicy(ctx context.Context, polID id.PolicyID) error {
	res, err := s.mdb.NewDelete((*policyModel)(nil)).
		Filter(bson.M{"_id": polID.String()}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("charter/mongo: delete policy: %w", err)
	}
	if res.DeletedCount() == 0 {
		return fmt.Errorf("policy %s: %w", polID, store.ErrNotFound)
	}
	return nil
}

func policyFilter(filter *policy.ListFilter) bson.M {
	f := bson.M{}
	if filter != nil {
		if filter.Type != "" {
			f["type"] = string(filter.Type)
		}
		if filter.IsActive != nil {
			f["is_active"] = *filter.IsActive
		}
	}
	return f
}

func (s *Store) ListPolicies(ctx context.Context, filter *policy.ListFilter) ([]*policy.Policy, error) {
	var models []policyModel
	q := s.mdb.NewFind(&models).
		Filter(policyFilter(filter)).
		Sort(bson.D{{Key: "type", Value: 1}, {Key: "version", Value: -1}})
	if filter != nil {
		if filter.Limit > 0 {
			q = q.Limit(int64(filter.Limit))
		}
		if filter.Offset > 0 {
			q = q.Skip(int64(filter.Offset))
		}
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("charter/mongo: list policies: %w", err)
	}
	return policiesFromModels(models), nil
}

func (s *Store) CountPolicies(ctx context.Context, filter *policy.ListFilter) (int64, error) {
	count, err := s.mdb.NewFind((*policyModel)(nil)).
		Filter(policyFilter(filter)).
		Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("charter/mongo: count policies: %w", err)
	}
	return count, nil
}

// ActivatePolicy clears the active flag on the target's siblings and sets
// it on the target inside one transaction. Concurrent activations of the
// same type conflict on the shared documents; the driver retries the loser,
// which then observes the winner's state.
func (s *Store) ActivatePolicy(ctx context.Context, polID id.PolicyID) (*policy.Policy, error) {
	coll := s.mdb.Collection(colPolicies)
	var target policyModel
	err := s.withTx(ctx, func(ctx context.Context) error {
		if err := coll.FindOne(ctx, bson.M{"_id": polID.String()}).Decode(&target); err != nil {
			return err
		}
		t := now()
		if _, err := coll.UpdateMany(ctx,
			bson.M{"type": target.Type, "is_active": true, "_id": bson.M{"$ne": polID.String()}},
			bson.M{"$set": bson.M{"is_active": false, "updated_at": t}},
		); err != nil {
			return err
		}
		if !target.IsActive {
			if _, err := coll.UpdateOne(ctx,
				bson.M{"_id": polID.String()},
				bson.M{"$set": bson.M{"is_active": true, "updated_at": t}},
			); err != nil {
				return err
			}
			target.IsActive = true
			target.UpdatedAt = t
		}
		return nil
	})
	if err != nil {
		switch {
		case isNoDocuments(err):
			return nil, fmt.Errorf("policy %s: %w", polID, store.ErrNotFound)
		case mongod.IsDuplicateKeyError(err):
			return nil, fmt.Errorf("activate %s: %w", polID, store.ErrConflict)
		default:
			return nil, fmt.Errorf("charter/mongo: activate policy: %w", err)
		}
	}
	return policyFromModel(&target), nil
}

func (s *Store) DeactivatePolicy(ctx context.Context, polID id.PolicyID) (*policy.Policy, error) {
	_, err := s.mdb.NewUpdate((*policyModel)(nil)).
		Filter(bson.M{"_id": polID.String(), "is_active": true}).
		Set("is_active", false).
		Set("updated_at", now()).
		Exec(ctx)
	if err != nil {
		return nil, fmt.Errorf("charter/mongo: deactivate policy: %w", err)
	}
	return s.GetPolicy(ctx, polID)
}

func (s *Store) GetActivePolicy(ctx context.Context, t policy.Type) (*policy.Policy, error) {
	var m policyModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"type": string(t), "is_active": true}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, fmt.Errorf("active %s policy: %w", t, store.ErrNotFound)
		}
		return nil, fmt.Errorf("charter/mongo: get active policy: %w", err)
	}
	return policyFromModel(&m), nil
}

func (s *Store) ListActivePolicies(ctx context.Context) ([]*policy.Policy, error) {
	var models []policyModel
	if err := s.mdb.NewFind(&models).
		Filter(bson.M{"is_active": true}).
		Sort(bson.D{{Key: "type", Value: 1}}).
		Scan(ctx); err != nil {
		return nil, fmt.Errorf("charter/mongo: list active policies: %w", err)
	}
	return policiesFromModels(models), nil
}

// ──────────────────────────────────────────────────
// Audit operations
// ──────────────────────────────────────────────────

func (s *Store) RecordEntry(ctx context.Context, e *audit.Entry) error {
	if _, err := s.mdb.NewInsert(auditToModel(e)).Exec(ctx); err != nil {
		return fmt.Errorf("charter/mongo: record audit entry: %w", err)
	}
	return nil
}

func auditFilter(filter *audit.ListFilter) bson.M {
	f := bson.M{}
	if filter == nil {
		return f
	}
	if !filter.PolicyID.IsNil() {
		f["policy_id"] = filter.PolicyID.String()
	}
	if filter.PolicyType != "" {
		f["policy_type"] = filter.PolicyType
	}
	if filter.Action != "" {
		f["action"] = string(filter.Action)
	}
	if filter.ActorID != "" {
		f["actor_id"] = filter.ActorID
	}
	if filter.After != nil || filter.Before != nil {
		rng := bson.M{}
		if filter.After != nil {
			rng["$gte"] = *filter.After
		}
		if filter.Before != nil {
			rng["$lte"] = *filter.Before
		}
		f["created_at"] = rng
	}
	return f
}

func (s *Store) ListEntries(ctx context.Context, filter *audit.ListFilter) ([]*audit.Entry, error) {
	var models []auditModel
	q := s.mdb.NewFind(&models).
		Filter(auditFilter(filter)).
		Sort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}})
	if filter != nil {
		if filter.Limit > 0 {
			q = q.Limit(int64(filter.Limit))
		}
		if filter.Offset > 0 {
			q = q.Skip(int64(filter.Offset))
		}
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("charter/mongo: list audit entries: %w", err)
	}
	result := make([]*audit.Entry, len(models))
	for i := range models {
		result[i] = auditFromModel(&models[i])
	}
	return result, nil
}

func (s *Store) CountEntries(ctx context.Context, filter *audit.ListFilter) (int64, error) {
	count, err := s.mdb.NewFind((*auditModel)(nil)).
		Filter(auditFilter(filter)).
		Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("charter/mongo: count audit entries: %w", err)
	}
	return count, nil
}

func (s *Store) PurgeEntries(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.mdb.NewDelete((*auditModel)(nil)).
		Many().
		Filter(bson.M{"created_at": bson.M{"$lt": before}}).
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("charter/mongo: purge audit entries: %w", err)
	}
	return res.DeletedCount(), nil
}
