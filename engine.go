package charter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/xraph/charter/audit"
	"github.com/xraph/charter/id"
	"github.com/xraph/charter/plugin"
	"github.com/xraph/charter/policy"
	"github.com/xraph/charter/schema"
	"github.com/xraph/charter/store"
)

// Engine is the policy service. It is the only writer of policy versions
// and owns the versioning and single-active-per-type rules.
type Engine struct {
	store   store.Store
	cache   Cache
	plugins *plugin.Registry
	logger  *slog.Logger
	config  Config
	now     func() time.Time

	// genMu guards gen, the per-type count of cache invalidations. A read
	// fills the cache only if no invalidation happened since it began.
	genMu sync.Mutex
	gen   map[policy.Type]uint64
}

// NewEngine creates a new charter engine with the given options.
func NewEngine(opts ...Option) (*Engine, error) {
	e := &Engine{
		logger: slog.Default(),
		config: DefaultConfig(),
		now:    time.Now,
		gen:    make(map[policy.Type]uint64),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.store == nil {
		return nil, errors.New("charter: store is required")
	}
	return e, nil
}

// Store returns the underlying composite store.
func (e *Engine) Store() store.Store { return e.store }

// Plugins returns the plugin registry (may be nil).
func (e *Engine) Plugins() *plugin.Registry { return e.plugins }

// Start performs any startup initialization.
func (e *Engine) Start(ctx context.Context) error {
	if err := e.store.Ping(ctx); err != nil {
		return fmt.Errorf("charter: store ping: %w", err)
	}
	return nil
}

// Stop notifies shutdown hooks.
func (e *Engine) Stop(ctx context.Context) error {
	if e.plugins != nil {
		e.plugins.EmitShutdown(ctx)
	}
	return nil
}

// CreateInput is the payload for CreatePolicy.
type CreateInput struct {
	Type             policy.Type    `json:"type"`
	Title            string         `json:"title"`
	Summary          string         `json:"summary"`
	BodyPlainText    string         `json:"bodyPlainText"`
	BodyRichTextJSON map[string]any `json:"bodyRichTextJson,omitempty"`
	Config           map[string]any `json:"config,omitempty"`
	EffectiveFrom    *time.Time     `json:"effectiveFrom,omitempty"`
}

// UpdateInput is the payload for UpdatePolicy. Type may be repeated but
// must match the stored type. Config is merged key by key over the stored
// config.
type UpdateInput struct {
	Type policy.Type `json:"type,omitempty"`
	policy.Content
}

// CreatePolicy validates in and stores it as a new draft. The store assigns
// the next version number for the type.
func (e *Engine) CreatePolicy(ctx context.Context, in *CreateInput) (*policy.Policy, error) {
	t, err := parseType(string(in.Type))
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.Title) == "" {
		return nil, fmt.Errorf("%w: title is required", ErrValidation)
	}

	cfg, err := e.checkConfig(ctx, t, in.Config)
	if err != nil {
		return nil, err
	}

	now := e.now().UTC()
	effective := now
	if in.EffectiveFrom != nil && !in.EffectiveFrom.IsZero() {
		effective = in.EffectiveFrom.UTC()
	}

	p := &policy.Policy{
		ID:               id.NewPolicyID(),
		Type:             t,
		Title:            strings.TrimSpace(in.Title),
		Summary:          in.Summary,
		BodyPlainText:    in.BodyPlainText,
		BodyRichTextJSON: in.BodyRichTextJSON,
		Config:           cfg,
		EffectiveFrom:    effective,
		CreatedBy:        ActorFromContext(ctx),
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := e.store.CreatePolicy(ctx, p); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, fmt.Errorf("%w: %s: %w", ErrVersionConflict, t, err)
		}
		return nil, fmt.Errorf("charter: create policy: %w", err)
	}

	e.logger.Info("policy created",
		slog.String("policy_id", p.ID.String()),
		slog.String("type", string(p.Type)),
		slog.Int("version", p.Version),
	)
	e.record(ctx, p, audit.ActionCreated, nil)
	if e.plugins != nil {
		e.plugins.EmitPolicyCreated(ctx, p)
	}
	return p, nil
}

// UpdatePolicy edits the content and config of an inactive version. Type,
// version and activation never change.
func (e *Engine) UpdatePolicy(ctx context.Context, polID id.PolicyID, in *UpdateInput) (*policy.Policy, error) {
	p, err := e.GetPolicy(ctx, polID)
	if err != nil {
		return nil, err
	}
	if in.Type != "" {
		if t, perr := policy.ParseType(string(in.Type)); perr != nil || t != p.Type {
			return nil, fmt.Errorf("%w: %s is a %s policy", ErrTypeImmutable, polID, p.Type)
		}
	}
	if p.IsActive {
		return nil, fmt.Errorf("%w: %s", ErrPolicyActive, polID)
	}
	if in.Title != nil && strings.TrimSpace(*in.Title) == "" {
		return nil, fmt.Errorf("%w: title must not be blank", ErrValidation)
	}

	content := in.Content
	if len(in.Config) > 0 {
		merged, err := e.checkConfig(ctx, p.Type, policy.MergeConfig(p.Config, in.Config))
		if err != nil {
			return nil, err
		}
		content.Config = merged
	} else {
		content.Config = nil
	}
	content.Apply(p)
	p.UpdatedAt = e.now().UTC()

	if err := e.store.UpdatePolicyContent(ctx, p); err != nil {
		return nil, e.policyErr(polID, err)
	}

	e.record(ctx, p, audit.ActionUpdated, nil)
	if e.plugins != nil {
		e.plugins.EmitPolicyUpdated(ctx, p)
	}
	return p, nil
}

// ActivatePolicy makes polID the current version of its type and
// deactivates every sibling in the same store transaction. Concurrent
// activations of one type resolve to the last writer.
func (e *Engine) ActivatePolicy(ctx context.Context, polID id.PolicyID) (*policy.Policy, error) {
	target, err := e.GetPolicy(ctx, polID)
	if err != nil {
		return nil, err
	}
	var detail map[string]any
	if prev, perr := e.store.GetActivePolicy(ctx, target.Type); perr == nil && prev.ID != target.ID {
		detail = map[string]any{"previousActiveId": prev.ID.String(), "previousVersion": prev.Version}
	}

	p, err := e.store.ActivatePolicy(ctx, polID)
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, fmt.Errorf("%w: %s: %w", ErrActivationConflict, polID, err)
		}
		return nil, e.policyErr(polID, err)
	}
	e.invalidate(ctx, p.Type)

	e.logger.Info("policy activated",
		slog.String("policy_id", p.ID.String()),
		slog.String("type", string(p.Type)),
		slog.Int("version", p.Version),
	)
	e.record(ctx, p, audit.ActionActivated, detail)
	if e.plugins != nil {
		e.plugins.EmitPolicyActivated(ctx, p)
	}
	return p, nil
}

// DeactivatePolicy clears the active flag of polID. No other version is
// promoted, so the type may be left without a current policy.
func (e *Engine) DeactivatePolicy(ctx context.Context, polID id.PolicyID) (*policy.Policy, error) {
	p, err := e.store.DeactivatePolicy(ctx, polID)
	if err != nil {
		return nil, e.policyErr(polID, err)
	}
	e.invalidate(ctx, p.Type)

	e.record(ctx, p, audit.ActionDeactivated, nil)
	if e.plugins != nil {
		e.plugins.EmitPolicyDeactivated(ctx, p)
	}
	return p, nil
}

// DeletePolicy hard-deletes a version and returns what was removed.
func (e *Engine) DeletePolicy(ctx context.Context, polID id.PolicyID) (*policy.Policy, error) {
	p, err := e.GetPolicy(ctx, polID)
	if err != nil {
		return nil, err
	}
	if err := e.store.DeletePolicy(ctx, polID); err != nil {
		return nil, e.policyErr(polID, err)
	}
	if p.IsActive {
		e.invalidate(ctx, p.Type)
	}

	e.logger.Warn("policy deleted",
		slog.String("policy_id", p.ID.String()),
		slog.String("type", string(p.Type)),
		slog.Int("version", p.Version),
		slog.Bool("was_active", p.IsActive),
	)
	e.record(ctx, p, audit.ActionDeleted, map[string]any{"wasActive": p.IsActive})
	if e.plugins != nil {
		e.plugins.EmitPolicyDeleted(ctx, p)
	}
	return p, nil
}

// GetPolicy returns a single version by ID.
func (e *Engine) GetPolicy(ctx context.Context, polID id.PolicyID) (*policy.Policy, error) {
	if polID.IsNil() || polID.Prefix() != id.PrefixPolicy {
		return nil, fmt.Errorf("%w: %q", ErrInvalidID, polID.String())
	}
	p, err := e.store.GetPolicy(ctx, polID)
	if err != nil {
		return nil, e.policyErr(polID, err)
	}
	return p, nil
}

// ListPolicies returns one page of versions and the total matching count.
func (e *Engine) ListPolicies(ctx context.Context, filter *policy.ListFilter) ([]*policy.Policy, int64, error) {
	f := policy.ListFilter{}
	if filter != nil {
		f = *filter
	}
	if f.Type != "" {
		t, err := parseType(string(f.Type))
		if err != nil {
			return nil, 0, err
		}
		f.Type = t
	}
	f.Limit = e.config.listLimit(f.Limit)
	if f.Offset < 0 {
		f.Offset = 0
	}

	list, err := e.store.ListPolicies(ctx, &f)
	if err != nil {
		return nil, 0, fmt.Errorf("charter: list policies: %w", err)
	}
	total, err := e.store.CountPolicies(ctx, &f)
	if err != nil {
		return nil, 0, fmt.Errorf("charter: count policies: %w", err)
	}
	return list, total, nil
}

// CurrentPolicy returns the active version of t.
func (e *Engine) CurrentPolicy(ctx context.Context, t policy.Type) (*policy.Policy, error) {
	t, err := parseType(string(t))
	if err != nil {
		return nil, err
	}
	if e.cache == nil {
		return e.activePolicy(ctx, t)
	}
	if p, ok := e.cache.Get(ctx, t); ok {
		return p, nil
	}

	gen := e.generation(t)
	p, err := e.activePolicy(ctx, t)
	if err != nil {
		return nil, err
	}
	if !e.fill(ctx, gen, p) {
		return p, nil
	}

	// A shared cache may have been invalidated by another process between
	// the read and the fill. Drop the entry if the store moved on.
	if cur, err := e.store.GetActivePolicy(ctx, t); err != nil || cur.ID != p.ID {
		e.invalidate(ctx, t)
	}
	return p, nil
}

func (e *Engine) activePolicy(ctx context.Context, t policy.Type) (*policy.Policy, error) {
	p, err := e.store.GetActivePolicy(ctx, t)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNoActivePolicy, t)
		}
		return nil, fmt.Errorf("charter: current %s policy: %w", t, err)
	}
	return p, nil
}

func (e *Engine) generation(t policy.Type) uint64 {
	e.genMu.Lock()
	defer e.genMu.Unlock()
	return e.gen[t]
}

// fill caches p unless its type was invalidated after gen was taken.
func (e *Engine) fill(ctx context.Context, gen uint64, p *policy.Policy) bool {
	e.genMu.Lock()
	defer e.genMu.Unlock()
	if e.gen[p.Type] != gen {
		return false
	}
	e.cache.Set(ctx, p)
	return true
}

// CurrentPolicies returns the active version of every type that has one.
func (e *Engine) CurrentPolicies(ctx context.Context) (map[policy.Type]*policy.Policy, error) {
	list, err := e.store.ListActivePolicies(ctx)
	if err != nil {
		return nil, fmt.Errorf("charter: current policies: %w", err)
	}
	out := make(map[policy.Type]*policy.Policy, len(list))
	for _, p := range list {
		out[p.Type] = p
	}
	return out, nil
}

// PolicyHistory returns every version of t, newest first.
func (e *Engine) PolicyHistory(ctx context.Context, t policy.Type) ([]*policy.Policy, error) {
	t, err := parseType(string(t))
	if err != nil {
		return nil, err
	}
	list, err := e.store.ListPolicies(ctx, &policy.ListFilter{Type: t})
	if err != nil {
		return nil, fmt.Errorf("charter: %s history: %w", t, err)
	}
	return list, nil
}

// ListAudit returns one page of audit entries and the total matching count.
func (e *Engine) ListAudit(ctx context.Context, filter *audit.ListFilter) ([]*audit.Entry, int64, error) {
	f := audit.ListFilter{}
	if filter != nil {
		f = *filter
	}
	f.Limit = e.config.listLimit(f.Limit)

	list, err := e.store.ListEntries(ctx, &f)
	if err != nil {
		return nil, 0, fmt.Errorf("charter: list audit: %w", err)
	}
	total, err := e.store.CountEntries(ctx, &f)
	if err != nil {
		return nil, 0, fmt.Errorf("charter: count audit: %w", err)
	}
	return list, total, nil
}

// PurgeAudit removes entries older than Config.AuditRetention. It is a
// no-op when no retention is configured.
func (e *Engine) PurgeAudit(ctx context.Context) (int64, error) {
	if e.config.AuditRetention <= 0 {
		return 0, nil
	}
	n, err := e.store.PurgeEntries(ctx, e.now().UTC().Add(-e.config.AuditRetention))
	if err != nil {
		return 0, fmt.Errorf("charter: purge audit: %w", err)
	}
	return n, nil
}

// checkConfig validates cfg for t and returns the map to persist.
func (e *Engine) checkConfig(ctx context.Context, t policy.Type, cfg map[string]any) (map[string]any, error) {
	if !t.RequiresConfig() || cfg == nil {
		return map[string]any{}, nil
	}
	if err := schema.Validate(t, cfg); err != nil {
		if e.plugins != nil {
			e.plugins.EmitValidationFailed(ctx, t, err)
		}
		return nil, fmt.Errorf("%w: %w", ErrValidation, err)
	}
	return cfg, nil
}

func (e *Engine) invalidate(ctx context.Context, t policy.Type) {
	if e.cache == nil {
		return
	}
	e.genMu.Lock()
	defer e.genMu.Unlock()
	e.gen[t]++
	e.cache.Invalidate(ctx, t)
}

// record appends an audit entry. The policy write has already committed,
// so a failure here is logged rather than returned.
func (e *Engine) record(ctx context.Context, p *policy.Policy, action audit.Action, detail map[string]any) {
	if e.config.DisableAudit {
		return
	}
	entry := &audit.Entry{
		ID:         id.NewAuditID(),
		PolicyID:   p.ID,
		PolicyType: string(p.Type),
		Version:    p.Version,
		Action:     action,
		ActorID:    ActorFromContext(ctx),
		Detail:     detail,
		CreatedAt:  e.now().UTC(),
	}
	if err := e.store.RecordEntry(context.WithoutCancel(ctx), entry); err != nil {
		e.logger.Warn("audit write failed",
			slog.String("policy_id", p.ID.String()),
			slog.String("action", string(action)),
			slog.String("error", err.Error()),
		)
	}
}

func (e *Engine) policyErr(polID id.PolicyID, err error) error {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return fmt.Errorf("%w: %s", ErrPolicyNotFound, polID)
	case errors.Is(err, store.ErrConflict):
		return fmt.Errorf("%w: %s", ErrPolicyActive, polID)
	default:
		return fmt.Errorf("charter: policy %s: %w", polID, err)
	}
}

func parseType(s string) (policy.Type, error) {
	t, err := policy.ParseType(s)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidType, s)
	}
	return t, nil
}
