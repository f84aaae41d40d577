package plugin

import (
	"context"
	"log/slog"

	"github.com/xraph/charter/policy"
)

type entry[H any] struct {
	name string
	hook H
}

// Registry holds registered plugins and dispatches lifecycle events.
// Plugins are sorted into per-hook slices at registration so each emit
// only visits plugins that implement it.
type Registry struct {
	plugins []Plugin
	logger  *slog.Logger

	created          []entry[PolicyCreated]
	updated          []entry[PolicyUpdated]
	activated        []entry[PolicyActivated]
	deactivated      []entry[PolicyDeactivated]
	deleted          []entry[PolicyDeleted]
	validationFailed []entry[ValidationFailed]
	shutdown         []entry[Shutdown]
}

// NewRegistry creates a plugin registry with the given logger.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{logger: logger}
}

// Register adds a plugin. Plugins are notified in registration order.
func (r *Registry) Register(p Plugin) {
	r.plugins = append(r.plugins, p)
	name := p.Name()

	if h, ok := p.(PolicyCreated); ok {
		r.created = append(r.created, entry[PolicyCreated]{name, h})
	}
	if h, ok := p.(PolicyUpdated); ok {
		r.updated = append(r.updated, entry[PolicyUpdated]{name, h})
	}
	if h, ok := p.(PolicyActivated); ok {
		r.activated = append(r.activated, entry[PolicyActivated]{name, h})
	}
	if h, ok := p.(PolicyDeactivated); ok {
		r.deactivated = append(r.deactivated, entry[PolicyDeactivated]{name, h})
	}
	if h, ok := p.(PolicyDeleted); ok {
		r.deleted = append(r.deleted, entry[PolicyDeleted]{name, h})
	}
	if h, ok := p.(ValidationFailed); ok {
		r.validationFailed = append(r.validationFailed, entry[ValidationFailed]{name, h})
	}
	if h, ok := p.(Shutdown); ok {
		r.shutdown = append(r.shutdown, entry[Shutdown]{name, h})
	}
}

// Plugins returns all registered plugins.
func (r *Registry) Plugins() []Plugin { return r.plugins }

// EmitPolicyCreated notifies all plugins that implement PolicyCreated.
func (r *Registry) EmitPolicyCreated(ctx context.Context, p *policy.Policy) {
	for _, e := range r.created {
		if err := e.hook.OnPolicyCreated(ctx, p); err != nil {
			r.logHookError("OnPolicyCreated", e.name, err)
		}
	}
}

// EmitPolicyUpdated notifies all plugins that implement PolicyUpdated.
func (r *Registry) EmitPolicyUpdated(ctx context.Context, p *policy.Policy) {
	for _, e := range r.updated {
		if err := e.hook.OnPolicyUpdated(ctx, p); err != nil {
			r.logHookError("OnPolicyUpdated", e.name, err)
		}
	}
}

// EmitPolicyActivated notifies all plugins that implement PolicyActivated.
func (r *Registry) EmitPolicyActivated(ctx context.Context, p *policy.Policy) {
	for _, e := range r.activated {
		if err := e.hook.OnPolicyActivated(ctx, p); err != nil {
			r.logHookError("OnPolicyActivated", e.name, err)
		}
	}
}

// EmitPolicyDeactivated notifies all plugins that implement PolicyDeactivated.
func (r *Registry) EmitPolicyDeactivated(ctx context.Context, p *policy.Policy) {
	for _, e := range r.deactivated {
		if err := e.hook.OnPolicyDeactivated(ctx, p); err != nil {
			r.logHookError("OnPolicyDeactivated", e.name, err)
		}
	}
}

// EmitPolicyDeleted notifies all plugins that implement PolicyDeleted.
func (r *Registry) EmitPolicyDeleted(ctx context.Context, p *policy.Policy) {
	for _, e := range r.deleted {
		if err := e.hook.OnPolicyDeleted(ctx, p); err != nil {
			r.logHookError("OnPolicyDeleted", e.name, err)
		}
	}
}

// EmitValidationFailed notifies all plugins that implement ValidationFailed.
func (r *Registry) EmitValidationFailed(ctx context.Context, t policy.Type, cause error) {
	for _, e := range r.validationFailed {
		if err := e.hook.OnValidationFailed(ctx, t, cause); err != nil {
			r.logHookError("OnValidationFailed", e.name, err)
		}
	}
}

// EmitShutdown notifies all plugins that implement Shutdown.
func (r *Registry) EmitShutdown(ctx context.Context) {
	for _, e := range r.shutdown {
		if err := e.hook.OnShutdown(ctx); err != nil {
			r.logHookError("OnShutdown", e.name, err)
		}
	}
}

func (r *Registry) logHookError(hook, pluginName string, err error) {
	r.logger.Warn("plugin hook error",
		slog.String("hook", hook),
		slog.String("plugin", pluginName),
		slog.String("error", err.Error()),
	)
}
