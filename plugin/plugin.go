// Package plugin defines lifecycle hooks for policy versions.
//
// Each hook is its own interface so a plugin implements only the events it
// cares about. Hooks run after the store write has committed; a hook error is
// logged and never fails the operation.
package plugin

import (
	"context"

	"github.com/xraph/charter/policy"
)

// Plugin is the base interface every plugin implements.
type Plugin interface {
	// Name returns a unique human-readable name for the plugin.
	Name() string
}

// PolicyCreated is called after a draft version is created.
type PolicyCreated interface {
	OnPolicyCreated(ctx context.Context, p *policy.Policy) error
}

// PolicyUpdated is called after a draft's content or config changes.
type PolicyUpdated interface {
	OnPolicyUpdated(ctx context.Context, p *policy.Policy) error
}

// PolicyActivated is called after a version becomes the current one for
// its type.
type PolicyActivated interface {
	OnPolicyActivated(ctx context.Context, p *policy.Policy) error
}

// PolicyDeactivated is called after a version is deactivated.
type PolicyDeactivated interface {
	OnPolicyDeactivated(ctx context.Context, p *policy.Policy) error
}

// PolicyDeleted is called after a version is hard-deleted.
type PolicyDeleted interface {
	OnPolicyDeleted(ctx context.Context, p *policy.Policy) error
}

// ValidationFailed is called when a submitted config is rejected.
type ValidationFailed interface {
	OnValidationFailed(ctx context.Context, t policy.Type, err error) error
}

// Shutdown is called when the engine stops.
type Shutdown interface {
	OnShutdown(ctx context.Context) error
}
