package charter

import (
	"context"

	"github.com/xraph/charter/policy"
)

// Cache holds the current (active) version of each policy type for the
// public read paths. The engine invalidates a type after every write to it.
type Cache interface {
	// Get returns the cached active policy for t, if present.
	Get(ctx context.Context, t policy.Type) (*policy.Policy, bool)

	// Set stores p as the active policy of its type.
	Set(ctx context.Context, p *policy.Policy)

	// Invalidate drops the entry for t.
	Invalidate(ctx context.Context, t policy.Type)
}
