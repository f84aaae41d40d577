package policy

import (
	"context"

	"github.com/xraph/charter/id"
)

// Store defines persistence for policy versions.
//
// Implementations own two atomic compound writes: CreatePolicy assigns the
// next version for the type, and ActivatePolicy flips every version of the
// type in one transaction.
type Store interface {
	// CreatePolicy persists p as a new draft. The store sets p.Version to
	// one more than the highest existing version of p.Type.
	CreatePolicy(ctx context.Context, p *Policy) error

	// GetPolicy retrieves a policy version by ID.
	GetPolicy(ctx context.Context, polID id.PolicyID) (*Policy, error)

	// UpdatePolicyContent writes the content, config and effective date of
	// an inactive policy. Type, version and activation are never touched.
	UpdatePolicyContent(ctx context.Context, p *Policy) error

	// DeletePolicy hard-deletes a policy version.
	DeletePolicy(ctx context.Context, polID id.PolicyID) error

	// ListPolicies returns versions matching the filter, newest type
	// version first.
	ListPolicies(ctx context.Context, filter *ListFilter) ([]*Policy, error)

	// CountPolicies returns the number of versions matching the filter.
	CountPolicies(ctx context.Context, filter *ListFilter) (int64, error)

	// ActivatePolicy marks polID active and every other version of its
	// type inactive, atomically. It returns the activated policy.
	ActivatePolicy(ctx context.Context, polID id.PolicyID) (*Policy, error)

	// DeactivatePolicy clears the active flag of polID only.
	DeactivatePolicy(ctx context.Context, polID id.PolicyID) (*Policy, error)

	// GetActivePolicy returns the active version for t.
	GetActivePolicy(ctx context.Context, t Type) (*Policy, error)

	// ListActivePolicies returns the active version of every type that
	// has one.
	ListActivePolicies(ctx context.Context) ([]*Policy, error)
}
