// Package policy defines the versioned store Policy document, its closed
// set of types and the typed configuration record attached to each type.
package policy

import (
	"fmt"
	"strings"
	"time"

	"github.com/xraph/charter/id"
)

// Type is the business category a policy governs.
type Type string

const (
	TypeReturn       Type = "return"
	TypeRefund       Type = "refund"
	TypeWarranty     Type = "warranty"
	TypeShipping     Type = "shipping"
	TypePrescription Type = "prescription"
	TypeCancellation Type = "cancellation"
	TypePrivacy      Type = "privacy"
	TypeTerms        Type = "terms"
)

var allTypes = []Type{
	TypeReturn,
	TypeRefund,
	TypeWarranty,
	TypeShipping,
	TypePrescription,
	TypeCancellation,
	TypePrivacy,
	TypeTerms,
}

// Types returns every policy type in declaration order.
func Types() []Type {
	out := make([]Type, len(allTypes))
	copy(out, allTypes)
	return out
}

// ParseType maps a string onto a known Type. Matching is case-insensitive.
func ParseType(s string) (Type, error) {
	t := Type(strings.ToLower(strings.TrimSpace(s)))
	if t.Valid() {
		return t, nil
	}
	return "", fmt.Errorf("policy: unknown type %q", s)
}

// Valid reports whether t is one of the known types.
func (t Type) Valid() bool {
	for _, k := range allTypes {
		if k == t {
			return true
		}
	}
	return false
}

// RequiresConfig is false for document-only types whose config is ignored.
func (t Type) RequiresConfig() bool {
	return t != TypePrivacy && t != TypeTerms
}

func (t Type) String() string { return string(t) }

// Policy is one version of a policy document for a given type.
//
// At most one Policy per Type has IsActive set. Version is assigned by the
// store at creation and never changes afterwards.
type Policy struct {
	ID               id.PolicyID    `json:"id"`
	Type             Type           `json:"type"`
	Version          int            `json:"version"`
	Title            string         `json:"title"`
	Summary          string         `json:"summary"`
	BodyPlainText    string         `json:"bodyPlainText"`
	BodyRichTextJSON map[string]any `json:"bodyRichTextJson,omitempty"`
	Config           map[string]any `json:"config"`
	IsActive         bool           `json:"isActive"`
	EffectiveFrom    time.Time      `json:"effectiveFrom"`
	CreatedBy        string         `json:"createdBy,omitempty"`
	CreatedAt        time.Time      `json:"createdAt"`
	UpdatedAt        time.Time      `json:"updatedAt"`
}

// Clone returns a copy that shares no maps with p.
func (p *Policy) Clone() *Policy {
	if p == nil {
		return nil
	}
	cp := *p
	cp.Config = cloneMap(p.Config)
	cp.BodyRichTextJSON = cloneMap(p.BodyRichTextJSON)
	return &cp
}

// Content holds the editable, non-structural fields of a policy.
// Nil fields are left untouched by an update.
type Content struct {
	Title            *string        `json:"title,omitempty"`
	Summary          *string        `json:"summary,omitempty"`
	BodyPlainText    *string        `json:"bodyPlainText,omitempty"`
	BodyRichTextJSON map[string]any `json:"bodyRichTextJson,omitempty"`
	Config           map[string]any `json:"config,omitempty"`
	EffectiveFrom    *time.Time     `json:"effectiveFrom,omitempty"`
}

// Apply copies the set fields of c onto p. Config replaces wholesale; merge
// before calling if a partial config is intended.
func (c *Content) Apply(p *Policy) {
	if c.Title != nil {
		p.Title = *c.Title
	}
	if c.Summary != nil {
		p.Summary = *c.Summary
	}
	if c.BodyPlainText != nil {
		p.BodyPlainText = *c.BodyPlainText
	}
	if c.BodyRichTextJSON != nil {
		p.BodyRichTextJSON = cloneMap(c.BodyRichTextJSON)
	}
	if c.Config != nil {
		p.Config = cloneMap(c.Config)
	}
	if c.EffectiveFrom != nil {
		p.EffectiveFrom = *c.EffectiveFrom
	}
}

// ListFilter narrows ListPolicies and CountPolicies.
type ListFilter struct {
	Type     Type  `json:"type,omitempty"`
	IsActive *bool `json:"isActive,omitempty"`
	Limit    int   `json:"limit,omitempty"`
	Offset   int   `json:"offset,omitempty"`
}

// MergeConfig returns base with every top-level key of patch written over it.
func MergeConfig(base, patch map[string]any) map[string]any {
	out := make(map[string]any, len(base)+len(patch))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range patch {
		out[k] = v
	}
	return out
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
