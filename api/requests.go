package api

import (
	"time"

	"github.com/xraph/charter/policy"
)

// CreatePolicyRequest is the body for authoring a new policy version.
type CreatePolicyRequest struct {
	Type             string         `json:"type" description:"Policy type (return, refund, warranty, shipping, prescription, cancellation, privacy, terms)"`
	Title            string         `json:"title" description:"Display title"`
	Summary          string         `json:"summary,omitempty" description:"Short summary"`
	BodyPlainText    string         `json:"bodyPlainText,omitempty" description:"Plain-text body"`
	BodyRichTextJSON map[string]any `json:"bodyRichTextJson,omitempty" description:"Rich-text editor document"`
	Config           map[string]any `json:"config,omitempty" description:"Type-specific configuration"`
	EffectiveFrom    *time.Time     `json:"effectiveFrom,omitempty" description:"Effective date (default: now)"`
}

// UpdatePolicyRequest is the body for editing an inactive version. Absent
// fields are left unchanged; config is merged key by key.
type UpdatePolicyRequest struct {
	Type             string         `json:"type,omitempty" description:"Must match the stored type when present"`
	Title            *string        `json:"title,omitempty" description:"Display title"`
	Summary          *string        `json:"summary,omitempty" description:"Short summary"`
	BodyPlainText    *string        `json:"bodyPlainText,omitempty" description:"Plain-text body"`
	BodyRichTextJSON map[string]any `json:"bodyRichTextJson,omitempty" description:"Rich-text editor document"`
	Config           map[string]any `json:"config,omitempty" description:"Partial configuration to merge"`
	EffectiveFrom    *time.Time     `json:"effectiveFrom,omitempty" description:"Effective date"`
}

// PolicyRefRequest is the path parameter naming a policy ID or a type.
type PolicyRefRequest struct {
	Ref string `path:"ref" description:"Policy ID, or policy type on read routes"`
}

// ListPoliciesRequest holds query parameters for the management listing.
type ListPoliciesRequest struct {
	Type   string `query:"type" optional:"true" description:"Filter by policy type"`
	Active string `query:"active" optional:"true" description:"Filter by active status (true/false)"`
	Limit  int    `query:"limit" optional:"true" description:"Maximum results (default: 50)"`
	Offset int    `query:"offset" optional:"true" description:"Results to skip"`
}

// ListAuditRequest holds query parameters for the audit trail.
type ListAuditRequest struct {
	PolicyID string `query:"policyId" optional:"true" description:"Filter by policy ID"`
	Type     string `query:"type" optional:"true" description:"Filter by policy type"`
	Action   string `query:"action" optional:"true" description:"Filter by action"`
	ActorID  string `query:"actorId" optional:"true" description:"Filter by actor"`
	Limit    int    `query:"limit" optional:"true" description:"Maximum results (default: 50)"`
	Offset   int    `query:"offset" optional:"true" description:"Results to skip"`
}

func (r *UpdatePolicyRequest) content() policy.Content {
	return policy.Content{
		Title:            r.Title,
		Summary:          r.Summary,
		BodyPlainText:    r.BodyPlainText,
		BodyRichTextJSON: r.BodyRichTextJSON,
		Config:           r.Config,
		EffectiveFrom:    r.EffectiveFrom,
	}
}
