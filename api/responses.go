package api

import (
	"github.com/xraph/charter/audit"
	"github.com/xraph/charter/policy"
)

// Envelope is the uniform response body of every endpoint. Metadata holds
// the payload on success and field errors on validation failure.
type Envelope struct {
	StatusCode int    `json:"statusCode" description:"HTTP status code"`
	Message    string `json:"message" description:"Human-readable outcome"`
	Metadata   any    `json:"metadata" description:"Payload or error detail"`
}

// PolicyEnvelope documents an envelope carrying one policy.
type PolicyEnvelope struct {
	StatusCode int            `json:"statusCode"`
	Message    string         `json:"message"`
	Metadata   *policy.Policy `json:"metadata"`
}

// PolicyListEnvelope documents an envelope carrying a list of policies.
type PolicyListEnvelope struct {
	StatusCode int              `json:"statusCode"`
	Message    string           `json:"message"`
	Metadata   []*policy.Policy `json:"metadata"`
}

// CurrentPoliciesEnvelope documents an envelope carrying the active
// version of each type.
type CurrentPoliciesEnvelope struct {
	StatusCode int                             `json:"statusCode"`
	Message    string                          `json:"message"`
	Metadata   map[policy.Type]*policy.Policy `json:"metadata"`
}

// AuditListEnvelope documents an envelope carrying audit entries.
type AuditListEnvelope struct {
	StatusCode int            `json:"statusCode"`
	Message    string         `json:"message"`
	Metadata   []*audit.Entry `json:"metadata"`
}
