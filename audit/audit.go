// Package audit defines the policy lifecycle audit Entry.
package audit

import (
	"time"

	"github.com/xraph/charter/id"
)

// Action is the lifecycle transition an entry records.
type Action string

const (
	ActionCreated     Action = "created"
	ActionUpdated     Action = "updated"
	ActionActivated   Action = "activated"
	ActionDeactivated Action = "deactivated"
	ActionDeleted     Action = "deleted"
)

// Entry is one recorded policy transition.
type Entry struct {
	ID         id.AuditID     `json:"id"`
	PolicyID   id.PolicyID    `json:"policyId"`
	PolicyType string         `json:"policyType"`
	Version    int            `json:"version"`
	Action     Action         `json:"action"`
	ActorID    string         `json:"actorId,omitempty"`
	Detail     map[string]any `json:"detail,omitempty"`
	CreatedAt  time.Time      `json:"createdAt"`
}

// ListFilter narrows ListEntries. Zero fields do not filter.
type ListFilter struct {
	PolicyID   id.PolicyID `json:"policyId,omitempty"`
	PolicyType string      `json:"policyType,omitempty"`
	Action     Action      `json:"action,omitempty"`
	ActorID    string      `json:"actorId,omitempty"`
	After      *time.Time  `json:"after,omitempty"`
	Before     *time.Time  `json:"before,omitempty"`
	Limit      int         `json:"limit,omitempty"`
	Offset     int         `json:"offset,omitempty"`
}
