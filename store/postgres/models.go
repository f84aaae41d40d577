package postgres

import (
	"time"

	"github.com/xraph/grove"

	"github.com/xraph/charter/audit"
	"github.com/xraph/charter/id"
	"github.com/xraph/charter/policy"
)

// ──────────────────────────────────────────────────
// Policy model
// ──────────────────────────────────────────────────

type policyModel struct {
	grove.BaseModel  `grove:"table:charter_policies"`
	ID               string         `grove:"id,pk"`
	Type             string         `grove:"type,notnull"`
	Version          int            `grove:"version,notnull"`
	Title            string         `grove:"title,notnull"`
	Summary          string         `grove:"summary"`
	BodyPlainText    string         `grove:"body_plain_text"`
	BodyRichTextJSON map[string]any `grove:"body_rich_text_json,type:jsonb"`
	Config           map[string]any `grove:"config,type:jsonb"`
	IsActive         bool           `grove:"is_active,notnull"`
	EffectiveFrom    time.Time      `grove:"effective_from,notnull"`
	CreatedBy        string         `grove:"created_by"`
	CreatedAt        time.Time      `grove:"created_at,notnull"`
	UpdatedAt        time.Time      `grove:"updated_at,notnull"`
}

func policyToModel(p *policy.Policy) *policyModel {
	cfg := p.Config
	if cfg == nil {
		cfg = map[string]any{}
	}
	return &policyModel{
		ID:               p.ID.String(),
		Type:             string(p.Type),
		Version:          p.Version,
		Title:            p.Title,
		Summary:          p.Summary,
		BodyPlainText:    p.BodyPlainText,
		BodyRichTextJSON: p.BodyRichTextJSON,
		Config:           cfg,
		IsActive:         p.IsActive,
		EffectiveFrom:    p.EffectiveFrom,
		CreatedBy:        p.CreatedBy,
		CreatedAt:        p.CreatedAt,
		UpdatedAt:        p.UpdatedAt,
	}
}

func policyFromModel(m *policyModel) *policy.Policy {
	pid, _ := id.ParsePolicyID(m.ID) //nolint:errcheck // stored IDs are always valid
	return &policy.Policy{
		ID:               pid,
		Type:             policy.Type(m.Type),
		Version:          m.Version,
		Title:            m.Title,
		Summary:          m.Summary,
		BodyPlainText:    m.BodyPlainText,
		BodyRichTextJSON: m.BodyRichTextJSON,
		Config:           m.Config,
		IsActive:         m.IsActive,
		EffectiveFrom:    m.EffectiveFrom.UTC(),
		CreatedBy:        m.CreatedBy,
		CreatedAt:        m.CreatedAt.UTC(),
		UpdatedAt:        m.UpdatedAt.UTC(),
	}
}

// ──────────────────────────────────────────────────
// Audit entry model
// ──────────────────────────────────────────────────

type auditModel struct {
	grove.BaseModel `grove:"table:charter_policy_audit"`
	ID              string         `grove:"id,pk"`
	PolicyID        string         `grove:"policy_id,notnull"`
	PolicyType      string         `grove:"policy_type,notnull"`
	Version         int            `grove:"version,notnull"`
	Action          string         `grove:"action,notnull"`
	ActorID         string         `grove:"actor_id"`
	Detail          map[string]any `grove:"detail,type:jsonb"`
	CreatedAt       time.Time      `grove:"created_at,notnull"`
}

func auditToModel(e *audit.Entry) *auditModel {
	return &auditModel{
		ID:         e.ID.String(),
		PolicyID:   e.PolicyID.String(),
		PolicyType: e.PolicyType,
		Version:    e.Version,
		Action:     string(e.Action),
		ActorID:    e.ActorID,
		Detail:     e.Detail,
		CreatedAt:  e.CreatedAt,
	}
}

func auditFromModel(m *auditModel) *audit.Entry {
	aid, _ := id.ParseAuditID(m.ID)        //nolint:errcheck // stored IDs are always valid
	pid, _ := id.ParsePolicyID(m.PolicyID) //nolint:errcheck // stored IDs are always valid
	return &audit.Entry{
		ID:         aid,
		PolicyID:   pid,
		PolicyType: m.PolicyType,
		Version:    m.Version,
		Action:     audit.Action(m.Action),
		ActorID:    m.ActorID,
		Detail:     m.Detail,
		CreatedAt:  m.CreatedAt.UTC(),
	}
}
