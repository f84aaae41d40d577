package sqlite

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/xraph/grove"

	"github.com/xraph/charter/audit"
	"github.com/xraph/charter/id"
	"github.com/xraph/charter/policy"
)

// ──────────────────────────────────────────────────
// Policy model
// ──────────────────────────────────────────────────

// Timestamp columns are declared TIMESTAMP so the driver parses them back
// into time.Time. Values are written in UTC, which keeps their text form
// ordered.

type policyModel struct {
	grove.BaseModel  `grove:"table:charter_policies"`
	ID               string    `grove:"id,pk"`
	Type             string    `grove:"type,notnull"`
	Version          int       `grove:"version,notnull"`
	Title            string    `grove:"title,notnull"`
	Summary          string    `grove:"summary"`
	BodyPlainText    string    `grove:"body_plain_text"`
	BodyRichTextJSON string    `grove:"body_rich_text_json"` // JSON text
	Config           string    `grove:"config"`              // JSON text
	IsActive         bool      `grove:"is_active,notnull"`
	EffectiveFrom    time.Time `grove:"effective_from,notnull"`
	CreatedBy        string    `grove:"created_by"`
	CreatedAt        time.Time `grove:"created_at,notnull"`
	UpdatedAt        time.Time `grove:"updated_at,notnull"`
}

func policyToModel(p *policy.Policy) (*policyModel, error) {
	rich := ""
	if p.BodyRichTextJSON != nil {
		raw, err := json.Marshal(p.BodyRichTextJSON)
		if err != nil {
			return nil, fmt.Errorf("marshal policy rich text: %w", err)
		}
		rich = string(raw)
	}
	cfg := p.Config
	if cfg == nil {
		cfg = map[string]any{}
	}
	rawCfg, err := json.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("marshal policy config: %w", err)
	}
	return &policyModel{
		ID:               p.ID.String(),
		Type:             string(p.Type),
		Version:          p.Version,
		Title:            p.Title,
		Summary:          p.Summary,
		BodyPlainText:    p.BodyPlainText,
		BodyRichTextJSON: rich,
		Config:           string(rawCfg),
		IsActive:         p.IsActive,
		EffectiveFrom:    p.EffectiveFrom.UTC(),
		CreatedBy:        p.CreatedBy,
		CreatedAt:        p.CreatedAt.UTC(),
		UpdatedAt:        p.UpdatedAt.UTC(),
	}, nil
}

func policyFromModel(m *policyModel) (*policy.Policy, error) {
	pid, _ := id.ParsePolicyID(m.ID) //nolint:errcheck // stored IDs are always valid

	var rich map[string]any
	if m.BodyRichTextJSON != "" {
		if err := json.Unmarshal([]byte(m.BodyRichTextJSON), &rich); err != nil {
			return nil, fmt.Errorf("unmarshal policy rich text: %w", err)
		}
	}
	cfg := map[string]any{}
	if m.Config != "" {
		if err := json.Unmarshal([]byte(m.Config), &cfg); err != nil {
			return nil, fmt.Errorf("unmarshal policy config: %w", err)
		}
	}
	return &policy.Policy{
		ID:               pid,
		Type:             policy.Type(m.Type),
		Version:          m.Version,
		Title:            m.Title,
		Summary:          m.Summary,
		BodyPlainText:    m.BodyPlainText,
		BodyRichTextJSON: rich,
		Config:           cfg,
		IsActive:         m.IsActive,
		EffectiveFrom:    m.EffectiveFrom.UTC(),
		CreatedBy:        m.CreatedBy,
		CreatedAt:        m.CreatedAt.UTC(),
		UpdatedAt:        m.UpdatedAt.UTC(),
	}, nil
}

func policiesFromModels(models []policyModel) ([]*policy.Policy, error) {
	result := make([]*policy.Policy, len(models))
	for i := range models {
		p, err := policyFromModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = p
	}
	return result, nil
}

// ──────────────────────────────────────────────────
// Audit entry model
// ──────────────────────────────────────────────────

type auditModel struct {
	grove.BaseModel `grove:"table:charter_policy_audit"`
	ID              string    `grove:"id,pk"`
	PolicyID        string    `grove:"policy_id,notnull"`
	PolicyType      string    `grove:"policy_type,notnull"`
	Version         int       `grove:"version,notnull"`
	Action          string    `grove:"action,notnull"`
	ActorID         string    `grove:"actor_id"`
	Detail          string    `grove:"detail"` // JSON text
	CreatedAt       time.Time `grove:"created_at,notnull"`
}

func auditToModel(e *audit.Entry) (*auditModel, error) {
	detail := ""
	if e.Detail != nil {
		raw, err := json.Marshal(e.Detail)
		if err != nil {
			return nil, fmt.Errorf("marshal audit detail: %w", err)
		}
		detail = string(raw)
	}
	return &auditModel{
		ID:         e.ID.String(),
		PolicyID:   e.PolicyID.String(),
		PolicyType: e.PolicyType,
		Version:    e.Version,
		Action:     string(e.Action),
		ActorID:    e.ActorID,
		Detail:     detail,
		CreatedAt:  e.CreatedAt.UTC(),
	}, nil
}

func auditFromModel(m *auditModel) (*audit.Entry, error) {
	aid, _ := id.ParseAuditID(m.ID)        //nolint:errcheck // stored IDs are always valid
	pid, _ := id.ParsePolicyID(m.PolicyID) //nolint:errcheck // stored IDs are always valid

	var detail map[string]any
	if m.Detail != "" {
		if err := json.Unmarshal([]byte(m.Detail), &detail); err != nil {
			return nil, fmt.Errorf("unmarshal audit detail: %w", err)
		}
	}
	return &audit.Entry{
		ID:         aid,
		PolicyID:   pid,
		PolicyType: m.PolicyType,
		Version:    m.Version,
		Action:     audit.Action(m.Action),
		ActorID:    m.ActorID,
		Detail:     detail,
		CreatedAt:  m.CreatedAt.UTC(),
	}, nil
}
