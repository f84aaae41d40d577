package postgres

import (
	"context"

	"github.com/xraph/grove/migrate"
)

// Migrations is the grove migration group for the Charter store (PostgreSQL).
var Migrations = migrate.NewGroup("charter")

func init() {
	Migrations.MustRegister(
		&migrate.Migration{
			Name:    "create_policies",
			Version: "20250101000001",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS charter_policies (
    id                  TEXT PRIMARY KEY,
    type                TEXT NOT NULL,
    version             INTEGER NOT NULL,
    title               TEXT NOT NULL,
    summary             TEXT NOT NULL DEFAULT '',
    body_plain_text     TEXT NOT NULL DEFAULT '',
    body_rich_text_json JSONB,
    config              JSONB NOT NULL DEFAULT '{}',
    is_active           BOOLEAN NOT NULL DEFAULT FALSE,
    effective_from      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    created_by          TEXT NOT NULL DEFAULT '',
    created_at          TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at          TIMESTAMPTZ NOT NULL DEFAULT NOW(),

    CONSTRAINT charter_policies_type_version UNIQUE (type, version),
    CONSTRAINT charter_policies_one_active
        EXCLUDE USING btree (type WITH =) WHERE (is_active)
        DEFERRABLE INITIALLY DEFERRED
);

CREATE INDEX IF NOT EXISTS idx_charter_policies_type ON charter_policies (type, version DESC);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS charter_policies`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_policy_audit",
			Version: "20250101000002",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS charter_policy_audit (
    id              TEXT PRIMARY KEY,
    policy_id       TEXT NOT NULL,
    policy_type     TEXT NOT NULL,
    version         INTEGER NOT NULL DEFAULT 0,
    action          TEXT NOT NULL,
    actor_id        TEXT NOT NULL DEFAULT '',
    detail          JSONB,
    created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_charter_audit_policy ON charter_policy_audit (policy_id);
CREATE INDEX IF NOT EXISTS idx_charter_audit_type ON charter_policy_audit (policy_type, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_charter_audit_created ON charter_policy_audit (created_at);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS charter_policy_audit`)
				return err
			},
		},
	)
}
