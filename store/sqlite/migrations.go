package sqlite

import (
	"context"

	"github.com/xraph/grove/migrate"
)

// Migrations is the grove migration group for the Charter store (SQLite).
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
    body_rich_text_json TEXT NOT NULL DEFAULT '',
    config              TEXT NOT NULL DEFAULT '{}',
    is_active           INTEGER NOT NULL DEFAULT 0,
    effective_from      TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    created_by          TEXT NOT NULL DEFAULT '',
    created_at          TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at          TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,

    UNIQUE(type, version)
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_charter_policies_one_active ON charter_policies (type) WHERE is_active = 1;
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
    detail          TEXT NOT NULL DEFAULT '',
    created_at      TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_charter_audit_policy ON charter_policy_audit (policy_id);
CREATE INDEX IF NOT EXISTS idx_charter_audit_type ON charter_policy_audit (policy_type, created_at);
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
