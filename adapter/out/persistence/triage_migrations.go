package persistence

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

type migration struct {
	version int
	sql     string
}

// migrations must stay sequential from 1; applied versions are never edited.
var migrations = []migration{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS classifications (
	id          BIGSERIAL PRIMARY KEY,
	email_id    TEXT NOT NULL UNIQUE,
	mailbox     TEXT NOT NULL DEFAULT '',
	sender      TEXT NOT NULL DEFAULT '',
	subject     TEXT NOT NULL DEFAULT '',
	content     TEXT NOT NULL DEFAULT '',
	categories  TEXT[] NOT NULL DEFAULT '{}',
	confidence  DOUBLE PRECISION NOT NULL DEFAULT 0,
	recipients  TEXT[] NOT NULL DEFAULT '{}',
	status      TEXT NOT NULL DEFAULT 'forwarded',
	created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS review_queue (
	id          BIGSERIAL PRIMARY KEY,
	email_id    TEXT NOT NULL UNIQUE,
	sender      TEXT NOT NULL DEFAULT '',
	subject     TEXT NOT NULL DEFAULT '',
	content     TEXT NOT NULL DEFAULT '',
	reason      TEXT NOT NULL DEFAULT '',
	reviewed    BOOLEAN NOT NULL DEFAULT FALSE,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS oauth_tokens (
	mailbox       TEXT PRIMARY KEY,
	access_token  TEXT NOT NULL,
	refresh_token TEXT NOT NULL DEFAULT '',
	token_type    TEXT NOT NULL DEFAULT 'Bearer',
	expiry        TIMESTAMPTZ,
	scopes        TEXT[] NOT NULL DEFAULT '{}',
	created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS team_members (
	id          BIGSERIAL PRIMARY KEY,
	name        TEXT NOT NULL,
	email       TEXT NOT NULL UNIQUE,
	department  TEXT NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_classifications_created_at ON classifications(created_at DESC);
CREATE INDEX IF NOT EXISTS idx_review_queue_pending ON review_queue(created_at DESC) WHERE NOT reviewed;
CREATE INDEX IF NOT EXISTS idx_team_members_department ON team_members(department, name);
`,
	},
	{
		version: 2,
		sql: `
ALTER TABLE classifications ADD COLUMN IF NOT EXISTS reasoning TEXT;
ALTER TABLE classifications ADD COLUMN IF NOT EXISTS fallback BOOLEAN NOT NULL DEFAULT FALSE;
`,
	},
}

// Migrate applies pending migrations, each in its own transaction. An advisory
// lock keeps concurrently starting api and worker processes from racing.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL)`); err != nil {
		return fmt.Errorf("failed to create schema_version: %w", err)
	}

	for _, m := range migrations {
		if err := applyMigration(ctx, db, m); err != nil {
			return fmt.Errorf("failed to apply migration v%d: %w", m.version, err)
		}
	}
	return nil
}

const migrationLockID = 7_240_311

func applyMigration(ctx context.Context, db *sqlx.DB, m migration) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, migrationLockID); err != nil {
		return err
	}

	var current int
	if err := tx.GetContext(ctx, &current, `SELECT COALESCE(MAX(version), 0) FROM schema_version`); err != nil {
		return err
	}
	if m.version <= current {
		return nil
	}

	if _, err := tx.ExecContext(ctx, m.sql); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO schema_version (version) VALUES ($1)`, m.version); err != nil {
		return err
	}
	return tx.Commit()
}
