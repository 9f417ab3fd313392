package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// DB wraps sql.DB for Postgres using pgx.
type DB struct {
	Client *sql.DB
}

// NewDB opens a Postgres pool and verifies it within ctx.
func NewDB(ctx context.Context, connString string) (*DB, error) {
	db, err := sql.Open("pgx", connString)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	return &DB{Client: db}, nil
}

// Healthy verifies the pool can reach Postgres.
func (d *DB) Healthy(ctx context.Context) bool {
	if d == nil || d.Client == nil {
		return false
	}
	return d.Client.PingContext(ctx) == nil
}

// Close closes the underlying connection.
func (d *DB) Close() error {
	if d == nil || d.Client == nil {
		return nil
	}
	return d.Client.Close()
}

// Migrate creates every table the service uses. It is idempotent.
func (d *DB) Migrate(ctx context.Context) error {
	if _, err := d.Client.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

const schema = `
CREATE TABLE IF NOT EXISTS attendance_records (
	id               TEXT PRIMARY KEY,
	full_name        TEXT NOT NULL DEFAULT '',
	full_name_key    TEXT NOT NULL DEFAULT '',
	national_id      TEXT NOT NULL DEFAULT '',
	birthday         TEXT NOT NULL DEFAULT '',
	pastor_name      TEXT NOT NULL DEFAULT '',
	reclassification TEXT NOT NULL DEFAULT '',
	church_position  TEXT NOT NULL DEFAULT '',
	region           TEXT NOT NULL DEFAULT '',
	city             TEXT NOT NULL DEFAULT '',
	shift            TEXT NOT NULL DEFAULT '',
	status           TEXT NOT NULL DEFAULT '',
	absent_reason    TEXT NOT NULL DEFAULT '',
	scan_method      TEXT NOT NULL DEFAULT '',
	occurred_at      TIMESTAMPTZ,
	created_at       TIMESTAMPTZ NOT NULL,
	created_by       TEXT NOT NULL DEFAULT '',
	update_count     INTEGER NOT NULL DEFAULT 1,
	last_updated_by  TEXT NOT NULL DEFAULT '',
	last_updated     TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS idx_records_national_id ON attendance_records (national_id);
CREATE INDEX IF NOT EXISTS idx_records_name_key ON attendance_records (full_name_key);
CREATE INDEX IF NOT EXISTS idx_records_created ON attendance_records (created_at, id);

CREATE TABLE IF NOT EXISTS users (
	id                  TEXT PRIMARY KEY,
	email               TEXT NOT NULL,
	display_name        TEXT NOT NULL DEFAULT '',
	role                TEXT NOT NULL DEFAULT 'user',
	user_type           TEXT NOT NULL DEFAULT '',
	active              BOOLEAN NOT NULL DEFAULT TRUE,
	is_active           BOOLEAN NOT NULL DEFAULT TRUE,
	permissions         JSONB NOT NULL DEFAULT '[]',
	can_edit_attendance BOOLEAN NOT NULL DEFAULT FALSE,
	can_view_attendance BOOLEAN NOT NULL DEFAULT FALSE,
	can_manage_users    BOOLEAN NOT NULL DEFAULT FALSE,
	can_access_reports  BOOLEAN NOT NULL DEFAULT FALSE,
	can_register        BOOLEAN NOT NULL DEFAULT FALSE,
	created_at          TIMESTAMPTZ NOT NULL,
	updated_at          TIMESTAMPTZ NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_users_email ON users (lower(email));

CREATE TABLE IF NOT EXISTS form_options (
	field    TEXT NOT NULL,
	value    TEXT NOT NULL,
	position INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (field, value)
);

CREATE TABLE IF NOT EXISTS audit_events (
	id          TEXT PRIMARY KEY,
	type        TEXT NOT NULL,
	actor       TEXT NOT NULL DEFAULT '',
	record_id   TEXT NOT NULL DEFAULT '',
	details     JSONB,
	occurred_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_audit_record ON audit_events (record_id, occurred_at);
`
