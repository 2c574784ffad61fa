// internal/common/database/postgres.go
package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"dar-workers/internal/common/config"

	_ "github.com/lib/pq"
)

// Schema creates the tables the repository, permission lookup and
// notification worker read and write. Every statement is idempotent.
const Schema = `
CREATE TABLE IF NOT EXISTS dar_applications (
	id          TEXT PRIMARY KEY,
	version     INTEGER     NOT NULL,
	status      TEXT        NOT NULL,
	team_id     TEXT        NOT NULL,
	document    JSONB       NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS dar_applications_status_idx ON dar_applications (status);

CREATE TABLE IF NOT EXISTS team_members (
	team_id    TEXT NOT NULL,
	user_id    TEXT NOT NULL,
	user_type  TEXT NOT NULL,
	roles      TEXT[] NOT NULL DEFAULT '{}',
	PRIMARY KEY (team_id, user_id)
);

CREATE TABLE IF NOT EXISTS user_contacts (
	user_id  TEXT PRIMARY KEY,
	email    TEXT,
	phone    TEXT
);

CREATE TABLE IF NOT EXISTS notifications (
	id            TEXT PRIMARY KEY,
	recipient_id  TEXT NOT NULL,
	category      TEXT NOT NULL,
	channel       TEXT NOT NULL,
	status        TEXT NOT NULL,
	related_id    TEXT NOT NULL,
	sent_at       TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`

// PostgresClient wraps the SQL database connection
type PostgresClient struct {
	DB *sql.DB
}

// NewPostgres creates a new PostgreSQL client
func NewPostgres(cfg config.PostgresConfig) (*PostgresClient, error) {
	db, err := sql.Open("postgres", cfg.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxConnections)
	db.SetMaxIdleConns(cfg.MaxIdle)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)

	return &PostgresClient{DB: db}, nil
}

// Ping tests the database connection
func (c *PostgresClient) Ping(ctx context.Context) error {
	return c.DB.PingContext(ctx)
}

// EnsureSchema applies Schema.
func (c *PostgresClient) EnsureSchema(ctx context.Context) error {
	if _, err := c.DB.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// Close closes the database connection
func (c *PostgresClient) Close() error {
	if c.DB != nil {
		return c.DB.Close()
	}
	return nil
}
