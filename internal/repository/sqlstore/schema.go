// Package sqlstore persists sessions and recipients through sqlx on either
// PostgreSQL (pgx) or SQLite (modernc). Collections are stored as JSON text
// and timestamps as unix milliseconds so both dialects share one row shape.
package sqlstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		candidates TEXT NOT NULL,
		location TEXT NOT NULL,
		group_name TEXT NOT NULL,
		created_by TEXT NOT NULL,
		created_at BIGINT NOT NULL,
		updated_at BIGINT NOT NULL,
		deadline BIGINT NULL,
		status TEXT NOT NULL,
		votes TEXT NOT NULL,
		voter_names TEXT NOT NULL,
		fired_reminders TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_sessions_status ON sessions (status, created_at)`,
	`CREATE TABLE IF NOT EXISTS telegram_users (
		chat_id BIGINT PRIMARY KEY,
		first_name TEXT NOT NULL,
		username TEXT NOT NULL,
		registered_at BIGINT NOT NULL,
		active BOOLEAN NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS push_subscriptions (
		endpoint TEXT PRIMARY KEY,
		p256dh TEXT NOT NULL,
		auth TEXT NOT NULL,
		subscribed_at BIGINT NOT NULL,
		active BOOLEAN NOT NULL
	)`,
}

// Migrate creates the tables if they do not exist yet.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

func isPostgres(db *sqlx.DB) bool {
	return sqlx.BindType(db.DriverName()) == sqlx.DOLLAR
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return false
}

func toMillis(t time.Time) int64 {
	return t.UnixMilli()
}

func fromMillis(v int64) time.Time {
	return time.UnixMilli(v).UTC()
}
