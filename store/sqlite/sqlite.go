/*
Package sqlite provides a SQLite-backed implementation of booking.TxStore.

PURPOSE:
  Persists users, computing resources, calendars and slot requests.
  The booking engine talks to it only through booking.Store and
  booking.TxStore.

SOFT DELETE:
  Every table carries deleted_at. Delete* methods set it; every SELECT
  filters on deleted_at IS NULL. Uniqueness (username, email, calendar
  name, resource binding) is enforced by partial unique indexes that
  ignore deleted and archived rows.

TIME STORAGE:
  Timestamps are stored as fixed-width UTC text (microsecond precision)
  so that string comparison in SQL matches time order. Slot windows are
  compared directly in WHERE clauses.

CONCURRENCY:
  The pool is limited to one connection and WithTx holds a mutex, so
  transactions run one at a time. The read-then-write overlap check done
  at approval therefore cannot interleave with another approval.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging):
  - Readers don't block the writer
  - Better crash recovery

USAGE:
  store, err := sqlite.New("./data/slots.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  svc := booking.NewService(store, booking.DefaultPolicy())

MIGRATION:
  Schema is auto-migrated on New() with CREATE ... IF NOT EXISTS.

SEE ALSO:
  - booking/store.go: Interface definitions
  - booking/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/warp/slot-engine/booking"
)

// Store implements booking.TxStore using SQLite.
type Store struct {
	queries
	db *sql.DB
	mu sync.Mutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection: serializes writers and keeps ":memory:" databases
	// from splitting across connections.
	db.SetMaxOpenConns(1)

	store := NewWithDB(db)
	if err := store.migrate(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// NewWithDB wraps an already opened database without migrating it.
func NewWithDB(db *sql.DB) *Store {
	return &Store{queries: queries{db: db}, db: db}
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id            TEXT PRIMARY KEY,
	username      TEXT NOT NULL,
	email         TEXT NOT NULL,
	name          TEXT NOT NULL DEFAULT '',
	surname       TEXT NOT NULL DEFAULT '',
	password_hash TEXT NOT NULL,
	role          TEXT NOT NULL CHECK (role IN ('user', 'admin')),
	tokens        INTEGER NOT NULL CHECK (tokens >= 0),
	created_at    TEXT NOT NULL,
	updated_at    TEXT NOT NULL,
	deleted_at    TEXT
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_users_username ON users(username) WHERE deleted_at IS NULL;
CREATE UNIQUE INDEX IF NOT EXISTS idx_users_email ON users(email) WHERE deleted_at IS NULL;

CREATE TABLE IF NOT EXISTS computing_resources (
	id           TEXT PRIMARY KEY,
	model        TEXT NOT NULL DEFAULT '',
	serial       TEXT NOT NULL DEFAULT '',
	manufacturer TEXT NOT NULL DEFAULT '',
	type         TEXT NOT NULL CHECK (type IN ('cpu', 'gpu')),
	created_at   TEXT NOT NULL,
	updated_at   TEXT NOT NULL,
	deleted_at   TEXT
);

CREATE TABLE IF NOT EXISTS calendars (
	id                  TEXT PRIMARY KEY,
	resource_id         TEXT NOT NULL REFERENCES computing_resources(id),
	name                TEXT NOT NULL,
	archived            INTEGER NOT NULL DEFAULT 0,
	token_cost_per_hour INTEGER NOT NULL CHECK (token_cost_per_hour > 0),
	created_at          TEXT NOT NULL,
	updated_at          TEXT NOT NULL,
	deleted_at          TEXT
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_calendars_active_resource
	ON calendars(resource_id) WHERE archived = 0 AND deleted_at IS NULL;
CREATE UNIQUE INDEX IF NOT EXISTS idx_calendars_active_name
	ON calendars(name) WHERE archived = 0 AND deleted_at IS NULL;

CREATE TABLE IF NOT EXISTS slot_requests (
	id             TEXT PRIMARY KEY,
	user_id        TEXT NOT NULL REFERENCES users(id),
	calendar_id    TEXT NOT NULL REFERENCES calendars(id),
	status         TEXT NOT NULL CHECK (status IN ('pending', 'invalid', 'approved', 'refused')),
	start_at       TEXT NOT NULL,
	end_at         TEXT NOT NULL,
	title          TEXT NOT NULL,
	reason         TEXT NOT NULL,
	refusal_reason TEXT,
	created_at     TEXT NOT NULL,
	updated_at     TEXT NOT NULL,
	deleted_at     TEXT,
	CHECK (end_at > start_at)
);
CREATE INDEX IF NOT EXISTS idx_slot_requests_calendar_window
	ON slot_requests(calendar_id, status, start_at, end_at);
CREATE INDEX IF NOT EXISTS idx_slot_requests_user
	ON slot_requests(user_id, created_at);
`

// migrate creates the database schema.
func (s *Store) migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// =============================================================================
// TRANSACTIONAL STORE (booking.TxStore interface)
// =============================================================================

// WithTx executes fn within a database transaction. A panic inside fn
// rolls back and is re-raised.
func (s *Store) WithTx(ctx context.Context, fn func(store booking.Store) error) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = sqlTx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = sqlTx.Rollback()
		}
	}()

	if err = fn(&txStore{queries: queries{db: sqlTx}}); err != nil {
		return err
	}
	if err = sqlTx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

type txStore struct {
	queries
}

// Reset clears all data except admin accounts (for demo scenarios).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stmts := []string{
		"DELETE FROM slot_requests",
		"DELETE FROM calendars",
		"DELETE FROM computing_resources",
		"DELETE FROM users WHERE role <> 'admin'",
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("reset: %w", err)
		}
	}
	return nil
}

// =============================================================================
// QUERIES - Shared by Store and txStore
// =============================================================================

// dbtx is satisfied by both *sql.DB and *sql.Tx.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type queries struct {
	db dbtx
}

// =============================================================================
// HELPERS
// =============================================================================

const timeLayout = "2006-01-02T15:04:05.000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse time %q: %w", s, err)
	}
	return t.UTC(), nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// uniqueViolation reports whether err is a UNIQUE constraint failure
// mentioning column (e.g. "users.username").
func uniqueViolation(err error, column string) bool {
	var sqlErr sqlite3.Error
	if !errors.As(err, &sqlErr) || sqlErr.ExtendedCode != sqlite3.ErrConstraintUnique {
		return false
	}
	return strings.Contains(sqlErr.Error(), column)
}

var (
	_ booking.TxStore = (*Store)(nil)
	_ booking.Store   = (*txStore)(nil)
)
