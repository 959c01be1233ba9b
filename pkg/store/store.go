package store

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/shuvohassan00110/Free-Telegram-bot-hosting/pkg/log"
	"github.com/shuvohassan00110/Free-Telegram-bot-hosting/pkg/secretbox"
)

//go:embed schema.sql
var schemaSQL string

// timeFormat is how timestamps are stored; lexicographic order matches
// chronological order.
const timeFormat = time.RFC3339Nano

// Store is the catalog of users, projects, env vars, runs and audit records.
// It is the only component that touches the database; callers get typed
// values, never raw rows.
type Store struct {
	db  *sql.DB
	box *secretbox.Box
}

// Open opens or creates the SQLite catalog at dbPath
func Open(dbPath string, box *secretbox.Box) (*Store, error) {
	// Ensure parent directory exists
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	// Use file: URI format to properly handle paths with spaces; pragmas in
	// the DSN apply to every connection the pool opens
	escapedPath := strings.ReplaceAll(dbPath, " ", "%20")
	dsn := "file:" + escapedPath + "?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// The modernc driver serializes writes; a single connection avoids
	// SQLITE_BUSY under concurrent readers
	db.SetMaxOpenConns(1)

	// WAL keeps the catalog consistent across abrupt shutdowns
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return &Store{db: db, box: box}, nil
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}

// WithTx executes fn inside a transaction
func (s *Store) WithTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}

	return tx.Commit()
}

// AppendAudit appends one audit trail entry. Best effort: failures are
// logged, never propagated into the mutation that triggered them.
func (s *Store) AppendAudit(ctx context.Context, actor int64, action, target, details string) {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO audit_log (ts, actor, action, target, details) VALUES (?, ?, ?, ?, ?)`,
		now(), actor, action, target, details)
	if err != nil {
		logger := log.WithComponent("store")
		logger.Error().Err(err).Str("action", action).Msg("Failed to append audit record")
	}
}

// auditTx appends an audit entry inside an open transaction when the actor
// is known
func auditTx(tx *sql.Tx, actor int64, action, target, details string) error {
	if actor == 0 {
		return nil
	}
	_, err := tx.Exec(
		`INSERT INTO audit_log (ts, actor, action, target, details) VALUES (?, ?, ?, ?, ?)`,
		now(), actor, action, target, details)
	return err
}

// DayKey returns the UTC calendar-date key used by daily usage counters
func DayKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

func now() string {
	return time.Now().UTC().Format(timeFormat)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeFormat, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
