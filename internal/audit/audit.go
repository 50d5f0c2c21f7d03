// Package audit persists dispatcher decisions to a sqlite file so
// suppressed and dropped alerts can be inspected after the fact.
//
// DESIGN: monitoring must never suffer for the audit trail, so Record
// swallows write errors after logging them. The store is optional;
// the watcher runs without one when no path is configured.
package audit

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"

	"github.com/poolwatch/poolwatch/internal/alert"
)

const schema = `
CREATE TABLE IF NOT EXISTS alert_log (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	event_id   TEXT NOT NULL,
	kind       TEXT NOT NULL,
	decision   TEXT NOT NULL,
	message    TEXT NOT NULL,
	created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS alert_log_kind ON alert_log (kind, created_at);
`

// Entry is one recorded decision.
type Entry struct {
	EventID   string
	Kind      string
	Decision  string
	Message   string
	CreatedAt time.Time
}

// Store is a sqlite-backed alert decision trail.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the audit database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("audit: open %s: %w", path, err)
	}
	// The single watcher process is the only writer.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("audit: init schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Record stores one dispatcher decision. Implements alert.AuditLog.
func (s *Store) Record(ev *alert.Event, decision alert.Decision) {
	_, err := s.db.Exec(
		`INSERT INTO alert_log (event_id, kind, decision, message, created_at) VALUES (?, ?, ?, ?, ?)`,
		ev.ID, string(ev.Kind), string(decision), ev.Message,
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		log.Error().Err(err).Str("event_id", ev.ID).Msg("audit: failed to record decision")
	}
}

// Recent returns the n most recent entries, newest first.
func (s *Store) Recent(n int) ([]Entry, error) {
	rows, err := s.db.Query(
		`SELECT event_id, kind, decision, message, created_at FROM alert_log ORDER BY id DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("audit: query: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var created string
		if err := rows.Scan(&e.EventID, &e.Kind, &e.Decision, &e.Message, &created); err != nil {
			return nil, fmt.Errorf("audit: scan: %w", err)
		}
		e.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }
