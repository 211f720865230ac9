// Package trace journals telemetry events into SQLite.
package trace

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/starford/yamui/internal/telemetry"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS events (
	id      INTEGER PRIMARY KEY AUTOINCREMENT,
	session TEXT    NOT NULL,
	type    TEXT    NOT NULL,
	subject TEXT    NOT NULL DEFAULT '',
	detail  TEXT    NOT NULL DEFAULT '',
	arg0    TEXT    NOT NULL DEFAULT '',
	arg1    TEXT    NOT NULL DEFAULT '',
	value   REAL    NOT NULL DEFAULT 0,
	at      INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_events_session ON events(session);
CREATE INDEX IF NOT EXISTS idx_events_type ON events(type);
`

// Record is a journaled event.
type Record struct {
	ID      int64  `json:"id"`
	Session string `json:"session"`
	telemetry.Event
}

// Journal is an events table. Every Journal writes under its own session id.
type Journal struct {
	conn    *sql.DB
	session string
}

// Open opens (or creates) the journal database and applies the schema.
func Open(dsn string) (*Journal, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("trace: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("trace: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("trace: apply schema: %w", err)
	}
	return &Journal{conn: conn, session: uuid.NewString()}, nil
}

// Session returns the id stamped on rows written by j.
func (j *Journal) Session() string { return j.session }

// Append writes events in one transaction.
func (j *Journal) Append(events ...telemetry.Event) error {
	if len(events) == 0 {
		return nil
	}
	tx, err := j.conn.Begin()
	if err != nil {
		return fmt.Errorf("trace: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.Prepare(`INSERT INTO events (session, type, subject, detail, arg0, arg1, value, at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("trace: prepare insert: %w", err)
	}
	defer stmt.Close()
	for _, e := range events {
		at := e.At
		if at.IsZero() {
			at = time.Now()
		}
		if _, err := stmt.Exec(j.session, string(e.Type), e.Subject, e.Detail, e.Arg0, e.Arg1, e.Value, at.UnixNano()); err != nil {
			return fmt.Errorf("trace: insert event: %w", err)
		}
	}
	return tx.Commit()
}

// Recent returns up to limit events, newest first. A non-empty typ filters
// by event type.
func (j *Journal) Recent(limit int, typ telemetry.Type) ([]Record, error) {
	if limit <= 0 {
		limit = 100
	}
	q := `SELECT id, session, type, subject, detail, arg0, arg1, value, at FROM events`
	args := []any{}
	if typ != "" {
		q += ` WHERE type = ?`
		args = append(args, string(typ))
	}
	q += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := j.conn.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("trace: query events: %w", err)
	}
	defer rows.Close()

	out := []Record{}
	for rows.Next() {
		var (
			r   Record
			typ string
			at  int64
		)
		if err := rows.Scan(&r.ID, &r.Session, &typ, &r.Subject, &r.Detail, &r.Arg0, &r.Arg1, &r.Value, &at); err != nil {
			return nil, fmt.Errorf("trace: scan event: %w", err)
		}
		r.Type = telemetry.Type(typ)
		r.At = time.Unix(0, at).UTC()
		out = append(out, r)
	}
	return out, rows.Err()
}

// Count returns the number of journaled events across sessions.
func (j *Journal) Count() (int, error) {
	var n int
	if err := j.conn.QueryRow(`SELECT count(*) FROM events`).Scan(&n); err != nil {
		return 0, fmt.Errorf("trace: count events: %w", err)
	}
	return n, nil
}

// CountByType returns the number of events per type.
func (j *Journal) CountByType() (map[telemetry.Type]int, error) {
	rows, err := j.conn.Query(`SELECT type, count(*) FROM events GROUP BY type`)
	if err != nil {
		return nil, fmt.Errorf("trace: count by type: %w", err)
	}
	defer rows.Close()
	out := make(map[telemetry.Type]int)
	for rows.Next() {
		var (
			typ string
			n   int
		)
		if err := rows.Scan(&typ, &n); err != nil {
			return nil, fmt.Errorf("trace: scan count: %w", err)
		}
		out[telemetry.Type(typ)] = n
	}
	return out, rows.Err()
}

// Close closes the underlying database connection.
func (j *Journal) Close() error {
	return j.conn.Close()
}
