// Package audit records parse outcomes in SQLite: one row per request with
// the document id, format, success flag and duration. Document content is
// never stored.
package audit

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hazyhaar/docparse/dbopen"
	"github.com/hazyhaar/docparse/idgen"
)

const schema = `
CREATE TABLE IF NOT EXISTS parse_log (
	id          TEXT PRIMARY KEY,
	document_id TEXT NOT NULL DEFAULT '',
	filename    TEXT NOT NULL,
	format      TEXT NOT NULL DEFAULT '',
	success     INTEGER NOT NULL,
	error       TEXT NOT NULL DEFAULT '',
	duration_ms REAL NOT NULL DEFAULT 0,
	created_at  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_parse_log_created ON parse_log(created_at DESC);
`

// Entry is one recorded parse outcome.
type Entry struct {
	ID         string  `json:"id"`
	DocumentID string  `json:"documentId,omitempty"`
	Filename   string  `json:"filename"`
	Format     string  `json:"format,omitempty"`
	Success    bool    `json:"success"`
	Error      string  `json:"error,omitempty"`
	DurationMs float64 `json:"durationMs"`
	CreatedAt  int64   `json:"createdAt"`
}

// Logger persists entries to a SQLite database.
type Logger struct {
	db  *sql.DB
	gen idgen.Generator
}

// Option customises a Logger.
type Option func(*Logger)

// WithIDGenerator overrides the entry ID generator.
func WithIDGenerator(gen idgen.Generator) Option {
	return func(l *Logger) { l.gen = gen }
}

// New creates a Logger on an open database. Call Init before recording.
func New(db *sql.DB, opts ...Option) *Logger {
	l := &Logger{
		db:  db,
		gen: idgen.Prefixed("aud_", idgen.Default),
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

// Init creates the parse_log table if missing.
func (l *Logger) Init() error {
	err := dbopen.RunTx(context.Background(), l.db, func(tx *sql.Tx) error {
		_, err := tx.Exec(schema)
		return err
	})
	if err != nil {
		return fmt.Errorf("audit: init schema: %w", err)
	}
	return nil
}

// Record inserts one entry, filling ID and CreatedAt when unset. Writes go
// through the BUSY-retrying executor so concurrent requests do not fail on
// a briefly locked database.
func (l *Logger) Record(ctx context.Context, e *Entry) error {
	if e.ID == "" {
		e.ID = l.gen()
	}
	if e.CreatedAt == 0 {
		e.CreatedAt = time.Now().Unix()
	}

	_, err := dbopen.Exec(ctx, l.db, `
		INSERT INTO parse_log (id, document_id, filename, format, success, error, duration_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.DocumentID, e.Filename, e.Format, boolToInt(e.Success), e.Error, e.DurationMs, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("audit: insert: %w", err)
	}
	return nil
}

// Recent returns the newest entries, most recent first. Limit values
// outside 1..1000 are clamped.
func (l *Logger) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 1000 {
		limit = 1000
	}

	rows, err := l.db.QueryContext(ctx, `
		SELECT id, document_id, filename, format, success, error, duration_ms, created_at
		FROM parse_log ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("audit: query: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var e Entry
		var success int
		if err := rows.Scan(&e.ID, &e.DocumentID, &e.Filename, &e.Format, &success, &e.Error, &e.DurationMs, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("audit: scan: %w", err)
		}
		e.Success = success != 0
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
