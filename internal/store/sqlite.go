// Package store persists users and completed turns to SQLite so
// conversations survive restarts and can be audited. The assistant runs
// fine without it; callers treat a nil *DB as persistence disabled.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/akivoy/orion/internal/observability"
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
	phone      TEXT PRIMARY KEY,
	name       TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMP NOT NULL
);
CREATE TABLE IF NOT EXISTS messages (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	phone      TEXT NOT NULL REFERENCES users(phone),
	role       TEXT NOT NULL,
	content    TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_messages_phone ON messages(phone);
`

// DB is the SQLite-backed history sink.
type DB struct {
	db  *sql.DB
	log *observability.Logger
}

// Entry is one persisted turn.
type Entry struct {
	Role      string
	Content   string
	CreatedAt time.Time
}

// Open creates or opens the database file and applies the schema.
func Open(path string, log *observability.Logger) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	// SQLite handles one writer at a time; serialize access instead of
	// surfacing SQLITE_BUSY to callers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: apply schema: %w", err)
	}
	return &DB{db: db, log: log}, nil
}

// EnsureUser registers a phone number on first contact. Re-registering is
// a no-op that keeps the original record.
func (d *DB) EnsureUser(ctx context.Context, phone, name string) error {
	_, err := d.db.ExecContext(ctx,
		`INSERT INTO users (phone, name, created_at) VALUES (?, ?, ?)
		 ON CONFLICT(phone) DO NOTHING`,
		phone, name, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("store: ensure user: %w", err)
	}
	return nil
}

// AppendMessage records one completed turn.
func (d *DB) AppendMessage(ctx context.Context, phone, role, content string) error {
	_, err := d.db.ExecContext(ctx,
		`INSERT INTO messages (phone, role, content, created_at) VALUES (?, ?, ?, ?)`,
		phone, role, content, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("store: append message: %w", err)
	}
	return nil
}

// ResetChat drops the persisted history of one user.
func (d *DB) ResetChat(ctx context.Context, phone string) error {
	_, err := d.db.ExecContext(ctx, `DELETE FROM messages WHERE phone = ?`, phone)
	if err != nil {
		return fmt.Errorf("store: reset chat: %w", err)
	}
	return nil
}

// History returns the most recent turns of a user, oldest first.
func (d *DB) History(ctx context.Context, phone string, limit int) ([]Entry, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT role, content, created_at FROM (
			SELECT id, role, content, created_at FROM messages
			WHERE phone = ? ORDER BY id DESC LIMIT ?
		 ) ORDER BY id ASC`,
		phone, limit)
	if err != nil {
		return nil, fmt.Errorf("store: history: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Role, &e.Content, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("store: scan history: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Close releases the database handle.
func (d *DB) Close() error {
	return d.db.Close()
}
