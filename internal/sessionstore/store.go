// internal/sessionstore/store.go

// Package sessionstore persists browser sessions to SQLite so a later run
// can restore the set of tabs that were open when the session was saved.
package sessionstore

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// TabRecord is one saved tab within a session. Position is assigned from
// slice order on Save and reported back on Load.
type TabRecord struct {
	Position int    `json:"position"`
	URL      string `json:"url"`
	Title    string `json:"title"`
}

// SessionInfo describes one saved session.
type SessionInfo struct {
	Name    string    `json:"name"`
	SavedAt time.Time `json:"saved_at"`
	Tabs    int       `json:"tabs"`
}

// Store persists tab sessions in a SQLite database.
type Store struct {
	db     *sql.DB
	path   string
	closed bool
}

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL UNIQUE,
	saved_at DATETIME NOT NULL
);
CREATE TABLE IF NOT EXISTS tabs (
	session_id INTEGER NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
	position INTEGER NOT NULL,
	url TEXT NOT NULL,
	title TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (session_id, position)
);`

// Open opens the session database at path, creating the file and schema
// when they do not exist yet.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("session database path is required")
	}

	// Create directory if it doesn't exist
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open session database: %w", err)
	}

	// Test connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping session database: %w", err)
	}

	// Configure connection
	db.SetMaxOpenConns(1) // SQLite works best with single writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create session schema: %w", err)
	}

	return &Store{db: db, path: path}, nil
}

// Save replaces the named session with the given tab set in a single
// transaction. Tabs are stored in slice order.
func (s *Store) Save(ctx context.Context, name string, tabs []TabRecord) error {
	if name == "" {
		return fmt.Errorf("session name is required")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// Foreign keys cascade the delete to the previous tab rows.
	if _, err := tx.ExecContext(ctx, `DELETE FROM sessions WHERE name = ?`, name); err != nil {
		return fmt.Errorf("failed to clear session '%s': %w", name, err)
	}

	result, err := tx.ExecContext(ctx,
		`INSERT INTO sessions (name, saved_at) VALUES (?, ?)`,
		name, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to insert session '%s': %w", name, err)
	}
	sessionID, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read session id: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO tabs (session_id, position, url, title) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for i, tab := range tabs {
		if _, err := stmt.ExecContext(ctx, sessionID, i, tab.URL, tab.Title); err != nil {
			return fmt.Errorf("failed to insert tab %d: %w", i, err)
		}
	}

	return tx.Commit()
}

// Load returns the saved tabs of the named session in position order.
// An unknown name yields an empty slice, not an error.
func (s *Store) Load(ctx context.Context, name string) ([]TabRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT t.position, t.url, t.title
		FROM tabs t
		JOIN sessions s ON s.id = t.session_id
		WHERE s.name = ?
		ORDER BY t.position`, name)
	if err != nil {
		return nil, fmt.Errorf("failed to query session '%s': %w", name, err)
	}
	defer rows.Close()

	tabs := []TabRecord{}
	for rows.Next() {
		var tab TabRecord
		if err := rows.Scan(&tab.Position, &tab.URL, &tab.Title); err != nil {
			return nil, fmt.Errorf("failed to scan tab row: %w", err)
		}
		tabs = append(tabs, tab)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read session '%s': %w", name, err)
	}

	return tabs, nil
}

// Sessions lists the saved sessions, most recently saved first.
func (s *Store) Sessions(ctx context.Context) ([]SessionInfo, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT s.name, s.saved_at, COUNT(t.session_id)
		FROM sessions s
		LEFT JOIN tabs t ON t.session_id = s.id
		GROUP BY s.id
		ORDER BY s.id DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	sessions := []SessionInfo{}
	for rows.Next() {
		var info SessionInfo
		var savedAt string
		if err := rows.Scan(&info.Name, &savedAt, &info.Tabs); err != nil {
			return nil, fmt.Errorf("failed to scan session row: %w", err)
		}
		if t, err := time.Parse(time.RFC3339, savedAt); err == nil {
			info.SavedAt = t
		}
		sessions = append(sessions, info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read sessions: %w", err)
	}

	return sessions, nil
}

// Delete removes the named session and its tabs. Deleting an unknown
// name is not an error.
func (s *Store) Delete(ctx context.Context, name string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE name = ?`, name); err != nil {
		return fmt.Errorf("failed to delete session '%s': %w", name, err)
	}
	return nil
}

// Ping verifies that the database connection is alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Path returns the database file path the store was opened with.
func (s *Store) Path() string {
	return s.path
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil && !s.closed {
		err := s.db.Close()
		s.db = nil
		s.closed = true
		return err
	}
	return nil
}
