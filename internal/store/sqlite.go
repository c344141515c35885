package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS profiles (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		email       TEXT NOT NULL UNIQUE,
		name        TEXT NOT NULL DEFAULT '',
		preferences TEXT NOT NULL DEFAULT '',
		timeline    TEXT NOT NULL DEFAULT '',
		concerns    TEXT NOT NULL DEFAULT '',
		notes       TEXT NOT NULL DEFAULT '',
		updated_at  INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS messages (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		profile_id  INTEGER NOT NULL REFERENCES profiles(id) ON DELETE CASCADE,
		content     TEXT NOT NULL,
		received_at INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_messages_profile ON messages(profile_id, received_at)`,
}

// NewSQLite opens (creating if needed) a SQLite database at path.
// Pass ":memory:" for a throwaway in-memory database.
func NewSQLite(path string) (*SQLStore, error) {
	if path != ":memory:" && !strings.HasPrefix(path, "file:") {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// One connection: SQLite allows a single writer, and an in-memory
	// database only exists on the connection that created it.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("setting pragma %q: %w", p, err)
		}
	}

	s := &SQLStore{
		db:      db,
		dialect: dialect{name: "sqlite", schema: sqliteSchema},
	}
	if err := s.migrate(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return s, nil
}
