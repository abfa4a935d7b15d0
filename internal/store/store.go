// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package store persists editions, items, analyses and settings in SQLite.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/mtb-analyzer/pkg/types"
)

const defaultDatabase = "data/mtb.db"

// timeLayout is the text layout for every timestamp column.
const timeLayout = time.RFC3339Nano

// Store manages the SQLite database.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// NewStore opens or creates the database at cfg.Database and brings its
// schema up to date.
func NewStore(cfg types.StorageConfig) (*Store, error) {
	path := cfg.Database
	if path == "" {
		path = defaultDatabase
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000&_txlock=immediate")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{db: db, now: time.Now}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks that the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// migrations are applied in order; PRAGMA user_version records how many
// have run. Entries are only ever appended.
var migrations = [][]string{
	{
		`CREATE TABLE IF NOT EXISTS editions (
			year INTEGER NOT NULL,
			number INTEGER NOT NULL,
			title TEXT NOT NULL DEFAULT '',
			url TEXT NOT NULL DEFAULT '',
			published_at TEXT,
			special INTEGER NOT NULL DEFAULT 0,
			stage TEXT NOT NULL DEFAULT 'discovered',
			discovered_at TEXT NOT NULL,
			scraped_at TEXT,
			analyzed_at TEXT,
			PRIMARY KEY (year, number)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_editions_stage ON editions(stage)`,
		`CREATE TABLE IF NOT EXISTS items (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			edition_year INTEGER NOT NULL,
			edition_number INTEGER NOT NULL,
			number INTEGER NOT NULL,
			category TEXT NOT NULL DEFAULT '',
			title TEXT NOT NULL DEFAULT '',
			text TEXT NOT NULL DEFAULT '',
			links TEXT NOT NULL DEFAULT '[]',
			read_at TEXT,
			UNIQUE (edition_year, edition_number, number),
			FOREIGN KEY (edition_year, edition_number)
				REFERENCES editions(year, number) ON DELETE CASCADE
		)`,
		`CREATE TABLE IF NOT EXISTS analyses (
			item_id INTEGER PRIMARY KEY REFERENCES items(id) ON DELETE CASCADE,
			score REAL NOT NULL,
			short_title TEXT NOT NULL DEFAULT '',
			summary TEXT NOT NULL DEFAULT '',
			key_points TEXT NOT NULL DEFAULT '[]',
			reasoning TEXT NOT NULL DEFAULT '',
			model TEXT NOT NULL DEFAULT '',
			analyzed_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS attachments (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			item_id INTEGER NOT NULL REFERENCES items(id) ON DELETE CASCADE,
			position INTEGER NOT NULL,
			name TEXT NOT NULL DEFAULT '',
			url TEXT NOT NULL,
			cached_path TEXT NOT NULL DEFAULT '',
			deep_text TEXT,
			deep_model TEXT,
			deep_analyzed_at TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_attachments_item ON attachments(item_id)`,
		`CREATE TABLE IF NOT EXISTS settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,
	},
}

func (s *Store) migrate() error {
	var version int
	if err := s.db.QueryRow(`PRAGMA user_version`).Scan(&version); err != nil {
		return fmt.Errorf("reading schema version: %w", err)
	}

	for i := version; i < len(migrations); i++ {
		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("beginning migration %d: %w", i+1, err)
		}
		for _, stmt := range migrations[i] {
			if _, err := tx.Exec(stmt); err != nil {
				tx.Rollback()
				return fmt.Errorf("executing schema statement: %w", err)
			}
		}
		// PRAGMA does not accept bound parameters.
		if _, err := tx.Exec(fmt.Sprintf(`PRAGMA user_version = %d`, i+1)); err != nil {
			tx.Rollback()
			return fmt.Errorf("recording schema version: %w", err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration %d: %w", i+1, err)
		}
	}
	return nil
}

// psql is the squirrel builder for SQLite's "?" placeholders.
var psql = sq.StatementBuilder.PlaceholderFormat(sq.Question)

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func formatTimePtr(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func parseTimePtr(ns sql.NullString) (*time.Time, error) {
	if !ns.Valid || ns.String == "" {
		return nil, nil
	}
	t, err := time.Parse(timeLayout, ns.String)
	if err != nil {
		return nil, fmt.Errorf("parsing timestamp %q: %w", ns.String, err)
	}
	return &t, nil
}
