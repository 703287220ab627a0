// Package store persists the per-directory candidate file lists between
// invocations and provides the advisory locks serializing invocations that
// touch the same on-disk resource.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite" // pure Go SQLite driver
)

const schema = `
CREATE TABLE IF NOT EXISTS dir_lists (
    dir        TEXT PRIMARY KEY,
    paths      TEXT NOT NULL,
    written_at TIMESTAMP NOT NULL
)`

// Store keeps file-list cache entries in a sqlite database under the state
// dir. An entry is keyed by the exact directory it was enumerated from and
// expires after TTL.
type Store struct {
	db  *sqlx.DB
	ttl time.Duration
}

// New opens (creating if needed) the cache database at path.
func New(path string, ttl time.Duration) (*Store, error) {
	db, err := sqlx.Open("sqlite", "file:"+path+"?mode=rwc&_txlock=immediate")
	if err != nil {
		return nil, fmt.Errorf("open cache db: %w", err)
	}

	// single-writer CLI, no need for a pool
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return nil, fmt.Errorf("execute %s: %w", pragma, err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("init schema: %w", err)
	}

	return &Store{db: db, ttl: ttl}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Load returns the cached candidate list for exactly dir, or ok=false when
// no entry exists or the entry is older than TTL. Paths are stored relative
// to dir and returned absolute.
func (s *Store) Load(dir string) ([]string, bool, error) {
	var row struct {
		Paths     string    `db:"paths"`
		WrittenAt time.Time `db:"written_at"`
	}
	err := s.db.Get(&row, "SELECT paths, written_at FROM dir_lists WHERE dir = ?", dir)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("load dir list for %s: %w", dir, err)
	}

	if time.Since(row.WrittenAt) >= s.ttl {
		return nil, false, nil
	}

	if row.Paths == "" {
		return []string{}, true, nil
	}
	rels := strings.Split(row.Paths, "\n")
	files := make([]string, len(rels))
	for i, rel := range rels {
		files[i] = filepath.Join(dir, rel)
	}
	return files, true, nil
}

// Save writes the candidate list for dir, replacing any previous entry.
// Absolute paths outside dir are rejected, a cache entry is only usable for
// the directory it names.
func (s *Store) Save(dir string, files []string) error {
	rels := make([]string, len(files))
	for i, f := range files {
		rel, err := filepath.Rel(dir, f)
		if err != nil || strings.HasPrefix(rel, "..") {
			return fmt.Errorf("path %s is outside of %s", f, dir)
		}
		rels[i] = rel
	}

	query := `INSERT INTO dir_lists (dir, paths, written_at) VALUES (?, ?, ?)
	          ON CONFLICT(dir) DO UPDATE SET paths = excluded.paths, written_at = excluded.written_at`
	if _, err := s.db.Exec(query, dir, strings.Join(rels, "\n"), time.Now()); err != nil {
		return fmt.Errorf("save dir list for %s: %w", dir, err)
	}
	return nil
}

// Invalidate removes the entry for dir so the next invocation re-enumerates.
func (s *Store) Invalidate(dir string) error {
	if _, err := s.db.Exec("DELETE FROM dir_lists WHERE dir = ?", dir); err != nil {
		return fmt.Errorf("invalidate dir list for %s: %w", dir, err)
	}
	return nil
}
