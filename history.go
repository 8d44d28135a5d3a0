package main

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

const recentFileLimit = 10

type recentFile struct {
	Path  string
	Label string
}

// historyStore persists the files the user has successfully analyzed so they
// can be reopened from the home screen across runs.
type historyStore struct {
	db   *sql.DB
	path string
}

func openHistoryStore() (*historyStore, error) {
	dir := resolveConfigDir()
	if err := ensureDir(dir); err != nil {
		return nil, err
	}
	return openHistoryStoreAt(filepath.Join(dir, "history.sqlite"))
}

func openHistoryStoreAt(sqlitePath string) (*historyStore, error) {
	db, err := sql.Open("sqlite", sqlitePath)
	if err != nil {
		return nil, err
	}
	if err := migrateHistoryStore(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &historyStore{db: db, path: sqlitePath}, nil
}

func migrateHistoryStore(db *sql.DB) error {
	statements := []string{
		`PRAGMA journal_mode=WAL;`,
		`CREATE TABLE IF NOT EXISTS recent_files (
			path TEXT PRIMARY KEY,
			label TEXT NOT NULL DEFAULT '',
			opened_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		);`,
	}
	for _, stmt := range statements {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("history store migration failed: %w", err)
		}
	}
	return nil
}

func (s *historyStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *historyStore) List() ([]recentFile, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	rows, err := s.db.Query(
		`SELECT path, COALESCE(NULLIF(label, ''), path) FROM recent_files
		 ORDER BY opened_at DESC LIMIT ?`, recentFileLimit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var files []recentFile
	for rows.Next() {
		var path, label string
		if err := rows.Scan(&path, &label); err != nil {
			return nil, err
		}
		clean := filepath.Clean(path)
		if clean == "" {
			continue
		}
		files = append(files, recentFile{Path: clean, Label: labelForPath(clean)})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return files, nil
}

// Touch records an open, moving the file to the top of the recent list.
func (s *historyStore) Touch(path string) error {
	if s == nil || s.db == nil {
		return nil
	}
	clean := filepath.Clean(strings.TrimSpace(path))
	if clean == "" {
		return nil
	}
	_, err := s.db.Exec(`INSERT INTO recent_files (path, label, opened_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(path) DO UPDATE SET opened_at = CURRENT_TIMESTAMP`, clean, labelForPath(clean))
	return err
}

func (s *historyStore) Remove(path string) error {
	if s == nil || s.db == nil {
		return nil
	}
	clean := filepath.Clean(strings.TrimSpace(path))
	if clean == "" {
		return nil
	}
	_, err := s.db.Exec(`DELETE FROM recent_files WHERE path = ?`, clean)
	return err
}

func labelForPath(path string) string {
	return filepath.Base(path)
}

func ensureDir(path string) error {
	return os.MkdirAll(path, 0o755)
}
