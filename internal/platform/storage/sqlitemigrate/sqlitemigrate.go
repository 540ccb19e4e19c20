// Package sqlitemigrate applies embedded SQL migrations to a SQLite database.
// Each .sql file runs at most once; applied files are recorded in a
// schema_migrations table keyed by path.
package sqlitemigrate

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
	"time"
)

const (
	upMarker   = "-- +migrate Up"
	downMarker = "-- +migrate Down"
)

// ApplyMigrations runs the pending .sql files under root in lexical order.
// An empty root reads from the filesystem root.
func ApplyMigrations(sqlDB *sql.DB, migrationFS fs.FS, root string) error {
	if sqlDB == nil {
		return fmt.Errorf("sql db is required")
	}

	files, err := listMigrations(migrationFS, strings.TrimSpace(root))
	if err != nil {
		return err
	}

	if _, err := sqlDB.Exec(`
CREATE TABLE IF NOT EXISTS schema_migrations (
    name TEXT PRIMARY KEY,
    applied_at INTEGER NOT NULL
)`); err != nil {
		return fmt.Errorf("ensure migration table: %w", err)
	}

	for _, file := range files {
		applied, err := isApplied(sqlDB, file)
		if err != nil {
			return fmt.Errorf("check migration %s: %w", file, err)
		}
		if applied {
			continue
		}
		if err := applyOne(sqlDB, migrationFS, file); err != nil {
			return err
		}
	}
	return nil
}

func listMigrations(migrationFS fs.FS, root string) ([]string, error) {
	if root == "" {
		root = "."
	}
	entries, err := fs.ReadDir(migrationFS, root)
	if err != nil {
		return nil, fmt.Errorf("read migrations dir: %w", err)
	}
	files := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		name := entry.Name()
		if root != "." {
			name = path.Join(root, name)
		}
		files = append(files, name)
	}
	sort.Strings(files)
	return files, nil
}

// applyOne executes a migration's Up section and records it in one
// transaction so a failed migration stays unrecorded.
func applyOne(sqlDB *sql.DB, migrationFS fs.FS, file string) error {
	content, err := fs.ReadFile(migrationFS, file)
	if err != nil {
		return fmt.Errorf("read migration %s: %w", file, err)
	}

	upSQL := upSection(string(content))
	if strings.TrimSpace(upSQL) == "" {
		return nil
	}

	tx, err := sqlDB.BeginTx(context.Background(), nil)
	if err != nil {
		return fmt.Errorf("begin migration %s: %w", file, err)
	}

	if _, err := tx.Exec(upSQL); err != nil {
		// Pre-migration-table databases already hold the schema; treat
		// duplicate DDL as applied rather than failing startup.
		if !isAlreadyExists(err) {
			_ = tx.Rollback()
			return fmt.Errorf("exec migration %s: %w", file, err)
		}
	}

	if _, err := tx.Exec(
		"INSERT OR IGNORE INTO schema_migrations (name, applied_at) VALUES (?, ?)",
		file, time.Now().UTC().UnixMilli(),
	); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("record migration %s: %w", file, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration %s: %w", file, err)
	}
	return nil
}

// upSection returns the SQL between the Up and Down markers. Files without
// markers run whole.
func upSection(content string) string {
	upIdx := strings.Index(content, upMarker)
	if upIdx == -1 {
		return content
	}
	body := content[upIdx+len(upMarker):]
	if downIdx := strings.Index(body, downMarker); downIdx != -1 {
		body = body[:downIdx]
	}
	return body
}

func isAlreadyExists(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "already exists") || strings.Contains(msg, "duplicate column name")
}

func isApplied(sqlDB *sql.DB, name string) (bool, error) {
	var found int
	err := sqlDB.QueryRow("SELECT 1 FROM schema_migrations WHERE name = ?", name).Scan(&found)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
