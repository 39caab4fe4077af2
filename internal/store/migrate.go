package store

import (
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"sort"
	"strings"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// Migrate applies the embedded migrations.
func (s *Store) Migrate() error {
	sub, err := fs.Sub(migrationFS, "migrations")
	if err != nil {
		return err
	}
	return s.MigrateFS(sub)
}

// MigrateFS runs all .sql files at the root of fsys in name order,
// skipping the ones already recorded in schema_migrations.
func (s *Store) MigrateFS(fsys fs.FS) error {
	_, err := s.DB.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (
		version TEXT PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);`)
	if err != nil {
		return fmt.Errorf("failed to create schema_migrations table: %w", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("failed to read migrations: %w", err)
	}

	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)

	for _, file := range files {
		if isApplied(s.DB, file) {
			slog.Debug("Skipping already applied migration", "file", file)
			continue
		}

		slog.Info("Applying migration", "file", file)
		content, err := fs.ReadFile(fsys, file)
		if err != nil {
			return fmt.Errorf("failed to read migration file %s: %w", file, err)
		}

		tx, err := s.DB.Begin()
		if err != nil {
			return err
		}
		if _, err := tx.Exec(string(content)); err != nil {
			tx.Rollback()
			if !strings.Contains(err.Error(), "duplicate column name") {
				return fmt.Errorf("failed to execute migration %s: %w", file, err)
			}
			slog.Warn("Column likely already exists, marking as applied", "file", file)
		} else if err := tx.Commit(); err != nil {
			return err
		}

		if _, err := s.DB.Exec(`INSERT INTO schema_migrations (version) VALUES (?)`, file); err != nil {
			return fmt.Errorf("failed to record migration %s: %w", file, err)
		}
	}

	return nil
}

func isApplied(db *sql.DB, version string) bool {
	var exists int
	err := db.QueryRow(`SELECT 1 FROM schema_migrations WHERE version = ?`, version).Scan(&exists)
	return err == nil
}
