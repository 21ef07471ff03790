package database

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
)

// MigrationFunc is a schema step that needs to inspect the database before
// changing it.
type MigrationFunc func(ctx context.Context, tx *sql.Tx) error

// Migrations describes the schema history of one backend. SQL steps are read
// from the *.sql files in Dir of FS; Funcs adds steps written in Go. Both are
// applied together in version order, each in its own transaction.
type Migrations struct {
	FS    fs.FS
	Dir   string
	Funcs map[string]MigrationFunc

	// CreateTable creates schema_migrations if it is missing.
	CreateTable string
	// Placeholder is the bind parameter syntax of the driver, "?" or "$1".
	Placeholder string
}

// Migrate applies every step not yet recorded in schema_migrations and
// returns the versions it applied.
func (m Migrations) Migrate(ctx context.Context, db *sql.DB) ([]string, error) {
	if _, err := db.ExecContext(ctx, m.CreateTable); err != nil {
		return nil, fmt.Errorf("create migrations table: %w", err)
	}

	applied, err := AppliedMigrations(ctx, db)
	if err != nil {
		return nil, err
	}
	done := make(map[string]bool, len(applied))
	for _, v := range applied {
		done[v] = true
	}

	versions, err := m.versions()
	if err != nil {
		return nil, err
	}

	var ran []string
	for _, version := range versions {
		if done[version] {
			continue
		}
		if err := m.apply(ctx, db, version); err != nil {
			return ran, err
		}
		ran = append(ran, version)
	}
	return ran, nil
}

func (m Migrations) versions() ([]string, error) {
	var versions []string
	if m.FS != nil {
		entries, err := fs.ReadDir(m.FS, m.Dir)
		if err != nil {
			return nil, fmt.Errorf("read migrations directory: %w", err)
		}
		for _, e := range entries {
			if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
				versions = append(versions, e.Name())
			}
		}
	}
	for version := range m.Funcs {
		versions = append(versions, version)
	}
	sort.Strings(versions)
	return versions, nil
}

func (m Migrations) apply(ctx context.Context, db *sql.DB, version string) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction for %s: %w", version, err)
	}
	defer tx.Rollback()

	if fn, ok := m.Funcs[version]; ok {
		if err := fn(ctx, tx); err != nil {
			return fmt.Errorf("execute migration %s: %w", version, err)
		}
	} else {
		content, err := fs.ReadFile(m.FS, path.Join(m.Dir, version))
		if err != nil {
			return fmt.Errorf("read migration %s: %w", version, err)
		}
		if _, err := tx.ExecContext(ctx, string(content)); err != nil {
			return fmt.Errorf("execute migration %s: %w", version, err)
		}
	}

	record := "INSERT INTO schema_migrations (version) VALUES (" + m.Placeholder + ")"
	if _, err := tx.ExecContext(ctx, record, version); err != nil {
		return fmt.Errorf("record migration %s: %w", version, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration %s: %w", version, err)
	}
	return nil
}

// AppliedMigrations returns the recorded versions in order.
func AppliedMigrations(ctx context.Context, db *sql.DB) ([]string, error) {
	rows, err := db.QueryContext(ctx, "SELECT version FROM schema_migrations ORDER BY version")
	if err != nil {
		return nil, fmt.Errorf("query applied migrations: %w", err)
	}
	defer rows.Close()

	var versions []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan migration version: %w", err)
		}
		versions = append(versions, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate migration versions: %w", err)
	}
	return versions, nil
}
