package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"fmt"

	"github.com/kozaktomas/face-registry/internal/database"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

var migrations = database.Migrations{
	FS:  migrationsFS,
	Dir: "migrations",

	Funcs: map[string]database.MigrationFunc{
		"002_created_at": addCreatedAt,
	},

	CreateTable: `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version    TEXT PRIMARY KEY,
			applied_at TEXT DEFAULT CURRENT_TIMESTAMP
		)
	`,
	Placeholder: "?",
}

// addCreatedAt adds the created_at column unless another writer already did.
func addCreatedAt(ctx context.Context, tx *sql.Tx) error {
	exists, err := hasColumn(ctx, tx, "known_faces", "created_at")
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	_, err = tx.ExecContext(ctx, "ALTER TABLE known_faces ADD COLUMN created_at TEXT")
	return err
}

func hasColumn(ctx context.Context, tx *sql.Tx, table, column string) (bool, error) {
	rows, err := tx.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return false, fmt.Errorf("table info %s: %w", table, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			cid       int
			name      string
			colType   string
			notNull   int
			dfltValue sql.NullString
			pk        int
		)
		if err := rows.Scan(&cid, &name, &colType, &notNull, &dfltValue, &pk); err != nil {
			return false, fmt.Errorf("scan table info %s: %w", table, err)
		}
		if name == column {
			return true, nil
		}
	}
	return false, rows.Err()
}

// Migrate applies all pending migrations.
func (s *Store) Migrate(ctx context.Context) error {
	_, err := migrations.Migrate(ctx, s.db)
	return err
}

// MigrationsApplied returns the list of applied migrations.
func (s *Store) MigrationsApplied(ctx context.Context) ([]string, error) {
	return database.AppliedMigrations(ctx, s.db)
}
