package postgres

import (
	"context"
	"embed"

	"github.com/kozaktomas/face-registry/internal/database"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

var migrations = database.Migrations{
	FS:  migrationsFS,
	Dir: "migrations",

	CreateTable: `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version VARCHAR(255) PRIMARY KEY,
			applied_at TIMESTAMPTZ DEFAULT NOW()
		)
	`,
	Placeholder: "$1",
}

// Migrate applies all pending migrations automatically on startup.
func (p *Pool) Migrate(ctx context.Context) error {
	_, err := migrations.Migrate(ctx, p.db)
	return err
}
