// Package postgres stores identities in PostgreSQL so that several capture
// stations can share one registry.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/kozaktomas/face-registry/internal/config"
	"github.com/kozaktomas/face-registry/internal/database"
	"github.com/kozaktomas/face-registry/internal/signature"
	_ "github.com/lib/pq"
)

func init() {
	database.RegisterBackend(database.BackendPostgres, func(ctx context.Context, cfg *config.DatabaseConfig, dim int) (database.IdentityStore, error) {
		return Open(ctx, cfg, dim)
	})
}

// Pool manages a PostgreSQL connection pool.
type Pool struct {
	db *sql.DB
}

// NewPool creates a new PostgreSQL connection pool.
func NewPool(ctx context.Context, cfg *config.DatabaseConfig) (*Pool, error) {
	if cfg.URL == "" {
		return nil, errors.New("database URL is required")
	}

	db, err := sql.Open("postgres", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool.
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(time.Hour)
	db.SetConnMaxIdleTime(10 * time.Minute)

	// Verify connection.
	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Pool{db: db}, nil
}

// DB returns the underlying sql.DB for direct access.
func (p *Pool) DB() *sql.DB {
	return p.db
}

// Close closes the connection pool.
func (p *Pool) Close() error {
	if p.db != nil {
		if err := p.db.Close(); err != nil {
			return fmt.Errorf("closing database connection: %w", err)
		}
	}
	return nil
}

// Open connects, runs migrations and returns an identity store.
func Open(ctx context.Context, cfg *config.DatabaseConfig, dim int) (*Store, error) {
	if cfg == nil || cfg.URL == "" {
		return nil, errors.New("database URL is required")
	}
	if dim <= 0 {
		dim = signature.DefaultDim
	}

	pool, err := NewPool(ctx, cfg)
	if err != nil {
		return nil, database.Unavailable("connect", err)
	}

	if err := pool.Migrate(ctx); err != nil {
		pool.Close()
		return nil, database.Unavailable("migrate", err)
	}

	return NewStore(pool, dim), nil
}
