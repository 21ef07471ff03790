// Package sqlite stores identities in a single SQLite table file.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/kozaktomas/face-registry/internal/config"
	"github.com/kozaktomas/face-registry/internal/database"
	"github.com/kozaktomas/face-registry/internal/signature"
	_ "github.com/mattn/go-sqlite3"
)

func init() {
	database.RegisterBackend(database.BackendSQLite, func(ctx context.Context, cfg *config.DatabaseConfig, dim int) (database.IdentityStore, error) {
		return Open(ctx, cfg.Path, dim)
	})
}

// Store is an identity store backed by one SQLite file.
type Store struct {
	db  *sql.DB
	dim int

	// writeMu keeps at most one insert in flight.
	writeMu sync.Mutex
}

// Open opens or creates the database at path and brings its schema up to date.
// Safe to call repeatedly on the same file.
func Open(ctx context.Context, path string, dim int) (*Store, error) {
	if path == "" {
		return nil, errors.New("database path is required")
	}
	if dim <= 0 {
		dim = signature.DefaultDim
	}

	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, database.Unavailable("create database directory", err)
			}
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, database.Unavailable("open database", err)
	}

	// SQLite only supports one writer at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, database.Unavailable("ping database", err)
	}

	if err := applyPragmas(ctx, db); err != nil {
		db.Close()
		return nil, database.Unavailable("apply pragmas", err)
	}

	s := &Store{db: db, dim: dim}
	if err := s.Migrate(ctx); err != nil {
		db.Close()
		return nil, database.Unavailable("migrate", err)
	}

	return s, nil
}

func applyPragmas(ctx context.Context, db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = FULL",
		"PRAGMA busy_timeout = 5000",
	}

	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	return nil
}

// DB returns the underlying sql.DB for direct access.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Dim returns the signature length enforced by the store.
func (s *Store) Dim() int {
	return s.dim
}

// Close closes the database handle.
func (s *Store) Close() error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if s.db == nil {
		return nil
	}
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("closing database connection: %w", err)
	}
	return nil
}

// Insert appends one record.
func (s *Store) Insert(ctx context.Context, name string, sig signature.Signature) (int64, error) {
	name = strings.TrimSpace(name)
	if err := database.ValidateRecord(name, sig, s.dim); err != nil {
		return 0, err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	res, err := s.db.ExecContext(ctx,
		"INSERT INTO known_faces (name, encoding, created_at) VALUES (?, ?, ?)",
		name, signature.Encode(sig), time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, database.Unavailable("insert identity", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, database.Unavailable("read inserted id", err)
	}
	return id, nil
}

// LoadAll returns every record ordered by id.
func (s *Store) LoadAll(ctx context.Context) ([]database.IdentityRecord, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, name, encoding, created_at FROM known_faces ORDER BY id")
	if err != nil {
		return nil, database.Unavailable("query identities", err)
	}
	defer rows.Close()

	records := []database.IdentityRecord{}
	for rows.Next() {
		var (
			rec       database.IdentityRecord
			blob      []byte
			createdAt sql.NullString
		)
		if err := rows.Scan(&rec.ID, &rec.Name, &blob, &createdAt); err != nil {
			return nil, database.Unavailable("scan identity", err)
		}

		rec.Signature, err = signature.DecodeDim(blob, s.dim)
		if err != nil {
			return nil, database.Unavailable(fmt.Sprintf("decode identity %d", rec.ID), err)
		}
		if createdAt.Valid {
			// Rows written by older versions have no timestamp.
			rec.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt.String)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, database.Unavailable("iterate identities", err)
	}

	return records, nil
}

// Count returns the total number of records.
func (s *Store) Count(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM known_faces").Scan(&count); err != nil {
		return 0, database.Unavailable("count identities", err)
	}
	return count, nil
}

// ListNames returns distinct names with their record counts.
func (s *Store) ListNames(ctx context.Context) ([]database.NameCount, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT name, COUNT(*) FROM known_faces GROUP BY name ORDER BY name")
	if err != nil {
		return nil, database.Unavailable("list names", err)
	}
	defer rows.Close()

	names := []database.NameCount{}
	for rows.Next() {
		var nc database.NameCount
		if err := rows.Scan(&nc.Name, &nc.Count); err != nil {
			return nil, database.Unavailable("scan name", err)
		}
		names = append(names, nc)
	}
	if err := rows.Err(); err != nil {
		return nil, database.Unavailable("iterate names", err)
	}
	return names, nil
}
