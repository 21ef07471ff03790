package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"

	"github.com/kozaktomas/face-registry/internal/database"
	"github.com/kozaktomas/face-registry/internal/signature"
)

// insertLockKey serializes inserts across every process sharing the database.
const insertLockKey = 0x66616365 // "face"

// Store implements database.IdentityStore on top of a Pool.
type Store struct {
	pool    *Pool
	dim     int
	writeMu sync.Mutex
}

// NewStore wraps an already migrated pool.
func NewStore(pool *Pool, dim int) *Store {
	return &Store{pool: pool, dim: dim}
}

// Pool returns the underlying pool.
func (s *Store) Pool() *Pool {
	return s.pool
}

// Close closes the pool.
func (s *Store) Close() error {
	return s.pool.Close()
}

// Insert appends one record. Inserts are serialized in-process by a mutex and
// across processes by a transaction-scoped advisory lock.
func (s *Store) Insert(ctx context.Context, name string, sig signature.Signature) (int64, error) {
	name = strings.TrimSpace(name)
	if err := database.ValidateRecord(name, sig, s.dim); err != nil {
		return 0, err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.pool.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, database.Unavailable("begin insert", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "SELECT pg_advisory_xact_lock($1)", insertLockKey); err != nil {
		return 0, database.Unavailable("lock identities", err)
	}

	var id int64
	err = tx.QueryRowContext(ctx,
		"INSERT INTO known_faces (name, encoding) VALUES ($1, $2) RETURNING id",
		name, signature.Encode(sig),
	).Scan(&id)
	if err != nil {
		return 0, database.Unavailable("insert identity", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, database.Unavailable("commit identity", err)
	}
	return id, nil
}

// LoadAll returns every record ordered by id.
func (s *Store) LoadAll(ctx context.Context) ([]database.IdentityRecord, error) {
	rows, err := s.pool.db.QueryContext(ctx, "SELECT id, name, encoding, created_at FROM known_faces ORDER BY id")
	if err != nil {
		return nil, database.Unavailable("query identities", err)
	}
	defer rows.Close()

	records := []database.IdentityRecord{}
	for rows.Next() {
		var (
			rec       database.IdentityRecord
			blob      []byte
			createdAt sql.NullTime
		)
		if err := rows.Scan(&rec.ID, &rec.Name, &blob, &createdAt); err != nil {
			return nil, database.Unavailable("scan identity", err)
		}

		rec.Signature, err = signature.DecodeDim(blob, s.dim)
		if err != nil {
			return nil, database.Unavailable(fmt.Sprintf("decode identity %d", rec.ID), err)
		}
		if createdAt.Valid {
			rec.CreatedAt = createdAt.Time
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
	if err := s.pool.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM known_faces").Scan(&count); err != nil {
		return 0, database.Unavailable("count identities", err)
	}
	return count, nil
}

// ListNames returns distinct names with their record counts.
func (s *Store) ListNames(ctx context.Context) ([]database.NameCount, error) {
	rows, err := s.pool.db.QueryContext(ctx, "SELECT name, COUNT(*) FROM known_faces GROUP BY name ORDER BY name")
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
