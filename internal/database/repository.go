package database

import (
	"context"
	"io"

	"github.com/kozaktomas/face-registry/internal/signature"
)

// IdentityReader provides read-only access to enrolled identities
type IdentityReader interface {
	// LoadAll returns every record ordered by id. An empty store yields an empty slice, not an error.
	LoadAll(ctx context.Context) ([]IdentityRecord, error)
	// Count returns the total number of records
	Count(ctx context.Context) (int, error)
	// ListNames returns the distinct names with their record counts, sorted by name
	ListNames(ctx context.Context) ([]NameCount, error)
}

// IdentityWriter provides write access to enrolled identities
type IdentityWriter interface {
	IdentityReader

	// Insert appends one record and returns its storage-assigned id.
	// Implementations serialize concurrent inserts.
	Insert(ctx context.Context, name string, sig signature.Signature) (int64, error)
}

// IdentityStore is a writer with an explicit lifecycle.
type IdentityStore interface {
	IdentityWriter
	io.Closer
}
