package database

import (
	"time"

	"github.com/kozaktomas/face-registry/internal/signature"
)

// IdentityRecord is one enrolled (name, signature) pair.
// A name may own several records; uniqueness is decided by signature distance.
type IdentityRecord struct {
	ID        int64
	Name      string
	Signature signature.Signature
	CreatedAt time.Time
}

// NameCount is the number of records enrolled under a name.
type NameCount struct {
	Name  string
	Count int
}
