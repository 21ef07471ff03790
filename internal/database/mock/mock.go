// Package mock provides mock implementations of database interfaces for testing.
package mock

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/kozaktomas/face-registry/internal/database"
	"github.com/kozaktomas/face-registry/internal/signature"
)

// MockIdentityStore is an in-memory implementation of database.IdentityStore
type MockIdentityStore struct {
	mu      sync.RWMutex
	records []database.IdentityRecord
	nextID  int64
	dim     int
	closed  bool

	// Error injection
	InsertError    error
	LoadAllError   error
	CountError     error
	ListNamesError error

	// Call counters
	InsertCalls  int
	LoadAllCalls int
}

// NewMockIdentityStore creates a new mock store enforcing dim (0 disables the check)
func NewMockIdentityStore(dim int) *MockIdentityStore {
	return &MockIdentityStore{nextID: 1, dim: dim}
}

// AddRecord seeds the store without going through Insert
func (m *MockIdentityStore) AddRecord(name string, sig signature.Signature) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.appendLocked(name, sig)
}

func (m *MockIdentityStore) appendLocked(name string, sig signature.Signature) int64 {
	id := m.nextID
	m.nextID++
	m.records = append(m.records, database.IdentityRecord{
		ID:        id,
		Name:      name,
		Signature: sig.Clone(),
		CreatedAt: time.Now(),
	})
	return id
}

// Insert appends a record
func (m *MockIdentityStore) Insert(ctx context.Context, name string, sig signature.Signature) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.InsertCalls++

	if m.InsertError != nil {
		return 0, m.InsertError
	}
	if m.closed {
		return 0, database.Unavailable("insert identity", errors.New("store closed"))
	}
	name = strings.TrimSpace(name)
	if err := database.ValidateRecord(name, sig, m.dim); err != nil {
		return 0, err
	}
	return m.appendLocked(name, sig), nil
}

// LoadAll returns copies of all records in insertion order
func (m *MockIdentityStore) LoadAll(ctx context.Context) ([]database.IdentityRecord, error) {
	m.mu.Lock()
	m.LoadAllCalls++
	m.mu.Unlock()

	if m.LoadAllError != nil {
		return nil, m.LoadAllError
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, database.Unavailable("query identities", errors.New("store closed"))
	}

	out := make([]database.IdentityRecord, len(m.records))
	for i, r := range m.records {
		r.Signature = r.Signature.Clone()
		out[i] = r
	}
	return out, nil
}

// Count returns the number of records
func (m *MockIdentityStore) Count(ctx context.Context) (int, error) {
	if m.CountError != nil {
		return 0, m.CountError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records), nil
}

// ListNames returns distinct names with counts sorted by name
func (m *MockIdentityStore) ListNames(ctx context.Context) ([]database.NameCount, error) {
	if m.ListNamesError != nil {
		return nil, m.ListNamesError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	counts := make(map[string]int)
	for _, r := range m.records {
		counts[r.Name]++
	}
	names := make([]database.NameCount, 0, len(counts))
	for name, c := range counts {
		names = append(names, database.NameCount{Name: name, Count: c})
	}
	sort.Slice(names, func(i, j int) bool { return names[i].Name < names[j].Name })
	return names, nil
}

// Close marks the store closed
func (m *MockIdentityStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Verify interface compliance
var _ database.IdentityStore = (*MockIdentityStore)(nil)
