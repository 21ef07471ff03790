package match

import (
	"fmt"
	"strings"
	"sync"

	"github.com/kozaktomas/face-registry/internal/signature"
)

// Index kinds accepted by NewIndex.
const (
	IndexLinear = "linear"
	IndexHNSW   = "hnsw"
)

// Entry is one known signature with the name it was enrolled under.
type Entry struct {
	ID        int64
	Name      string
	Signature signature.Signature
}

// Candidate is the nearest entry found for a query.
type Candidate struct {
	Entry
	Distance float64
}

// Index is an in-memory searchable set of known signatures.
type Index interface {
	// Reset replaces the contents with entries.
	Reset(entries []Entry) error
	// Add appends a single entry.
	Add(e Entry) error
	// Nearest returns the closest entry by exact Euclidean distance. An
	// approximate index may return another entry only when that entry is
	// itself within its match threshold. The boolean is false when the index
	// is empty.
	Nearest(query signature.Signature) (Candidate, bool, error)
	// Entries returns a copy of everything held.
	Entries() []Entry
	// Len returns the number of entries.
	Len() int
}

// NewIndex builds an empty index of the given kind. threshold is the match
// threshold approximate indexes must answer exactly at.
func NewIndex(kind string, threshold float64) (Index, error) {
	switch strings.ToLower(kind) {
	case "", IndexLinear:
		return NewLinearIndex(), nil
	case IndexHNSW:
		return NewHNSWIndex(threshold), nil
	default:
		return nil, fmt.Errorf("unknown match index %q", kind)
	}
}

// LinearIndex compares the query against every entry.
type LinearIndex struct {
	mu      sync.RWMutex
	entries []Entry
	sigs    []signature.Signature
}

// NewLinearIndex creates an empty linear index.
func NewLinearIndex() *LinearIndex {
	return &LinearIndex{}
}

// Reset replaces the contents with entries.
func (l *LinearIndex) Reset(entries []Entry) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.entries = make([]Entry, 0, len(entries))
	l.sigs = make([]signature.Signature, 0, len(entries))
	for _, e := range entries {
		l.entries = append(l.entries, e)
		l.sigs = append(l.sigs, e.Signature)
	}
	return nil
}

// Add appends a single entry.
func (l *LinearIndex) Add(e Entry) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.entries = append(l.entries, e)
	l.sigs = append(l.sigs, e.Signature)
	return nil
}

// Nearest scans every entry.
func (l *LinearIndex) Nearest(query signature.Signature) (Candidate, bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	best, ok, err := BestMatch(query, l.sigs)
	if err != nil || !ok {
		return Candidate{}, false, err
	}
	return Candidate{Entry: l.entries[best.Index], Distance: best.Distance}, true, nil
}

// Entries returns a copy of everything held.
func (l *LinearIndex) Entries() []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Len returns the number of entries.
func (l *LinearIndex) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}
