package match

import (
	"fmt"
	"sync"

	"github.com/coder/hnsw"
	"github.com/kozaktomas/face-registry/internal/signature"
)

// HNSW parameters for 128-d face signatures.
const (
	// HNSWMaxNeighbors (M) is the maximum number of neighbors per node.
	HNSWMaxNeighbors = 16

	// HNSWEfSearch is the search candidate pool size.
	HNSWEfSearch = 64

	// HNSWCandidates is how many approximate neighbors are re-ranked exactly.
	HNSWCandidates = 16

	// hnswExactBelow is the size under which the graph is bypassed entirely.
	hnswExactBelow = 32
)

// HNSWIndex answers Nearest through an approximate graph and re-ranks the
// returned neighbors with exact float64 distances. The graph stores float32
// copies; the float64 signatures are kept alongside for re-ranking.
//
// When no graph neighbor is closer than threshold, Nearest falls back to a full
// exact scan, so a stored match is never missed. A reported candidate below
// threshold may not be the true nearest entry.
type HNSWIndex struct {
	mu        sync.RWMutex
	graph     *hnsw.Graph[int]
	entries   []Entry
	dim       int
	threshold float64
}

// NewHNSWIndex creates an empty HNSW index that guarantees exact answers for
// distances at or above threshold. Non-positive values select DefaultThreshold.
func NewHNSWIndex(threshold float64) *HNSWIndex {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &HNSWIndex{threshold: threshold}
}

func newGraph() *hnsw.Graph[int] {
	g := hnsw.NewGraph[int]()
	g.M = HNSWMaxNeighbors
	g.Ml = 1.0 / float64(HNSWMaxNeighbors) // Standard HNSW formula
	g.EfSearch = HNSWEfSearch
	g.Distance = hnsw.EuclideanDistance
	return g
}

// Reset rebuilds the graph from entries.
func (h *HNSWIndex) Reset(entries []Entry) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.graph = nil
	h.entries = make([]Entry, 0, len(entries))
	h.dim = 0
	for _, e := range entries {
		if err := h.addLocked(e); err != nil {
			return err
		}
	}
	return nil
}

// Add inserts a single entry.
func (h *HNSWIndex) Add(e Entry) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.addLocked(e)
}

func (h *HNSWIndex) addLocked(e Entry) error {
	if len(e.Signature) == 0 {
		return nil
	}
	if h.dim == 0 {
		h.dim = len(e.Signature)
	}
	if len(e.Signature) != h.dim {
		return fmt.Errorf("%w: %d vs %d", ErrDimensionMismatch, len(e.Signature), h.dim)
	}
	if h.graph == nil {
		h.graph = newGraph()
	}

	key := len(h.entries)
	h.entries = append(h.entries, e)
	h.graph.Add(hnsw.MakeNode(key, e.Signature.Float32()))
	return nil
}

// Nearest returns the closest entry among the graph's candidates, or the exact
// nearest entry when none of them passes the threshold.
func (h *HNSWIndex) Nearest(query signature.Signature) (Candidate, bool, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if len(h.entries) == 0 {
		return Candidate{}, false, nil
	}
	if len(query) != h.dim {
		return Candidate{}, false, fmt.Errorf("%w: %d vs %d", ErrDimensionMismatch, len(query), h.dim)
	}

	if len(h.entries) >= hnswExactBelow {
		best, ok, err := h.rerank(query, h.graphKeys(query))
		if err != nil {
			return Candidate{}, false, err
		}
		if ok && Accept(best.Distance, h.threshold) {
			return best, true, nil
		}
	}

	return h.rerank(query, h.allKeys())
}

func (h *HNSWIndex) rerank(query signature.Signature, keys []int) (Candidate, bool, error) {
	var (
		best  Candidate
		found bool
	)
	for _, k := range keys {
		e := h.entries[k]
		d, err := Distance(query, e.Signature)
		if err != nil {
			return Candidate{}, false, err
		}
		if !found || d < best.Distance {
			best = Candidate{Entry: e, Distance: d}
			found = true
		}
	}
	return best, found, nil
}

func (h *HNSWIndex) allKeys() []int {
	keys := make([]int, len(h.entries))
	for i := range keys {
		keys[i] = i
	}
	return keys
}

func (h *HNSWIndex) graphKeys(query signature.Signature) []int {
	neighbors := h.graph.Search(query.Float32(), HNSWCandidates)
	keys := make([]int, len(neighbors))
	for i, n := range neighbors {
		keys[i] = n.Key
	}
	return keys
}

// Entries returns a copy of everything held.
func (h *HNSWIndex) Entries() []Entry {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]Entry, len(h.entries))
	copy(out, h.entries)
	return out
}

// Len returns the number of entries.
func (h *HNSWIndex) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.entries)
}
