package match

import (
	"math/rand/v2"
	"testing"

	"github.com/kozaktomas/face-registry/internal/signature"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildEntries(r *rand.Rand, n, dim int) []Entry {
	entries := make([]Entry, n)
	for i := range entries {
		entries[i] = Entry{ID: int64(i + 1), Name: "person", Signature: randomSignature(r, dim)}
	}
	return entries
}

func TestNewIndex(t *testing.T) {
	tests := []struct {
		kind    string
		wantErr bool
	}{
		{"", false},
		{"linear", false},
		{"HNSW", false},
		{"kdtree", true},
	}

	for _, tt := range tests {
		t.Run(tt.kind, func(t *testing.T) {
			idx, err := NewIndex(tt.kind, DefaultThreshold)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, 0, idx.Len())
		})
	}
}

func testIndexContract(t *testing.T, idx Index) {
	t.Helper()
	r := rand.New(rand.NewPCG(21, 42))

	_, ok, err := idx.Nearest(randomSignature(r, 8))
	require.NoError(t, err)
	assert.False(t, ok, "empty index has no nearest entry")

	entries := buildEntries(r, 10, 8)
	require.NoError(t, idx.Reset(entries))
	assert.Equal(t, 10, idx.Len())

	c, ok, err := idx.Nearest(shift(entries[4].Signature, 0.001))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, entries[4].ID, c.ID)
	assert.Less(t, c.Distance, DefaultThreshold)

	extra := Entry{ID: 99, Name: "new", Signature: randomSignature(r, 8)}
	require.NoError(t, idx.Add(extra))
	assert.Equal(t, 11, idx.Len())

	c, ok, err = idx.Nearest(extra.Signature)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(99), c.ID)
	assert.Equal(t, 0.0, c.Distance)

	_, _, err = idx.Nearest(randomSignature(r, 4))
	assert.ErrorIs(t, err, ErrDimensionMismatch)

	got := idx.Entries()
	got[0].Name = "mutated"
	assert.NotEqual(t, "mutated", idx.Entries()[0].Name)
}

func TestLinearIndex_Contract(t *testing.T) {
	testIndexContract(t, NewLinearIndex())
}

func TestHNSWIndex_Contract(t *testing.T) {
	testIndexContract(t, NewHNSWIndex(DefaultThreshold))
}

func TestHNSWIndex_RejectsMixedDimensions(t *testing.T) {
	idx := NewHNSWIndex(DefaultThreshold)
	require.NoError(t, idx.Add(Entry{ID: 1, Signature: make(signature.Signature, 4)}))

	err := idx.Add(Entry{ID: 2, Signature: make(signature.Signature, 3)})
	assert.ErrorIs(t, err, ErrDimensionMismatch)
	assert.Equal(t, 1, idx.Len())
}

func TestHNSWIndex_LargeSetFindsStoredSignature(t *testing.T) {
	r := rand.New(rand.NewPCG(5, 8))
	entries := buildEntries(r, 300, signature.DefaultDim)

	idx := NewHNSWIndex(DefaultThreshold)
	require.NoError(t, idx.Reset(entries))

	for _, i := range []int{0, 57, 150, 299} {
		c, ok, err := idx.Nearest(shift(entries[i].Signature, 0.001))
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, entries[i].ID, c.ID)
	}
}

func TestHNSWIndex_NeverMissesStoredSignature(t *testing.T) {
	r := rand.New(rand.NewPCG(11, 3))
	entries := buildEntries(r, 400, signature.DefaultDim)

	idx := NewHNSWIndex(DefaultThreshold)
	require.NoError(t, idx.Reset(entries))

	for _, e := range entries {
		c, ok, err := idx.Nearest(e.Signature)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, e.ID, c.ID)
		assert.Equal(t, 0.0, c.Distance)
	}
}

func TestHNSWIndex_AgreesWithLinearAboveThreshold(t *testing.T) {
	r := rand.New(rand.NewPCG(13, 17))
	entries := buildEntries(r, 200, 32)

	hnswIdx := NewHNSWIndex(DefaultThreshold)
	require.NoError(t, hnswIdx.Reset(entries))
	linear := NewLinearIndex()
	require.NoError(t, linear.Reset(entries))

	for range 50 {
		query := randomSignature(r, 32)

		want, ok, err := linear.Nearest(query)
		require.NoError(t, err)
		require.True(t, ok)
		require.GreaterOrEqual(t, want.Distance, DefaultThreshold)

		got, ok, err := hnswIdx.Nearest(query)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, want.ID, got.ID)
		assert.Equal(t, want.Distance, got.Distance)
	}
}

func TestNewHNSWIndex_DefaultThreshold(t *testing.T) {
	assert.Equal(t, DefaultThreshold, NewHNSWIndex(0).threshold)
	assert.Equal(t, 0.4, NewHNSWIndex(0.4).threshold)
}
