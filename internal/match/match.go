// Package match decides whether a face signature belongs to a known identity.
//
// Two signatures are considered the same person when their Euclidean distance is
// strictly below a threshold. All functions are pure and safe for concurrent use.
package match

import (
	"errors"
	"fmt"
	"math"

	"github.com/kozaktomas/face-registry/internal/signature"
)

// DefaultThreshold is the distance below which two signatures are treated as the
// same identity. 0.6 is the value calibrated for the dlib ResNet model that
// produces 128-d encodings; other encoders need their own value, so it is
// configurable (MATCH_THRESHOLD).
const DefaultThreshold = 0.6

// ErrDimensionMismatch is returned when comparing signatures of different length.
var ErrDimensionMismatch = errors.New("signature dimension mismatch")

// Result is the best candidate for a query.
type Result struct {
	Index    int
	Distance float64
}

// Distance returns the Euclidean distance between a and b.
func Distance(a, b signature.Signature) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d vs %d", ErrDimensionMismatch, len(a), len(b))
	}

	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum), nil
}

// Distances returns the distance from query to every candidate, in order.
func Distances(query signature.Signature, candidates []signature.Signature) ([]float64, error) {
	out := make([]float64, len(candidates))
	for i, c := range candidates {
		d, err := Distance(query, c)
		if err != nil {
			return nil, fmt.Errorf("candidate %d: %w", i, err)
		}
		out[i] = d
	}
	return out, nil
}

// BestMatch returns the candidate closest to query. The boolean is false when
// candidates is empty. Ties resolve to the lowest index.
func BestMatch(query signature.Signature, candidates []signature.Signature) (Result, bool, error) {
	if len(candidates) == 0 {
		return Result{}, false, nil
	}

	var best Result
	for i, c := range candidates {
		d, err := Distance(query, c)
		if err != nil {
			return Result{}, false, fmt.Errorf("candidate %d: %w", i, err)
		}
		if i == 0 || d < best.Distance {
			best = Result{Index: i, Distance: d}
		}
	}
	return best, true, nil
}

// IsMatch reports whether some candidate is strictly closer than threshold.
func IsMatch(query signature.Signature, candidates []signature.Signature, threshold float64) (bool, error) {
	best, ok, err := BestMatch(query, candidates)
	if err != nil || !ok {
		return false, err
	}
	return best.Distance < threshold, nil
}

// Accept reports whether a distance passes threshold.
func Accept(distance, threshold float64) bool {
	return distance < threshold
}
