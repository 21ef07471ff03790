// Package signature holds the face signature type and its binary layout.
//
// Layout v1: every element is an IEEE-754 binary64 value written little-endian,
// 8 bytes per element, densely packed, no header. A 128-dimension signature is
// therefore exactly 1024 bytes.
package signature

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// DefaultDim is the length of signatures produced by the dlib ResNet face model.
const DefaultDim = 128

// ElementSize is the number of bytes one element occupies in the encoded form.
const ElementSize = 8

// ErrMalformedSignature is returned when a byte buffer or vector cannot be a signature.
var ErrMalformedSignature = errors.New("malformed signature")

// Signature is an ordered, fixed-length face encoding. Treat as immutable.
type Signature []float64

// Encode serializes sig using layout v1.
func Encode(sig Signature) []byte {
	buf := make([]byte, len(sig)*ElementSize)
	for i, v := range sig {
		binary.LittleEndian.PutUint64(buf[i*ElementSize:], math.Float64bits(v))
	}
	return buf
}

// Decode is the inverse of Encode.
func Decode(b []byte) (Signature, error) {
	if len(b) == 0 || len(b)%ElementSize != 0 {
		return nil, fmt.Errorf("%w: length %d is not a positive multiple of %d", ErrMalformedSignature, len(b), ElementSize)
	}

	sig := make(Signature, len(b)/ElementSize)
	for i := range sig {
		sig[i] = math.Float64frombits(binary.LittleEndian.Uint64(b[i*ElementSize:]))
	}
	return sig, nil
}

// DecodeDim decodes b and requires exactly dim elements.
func DecodeDim(b []byte, dim int) (Signature, error) {
	sig, err := Decode(b)
	if err != nil {
		return nil, err
	}
	if len(sig) != dim {
		return nil, fmt.Errorf("%w: got %d elements, want %d", ErrMalformedSignature, len(sig), dim)
	}
	return sig, nil
}

// Validate checks that sig has dim finite elements.
func Validate(sig Signature, dim int) error {
	if len(sig) == 0 {
		return fmt.Errorf("%w: empty", ErrMalformedSignature)
	}
	if dim > 0 && len(sig) != dim {
		return fmt.Errorf("%w: got %d elements, want %d", ErrMalformedSignature, len(sig), dim)
	}
	for i, v := range sig {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: element %d is not finite", ErrMalformedSignature, i)
		}
	}
	return nil
}

// Clone returns a copy that does not share memory with sig.
func (sig Signature) Clone() Signature {
	if sig == nil {
		return nil
	}
	out := make(Signature, len(sig))
	copy(out, sig)
	return out
}

// Float32 converts to single precision. Lossy; only for approximate indexes.
func (sig Signature) Float32() []float32 {
	out := make([]float32, len(sig))
	for i, v := range sig {
		out[i] = float32(v)
	}
	return out
}

// FromFloat32 widens a single precision vector, as returned by some encoders.
func FromFloat32(v []float32) Signature {
	out := make(Signature, len(v))
	for i, f := range v {
		out[i] = float64(f)
	}
	return out
}
