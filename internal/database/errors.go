package database

import (
	"errors"
	"fmt"
	"strings"

	"github.com/kozaktomas/face-registry/internal/signature"
)

var (
	// ErrStorageUnavailable wraps every I/O, schema or row decoding failure of a backend.
	ErrStorageUnavailable = errors.New("storage unavailable")

	// ErrEmptyName is returned when inserting a record without a name.
	ErrEmptyName = errors.New("name must not be empty")
)

// Unavailable wraps err so that errors.Is(result, ErrStorageUnavailable) holds
// while keeping the cause inspectable.
func Unavailable(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %s: %w", ErrStorageUnavailable, op, err)
}

// ValidateRecord checks a record before it is written.
func ValidateRecord(name string, sig signature.Signature, dim int) error {
	if strings.TrimSpace(name) == "" {
		return ErrEmptyName
	}
	return signature.Validate(sig, dim)
}
