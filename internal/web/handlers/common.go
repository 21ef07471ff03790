package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/kozaktomas/face-registry/internal/database"
	"github.com/kozaktomas/face-registry/internal/enroll"
	"github.com/kozaktomas/face-registry/internal/facematch"
	"github.com/kozaktomas/face-registry/internal/match"
	"github.com/kozaktomas/face-registry/internal/signature"
)

// errInvalidRequestBody is a shared error message for invalid JSON request bodies.
const errInvalidRequestBody = "invalid request body"

// sanitizeForLog removes newlines and carriage returns to prevent log injection.
func sanitizeForLog(s string) string {
	return strings.NewReplacer("\n", "", "\r", "").Replace(s)
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// statusForError maps domain errors to HTTP status codes.
func statusForError(err error) int {
	switch {
	case errors.Is(err, enroll.ErrEmptyName),
		errors.Is(err, signature.ErrMalformedSignature),
		errors.Is(err, match.ErrDimensionMismatch),
		errors.Is(err, facematch.ErrInvalidRegion):
		return http.StatusBadRequest
	case errors.Is(err, enroll.ErrNoSignatureFound):
		return http.StatusUnprocessableEntity
	case errors.Is(err, database.ErrStorageUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, enroll.ErrNoEncoder):
		return http.StatusNotImplemented
	case errors.Is(err, enroll.ErrEncoderFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// HealthCheck handles the health check endpoint.
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}
