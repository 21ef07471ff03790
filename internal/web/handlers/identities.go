package handlers

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/kozaktomas/face-registry/internal/database"
	"github.com/kozaktomas/face-registry/internal/enroll"
	"github.com/kozaktomas/face-registry/internal/facematch"
	"github.com/kozaktomas/face-registry/internal/signature"
)

const defaultMaxUpload = 10 << 20

// IdentitiesHandler exposes enrollment and lookup over HTTP.
type IdentitiesHandler struct {
	coordinator *enroll.Coordinator
	store       database.IdentityReader
	maxUpload   int64
	logger      *slog.Logger
}

// NewIdentitiesHandler creates a new identities handler.
func NewIdentitiesHandler(coord *enroll.Coordinator, store database.IdentityReader, maxUpload int64, logger *slog.Logger) *IdentitiesHandler {
	if maxUpload <= 0 {
		maxUpload = defaultMaxUpload
	}
	return &IdentitiesHandler{
		coordinator: coord,
		store:       store,
		maxUpload:   maxUpload,
		logger:      logger,
	}
}

// ListResponse is the body of GET /identities.
type ListResponse struct {
	Identities []facematch.NameGroup `json:"identities"`
	Total      int                   `json:"total"`
}

// EnrollRequest is the JSON body of POST /identities.
type EnrollRequest struct {
	Name      string    `json:"name"`
	Signature []float64 `json:"signature"`
}

// MatchRequest is the JSON body of POST /match.
type MatchRequest struct {
	Signature []float64 `json:"signature"`
}

// MatchResponse is returned by the match endpoints.
type MatchResponse struct {
	Matched  bool    `json:"matched"`
	Name     string  `json:"name,omitempty"`
	ID       int64   `json:"id,omitempty"`
	Distance float64 `json:"distance"`
}

// List returns enrolled names with their record counts.
func (h *IdentitiesHandler) List(w http.ResponseWriter, r *http.Request) {
	names, err := h.store.ListNames(r.Context())
	if err != nil {
		h.logger.Error("failed to list identities", "error", err)
		respondError(w, statusForError(err), "failed to list identities")
		return
	}

	resp := ListResponse{Identities: facematch.GroupNames(names)}
	for _, nc := range names {
		resp.Total += nc.Count
	}
	respondJSON(w, http.StatusOK, resp)
}

// Enroll registers a signature supplied as JSON.
func (h *IdentitiesHandler) Enroll(w http.ResponseWriter, r *http.Request) {
	var req EnrollRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}

	res, err := h.coordinator.Enroll(r.Context(), req.Name, signature.Signature(req.Signature))
	h.respondResult(w, res, err)
}

// EnrollImage registers the face found in an uploaded image. The optional
// "region" field (x,y,w,h in relative coordinates) selects a face in a frame.
func (h *IdentitiesHandler) EnrollImage(w http.ResponseWriter, r *http.Request) {
	data, ok := h.readUpload(w, r)
	if !ok {
		return
	}
	name := r.FormValue("name")

	var (
		res enroll.Result
		err error
	)
	if rs := r.FormValue("region"); rs != "" {
		region, perr := facematch.ParseRegion(rs)
		if perr != nil {
			respondError(w, http.StatusBadRequest, perr.Error())
			return
		}
		res, err = h.coordinator.EnrollRegion(r.Context(), data, region, name)
	} else {
		res, err = h.coordinator.EnrollImage(r.Context(), data, name)
	}
	h.respondResult(w, res, err)
}

// Match finds the closest known identity for a signature.
func (h *IdentitiesHandler) Match(w http.ResponseWriter, r *http.Request) {
	var req MatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}

	h.identify(w, r, signature.Signature(req.Signature))
}

// MatchImage identifies the first face of an uploaded image.
func (h *IdentitiesHandler) MatchImage(w http.ResponseWriter, r *http.Request) {
	data, ok := h.readUpload(w, r)
	if !ok {
		return
	}

	sig, err := h.coordinator.EncodeImage(r.Context(), data)
	if err != nil {
		respondError(w, statusForError(err), err.Error())
		return
	}
	h.identify(w, r, sig)
}

// Reload refreshes the coordinator's snapshot of known identities.
func (h *IdentitiesHandler) Reload(w http.ResponseWriter, r *http.Request) {
	if err := h.coordinator.Reload(r.Context()); err != nil {
		h.logger.Error("failed to reload identities", "error", err)
		respondError(w, statusForError(err), "failed to reload identities")
		return
	}

	known, err := h.coordinator.Known(r.Context())
	if err != nil {
		respondError(w, statusForError(err), err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]int{"known": known})
}

func (h *IdentitiesHandler) identify(w http.ResponseWriter, r *http.Request, sig signature.Signature) {
	res, ok, err := h.coordinator.Identify(r.Context(), sig)
	if err != nil {
		respondError(w, statusForError(err), err.Error())
		return
	}

	resp := MatchResponse{Matched: ok, Distance: res.Distance}
	if ok {
		resp.Name = res.MatchedName
		resp.ID = res.MatchedID
	}
	respondJSON(w, http.StatusOK, resp)
}

func (h *IdentitiesHandler) respondResult(w http.ResponseWriter, res enroll.Result, err error) {
	if err != nil {
		status := statusForError(err)
		if status >= http.StatusInternalServerError {
			h.logger.Error("enrollment failed", "name", sanitizeForLog(res.Name), "error", err)
		}
		respondJSON(w, status, map[string]any{
			"error":   err.Error(),
			"outcome": res.Outcome,
		})
		return
	}

	status := http.StatusOK
	if res.Outcome == enroll.OutcomeRegistered {
		status = http.StatusCreated
	}
	respondJSON(w, status, res)
}

// readUpload reads the "file" part of a multipart request.
func (h *IdentitiesHandler) readUpload(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	if err := r.ParseMultipartForm(h.maxUpload); err != nil {
		respondError(w, http.StatusBadRequest, "failed to parse multipart form")
		return nil, false
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		respondError(w, http.StatusBadRequest, "file is required")
		return nil, false
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil || len(data) == 0 {
		respondError(w, http.StatusBadRequest, "failed to read file")
		return nil, false
	}
	return data, true
}
