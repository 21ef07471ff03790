package handlers

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kozaktomas/face-registry/internal/database"
	"github.com/kozaktomas/face-registry/internal/enroll"
	"github.com/kozaktomas/face-registry/internal/signature"
)

func TestIdentitiesHandler_Enroll_Registered(t *testing.T) {
	h, store := newTestHandler(t, nil)

	rec := httptest.NewRecorder()
	h.Enroll(rec, jsonRequest(t, http.MethodPost, "/api/v1/identities", EnrollRequest{Name: "Alice", Signature: sigAlice}))

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var res enroll.Result
	decodeBody(t, rec, &res)
	if res.Outcome != enroll.OutcomeRegistered || res.Name != "Alice" || res.ID == 0 {
		t.Errorf("unexpected result %+v", res)
	}
	if store.InsertCalls != 1 {
		t.Errorf("expected 1 insert, got %d", store.InsertCalls)
	}
}

func TestIdentitiesHandler_Enroll_AlreadyRegistered(t *testing.T) {
	h, store := newTestHandler(t, nil)
	store.AddRecord("Alice", sigAlice)

	near := sigAlice.Clone()
	near[0] += 0.01

	rec := httptest.NewRecorder()
	h.Enroll(rec, jsonRequest(t, http.MethodPost, "/api/v1/identities", EnrollRequest{Name: "Alicia", Signature: near}))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var res enroll.Result
	decodeBody(t, rec, &res)
	if res.Outcome != enroll.OutcomeAlreadyRegistered || res.MatchedName != "Alice" {
		t.Errorf("unexpected result %+v", res)
	}
	if store.InsertCalls != 0 {
		t.Errorf("expected no insert, got %d", store.InsertCalls)
	}
}

func TestIdentitiesHandler_Enroll_BadRequests(t *testing.T) {
	tests := []struct {
		name string
		body any
	}{
		{"empty name", EnrollRequest{Name: " ", Signature: sigAlice}},
		{"wrong dimension", EnrollRequest{Name: "Alice", Signature: []float64{1, 2, 3}}},
		{"missing signature", EnrollRequest{Name: "Alice"}},
		{"not an object", []string{"Alice"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, store := newTestHandler(t, nil)

			rec := httptest.NewRecorder()
			h.Enroll(rec, jsonRequest(t, http.MethodPost, "/api/v1/identities", tt.body))

			if rec.Code != http.StatusBadRequest {
				t.Errorf("expected status 400, got %d: %s", rec.Code, rec.Body.String())
			}
			if store.InsertCalls != 0 {
				t.Errorf("expected no insert, got %d", store.InsertCalls)
			}
		})
	}
}

func TestIdentitiesHandler_Enroll_StorageUnavailable(t *testing.T) {
	h, store := newTestHandler(t, nil)
	store.LoadAllError = database.Unavailable("query identities", errors.New("database is locked"))

	rec := httptest.NewRecorder()
	h.Enroll(rec, jsonRequest(t, http.MethodPost, "/api/v1/identities", EnrollRequest{Name: "Alice", Signature: sigAlice}))

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected status 503, got %d", rec.Code)
	}

	var body map[string]any
	decodeBody(t, rec, &body)
	if body["outcome"] != string(enroll.OutcomeFailed) {
		t.Errorf("expected outcome 'failed', got %v", body["outcome"])
	}
}

func TestIdentitiesHandler_EnrollImage(t *testing.T) {
	tests := []struct {
		name       string
		enc        *stubEncoder
		file       []byte
		fields     map[string]string
		wantStatus int
	}{
		{"registered", &stubEncoder{sigs: []signature.Signature{sigBob}}, []byte("jpeg"), map[string]string{"name": "Bob"}, http.StatusCreated},
		{"no face", &stubEncoder{}, []byte("jpeg"), map[string]string{"name": "Bob"}, http.StatusUnprocessableEntity},
		{"encoder down", &stubEncoder{err: errors.New("connection refused")}, []byte("jpeg"), map[string]string{"name": "Bob"}, http.StatusBadGateway},
		{"missing file", &stubEncoder{}, nil, map[string]string{"name": "Bob"}, http.StatusBadRequest},
		{"bad region", &stubEncoder{}, []byte("jpeg"), map[string]string{"name": "Bob", "region": "1,2"}, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, _ := newTestHandler(t, tt.enc)

			rec := httptest.NewRecorder()
			h.EnrollImage(rec, multipartRequest(t, "/api/v1/identities/image", tt.file, tt.fields))

			if rec.Code != tt.wantStatus {
				t.Errorf("expected status %d, got %d: %s", tt.wantStatus, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestIdentitiesHandler_EnrollImage_NoEncoder(t *testing.T) {
	h, _ := newTestHandler(t, nil)

	rec := httptest.NewRecorder()
	h.EnrollImage(rec, multipartRequest(t, "/api/v1/identities/image", []byte("jpeg"), map[string]string{"name": "Bob"}))

	if rec.Code != http.StatusNotImplemented {
		t.Errorf("expected status 501, got %d", rec.Code)
	}
}

func TestIdentitiesHandler_List(t *testing.T) {
	h, store := newTestHandler(t, nil)
	store.AddRecord("Jiří Novák", sigAlice)
	store.AddRecord("jiri-novak", sigBob)
	store.AddRecord("Alice", sigAlice)

	rec := httptest.NewRecorder()
	h.List(rec, httptest.NewRequest(http.MethodGet, "/api/v1/identities", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	var resp ListResponse
	decodeBody(t, rec, &resp)
	if resp.Total != 3 {
		t.Errorf("expected total 3, got %d", resp.Total)
	}
	if len(resp.Identities) != 2 {
		t.Fatalf("expected 2 groups, got %d: %+v", len(resp.Identities), resp.Identities)
	}
	if resp.Identities[0].Normalized != "alice" || resp.Identities[0].Count != 1 {
		t.Errorf("unexpected first group %+v", resp.Identities[0])
	}
	if resp.Identities[1].Normalized != "jiri novak" || resp.Identities[1].Count != 2 || len(resp.Identities[1].Spellings) != 2 {
		t.Errorf("unexpected second group %+v", resp.Identities[1])
	}
}

func TestIdentitiesHandler_List_StorageUnavailable(t *testing.T) {
	h, store := newTestHandler(t, nil)
	store.ListNamesError = database.Unavailable("list names", errors.New("no such table"))

	rec := httptest.NewRecorder()
	h.List(rec, httptest.NewRequest(http.MethodGet, "/api/v1/identities", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected status 503, got %d", rec.Code)
	}
}

func TestIdentitiesHandler_Match(t *testing.T) {
	h, store := newTestHandler(t, nil)
	id := store.AddRecord("Alice", sigAlice)

	near := sigAlice.Clone()
	near[3] -= 0.02

	tests := []struct {
		name        string
		sig         []float64
		wantStatus  int
		wantMatched bool
	}{
		{"match", near, http.StatusOK, true},
		{"no match", sigBob, http.StatusOK, false},
		{"dimension mismatch", []float64{1}, http.StatusBadRequest, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.Match(rec, jsonRequest(t, http.MethodPost, "/api/v1/match", MatchRequest{Signature: tt.sig}))

			if rec.Code != tt.wantStatus {
				t.Fatalf("expected status %d, got %d: %s", tt.wantStatus, rec.Code, rec.Body.String())
			}
			if tt.wantStatus != http.StatusOK {
				return
			}

			var resp MatchResponse
			decodeBody(t, rec, &resp)
			if resp.Matched != tt.wantMatched {
				t.Errorf("expected matched=%v, got %+v", tt.wantMatched, resp)
			}
			if tt.wantMatched && (resp.Name != "Alice" || resp.ID != id) {
				t.Errorf("unexpected match %+v", resp)
			}
			if !tt.wantMatched && resp.Name != "" {
				t.Errorf("unmatched response must not carry a name: %+v", resp)
			}
		})
	}
}

func TestIdentitiesHandler_MatchImage(t *testing.T) {
	h, store := newTestHandler(t, &stubEncoder{sigs: []signature.Signature{sigBob}})
	store.AddRecord("Bob", sigBob)

	rec := httptest.NewRecorder()
	h.MatchImage(rec, multipartRequest(t, "/api/v1/match/image", []byte("jpeg"), nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp MatchResponse
	decodeBody(t, rec, &resp)
	if !resp.Matched || resp.Name != "Bob" || resp.Distance != 0 {
		t.Errorf("unexpected response %+v", resp)
	}
}

func TestIdentitiesHandler_Reload(t *testing.T) {
	h, store := newTestHandler(t, nil)
	store.AddRecord("Alice", sigAlice)
	store.AddRecord("Bob", sigBob)

	rec := httptest.NewRecorder()
	h.Reload(rec, httptest.NewRequest(http.MethodPost, "/api/v1/identities/reload", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	var body map[string]int
	decodeBody(t, rec, &body)
	if body["known"] != 2 {
		t.Errorf("expected 2 known identities, got %d", body["known"])
	}
}
