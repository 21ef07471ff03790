package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kozaktomas/face-registry/internal/database/mock"
	"github.com/kozaktomas/face-registry/internal/encoder"
	"github.com/kozaktomas/face-registry/internal/enroll"
	"github.com/kozaktomas/face-registry/internal/logging"
	"github.com/kozaktomas/face-registry/internal/signature"
)

const testDim = 4

var (
	sigAlice = signature.Signature{0.1, 0.2, 0.3, 0.4}
	sigBob   = signature.Signature{-0.5, 0.7, 0.1, -0.2}
)

// stubEncoder returns a fixed set of signatures for any image
type stubEncoder struct {
	sigs []signature.Signature
	err  error
}

func (s *stubEncoder) Encode(context.Context, []byte) ([]signature.Signature, error) {
	return s.sigs, s.err
}

// newTestHandler creates a handler over an in-memory store
func newTestHandler(t *testing.T, enc encoder.Encoder) (*IdentitiesHandler, *mock.MockIdentityStore) {
	t.Helper()
	store := mock.NewMockIdentityStore(testDim)
	coord := enroll.New(store, enroll.Options{Dim: testDim, Encoder: enc})
	return NewIdentitiesHandler(coord, store, 0, logging.Discard()), store
}

// jsonRequest creates a request with a JSON body
func jsonRequest(t *testing.T, method, path string, body any) *http.Request {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("failed to marshal body: %v", err)
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	return req
}

// multipartRequest creates a multipart request with a "file" part and extra fields
func multipartRequest(t *testing.T, path string, file []byte, fields map[string]string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			t.Fatalf("failed to write field: %v", err)
		}
	}
	if file != nil {
		part, err := w.CreateFormFile("file", "face.jpg")
		if err != nil {
			t.Fatalf("failed to create form file: %v", err)
		}
		part.Write(file)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("failed to close multipart writer: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

// decodeBody unmarshals a recorder body into v
func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("failed to unmarshal response %q: %v", rec.Body.String(), err)
	}
}
