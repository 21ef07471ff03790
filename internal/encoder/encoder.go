// Package encoder talks to the face encoding service that turns an image into
// zero or more face signatures.
package encoder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/kozaktomas/face-registry/internal/signature"
)

const defaultEncoderURL = "http://localhost:8000"

// Encoder extracts face signatures from an encoded image (JPEG, PNG, ...).
// An image without faces yields an empty slice and no error.
type Encoder interface {
	Encode(ctx context.Context, imageData []byte) ([]signature.Signature, error)
}

// Face is one detected face with its signature and pixel bounding box [x1, y1, x2, y2].
type Face struct {
	Signature signature.Signature
	BBox      []float64
	Score     float64
}

// Detector is implemented by encoders that also report where each face is.
type Detector interface {
	Detect(ctx context.Context, imageData []byte) ([]Face, error)
}

// Client computes face signatures using the encoding server
type Client struct {
	baseURL string
	client  *http.Client
}

// NewClient creates a new encoding client
func NewClient(baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = defaultEncoderURL
	}
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

// FaceDetection represents a single detected face
type FaceDetection struct {
	FaceIndex int       `json:"face_index"`
	Dim       int       `json:"dim"`
	Embedding []float64 `json:"embedding"`
	BBox      []float64 `json:"bbox"` // [x1, y1, x2, y2]
	DetScore  float64   `json:"det_score"`
}

// FaceResponse represents the response from the face embedding endpoint
type FaceResponse struct {
	FacesCount int             `json:"faces_count"`
	Faces      []FaceDetection `json:"faces"`
	Model      string          `json:"model"`
}

// postMultipartImage posts the image as the "file" form field with a Content-Type
// detected from its magic bytes.
func (c *Client) postMultipartImage(ctx context.Context, endpoint string, imageData []byte) ([]byte, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="image.jpg"`)
	h.Set("Content-Type", detectMIMEType(imageData))
	part, err := writer.CreatePart(h)
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}

	if _, err := part.Write(imageData); err != nil {
		return nil, fmt.Errorf("failed to write image data: %w", err)
	}

	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(body))
	}

	return body, nil
}

// ComputeFaces detects faces and computes their encodings
func (c *Client) ComputeFaces(ctx context.Context, imageData []byte) (*FaceResponse, error) {
	body, err := c.postMultipartImage(ctx, "/embed/face", imageData)
	if err != nil {
		return nil, err
	}

	var faceResp FaceResponse
	if err := json.Unmarshal(body, &faceResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	return &faceResp, nil
}

// Encode returns one signature per detected face, in detection order.
// Faces without an embedding are skipped.
func (c *Client) Encode(ctx context.Context, imageData []byte) ([]signature.Signature, error) {
	resp, err := c.ComputeFaces(ctx, imageData)
	if err != nil {
		return nil, err
	}

	sigs := make([]signature.Signature, 0, len(resp.Faces))
	for _, f := range resp.Faces {
		if len(f.Embedding) == 0 {
			continue
		}
		sigs = append(sigs, signature.Signature(f.Embedding))
	}
	return sigs, nil
}

// Detect returns every face with an embedding together with its bounding box.
func (c *Client) Detect(ctx context.Context, imageData []byte) ([]Face, error) {
	resp, err := c.ComputeFaces(ctx, imageData)
	if err != nil {
		return nil, err
	}

	faces := make([]Face, 0, len(resp.Faces))
	for _, f := range resp.Faces {
		if len(f.Embedding) == 0 {
			continue
		}
		faces = append(faces, Face{
			Signature: signature.Signature(f.Embedding),
			BBox:      f.BBox,
			Score:     f.DetScore,
		})
	}
	return faces, nil
}

// detectMIMEType detects the MIME type from image data
func detectMIMEType(data []byte) string {
	if len(data) < 8 {
		return "application/octet-stream"
	}
	// JPEG: FF D8 FF
	if data[0] == 0xFF && data[1] == 0xD8 && data[2] == 0xFF {
		return "image/jpeg"
	}
	// PNG: 89 50 4E 47 0D 0A 1A 0A
	if data[0] == 0x89 && data[1] == 0x50 && data[2] == 0x4E && data[3] == 0x47 {
		return "image/png"
	}
	// BMP: 42 4D
	if data[0] == 0x42 && data[1] == 0x4D {
		return "image/bmp"
	}
	return "application/octet-stream"
}

// Verify interface compliance
var (
	_ Encoder  = (*Client)(nil)
	_ Detector = (*Client)(nil)
)
