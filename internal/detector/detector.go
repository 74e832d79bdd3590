// Package detector talks to the face extraction service. The service is
// an opaque collaborator: it receives an image and answers with bounding
// boxes and embedding vectors, and this package never looks inside the
// pixels itself.
package detector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"strings"
)

const defaultServiceURL = "http://localhost:8000"

// Detection is a single face found in an image.
type Detection struct {
	FaceIndex int       `json:"face_index"`
	Dim       int       `json:"dim"`
	Embedding []float32 `json:"embedding"`
	BBox      []float64 `json:"bbox"` // [x1, y1, x2, y2]
	DetScore  float64   `json:"det_score"`
}

// Detector extracts faces from an image file.
type Detector interface {
	Detect(ctx context.Context, path string) ([]Detection, error)
}

// HTTPDetector posts images to the face extraction service.
type HTTPDetector struct {
	baseURL string
	client  *http.Client
}

var _ Detector = (*HTTPDetector)(nil)

// NewHTTPDetector creates a detector client for the given base URL.
func NewHTTPDetector(baseURL string) *HTTPDetector {
	if baseURL == "" {
		baseURL = defaultServiceURL
	}
	return &HTTPDetector{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		// no client timeout here: the worker enforces its own per-item
		// deadline and must own that decision
		client: &http.Client{},
	}
}

// faceResponse represents the response from the face detection endpoint
type faceResponse struct {
	FacesCount int         `json:"faces_count"`
	Faces      []Detection `json:"faces"`
	Model      string      `json:"model"`
}

// Detect reads the image at path and returns the faces the service
// finds in it. A missing file surfaces as an fs.ErrNotExist so callers
// can tell "nothing to do" from a real failure.
func (d *HTTPDetector) Detect(ctx context.Context, path string) ([]Detection, error) {
	imageData, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	body, err := d.postMultipartImage(ctx, "/detect/faces", imageData)
	if err != nil {
		return nil, err
	}

	var faceResp faceResponse
	if err := json.Unmarshal(body, &faceResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	return faceResp.Faces, nil
}

// postMultipartImage constructs a multipart form with the image data and
// posts it to the given endpoint.
func (d *HTTPDetector) postMultipartImage(ctx context.Context, endpoint string, imageData []byte) ([]byte, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("file", "image.jpg")
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(imageData); err != nil {
		return nil, fmt.Errorf("failed to write image data: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.baseURL+endpoint, &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := d.client.Do(req)
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
