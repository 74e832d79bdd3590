package detector

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func writeTestImage(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "photo.jpg")
	if err := os.WriteFile(path, []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x01}, 0o644); err != nil {
		t.Fatalf("Failed to write test image: %v", err)
	}
	return path
}

func TestDetect(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/detect/faces" {
			t.Errorf("Unexpected path: %s", r.URL.Path)
		}
		if err := r.ParseMultipartForm(10 << 20); err != nil {
			t.Errorf("Expected multipart form: %v", err)
		}
		if _, _, err := r.FormFile("file"); err != nil {
			t.Errorf("Expected file part: %v", err)
		}
		json.NewEncoder(w).Encode(faceResponse{
			FacesCount: 2,
			Faces: []Detection{
				{FaceIndex: 0, Dim: 4, Embedding: []float32{1, 0, 0, 0}, BBox: []float64{1, 2, 3, 4}, DetScore: 0.92},
				{FaceIndex: 1, Dim: 4, Embedding: []float32{0, 1, 0, 0}, BBox: []float64{5, 6, 7, 8}, DetScore: 0.41},
			},
			Model: "buffalo_l",
		})
	}))
	defer server.Close()

	d := NewHTTPDetector(server.URL)
	faces, err := d.Detect(context.Background(), writeTestImage(t))
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	if len(faces) != 2 {
		t.Fatalf("Expected 2 faces, got %d", len(faces))
	}
	if faces[0].DetScore != 0.92 {
		t.Errorf("Expected score 0.92, got %f", faces[0].DetScore)
	}
	if len(faces[1].BBox) != 4 {
		t.Errorf("Expected 4 bbox coordinates, got %v", faces[1].BBox)
	}
}

func TestDetectServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusInternalServerError)
	}))
	defer server.Close()

	d := NewHTTPDetector(server.URL)
	if _, err := d.Detect(context.Background(), writeTestImage(t)); err == nil {
		t.Error("Expected error for 500 response")
	}
}

func TestDetectMissingFile(t *testing.T) {
	d := NewHTTPDetector("http://localhost:1")
	_, err := d.Detect(context.Background(), "/nonexistent/photo.jpg")
	if !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("Expected fs.ErrNotExist, got %v", err)
	}
}
