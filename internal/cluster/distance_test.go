package cluster

import (
	"math"
	"testing"
)

func TestCosineDistance(t *testing.T) {
	tests := []struct {
		name     string
		a, b     []float32
		expected float64
	}{
		{"identical vectors", []float32{1, 0, 0}, []float32{1, 0, 0}, 0},
		{"orthogonal vectors", []float32{1, 0}, []float32{0, 1}, 1},
		{"opposite vectors", []float32{1, 0}, []float32{-1, 0}, 2},
		{"scaled copies are identical", []float32{1, 2, 3}, []float32{2, 4, 6}, 0},
		{"mismatched lengths", []float32{1, 0}, []float32{1, 0, 0}, 2},
		{"empty vectors", []float32{}, []float32{}, 2},
		{"zero vector", []float32{0, 0}, []float32{1, 0}, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CosineDistance(tt.a, tt.b)
			if math.Abs(got-tt.expected) > 1e-6 {
				t.Errorf("Expected distance %f, got %f", tt.expected, got)
			}
		})
	}
}

func TestNormalize(t *testing.T) {
	v := Normalize([]float32{3, 4})

	var norm float64
	for _, x := range v {
		norm += float64(x) * float64(x)
	}
	norm = math.Sqrt(norm)
	if math.Abs(norm-1) > 1e-4 {
		t.Errorf("Expected unit length, got %f", norm)
	}
	if math.Abs(float64(v[0])-0.6) > 1e-4 || math.Abs(float64(v[1])-0.8) > 1e-4 {
		t.Errorf("Unexpected direction: %v", v)
	}
}

func TestNormalizeZeroVector(t *testing.T) {
	v := Normalize([]float32{0, 0, 0})
	for _, x := range v {
		if x != 0 {
			t.Errorf("Zero vector should stay zero, got %v", v)
		}
	}
}

func TestCentroid(t *testing.T) {
	t.Run("empty input", func(t *testing.T) {
		if c := Centroid(nil); c != nil {
			t.Errorf("Expected nil centroid, got %v", c)
		}
	})

	t.Run("single vector", func(t *testing.T) {
		c := Centroid([][]float32{{0, 1}})
		if math.Abs(float64(c[1])-1) > 1e-4 {
			t.Errorf("Expected [0 1], got %v", c)
		}
	})

	t.Run("mean direction", func(t *testing.T) {
		c := Centroid([][]float32{vec(0), vec(90)})
		want := vec(45)
		for i := range want {
			if math.Abs(float64(c[i]-want[i])) > 1e-3 {
				t.Errorf("Expected centroid near 45 degrees, got %v", c)
			}
		}
	})
}
