package database

import (
	"math"
	"testing"
)

func TestCosineSimilarity_Self(t *testing.T) {
	vectors := [][]float32{
		{1, 0, 0},
		{0.3, -0.2, 0.9, 0.1},
		{12, 5, -7, 3, 0.5},
	}

	for _, v := range vectors {
		got := CosineSimilarity(v, v)
		if math.Abs(got-1.0) > 1e-9 {
			t.Errorf("expected similarity of %v with itself to be 1.0, got %f", v, got)
		}
	}
}

func TestCosineSimilarity_ScaleInvariant(t *testing.T) {
	a := []float32{1, 2, 3}
	b := []float32{10, 20, 30}

	got := CosineSimilarity(a, b)
	if math.Abs(got-1.0) > 1e-9 {
		t.Errorf("expected 1.0 for parallel vectors of different length, got %f", got)
	}
}

func TestCosineSimilarity_Known(t *testing.T) {
	tests := []struct {
		name     string
		a, b     []float32
		expected float64
	}{
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1},
		{"three-four-five", []float32{1, 0}, []float32{3, 4}, 0.6},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CosineSimilarity(tt.a, tt.b)
			if math.Abs(got-tt.expected) > 1e-12 {
				t.Errorf("expected %f, got %f", tt.expected, got)
			}
		})
	}
}

func TestCosineSimilarity_InvalidInput(t *testing.T) {
	if got := CosineSimilarity([]float32{1, 2}, []float32{1, 2, 3}); got != 0 {
		t.Errorf("expected 0 for mismatched lengths, got %f", got)
	}
	if got := CosineSimilarity(nil, nil); got != 0 {
		t.Errorf("expected 0 for empty vectors, got %f", got)
	}
	if got := CosineSimilarity([]float32{0, 0}, []float32{1, 0}); got != 0 {
		t.Errorf("expected 0 for zero vector, got %f", got)
	}
}

func TestNormalize(t *testing.T) {
	v := Normalize([]float32{3, 4})
	if len(v) != 2 {
		t.Fatalf("expected 2 components, got %d", len(v))
	}
	if math.Abs(Norm(v)-1.0) > 1e-6 {
		t.Errorf("expected unit norm, got %f", Norm(v))
	}
	if math.Abs(float64(v[0])-0.6) > 1e-6 || math.Abs(float64(v[1])-0.8) > 1e-6 {
		t.Errorf("expected [0.6 0.8], got %v", v)
	}

	if Normalize([]float32{0, 0, 0}) != nil {
		t.Error("expected nil for zero vector")
	}
}
