package facestore

import (
	"math"
	"testing"
)

func TestCosineDistance(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 0, 0}, []float32{1, 0, 0}, 0},
		{"orthogonal", []float32{1, 0, 0}, []float32{0, 1, 0}, 1},
		{"opposite", []float32{1, 0, 0}, []float32{-1, 0, 0}, 2},
		{"mismatched length", []float32{1, 0}, []float32{1, 0, 0}, 2},
		{"empty", nil, nil, 2},
		{"zero vector", []float32{0, 0, 0}, []float32{1, 0, 0}, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CosineDistance(tt.a, tt.b)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("CosineDistance() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCosineDistanceScaleInvariant(t *testing.T) {
	a := []float32{0.5, 0.5, 0.1}
	scaled := []float32{1.0, 1.0, 0.2}
	if d := CosineDistance(a, scaled); math.Abs(d) > 1e-6 {
		t.Errorf("expected scale invariance, got distance %v", d)
	}
}

func TestSimilarityRange(t *testing.T) {
	// Opposite vectors have distance 2; similarity clamps at 0.
	if s := Similarity([]float32{1, 0}, []float32{-1, 0}); s != 0 {
		t.Errorf("expected clamped similarity 0, got %v", s)
	}
	if s := Similarity([]float32{1, 0}, []float32{1, 0}); s != 1 {
		t.Errorf("expected similarity 1 for identical vectors, got %v", s)
	}
}

func TestSimilarityNearDuplicate(t *testing.T) {
	a := make([]float32, EmbeddingDim)
	b := make([]float32, EmbeddingDim)
	a[0] = 1
	b[0] = 0.99
	b[1] = 0.01

	s := Similarity(a, b)
	if s < 0.9 {
		t.Errorf("expected near-duplicate similarity above 0.9, got %v", s)
	}
	if s > 1 {
		t.Errorf("similarity must not exceed 1, got %v", s)
	}
}
