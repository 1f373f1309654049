package utils

import (
	"math"
	"testing"
)

func TestL2Norm(t *testing.T) {
	tests := []struct {
		name string
		in   []float32
		want float64
	}{
		{"empty", nil, 0},
		{"zero", []float32{0, 0, 0}, 0},
		{"3-4-5", []float32{3, 4}, 5},
		{"negative", []float32{-1, 0}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := L2Norm(tt.in); math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("L2Norm(%v) = %f, want %f", tt.in, got, tt.want)
			}
		})
	}
}

func TestNormalizeL2(t *testing.T) {
	x := []float32{3, 4}
	if norm := NormalizeL2(x); math.Abs(norm-5) > 1e-9 {
		t.Errorf("returned norm = %f, want 5", norm)
	}
	if math.Abs(float64(x[0])-0.6) > 1e-6 || math.Abs(float64(x[1])-0.8) > 1e-6 {
		t.Errorf("got %v", x)
	}
	if math.Abs(L2Norm(x)-1) > 1e-6 {
		t.Errorf("normalized length = %f", L2Norm(x))
	}
	zero := []float32{0, 0}
	if norm := NormalizeL2(zero); norm != 0 || zero[0] != 0 || zero[1] != 0 {
		t.Error("zero vector should be unchanged")
	}
}
