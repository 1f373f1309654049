package embedding

import (
	"context"
	"math"
	"testing"
)

func TestMockEmbedder_deterministicUnitVectors(t *testing.T) {
	e := NewMockEmbedder(16)
	ctx := context.Background()
	a1, err := e.Embed(ctx, "hello")
	if err != nil {
		t.Fatal(err)
	}
	a2, _ := e.Embed(ctx, "hello")
	b, _ := e.Embed(ctx, "world")
	if len(a1) != 16 || e.Dimensions() != 16 {
		t.Fatalf("dimensions = %d", len(a1))
	}
	same, differ := true, false
	for i := range a1 {
		if a1[i] != a2[i] {
			same = false
		}
		if a1[i] != b[i] {
			differ = true
		}
	}
	if !same {
		t.Error("same text should give same embedding")
	}
	if !differ {
		t.Error("different text should give different embedding")
	}
	var sum float64
	for _, v := range a1 {
		sum += float64(v) * float64(v)
	}
	if math.Abs(sum-1) > 1e-4 {
		t.Errorf("norm^2 = %f, want 1", sum)
	}
}

func TestMockEmbedder_defaultDimensions(t *testing.T) {
	if d := NewMockEmbedder(0).Dimensions(); d != 384 {
		t.Errorf("default dimensions = %d", d)
	}
}

func TestMockEmbedder_cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewMockEmbedder(4).EmbedBatch(ctx, []string{"a"}); err == nil {
		t.Error("expected error on cancelled context")
	}
}
