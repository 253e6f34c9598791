package embedding

import (
	"context"
	"math"
)

// MockEmbedder is a deterministic embedder for tests. It returns a
// fixed-dimension unit vector derived from the text hash so that the same
// text always gets the same embedding.
type MockEmbedder struct {
	dimensions int
}

// NewMockEmbedder returns an embedder producing deterministic embeddings of
// the given dimensionality.
func NewMockEmbedder(dimensions int) *MockEmbedder {
	if dimensions <= 0 {
		dimensions = 768
	}
	return &MockEmbedder{dimensions: dimensions}
}

// Embed returns a deterministic embedding based on the text hash, normalized
// to unit length.
func (e *MockEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	h := hashString(text)
	emb := make([]float64, e.dimensions)
	for i := 0; i < e.dimensions; i++ {
		emb[i] = math.Sin(float64(h*(uint32(i)+1)))*0.1 + 0.01
	}
	var sum float64
	for _, v := range emb {
		sum += v * v
	}
	if sum > 0 {
		norm := 1.0 / math.Sqrt(sum)
		for i := range emb {
			emb[i] *= norm
		}
	}
	return emb, nil
}

// hashString is FNV-1a over the text.
func hashString(s string) uint32 {
	const (
		offset32 = 2166136261
		prime32  = 16777619
	)
	h := uint32(offset32)
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= prime32
	}
	return h
}
