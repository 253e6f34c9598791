// Package search implements similarity search over the knowledge store: the
// query is embedded, every stored chunk is scored by cosine similarity, and
// results above the threshold are returned best-first.
package search

import "math"

// CosineSimilarity returns the cosine of the angle between a and b in
// [-1, 1]. Mismatched lengths and zero vectors score 0 so that a single
// malformed row cannot poison a search.
func CosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
