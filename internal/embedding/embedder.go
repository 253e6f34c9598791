// Package embedding provides the embedding collaborator abstraction and a
// retry wrapper with backoff classified by failure kind.
package embedding

import "context"

// Embedder produces a vector embedding for a text. Implementations are the
// Gemini client (production), the retry wrapper, and a deterministic mock
// for tests.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
}

// Func adapts a function to the Embedder interface.
type Func func(ctx context.Context, text string) ([]float64, error)

// Embed calls f.
func (f Func) Embed(ctx context.Context, text string) ([]float64, error) {
	return f(ctx, text)
}
