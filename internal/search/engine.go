package search

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/analogtech/cofounder/internal/embedding"
	"github.com/analogtech/cofounder/internal/models"
	"github.com/analogtech/cofounder/internal/storage"
)

// Engine runs similarity searches against the knowledge store.
type Engine struct {
	store     storage.Store
	embedder  embedding.Embedder
	threshold float64
	topK      int
	logger    *zap.Logger
}

// NewEngine creates a search engine. threshold is the strict lower bound on
// cosine similarity; topK the default result cap.
func NewEngine(store storage.Store, embedder embedding.Embedder, threshold float64, topK int, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		store:     store,
		embedder:  embedder,
		threshold: threshold,
		topK:      topK,
		logger:    logger,
	}
}

// QueryOption adjusts one search call.
type QueryOption func(*queryOptions)

type queryOptions struct {
	limit        int
	allowedFiles []string
}

// WithLimit overrides the default top-K cap for one call.
func WithLimit(limit int) QueryOption {
	return func(o *queryOptions) {
		if limit > 0 {
			o.limit = limit
		}
	}
}

// WithAllowedDocuments restricts the scan to the named documents. Nil or
// empty means no restriction.
func WithAllowedDocuments(names []string) QueryOption {
	return func(o *queryOptions) { o.allowedFiles = names }
}

// Search embeds the query, scores every (allowed) chunk, and returns chunks
// scoring strictly above the threshold, best-first, capped at the limit. An
// embedding failure degrades to an empty result rather than an error, so a
// flaky model call costs recall, not availability.
func (e *Engine) Search(ctx context.Context, query string, opts ...QueryOption) []models.SearchResult {
	qo := queryOptions{limit: e.topK}
	for _, opt := range opts {
		opt(&qo)
	}

	queryVec, err := e.embedder.Embed(ctx, query)
	if err != nil {
		e.logger.Warn("query embedding failed, returning no results", zap.Error(err))
		return nil
	}

	var results []models.SearchResult
	err = e.store.Scan(ctx, qo.allowedFiles, func(chunk models.Chunk) error {
		score := CosineSimilarity(queryVec, chunk.Embedding)
		if score > e.threshold {
			results = append(results, models.SearchResult{
				FileName: chunk.FileName,
				Text:     chunk.Text,
				Score:    score,
			})
		}
		return nil
	})
	if err != nil {
		e.logger.Warn("chunk scan failed, returning no results", zap.Error(err))
		return nil
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if len(results) > qo.limit {
		results = results[:qo.limit]
	}
	return results
}

// Threshold returns the engine's similarity cutoff.
func (e *Engine) Threshold() float64 { return e.threshold }

// Describe returns a short human-readable summary of the engine settings,
// used by the diagnostics command.
func (e *Engine) Describe() string {
	return fmt.Sprintf("cosine scan, threshold > %.2f, top %d", e.threshold, e.topK)
}
