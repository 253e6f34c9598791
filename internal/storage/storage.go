// Package storage provides the SQLite-backed knowledge store: one row per
// embedded chunk, keyed by source file name.
package storage

import (
	"context"

	"github.com/analogtech/cofounder/internal/models"
)

// ChunkVisitor receives one chunk row during a scan. Returning an error
// aborts the scan.
type ChunkVisitor func(chunk models.Chunk) error

// Store is the persistence contract for the knowledge base. The ingestion
// pipeline is the sole writer; search is read-only.
type Store interface {
	// IsIndexed reports whether at least one chunk row exists for fileName.
	IsIndexed(ctx context.Context, fileName string) (bool, error)
	// InsertChunk appends one chunk row and bumps the document's indexed count.
	InsertChunk(ctx context.Context, fileName, text string, embedding []float64) error
	// DeleteByDocument removes all chunk rows (and the status row) for a
	// document, returning the number of chunks removed. Used by the repair
	// flow only.
	DeleteByDocument(ctx context.Context, fileName string) (int64, error)
	// Scan streams chunk rows to visit, optionally restricted to the given
	// file names (nil or empty means all).
	Scan(ctx context.Context, allowedFiles []string, visit ChunkVisitor) error

	// SetExpectedChunks records how many chunks a document should end up
	// with, resetting its indexed count.
	SetExpectedChunks(ctx context.Context, fileName string, expected int) error
	// Incomplete lists documents whose indexed chunk count is below the
	// expected count.
	Incomplete(ctx context.Context) ([]models.DocumentStatus, error)

	// CountDocuments returns the number of distinct indexed documents.
	CountDocuments(ctx context.Context) (int64, error)
	// CountChunks returns the total number of chunk rows.
	CountChunks(ctx context.Context) (int64, error)
	// ListDocuments returns the distinct indexed file names, sorted.
	ListDocuments(ctx context.Context) ([]string, error)

	Close() error
}
