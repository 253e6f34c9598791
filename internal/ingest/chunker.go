// Package ingest turns library documents into embedded chunks in the
// knowledge store: extraction, OCR fallback, sanitizing, chunking, embedding,
// and persistence.
package ingest

import "fmt"

// Chunker splits text into overlapping rune-based chunks. Rune indexing
// keeps multi-byte scripts from being split mid-character.
type Chunker struct {
	chunkSize    int
	chunkOverlap int
}

// NewChunker creates a chunker with the given size and overlap (in runes).
// Overlap must be smaller than size or the window would never advance.
func NewChunker(chunkSize, chunkOverlap int) (*Chunker, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", chunkSize)
	}
	if chunkOverlap < 0 || chunkOverlap >= chunkSize {
		return nil, fmt.Errorf("chunk overlap must be in [0, %d), got %d", chunkSize, chunkOverlap)
	}
	return &Chunker{chunkSize: chunkSize, chunkOverlap: chunkOverlap}, nil
}

// Chunk splits text into overlapping windows. Consecutive chunks share the
// trailing chunkOverlap runes of the previous chunk; the final chunk may be
// shorter than chunkSize. The window advances until its start passes the end
// of the text, so a text ending exactly on a window boundary yields a final
// overlap-only chunk.
func (c *Chunker) Chunk(text string) []string {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}
	step := c.chunkSize - c.chunkOverlap
	chunks := make([]string, 0, (len(runes)+step-1)/step)
	for i := 0; i < len(runes); i += step {
		end := i + c.chunkSize
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[i:end]))
	}
	return chunks
}
