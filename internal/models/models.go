// Package models defines core data structures for library objects, chunks,
// and search results.
package models

import (
	"path/filepath"
	"strings"
	"time"
)

// Format is a supported source document format, inferred from the object
// name's extension. Objects with any other extension are ignored by the
// ingestion pipeline.
type Format string

const (
	FormatPDF  Format = "pdf"
	FormatTXT  Format = "txt"
	FormatDOCX Format = "docx"
	FormatEPUB Format = "epub"
	// FormatUnknown marks extensions the pipeline does not handle.
	FormatUnknown Format = ""
)

// FormatFromName infers the document format from an object name.
func FormatFromName(name string) Format {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
	switch ext {
	case "pdf":
		return FormatPDF
	case "txt":
		return FormatTXT
	case "docx":
		return FormatDOCX
	case "epub":
		return FormatEPUB
	default:
		return FormatUnknown
	}
}

// Object describes a document in the source library (an object store entry).
// The object name doubles as the document identifier everywhere downstream.
type Object struct {
	Name    string    `json:"name"`
	Size    int64     `json:"size"`
	Updated time.Time `json:"updated"`
}

// Chunk is one persisted slice of a document's extracted text together with
// its embedding vector. Chunks are written once during ingestion and never
// mutated; they are removed only by a document-level purge.
type Chunk struct {
	ID        int64     `json:"id"`
	FileName  string    `json:"file_name"`
	Text      string    `json:"chunk_text"`
	Embedding []float64 `json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

// SearchResult is a single scored hit from the similarity search. It is
// produced fresh per query and never persisted.
type SearchResult struct {
	FileName string  `json:"file_name"`
	Text     string  `json:"chunk_text"`
	Score    float64 `json:"score"`
}

// DocumentStatus tracks ingestion completeness per document. A document whose
// IndexedChunks is below ExpectedChunks was only partially embedded (some
// chunks failed after retries) and is a candidate for the repair flow.
type DocumentStatus struct {
	FileName       string    `json:"file_name"`
	ExpectedChunks int       `json:"expected_chunks"`
	IndexedChunks  int       `json:"indexed_chunks"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Complete reports whether every expected chunk made it into the store.
func (s *DocumentStatus) Complete() bool {
	return s.ExpectedChunks > 0 && s.IndexedChunks >= s.ExpectedChunks
}

// HistoryTurn is one prior message in a conversation, passed back by the
// caller so follow-up questions resolve against earlier answers.
type HistoryTurn struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

// Attachment is a binary blob (image, PDF page, etc.) a caller can pass
// alongside a question. Data is base64-encoded in JSON transit.
type Attachment struct {
	MimeType string `json:"mime_type"`
	Data     []byte `json:"data"`
}
