// Package extract provides text extraction from the supported document
// formats: PDF, DOCX, EPUB, and plain text.
package extract

import (
	"fmt"
	"strings"

	"github.com/analogtech/cofounder/internal/models"
)

// Extractor extracts plain text from document contents.
type Extractor struct {
	// minTextChars is the threshold below which a PDF extraction is
	// considered to have failed in practice (scanned or image-only
	// document) and OCR should be attempted.
	minTextChars int
}

// NewExtractor returns an Extractor. minTextChars controls when PDF output
// is considered too thin to trust (see NeedsOCR).
func NewExtractor(minTextChars int) *Extractor {
	if minTextChars <= 0 {
		minTextChars = 50
	}
	return &Extractor{minTextChars: minTextChars}
}

// Extract returns the text content of a document given its raw bytes and
// detected format. An unsupported format is an error; callers skip those
// documents.
func (e *Extractor) Extract(content []byte, format models.Format) (string, error) {
	switch format {
	case models.FormatPDF:
		return extractPDF(content)
	case models.FormatDOCX:
		return extractDOCX(content)
	case models.FormatEPUB:
		return extractEPUB(content)
	case models.FormatTXT:
		return extractPlain(content)
	default:
		return "", fmt.Errorf("unsupported format %q", format)
	}
}

// NeedsOCR reports whether a PDF extraction result is too thin to be the
// real content. Scanned PDFs typically extract to nothing or to a handful
// of stray characters.
func (e *Extractor) NeedsOCR(format models.Format, text string) bool {
	if format != models.FormatPDF {
		return false
	}
	return len(strings.TrimSpace(text)) < e.minTextChars
}
