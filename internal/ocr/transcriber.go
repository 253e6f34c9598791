// Package ocr recovers text from scanned PDFs by sending page batches to a
// vision-capable model and concatenating the transcriptions.
package ocr

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"go.uber.org/zap"

	"github.com/analogtech/cofounder/internal/gemini"
)

const (
	promptTranscribe = "Extract all text from these PDF pages. Return ONLY the extracted text, with no commentary, headers, or explanations. Preserve the original paragraph structure."
	promptTranslate  = "Extract all text from these PDF pages and translate it to %s. Return ONLY the translated text, with no commentary, headers, or explanations. Preserve the original paragraph structure."
)

// Generator is the model call the transcriber depends on. Satisfied by
// *gemini.Client.
type Generator interface {
	Generate(ctx context.Context, system string, parts []gemini.Part) (gemini.GenerateResult, error)
}

// Options control a transcription run.
type Options struct {
	// Translate requests translation instead of verbatim transcription.
	Translate bool
	// TargetLang is the translation target, e.g. "Russian". Ignored unless
	// Translate is set.
	TargetLang string
}

// Transcriber OCRs scanned PDFs in fixed-size page batches. Each batch is
// retried a few times; a safety-filter refusal yields an empty batch without
// consuming a retry, since repeating the same pages cannot help.
type Transcriber struct {
	gen        Generator
	batchPages int
	retries    int
	retryPause time.Duration
	countPages func(pdfBytes []byte) (int, error)
	splitPages func(pdfBytes []byte, start, end int) ([]byte, error)
	logger     *zap.Logger
}

// Option configures a Transcriber.
type Option func(*Transcriber)

// WithLogger sets a logger for batch progress and retries.
func WithLogger(l *zap.Logger) Option {
	return func(t *Transcriber) { t.logger = l }
}

// WithRetryPause overrides the pause between batch retries (tests zero it).
func WithRetryPause(d time.Duration) Option {
	return func(t *Transcriber) { t.retryPause = d }
}

// NewTranscriber returns a Transcriber sending batchPages pages per model
// call with up to retries attempts per batch.
func NewTranscriber(gen Generator, batchPages, retries int, opts ...Option) *Transcriber {
	if batchPages <= 0 {
		batchPages = 10
	}
	if retries <= 0 {
		retries = 3
	}
	t := &Transcriber{
		gen:        gen,
		batchPages: batchPages,
		retries:    retries,
		retryPause: 15 * time.Second,
		countPages: pdfPageCount,
		splitPages: extractPageRange,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Transcribe OCRs the whole PDF and returns the concatenated text. A batch
// that still fails after all retries contributes no text and the remaining
// batches are still attempted, so one stubborn page range cannot discard the
// rest of the document.
func (t *Transcriber) Transcribe(ctx context.Context, pdfBytes []byte, opts Options) (string, error) {
	pageCount, err := t.countPages(pdfBytes)
	if err != nil {
		return "", fmt.Errorf("count PDF pages: %w", err)
	}
	if pageCount == 0 {
		return "", nil
	}

	prompt := promptFor(opts)

	var b strings.Builder
	for start := 1; start <= pageCount; start += t.batchPages {
		end := start + t.batchPages - 1
		if end > pageCount {
			end = pageCount
		}
		batch, err := t.splitPages(pdfBytes, start, end)
		if err != nil {
			return "", fmt.Errorf("split pages %d-%d: %w", start, end, err)
		}
		text, err := t.transcribeBatch(ctx, batch, prompt, start, end)
		if err != nil {
			if ctx.Err() != nil {
				return "", err
			}
			if t.logger != nil {
				t.logger.Warn("OCR batch gave up, skipping pages",
					zap.Int("start_page", start), zap.Int("end_page", end), zap.Error(err))
			}
			continue
		}
		if text != "" {
			b.WriteString(text)
			b.WriteByte('\n')
		}
	}
	return strings.TrimSpace(b.String()), nil
}

// transcribeBatch asks the model for one page range. An empty response that
// was not safety-blocked consumes a retry like any other failure.
func (t *Transcriber) transcribeBatch(ctx context.Context, batch []byte, prompt string, start, end int) (string, error) {
	var lastErr error
	for attempt := 1; attempt <= t.retries; attempt++ {
		res, err := t.gen.Generate(ctx, "", []gemini.Part{
			gemini.TextPart(prompt),
			gemini.BlobPart("application/pdf", batch),
		})
		switch {
		case err != nil:
			lastErr = err
		case res.SafetyBlocked:
			if t.logger != nil {
				t.logger.Warn("OCR batch blocked by safety filter",
					zap.Int("start_page", start), zap.Int("end_page", end))
			}
			return "", nil
		default:
			if text := strings.TrimSpace(res.Text); text != "" {
				return text, nil
			}
			lastErr = fmt.Errorf("empty transcription for pages %d-%d", start, end)
		}
		if attempt == t.retries {
			break
		}
		if t.logger != nil {
			t.logger.Warn("OCR batch failed",
				zap.Int("start_page", start),
				zap.Int("end_page", end),
				zap.Int("attempt", attempt),
				zap.Error(lastErr),
			)
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(t.retryPause):
		}
	}
	return "", fmt.Errorf("OCR pages %d-%d failed after %d attempts: %w", start, end, t.retries, lastErr)
}

func promptFor(opts Options) string {
	if !opts.Translate {
		return promptTranscribe
	}
	lang := opts.TargetLang
	if lang == "" {
		lang = "English"
	}
	return fmt.Sprintf(promptTranslate, lang)
}

func pdfPageCount(pdfBytes []byte) (int, error) {
	return api.PageCount(bytes.NewReader(pdfBytes), nil)
}

// extractPageRange returns a new PDF containing only pages start through end.
func extractPageRange(pdfBytes []byte, start, end int) ([]byte, error) {
	var out bytes.Buffer
	pages := []string{fmt.Sprintf("%d-%d", start, end)}
	if err := api.Trim(bytes.NewReader(pdfBytes), &out, pages, nil); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}
