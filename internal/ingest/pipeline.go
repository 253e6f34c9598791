package ingest

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/analogtech/cofounder/internal/embedding"
	"github.com/analogtech/cofounder/internal/gemini"
	"github.com/analogtech/cofounder/internal/models"
	"github.com/analogtech/cofounder/internal/ocr"
	"github.com/analogtech/cofounder/internal/storage"
)

// Library is the document source the pipeline reads from. Satisfied by the
// bucket stores.
type Library interface {
	List(ctx context.Context) ([]models.Object, error)
	Download(ctx context.Context, name string) ([]byte, error)
}

// Transcriber is the OCR fallback for scanned PDFs. Optional; a nil
// transcriber means thin PDFs are skipped instead.
type Transcriber interface {
	Transcribe(ctx context.Context, pdfBytes []byte, opts ocr.Options) (string, error)
}

// TextExtractor turns raw document bytes into plain text and flags thin PDF
// text layers for the OCR fallback. Satisfied by *extract.Extractor.
type TextExtractor interface {
	Extract(content []byte, format models.Format) (string, error)
	NeedsOCR(format models.Format, text string) bool
}

// Report summarizes one pipeline run.
type Report struct {
	Indexed int
	Skipped int
	Failed  []string
}

// Pauses are the pacing knobs between model calls. Zero values disable the
// corresponding pause (tests run unpaced).
type Pauses struct {
	PerChunk    time.Duration
	PerDocument time.Duration
	Cooldown    time.Duration
}

// Pipeline ingests library documents into the knowledge store.
type Pipeline struct {
	library     Library
	extractor   TextExtractor
	transcriber Transcriber
	chunker     *Chunker
	embedder    embedding.Embedder
	store       storage.Store
	pauses      Pauses
	logger      *zap.Logger
}

// NewPipeline wires the ingestion pipeline. transcriber may be nil.
func NewPipeline(
	library Library,
	extractor TextExtractor,
	transcriber Transcriber,
	chunker *Chunker,
	embedder embedding.Embedder,
	store storage.Store,
	pauses Pauses,
	logger *zap.Logger,
) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		library:     library,
		extractor:   extractor,
		transcriber: transcriber,
		chunker:     chunker,
		embedder:    embedder,
		store:       store,
		pauses:      pauses,
		logger:      logger,
	}
}

// RunOptions control one pipeline run.
type RunOptions struct {
	// Force re-ingests documents that are already indexed. Their existing
	// chunks are purged first so the run cannot duplicate rows.
	Force bool
	// Targets restricts the run to the named documents. Empty means the
	// whole library.
	Targets []string
	// OCR options are passed through to the transcriber.
	OCR ocr.Options
}

// Run ingests the library. Already-indexed documents are skipped (the store
// is the idempotency ledger) and unsupported and empty documents are counted
// as skipped. A chunk whose embedding ultimately fails is logged and skipped,
// leaving the document partially indexed for the repair flow; a document is
// recorded as failed only when every chunk fails or the failure happens
// before chunking.
func (p *Pipeline) Run(ctx context.Context, opts RunOptions) (Report, error) {
	objects, err := p.library.List(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("list library: %w", err)
	}

	targets := make(map[string]bool, len(opts.Targets))
	for _, t := range opts.Targets {
		targets[t] = true
	}

	var report Report
	for _, obj := range objects {
		if len(targets) > 0 && !targets[obj.Name] {
			continue
		}
		if err := ctx.Err(); err != nil {
			return report, err
		}
		status, err := p.ingestDocument(ctx, obj, opts)
		if err != nil {
			p.logger.Error("document failed", zap.String("file", obj.Name), zap.Error(err))
			report.Failed = append(report.Failed, obj.Name)
			continue
		}
		switch status {
		case docIndexed:
			report.Indexed++
			p.pause(ctx, p.pauses.PerDocument)
		case docSkipped:
			report.Skipped++
		}
	}
	return report, nil
}

// Reindex purges the target documents and re-ingests them, optionally asking
// the OCR pass to translate. Used by the repair flow for documents that were
// indexed incompletely or in the wrong language.
func (p *Pipeline) Reindex(ctx context.Context, targets []string, ocrOpts ocr.Options) (Report, error) {
	for _, name := range targets {
		n, err := p.store.DeleteByDocument(ctx, name)
		if err != nil {
			return Report{}, fmt.Errorf("purge %s: %w", name, err)
		}
		p.logger.Info("purged document", zap.String("file", name), zap.Int64("chunks", n))
	}
	return p.Run(ctx, RunOptions{Targets: targets, OCR: ocrOpts})
}

type docStatus int

const (
	docSkipped docStatus = iota
	docIndexed
)

func (p *Pipeline) ingestDocument(ctx context.Context, obj models.Object, opts RunOptions) (docStatus, error) {
	format := models.FormatFromName(obj.Name)
	if format == models.FormatUnknown {
		p.logger.Debug("skipping unsupported file", zap.String("file", obj.Name))
		return docSkipped, nil
	}

	indexed, err := p.store.IsIndexed(ctx, obj.Name)
	if err != nil {
		return docSkipped, fmt.Errorf("check indexed: %w", err)
	}
	if indexed {
		if !opts.Force {
			p.logger.Debug("already indexed", zap.String("file", obj.Name))
			return docSkipped, nil
		}
		if _, err := p.store.DeleteByDocument(ctx, obj.Name); err != nil {
			return docSkipped, fmt.Errorf("purge before force ingest: %w", err)
		}
	}

	content, err := p.library.Download(ctx, obj.Name)
	if err != nil {
		return docSkipped, fmt.Errorf("download: %w", err)
	}

	text, err := p.extractor.Extract(content, format)
	if err != nil {
		return docSkipped, fmt.Errorf("extract: %w", err)
	}
	if p.extractor.NeedsOCR(format, text) {
		if p.transcriber == nil {
			p.logger.Warn("scanned PDF and no OCR configured", zap.String("file", obj.Name))
			return docSkipped, nil
		}
		p.logger.Info("extraction too thin, running OCR", zap.String("file", obj.Name))
		text, err = p.transcriber.Transcribe(ctx, content, opts.OCR)
		if err != nil {
			return docSkipped, fmt.Errorf("ocr: %w", err)
		}
	}

	text = SanitizeUTF8(text)
	if strings.TrimSpace(text) == "" {
		p.logger.Warn("document yielded no text", zap.String("file", obj.Name))
		return docSkipped, nil
	}

	chunks := p.chunker.Chunk(text)
	if err := p.store.SetExpectedChunks(ctx, obj.Name, len(chunks)); err != nil {
		return docSkipped, fmt.Errorf("record expected chunks: %w", err)
	}

	p.logger.Info("indexing document",
		zap.String("file", obj.Name),
		zap.Int("chunks", len(chunks)),
	)
	failed := 0
	for i, chunk := range chunks {
		vec, err := p.embedChunk(ctx, chunk)
		if err != nil {
			if ctx.Err() != nil {
				return docSkipped, err
			}
			p.logger.Warn("chunk failed to embed, continuing",
				zap.String("file", obj.Name),
				zap.Int("chunk", i+1),
				zap.Int("total", len(chunks)),
				zap.Error(err),
			)
			failed++
			continue
		}
		if err := p.store.InsertChunk(ctx, obj.Name, chunk, vec); err != nil {
			return docSkipped, fmt.Errorf("store chunk %d/%d: %w", i+1, len(chunks), err)
		}
		p.pause(ctx, p.pauses.PerChunk)
	}
	if failed == len(chunks) {
		return docSkipped, fmt.Errorf("all %d chunks failed to embed", len(chunks))
	}
	if failed > 0 {
		p.logger.Warn("document indexed with gaps",
			zap.String("file", obj.Name),
			zap.Int("failed_chunks", failed),
			zap.Int("chunks", len(chunks)),
		)
	}
	return docIndexed, nil
}

// embedChunk embeds one chunk. When the retry wrapper gives up on a rate
// limit, the pipeline waits out the cooldown once and tries again before
// declaring the document failed.
func (p *Pipeline) embedChunk(ctx context.Context, chunk string) ([]float64, error) {
	vec, err := p.embedder.Embed(ctx, chunk)
	if err == nil {
		return vec, nil
	}
	if !gemini.IsRateLimited(err) {
		return nil, err
	}
	p.logger.Warn("rate limited, cooling down",
		zap.Duration("cooldown", p.pauses.Cooldown), zap.Error(err))
	p.pause(ctx, p.pauses.Cooldown)
	return p.embedder.Embed(ctx, chunk)
}

func (p *Pipeline) pause(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}
