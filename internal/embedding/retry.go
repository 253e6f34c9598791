package embedding

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/analogtech/cofounder/internal/gemini"
)

const (
	defaultAttempts = 3
	// Rate-limit and malformed-response failures get the long pause; the
	// embedding endpoint is the most quota-constrained call in the pipeline.
	defaultBusyPause  = 10 * time.Second
	defaultShortPause = 2 * time.Second
)

// RetryEmbedder wraps an Embedder with a fixed retry policy: up to three
// attempts, sleeping longer when the failure is rate limiting or a malformed
// response. After the final attempt the error is propagated to the caller.
type RetryEmbedder struct {
	inner      Embedder
	attempts   int
	busyPause  time.Duration
	shortPause time.Duration
	logger     *zap.Logger
}

// RetryOption configures a RetryEmbedder.
type RetryOption func(*RetryEmbedder)

// WithLogger sets a logger for retry events.
func WithLogger(l *zap.Logger) RetryOption {
	return func(r *RetryEmbedder) { r.logger = l }
}

// WithPauses overrides the backoff pauses (tests set these to zero).
func WithPauses(busy, short time.Duration) RetryOption {
	return func(r *RetryEmbedder) {
		r.busyPause = busy
		r.shortPause = short
	}
}

// NewRetryEmbedder wraps inner with the retry policy.
func NewRetryEmbedder(inner Embedder, opts ...RetryOption) *RetryEmbedder {
	r := &RetryEmbedder{
		inner:      inner,
		attempts:   defaultAttempts,
		busyPause:  defaultBusyPause,
		shortPause: defaultShortPause,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Embed calls the inner embedder, retrying on failure. The backoff dispatches
// on the structured error kind: rate-limited and malformed-response failures
// wait the long pause, anything else (server errors included) the short one.
func (r *RetryEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	var lastErr error
	for attempt := 1; attempt <= r.attempts; attempt++ {
		vec, err := r.inner.Embed(ctx, text)
		if err == nil {
			return vec, nil
		}
		lastErr = err

		if attempt == r.attempts {
			break
		}
		pause := r.pauseFor(err)
		if r.logger != nil {
			r.logger.Warn("embedding attempt failed",
				zap.Int("attempt", attempt),
				zap.Int("max_attempts", r.attempts),
				zap.Duration("pause", pause),
				zap.Error(err),
			)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(pause):
		}
	}
	return nil, fmt.Errorf("embedding failed after %d attempts: %w", r.attempts, lastErr)
}

func (r *RetryEmbedder) pauseFor(err error) time.Duration {
	if gemini.IsRateLimited(err) || gemini.IsMalformed(err) {
		return r.busyPause
	}
	return r.shortPause
}
