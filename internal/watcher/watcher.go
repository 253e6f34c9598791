// Package watcher watches a local library directory and triggers ingestion
// runs when documents change. Only meaningful with the directory-backed
// library; bucket libraries are ingested on a schedule instead.
package watcher

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/analogtech/cofounder/internal/models"
)

const defaultDebounce = 2 * time.Second

// Watcher triggers onChange after library files settle. Bursts of events
// (editors write in several steps, bulk copies touch many files) coalesce
// into a single trigger.
type Watcher struct {
	dir      string
	onChange func(ctx context.Context)
	debounce time.Duration
	logger   *zap.Logger

	mu      sync.Mutex
	timer   *time.Timer
	running bool
	rerun   bool
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce overrides the settle window (tests shorten it).
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) { w.debounce = d }
}

// New creates a watcher over dir. onChange runs serialized: a change arriving
// during a run schedules exactly one follow-up run.
func New(dir string, onChange func(ctx context.Context), logger *zap.Logger, opts ...Option) *Watcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	w := &Watcher{
		dir:      dir,
		onChange: onChange,
		debounce: defaultDebounce,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run watches until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fsw.Close()

	if err := fsw.Add(w.dir); err != nil {
		return err
	}
	w.logger.Info("watching library directory", zap.String("dir", w.dir))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if !relevant(ev) {
				continue
			}
			w.logger.Debug("library change", zap.String("file", ev.Name), zap.String("op", ev.Op.String()))
			w.schedule(ctx)
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", zap.Error(err))
		}
	}
}

// relevant filters out events for files the pipeline would ignore anyway.
func relevant(ev fsnotify.Event) bool {
	if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
		return false
	}
	if strings.HasPrefix(filepath.Base(ev.Name), ".") {
		return false
	}
	return models.FormatFromName(ev.Name) != models.FormatUnknown
}

// schedule arms (or re-arms) the debounce timer.
func (w *Watcher) schedule(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, func() { w.fire(ctx) })
}

// fire runs onChange, serialized. A trigger landing mid-run marks rerun so
// the change is not lost.
func (w *Watcher) fire(ctx context.Context) {
	w.mu.Lock()
	if w.running {
		w.rerun = true
		w.mu.Unlock()
		return
	}
	w.running = true
	w.mu.Unlock()

	for {
		if ctx.Err() != nil {
			w.mu.Lock()
			w.running = false
			w.rerun = false
			w.mu.Unlock()
			return
		}
		w.onChange(ctx)

		w.mu.Lock()
		if !w.rerun {
			w.running = false
			w.mu.Unlock()
			return
		}
		w.rerun = false
		w.mu.Unlock()
	}
}
