// Package watch feeds newly arrived run files to the ingestion
// pipeline. The watcher polls the input mask; producers are expected to
// move finished files into place atomically.
package watch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/vheastro/bkgdata/internal/pipeline"
)

// pollInterval is how often the input mask is re-expanded.
const pollInterval = 2 * time.Second

// Watcher polls an input file mask and ingests files that appear after
// Start. Files already present at Start are assumed covered by the
// initial batch.
type Watcher struct {
	pipe     *pipeline.Pipeline
	mask     string
	cuts     string
	interval time.Duration
	debounce time.Duration
	logger   *slog.Logger

	mu   sync.Mutex
	seen map[string]struct{}
}

// New creates a watcher over the given mask. The debounce delays
// ingestion after an arrival is detected, so a burst of files landing
// together is picked up as one batch.
func New(pipe *pipeline.Pipeline, mask, cutsExpr string, debounceMs int, logger *slog.Logger) *Watcher {
	if debounceMs <= 0 {
		debounceMs = 1000
	}
	return &Watcher{
		pipe:     pipe,
		mask:     mask,
		cuts:     cutsExpr,
		interval: pollInterval,
		debounce: time.Duration(debounceMs) * time.Millisecond,
		logger:   logger,
		seen:     make(map[string]struct{}),
	}
}

// Start validates the mask, seeds the seen set with the files already
// present, and polls until the context is cancelled.
func (w *Watcher) Start(ctx context.Context) error {
	paths, err := filepath.Glob(w.mask)
	if err != nil {
		return fmt.Errorf("bad file mask %q: %w", w.mask, err)
	}

	w.mu.Lock()
	for _, p := range paths {
		w.seen[p] = struct{}{}
	}
	w.mu.Unlock()

	w.logger.Info("starting input file watcher",
		"mask", w.mask,
		"known_files", len(paths),
		"interval", w.interval)

	arrivals := make(chan struct{}, 1)
	go w.poll(ctx, arrivals)
	go w.ingestLoop(ctx, arrivals)

	return nil
}

// poll re-expands the mask on every tick and signals when unseen files
// show up.
func (w *Watcher) poll(ctx context.Context, arrivals chan<- struct{}) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			paths, err := filepath.Glob(w.mask)
			if err != nil {
				w.logger.Error("error polling input files", "error", err)
				continue
			}
			if !w.hasNew(paths) {
				continue
			}
			select {
			case arrivals <- struct{}{}:
			default:
				// A notification is already pending.
			}
		}
	}
}

// ingestLoop waits out the debounce after each arrival signal, then
// hands everything still unseen to the pipeline as one batch.
func (w *Watcher) ingestLoop(ctx context.Context, arrivals <-chan struct{}) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-arrivals:
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(w.debounce):
		}

		w.ingestNew(ctx)
	}
}

func (w *Watcher) ingestNew(ctx context.Context) {
	fresh := w.takeNew()
	if len(fresh) == 0 {
		return
	}

	w.logger.Info("ingesting new run files", "count", len(fresh))
	if _, err := w.pipe.RunFiles(ctx, fresh, w.cuts); err != nil && !errors.Is(err, context.Canceled) {
		w.logger.Error("failed to ingest new run files", "error", err)
	}
}

func (w *Watcher) hasNew(paths []string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	for _, p := range paths {
		if _, ok := w.seen[p]; !ok {
			return true
		}
	}
	return false
}

// takeNew returns the unseen files matching the mask and marks them
// seen.
func (w *Watcher) takeNew() []string {
	paths, err := filepath.Glob(w.mask)
	if err != nil {
		w.logger.Error("error expanding input mask", "error", err)
		return nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	var fresh []string
	for _, p := range paths {
		if _, ok := w.seen[p]; !ok {
			w.seen[p] = struct{}{}
			fresh = append(fresh, p)
		}
	}
	return fresh
}
