// Package pipeline drives batch ingestion: it expands the input file
// mask, loads every matching run concurrently, and lands the results in
// the run index and on the feed.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/vheastro/bkgdata/internal/cuts"
	"github.com/vheastro/bkgdata/internal/events"
	"github.com/vheastro/bkgdata/internal/feed"
	"github.com/vheastro/bkgdata/internal/loader"
	"github.com/vheastro/bkgdata/internal/metrics"
	"github.com/vheastro/bkgdata/internal/runs"
	"github.com/vheastro/bkgdata/internal/store"
)

// Pipeline ingests batches of run files into the index.
type Pipeline struct {
	loader  *loader.Loader
	index   *store.RunIndex
	pub     *feed.Publisher
	metrics *metrics.Metrics
	logger  *slog.Logger
	workers int
}

// New creates a pipeline processing up to workers files at once.
func New(l *loader.Loader, index *store.RunIndex, pub *feed.Publisher, m *metrics.Metrics, logger *slog.Logger, workers int) *Pipeline {
	if workers < 1 {
		workers = 1
	}
	return &Pipeline{
		loader:  l,
		index:   index,
		pub:     pub,
		metrics: m,
		logger:  logger,
		workers: workers,
	}
}

// Report describes one completed batch.
type Report struct {
	JobID   string
	Files   int
	Indexed int
	Empty   int
	Fatal   int
	Elapsed time.Duration
}

type fileResult struct {
	summary *runs.Summary
	sample  *events.Sample
}

// Run processes every file matching the mask. The returned error is
// non-nil only for a bad mask or filter expression, or when the context
// is cancelled mid-batch.
func (p *Pipeline) Run(ctx context.Context, mask, cutsExpr string) (*Report, error) {
	files, err := filepath.Glob(mask)
	if err != nil {
		return nil, fmt.Errorf("bad file mask %q: %w", mask, err)
	}
	p.logger.Debug("expanded file mask", "mask", mask, "files", len(files))

	return p.RunFiles(ctx, files, cutsExpr)
}

// RunFiles ingests the given files as one batch. Files are loaded
// concurrently; results land in the index in input order, so repeated
// runs over the same inputs produce the same index. A file that fails
// outright is logged and counted, it does not abort the batch.
func (p *Pipeline) RunFiles(ctx context.Context, files []string, cutsExpr string) (*Report, error) {
	expr, err := cuts.Compile(cutsExpr)
	if err != nil {
		return nil, fmt.Errorf("bad event filter: %w", err)
	}

	jobID := uuid.New().String()
	start := time.Now()
	p.logger.Info("starting batch",
		"job_id", jobID,
		"files", len(files),
		"workers", p.workers)

	if err := p.pub.PublishBatch(feed.BatchSummary{
		Phase: feed.PhaseStart,
		JobID: jobID,
		Files: len(files),
	}); err != nil {
		p.logger.Warn("failed to publish batch marker", "job_id", jobID, "error", err)
	}

	results := make([]*fileResult, len(files))
	errs := make([]error, len(files))

	var wg sync.WaitGroup
	sem := semaphore.NewWeighted(int64(p.workers))
	for i, path := range files {
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}
		wg.Add(1)
		i, path := i, path
		go func() {
			defer wg.Done()
			defer sem.Release(1)
			results[i], errs[i] = p.processFile(path, expr)
		}()
	}
	wg.Wait()

	report := &Report{JobID: jobID, Files: len(files)}
	for i, path := range files {
		switch {
		case errs[i] != nil:
			p.logger.Error("failed to process run file", "path", path, "error", errs[i])
			report.Fatal++
		case results[i] == nil:
			// Never started: the batch was cancelled.
		case !results[i].summary.HasBounds():
			p.logger.Info("run has no time bounds, not indexed", "path", path)
			report.Empty++
		default:
			p.index.Put(results[i].summary)
			p.index.PutSample(results[i].summary.ObsID, results[i].sample)
			if err := p.pub.PublishSummary(results[i].summary); err != nil {
				p.logger.Warn("failed to publish run summary",
					"obs_id", results[i].summary.ObsID, "error", err)
			}
			report.Indexed++
		}
	}

	report.Elapsed = time.Since(start)
	p.metrics.SetRunsIndexed(p.index.Len())
	p.metrics.ObserveBatchDuration(report.Elapsed.Seconds())

	if err := p.pub.PublishBatch(feed.BatchSummary{
		Phase:    feed.PhaseComplete,
		JobID:    jobID,
		Files:    report.Files,
		Indexed:  report.Indexed,
		Empty:    report.Empty,
		Fatal:    report.Fatal,
		ElapsedS: report.Elapsed.Seconds(),
	}); err != nil {
		p.logger.Warn("failed to publish batch marker", "job_id", jobID, "error", err)
	}

	p.logger.Info("batch complete",
		"job_id", jobID,
		"files", report.Files,
		"indexed", report.Indexed,
		"empty", report.Empty,
		"fatal", report.Fatal,
		"elapsed", report.Elapsed)

	if ctx.Err() != nil {
		return report, ctx.Err()
	}
	return report, nil
}

func (p *Pipeline) processFile(path string, expr *cuts.Expr) (*fileResult, error) {
	format := loader.DetectFormat(path)

	start := time.Now()
	summary, sample, err := p.loader.Summarize(path, expr)
	if err != nil {
		p.metrics.IncFileProcessed(format.String(), metrics.OutcomeFatal)
		return nil, err
	}
	p.metrics.ObserveLoadDuration(format.String(), time.Since(start).Seconds())

	return &fileResult{summary: summary, sample: sample}, nil
}
