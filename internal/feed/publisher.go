// Package feed publishes ingestion results onto NATS for downstream
// consumers. The feed is best-effort: a publisher constructed without a
// connection is disabled and silently drops everything.
package feed

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/nats-io/nats.go"

	"github.com/vheastro/bkgdata/internal/metrics"
	"github.com/vheastro/bkgdata/internal/runs"
)

const (
	// SubjectRunSummary carries one message per ingested run.
	SubjectRunSummary = "bkgdata.runs.summary"

	// SubjectBatch carries the start and completion markers of each
	// input batch.
	SubjectBatch = "bkgdata.batch.events"
)

// Batch marker phases.
const (
	PhaseStart    = "start"
	PhaseComplete = "complete"
)

// BatchSummary is the wire form of a batch lifecycle marker. A start
// marker carries only the job id and file count; the completion marker
// carries the full tally.
type BatchSummary struct {
	Phase    string  `json:"phase"`
	JobID    string  `json:"job_id"`
	Files    int     `json:"files"`
	Indexed  int     `json:"runs_indexed"`
	Empty    int     `json:"empty"`
	Fatal    int     `json:"fatal"`
	ElapsedS float64 `json:"elapsed_s"`
}

// Publisher handles publishing run summaries and batch reports to NATS.
type Publisher struct {
	conn    *nats.Conn
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// NewPublisher creates a publisher on the given connection. A nil
// connection disables the feed.
func NewPublisher(conn *nats.Conn, logger *slog.Logger, m *metrics.Metrics) *Publisher {
	return &Publisher{conn: conn, logger: logger, metrics: m}
}

// Enabled reports whether the publisher has a connection to publish on.
func (p *Publisher) Enabled() bool {
	return p.conn != nil
}

// PublishSummary publishes one run summary. Publishing on a disabled
// publisher is a no-op.
func (p *Publisher) PublishSummary(summary *runs.Summary) error {
	if p.conn == nil {
		return nil
	}
	if !p.conn.IsConnected() {
		p.metrics.IncPublishErrors()
		return fmt.Errorf("NATS connection not available")
	}
	if !summary.HasBounds() {
		// A run without time bounds has no flat row representation.
		p.logger.Debug("skipping run without time bounds", "obs_id", summary.ObsID)
		return nil
	}

	data, err := json.Marshal(summary.Row())
	if err != nil {
		return fmt.Errorf("failed to marshal run summary: %w", err)
	}

	headers := nats.Header{}
	headers.Set("x-obs-id", strconv.FormatInt(summary.ObsID, 10))
	headers.Set("x-file-name", summary.FileName)

	msg := &nats.Msg{
		Subject: SubjectRunSummary,
		Data:    data,
		Header:  headers,
	}
	if err := p.conn.PublishMsg(msg); err != nil {
		p.metrics.IncPublishErrors()
		return fmt.Errorf("failed to publish run summary: %w", err)
	}

	p.logger.Info("published run summary",
		"obs_id", summary.ObsID,
		"subject", SubjectRunSummary)

	return nil
}

// PublishSummaries publishes multiple run summaries.
func (p *Publisher) PublishSummaries(summaries []*runs.Summary) error {
	if p.conn == nil {
		return nil
	}

	var errs []error
	successCount := 0
	for _, summary := range summaries {
		if err := p.PublishSummary(summary); err != nil {
			errs = append(errs, fmt.Errorf("run %d: %w", summary.ObsID, err))
		} else {
			successCount++
		}
	}

	p.logger.Info("published run summaries",
		"total", len(summaries),
		"successful", successCount,
		"failed", len(errs))

	if len(errs) > 0 {
		return fmt.Errorf("failed to publish %d run summaries: %v", len(errs), errs)
	}
	return nil
}

// PublishBatch publishes a batch lifecycle marker.
func (p *Publisher) PublishBatch(batch BatchSummary) error {
	if p.conn == nil {
		return nil
	}
	if !p.conn.IsConnected() {
		p.metrics.IncPublishErrors()
		return fmt.Errorf("NATS connection not available")
	}

	data, err := json.Marshal(batch)
	if err != nil {
		return fmt.Errorf("failed to marshal batch summary: %w", err)
	}

	headers := nats.Header{}
	headers.Set("x-job-id", batch.JobID)

	msg := &nats.Msg{
		Subject: SubjectBatch,
		Data:    data,
		Header:  headers,
	}
	if err := p.conn.PublishMsg(msg); err != nil {
		p.metrics.IncPublishErrors()
		return fmt.Errorf("failed to publish batch summary: %w", err)
	}

	p.logger.Info("published batch marker",
		"phase", batch.Phase,
		"job_id", batch.JobID,
		"files", batch.Files,
		"subject", SubjectBatch)

	return nil
}
