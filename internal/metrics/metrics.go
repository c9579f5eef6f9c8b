package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// File processing outcomes reported by IncFileProcessed.
const (
	OutcomeOK        = "ok"
	OutcomeCorrupted = "corrupted"
	OutcomeFatal     = "fatal"
)

// Event drop reasons reported by AddEventsDropped.
const (
	DropCuts      = "cuts"
	DropNonFinite = "nonfinite"
)

// Metrics holds all the Prometheus metrics for the ingestion service.
// All methods are safe on a nil receiver, which records nothing; that
// keeps the loader and pipeline usable without a registry.
type Metrics struct {
	FilesProcessed *prometheus.CounterVec
	EventsLoaded   prometheus.Counter
	EventsDropped  *prometheus.CounterVec
	LoadDuration   *prometheus.HistogramVec
	BatchDuration  prometheus.Histogram
	RunsIndexed    prometheus.Gauge
	NatsConnected  prometheus.Gauge
	PublishErrors  prometheus.Counter
}

// NewMetrics creates a Metrics instance registered on the default
// Prometheus registry.
func NewMetrics() *Metrics {
	return NewMetricsWith(prometheus.DefaultRegisterer)
}

// NewMetricsWith creates a Metrics instance registered on the given
// registerer.
func NewMetricsWith(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		FilesProcessed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "files_processed_total",
			Help: "Total number of input files processed, by format and outcome",
		}, []string{"format", "outcome"}),
		EventsLoaded: factory.NewCounter(prometheus.CounterOpts{
			Name: "events_loaded_total",
			Help: "Total number of events loaded into samples after filtering",
		}),
		EventsDropped: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "events_dropped_total",
			Help: "Total number of events dropped during loading, by reason",
		}, []string{"reason"}),
		LoadDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "file_load_seconds",
			Help:    "Time spent loading a single input file",
			Buckets: prometheus.ExponentialBuckets(0.01, 4, 8),
		}, []string{"format"}),
		BatchDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "batch_seconds",
			Help:    "Time spent processing a whole input batch",
			Buckets: prometheus.ExponentialBuckets(0.1, 4, 8),
		}),
		RunsIndexed: factory.NewGauge(prometheus.GaugeOpts{
			Name: "runs_indexed",
			Help: "Number of observation runs currently held in the index",
		}),
		NatsConnected: factory.NewGauge(prometheus.GaugeOpts{
			Name: "nats_connected",
			Help: "Whether the NATS feed connection is up (1) or not (0)",
		}),
		PublishErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "nats_publish_errors_total",
			Help: "Total number of NATS publish errors",
		}),
	}
}

// IncFileProcessed increments the files_processed_total counter.
func (m *Metrics) IncFileProcessed(format, outcome string) {
	if m == nil {
		return
	}
	m.FilesProcessed.WithLabelValues(format, outcome).Inc()
}

// AddEventsLoaded increments the events_loaded_total counter.
func (m *Metrics) AddEventsLoaded(n int) {
	if m == nil {
		return
	}
	m.EventsLoaded.Add(float64(n))
}

// AddEventsDropped increments the events_dropped_total counter.
func (m *Metrics) AddEventsDropped(reason string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.EventsDropped.WithLabelValues(reason).Add(float64(n))
}

// ObserveLoadDuration records the time spent loading one file.
func (m *Metrics) ObserveLoadDuration(format string, seconds float64) {
	if m == nil {
		return
	}
	m.LoadDuration.WithLabelValues(format).Observe(seconds)
}

// ObserveBatchDuration records the time spent on a whole batch.
func (m *Metrics) ObserveBatchDuration(seconds float64) {
	if m == nil {
		return
	}
	m.BatchDuration.Observe(seconds)
}

// SetRunsIndexed sets the runs_indexed gauge.
func (m *Metrics) SetRunsIndexed(n int) {
	if m == nil {
		return
	}
	m.RunsIndexed.Set(float64(n))
}

// SetNatsConnected sets the nats_connected gauge.
func (m *Metrics) SetNatsConnected(up bool) {
	if m == nil {
		return
	}
	if up {
		m.NatsConnected.Set(1)
	} else {
		m.NatsConnected.Set(0)
	}
}

// IncPublishErrors increments the nats_publish_errors_total counter.
func (m *Metrics) IncPublishErrors() {
	if m == nil {
		return
	}
	m.PublishErrors.Inc()
}
