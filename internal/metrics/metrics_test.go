package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetricsWith_RegistersAllCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetricsWith(reg)

	m.IncFileProcessed("magic-root", OutcomeOK)
	m.AddEventsLoaded(10)
	m.AddEventsDropped(DropNonFinite, 2)
	m.ObserveLoadDuration("lst-dl3", 0.5)
	m.ObserveBatchDuration(1.5)
	m.SetRunsIndexed(3)
	m.SetNatsConnected(true)
	m.IncPublishErrors()

	families, err := reg.Gather()
	require.NoError(t, err)

	names := make(map[string]bool, len(families))
	for _, f := range families {
		names[f.GetName()] = true
	}
	for _, want := range []string{
		"files_processed_total",
		"events_loaded_total",
		"events_dropped_total",
		"file_load_seconds",
		"batch_seconds",
		"runs_indexed",
		"nats_connected",
		"nats_publish_errors_total",
	} {
		assert.True(t, names[want], "metric %s not registered", want)
	}
}

func TestMetrics_CountsByLabel(t *testing.T) {
	m := NewMetricsWith(prometheus.NewRegistry())

	m.IncFileProcessed("magic-root", OutcomeOK)
	m.IncFileProcessed("magic-root", OutcomeOK)
	m.IncFileProcessed("magic-root", OutcomeCorrupted)
	m.IncFileProcessed("lst-dl2", OutcomeFatal)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.FilesProcessed.WithLabelValues("magic-root", OutcomeOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FilesProcessed.WithLabelValues("magic-root", OutcomeCorrupted)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FilesProcessed.WithLabelValues("lst-dl2", OutcomeFatal)))
}

func TestMetrics_EventCounters(t *testing.T) {
	m := NewMetricsWith(prometheus.NewRegistry())

	m.AddEventsLoaded(5)
	m.AddEventsLoaded(7)
	m.AddEventsDropped(DropCuts, 3)
	m.AddEventsDropped(DropNonFinite, 1)
	m.AddEventsDropped(DropNonFinite, 0) // no-op

	assert.Equal(t, 12.0, testutil.ToFloat64(m.EventsLoaded))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.EventsDropped.WithLabelValues(DropCuts)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EventsDropped.WithLabelValues(DropNonFinite)))
}

func TestMetrics_Gauges(t *testing.T) {
	m := NewMetricsWith(prometheus.NewRegistry())

	m.SetRunsIndexed(42)
	assert.Equal(t, 42.0, testutil.ToFloat64(m.RunsIndexed))

	m.SetNatsConnected(true)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.NatsConnected))
	m.SetNatsConnected(false)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.NatsConnected))
}

func TestMetrics_NilReceiverRecordsNothing(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.IncFileProcessed("magic-root", OutcomeOK)
		m.AddEventsLoaded(1)
		m.AddEventsDropped(DropCuts, 1)
		m.ObserveLoadDuration("lst-dl3", 0.1)
		m.ObserveBatchDuration(0.1)
		m.SetRunsIndexed(1)
		m.SetNatsConnected(true)
		m.IncPublishErrors()
	})
}
