package feed

import (
	"encoding/json"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vheastro/bkgdata/internal/astro"
	"github.com/vheastro/bkgdata/internal/runs"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestPublisher_DisabledIsNoOp(t *testing.T) {
	p := NewPublisher(nil, discardLogger(), nil)

	assert.False(t, p.Enabled())

	summary := &runs.Summary{ObsID: 42, FileName: "dl3_LST-1.Run00042.fits.gz"}
	assert.NoError(t, p.PublishSummary(summary))
	assert.NoError(t, p.PublishSummaries([]*runs.Summary{summary}))
	assert.NoError(t, p.PublishBatch(BatchSummary{JobID: "job-1"}))
}

func TestBatchSummary_WireFormat(t *testing.T) {
	data, err := json.Marshal(BatchSummary{
		Phase:    PhaseComplete,
		JobID:    "job-1",
		Files:    5,
		Indexed:  3,
		Empty:    1,
		Fatal:    1,
		ElapsedS: 2.5,
	})
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &decoded))

	assert.Equal(t, "complete", decoded["phase"])
	assert.Equal(t, "job-1", decoded["job_id"])
	assert.Equal(t, 5.0, decoded["files"])
	assert.Equal(t, 3.0, decoded["runs_indexed"])
	assert.Equal(t, 1.0, decoded["empty"])
	assert.Equal(t, 1.0, decoded["fatal"])
	assert.Equal(t, 2.5, decoded["elapsed_s"])
}

func TestSummaryRow_WireFormat(t *testing.T) {
	summary := &runs.Summary{
		ObsID:    2977,
		FileName: "dl2_LST-1.Run02977.h5",
		PointingStart: &runs.Pointing{
			MJD:        59000.1,
			Horizontal: astro.Horizontal{Az: astro.Degrees(100), Alt: astro.Degrees(70)},
			Equatorial: astro.Equatorial{RA: astro.Degrees(83.6), Dec: astro.Degrees(22.0)},
		},
		PointingStop: &runs.Pointing{
			MJD:        59000.2,
			Horizontal: astro.Horizontal{Az: astro.Degrees(110), Alt: astro.Degrees(65)},
			Equatorial: astro.Equatorial{RA: astro.Degrees(83.7), Dec: astro.Degrees(22.1)},
		},
	}

	data, err := json.Marshal(summary.Row())
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &decoded))

	assert.Equal(t, 2977.0, decoded["obs_id"])
	assert.Equal(t, "dl2_LST-1.Run02977.h5", decoded["file_name"])
	assert.Equal(t, 59000.1, decoded["mjd_start"])
	assert.Equal(t, 59000.2, decoded["mjd_stop"])
	assert.InDelta(t, 0.1*86400.0, decoded["duration_s"].(float64), 1e-3)
	assert.Equal(t, 83.6, decoded["ra_tel_deg"])
	assert.Equal(t, 22.0, decoded["dec_tel_deg"])
}
