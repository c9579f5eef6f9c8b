// Package runs derives per-file observation run summaries from loaded
// event samples and searches them for temporally and spatially adjacent
// runs.
package runs

import (
	"math"

	"github.com/vheastro/bkgdata/internal/astro"
	"github.com/vheastro/bkgdata/internal/events"
)

// Pointing captures the telescope pointing at one instant, in both the
// horizontal frame it was recorded in and the equatorial frame obtained
// by transforming at the observatory location.
type Pointing struct {
	MJD        float64          `json:"mjd"`
	Horizontal astro.Horizontal `json:"horizontal"`
	Equatorial astro.Equatorial `json:"equatorial"`
}

// Summary describes one observation run file. The pointing bounds are
// nil when the sample carried no timestamps (a corrupted file or pure
// simulation); such a degenerate summary still identifies the run but
// cannot participate in time or pointing matching.
type Summary struct {
	ObsID    int64
	FileName string

	PointingStart *Pointing
	PointingStop  *Pointing
}

// Build derives the run summary for one loaded sample. The first and
// last events in time anchor the run bounds: their horizontal pointing
// is transformed to equatorial coordinates at their own timestamps, so
// the summary captures how the sky pointing evolved even when the
// telescope tracked a fixed horizontal position, and vice versa.
func Build(obsID int64, fileName string, sample *events.Sample, loc astro.EarthLocation) *Summary {
	s := &Summary{ObsID: obsID, FileName: fileName}

	if len(sample.MJD) == 0 {
		return s
	}

	iStart, iStop := 0, 0
	for i, v := range sample.MJD {
		if v < sample.MJD[iStart] {
			iStart = i
		}
		if v > sample.MJD[iStop] {
			iStop = i
		}
	}

	s.PointingStart = pointingAt(sample, iStart, loc)
	s.PointingStop = pointingAt(sample, iStop, loc)

	return s
}

func pointingAt(sample *events.Sample, i int, loc astro.EarthLocation) *Pointing {
	mjd := sample.MJD[i]
	hz := astro.Horizontal{
		Az:  astro.Degrees(sample.PointingAz[i]),
		Alt: astro.Degrees(90.0 - sample.PointingZd[i]),
	}
	return &Pointing{
		MJD:        mjd,
		Horizontal: hz,
		Equatorial: loc.ToEquatorial(hz, mjd),
	}
}

// HasBounds reports whether the run has usable time and pointing
// bounds.
func (s *Summary) HasBounds() bool {
	return s.PointingStart != nil && s.PointingStop != nil
}

// MJDStart returns the arrival time of the earliest event, or NaN for a
// degenerate summary.
func (s *Summary) MJDStart() float64 {
	if s.PointingStart == nil {
		return math.NaN()
	}
	return s.PointingStart.MJD
}

// MJDStop returns the arrival time of the latest event, or NaN for a
// degenerate summary.
func (s *Summary) MJDStop() float64 {
	if s.PointingStop == nil {
		return math.NaN()
	}
	return s.PointingStop.MJD
}

// Duration returns the observation duration in seconds, derived from
// the MJD bounds rather than stored.
func (s *Summary) Duration() float64 {
	return (s.MJDStop() - s.MJDStart()) * 86400.0
}

// Row is the flat per-run record handed to external consumers. Angles
// are degrees, times MJD days, the duration seconds.
type Row struct {
	ObsID       int64   `json:"obs_id"`
	MJDStart    float64 `json:"mjd_start"`
	MJDStop     float64 `json:"mjd_stop"`
	DurationSec float64 `json:"duration_s"`
	AzTelStart  float64 `json:"az_tel_start_deg"`
	AzTelStop   float64 `json:"az_tel_stop_deg"`
	AltTelStart float64 `json:"alt_tel_start_deg"`
	AltTelStop  float64 `json:"alt_tel_stop_deg"`
	RATel       float64 `json:"ra_tel_deg"`
	DecTel      float64 `json:"dec_tel_deg"`
	FileName    string  `json:"file_name"`
}

// Row flattens the summary for export. Only meaningful when the summary
// HasBounds; the equatorial reference position is the one at the start
// of the run.
func (s *Summary) Row() Row {
	return Row{
		ObsID:       s.ObsID,
		MJDStart:    s.MJDStart(),
		MJDStop:     s.MJDStop(),
		DurationSec: s.Duration(),
		AzTelStart:  s.PointingStart.Horizontal.Az.Deg(),
		AzTelStop:   s.PointingStop.Horizontal.Az.Deg(),
		AltTelStart: s.PointingStart.Horizontal.Alt.Deg(),
		AltTelStop:  s.PointingStop.Horizontal.Alt.Deg(),
		RATel:       s.PointingStart.Equatorial.RA.Deg(),
		DecTel:      s.PointingStart.Equatorial.Dec.Deg(),
		FileName:    s.FileName,
	}
}
