package events

import "math"

// Canonical column names shared by every loader. The loaders rename the
// instrument-specific source columns into this namespace before any
// filtering happens, so cuts and downstream consumers never see a
// per-telescope name.
const (
	ColEventRA        = "event_ra"
	ColEventDec       = "event_dec"
	ColEventEnergy    = "event_energy"
	ColGammaness      = "gammaness"
	ColPointingRA     = "pointing_ra"
	ColPointingDec    = "pointing_dec"
	ColPointingAz     = "pointing_az"
	ColPointingZd     = "pointing_zd"
	ColMJD            = "mjd"
	ColDeltaT         = "delta_t"
	ColDAQEventNumber = "daq_event_number"
	ColTriggerPattern = "trigger_pattern"
	ColTrueEnergy     = "true_energy"
	ColTrueZd         = "true_zd"
	ColTrueAz         = "true_az"
)

// Columns is the working set of per-event arrays a loader assembles
// before constructing a Sample, keyed by canonical name. A missing or
// zero-length entry means the source format does not record that
// quantity; such columns are exempt from the finite mask.
type Columns map[string][]float64

// NumRows returns the length of the populated columns (zero when none
// are populated). All populated columns are required to share one
// length; the loaders guarantee this by construction.
func (c Columns) NumRows() int {
	for _, col := range c {
		if len(col) > 0 {
			return len(col)
		}
	}
	return 0
}

// FiniteMask returns the per-row AND of finiteness across every
// populated column. A row with a NaN or Inf in any populated column is
// masked out of all of them.
func (c Columns) FiniteMask() []bool {
	n := c.NumRows()
	mask := make([]bool, n)
	for i := range mask {
		mask[i] = true
	}

	for _, col := range c {
		if len(col) == 0 {
			continue
		}
		for i, v := range col {
			if !isFinite(v) {
				mask[i] = false
			}
		}
	}

	return mask
}

// Select returns a copy of the columns keeping only the rows where the
// mask is true. Zero-length columns pass through untouched.
func (c Columns) Select(mask []bool) Columns {
	kept := 0
	for _, ok := range mask {
		if ok {
			kept++
		}
	}

	out := make(Columns, len(c))
	for name, col := range c {
		if len(col) == 0 {
			out[name] = col
			continue
		}
		filtered := make([]float64, 0, kept)
		for i, v := range col {
			if mask[i] {
				filtered = append(filtered, v)
			}
		}
		out[name] = filtered
	}

	return out
}

// Sample is the unified per-event container one loader call produces
// for one run file. Angles are in degrees, MJD in days, DeltaT in
// seconds; EnergyUnit names the energy scale of the source format.
// A Sample is constructed once, after the finite mask, and never
// mutated afterwards.
type Sample struct {
	EventRA     []float64
	EventDec    []float64
	EventEnergy []float64
	Gammaness   []float64
	PointingRA  []float64
	PointingDec []float64
	PointingAz  []float64
	PointingZd  []float64
	MJD         []float64
	DeltaT      []float64

	EnergyUnit string

	// effObsTime holds the live time in seconds when the source format
	// supplies one directly (DL3 header); nil means "derive on demand".
	effObsTime *float64
}

// NewSample builds a Sample from masked canonical columns. Working
// columns outside the Sample contract (ids, Monte-Carlo truth) are
// dropped here; they only participated in cuts and the finite mask.
func NewSample(c Columns, energyUnit string, effObsTime *float64) *Sample {
	return &Sample{
		EventRA:     c[ColEventRA],
		EventDec:    c[ColEventDec],
		EventEnergy: c[ColEventEnergy],
		Gammaness:   c[ColGammaness],
		PointingRA:  c[ColPointingRA],
		PointingDec: c[ColPointingDec],
		PointingAz:  c[ColPointingAz],
		PointingZd:  c[ColPointingZd],
		MJD:         c[ColMJD],
		DeltaT:      c[ColDeltaT],
		EnergyUnit:  energyUnit,
		effObsTime:  effObsTime,
	}
}

// EmptySample returns a Sample with zero-length columns, the degraded
// result for a corrupted but openable input file.
func EmptySample(energyUnit string) *Sample {
	empty := make([]float64, 0)
	return &Sample{
		EventRA:     empty,
		EventDec:    empty,
		EventEnergy: empty,
		Gammaness:   empty,
		PointingRA:  empty,
		PointingDec: empty,
		PointingAz:  empty,
		PointingZd:  empty,
		MJD:         empty,
		DeltaT:      empty,
		EnergyUnit:  energyUnit,
	}
}

// NumEvents returns the number of events in the sample.
func (s *Sample) NumEvents() int {
	return len(s.EventRA)
}

// PointingAlt returns the per-event pointing altitude, derived as
// 90 deg minus the zenith distance.
func (s *Sample) PointingAlt() []float64 {
	alt := make([]float64, len(s.PointingZd))
	for i, zd := range s.PointingZd {
		alt[i] = 90.0 - zd
	}
	return alt
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
