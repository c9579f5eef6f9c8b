package events

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

const secondsPerDay = 86400.0

// Fraction of inter-event intervals treated as genuine; the remainder
// is assumed to span gaps between runs rather than live observation.
const gapQuantile = 0.9999

// EffObsTime returns the effective (dead-time corrected) observation
// time of the sample in seconds. When the source format recorded a live
// time directly that value is returned; otherwise it is derived from
// the event arrival times and trigger time differences. The second
// return is false when the estimate is undefined, which is distinct
// from a zero live time.
func (s *Sample) EffObsTime() (float64, bool) {
	if s.effObsTime != nil {
		return *s.effObsTime, true
	}
	return calcEffObsTime(s.MJD, s.DeltaT)
}

// calcEffObsTime estimates the live time from event MJDs and positive
// trigger time differences.
//
// The elapsed time sums consecutive arrival-time differences below a
// dynamic threshold at the 99.99th percentile, which removes the few
// large intervals spanning run boundaries. The instrument dead time is
// taken as the minimum positive trigger difference, the trigger rate as
// 1/(mean - dead), and the live time as elapsed/(1 + rate*dead).
// Though the dead-time correction is usually below a percent, the
// estimate may be inaccurate for some instruments.
func calcEffObsTime(mjd, deltaT []float64) (float64, bool) {
	if len(mjd) < 2 {
		return 0, false
	}

	sorted := make([]float64, len(mjd))
	copy(sorted, mjd)
	sort.Float64s(sorted)

	diffs := make([]float64, len(sorted)-1)
	for i := 1; i < len(sorted); i++ {
		diffs[i-1] = sorted[i] - sorted[i-1]
	}

	diffsSorted := make([]float64, len(diffs))
	copy(diffsSorted, diffs)
	sort.Float64s(diffsSorted)

	threshold := stat.Quantile(gapQuantile, stat.LinInterp, diffsSorted, nil)

	var tElapsed float64
	for _, d := range diffs {
		if d < threshold {
			tElapsed += d
		}
	}
	tElapsed *= secondsPerDay

	var positive []float64
	for _, dt := range deltaT {
		if dt > 0 {
			positive = append(positive, dt)
		}
	}
	if len(positive) == 0 {
		return 0, false
	}

	deadTime := positive[0]
	for _, dt := range positive[1:] {
		deadTime = math.Min(deadTime, dt)
	}

	rate := 1.0 / (stat.Mean(positive, nil) - deadTime)

	return tElapsed / (1.0 + rate*deadTime), true
}
