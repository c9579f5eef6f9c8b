package runs

import (
	"math"

	"github.com/vheastro/bkgdata/internal/astro"
)

// FindNeighbours returns the candidates adjacent to the target run.
// A candidate passes when it is close in time (its start lies within
// timeDeltaDays of the target's stop, or its stop within timeDeltaDays
// of the target's start, so it may precede or follow the target) AND
// the angular separation between the two runs' equatorial start
// pointings is below pointingDelta. Both comparisons are strict.
// Survivors keep the input order; the target itself is not treated
// specially and matches when listed among the candidates. Degenerate
// summaries never match on either side.
func FindNeighbours(target *Summary, candidates []*Summary, timeDeltaDays float64, pointingDelta astro.Angle) []*Summary {
	if target == nil || !target.HasBounds() {
		return nil
	}

	var out []*Summary
	for _, c := range candidates {
		if c == nil || !c.HasBounds() {
			continue
		}

		closeInTime := math.Abs(c.MJDStart()-target.MJDStop()) < timeDeltaDays ||
			math.Abs(c.MJDStop()-target.MJDStart()) < timeDeltaDays
		if !closeInTime {
			continue
		}

		sep := target.PointingStart.Equatorial.Separation(c.PointingStart.Equatorial)
		if sep.Deg() < pointingDelta.Deg() {
			out = append(out, c)
		}
	}

	return out
}
