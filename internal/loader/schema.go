package loader

import "math"

// Canonical unit set: angles in degrees, event times in MJD days,
// trigger differences in seconds. Energy keeps the scale native to the
// format (GeV for MAGIC, TeV for the LST levels); the sample carries
// the unit name. Raw columns are converted right after extraction, so
// cuts always see canonical values.
const (
	hourToDeg = 15.0
	radToDeg  = 180.0 / math.Pi
)
