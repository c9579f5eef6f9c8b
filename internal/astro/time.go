package astro

import (
	"math"
	"time"
)

// MJD of the Unix epoch (1970-01-01T00:00:00 UTC).
const mjdUnixEpoch = 40587.0

const secondsPerDay = 86400.0

// UnixToMJD converts Unix seconds to Modified Julian Date.
func UnixToMJD(unix float64) float64 {
	return unix/secondsPerDay + mjdUnixEpoch
}

// MJDToUnix converts a Modified Julian Date to Unix seconds.
func MJDToUnix(mjd float64) float64 {
	return (mjd - mjdUnixEpoch) * secondsPerDay
}

// TimeToMJD converts a time.Time to Modified Julian Date.
func TimeToMJD(t time.Time) float64 {
	unix := float64(t.Unix()) + float64(t.Nanosecond())/1e9
	return UnixToMJD(unix)
}

// MJDToTime converts a Modified Julian Date to a time.Time in UTC.
func MJDToTime(mjd float64) time.Time {
	unix := MJDToUnix(mjd)
	sec := math.Floor(unix)
	nsec := (unix - sec) * 1e9
	return time.Unix(int64(sec), int64(nsec)).UTC()
}

// JulianDate converts a Modified Julian Date to a Julian Date.
func JulianDate(mjd float64) float64 {
	return mjd + 2400000.5
}

// GMST returns the Greenwich mean sidereal time at the given MJD as an
// angle, using the IAU 1982 polynomial expression (Meeus, Astronomical
// Algorithms, ch. 12). Accuracy is well below the arcminute level over
// the instrument epochs handled here, which is far tighter than the
// pointing tolerances used for run matching.
func GMST(mjd float64) Angle {
	jd := JulianDate(mjd)
	d := jd - 2451545.0
	t := d / 36525.0

	deg := 280.46061837 +
		360.98564736629*d +
		0.000387933*t*t -
		t*t*t/38710000.0

	return Angle(deg).Wrap360()
}
