package astro

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Angle is a sky or instrument angle stored internally in degrees.
// Constructors exist for the unit systems the supported instruments
// record: degrees, radians and hour angle.
type Angle float64

// Degrees returns an Angle from a value in degrees.
func Degrees(v float64) Angle {
	return Angle(v)
}

// Radians returns an Angle from a value in radians.
func Radians(v float64) Angle {
	return Angle(v * 180.0 / math.Pi)
}

// HourAngle returns an Angle from a value in hours (24h = 360 deg).
func HourAngle(v float64) Angle {
	return Angle(v * 15.0)
}

// Deg returns the angle in degrees.
func (a Angle) Deg() float64 {
	return float64(a)
}

// Rad returns the angle in radians.
func (a Angle) Rad() float64 {
	return float64(a) * math.Pi / 180.0
}

// Hours returns the angle in hours.
func (a Angle) Hours() float64 {
	return float64(a) / 15.0
}

// Wrap360 normalizes the angle into [0, 360) degrees.
func (a Angle) Wrap360() Angle {
	d := math.Mod(float64(a), 360.0)
	if d < 0 {
		d += 360.0
	}
	return Angle(d)
}

// String implements fmt.Stringer.
func (a Angle) String() string {
	return fmt.Sprintf("%.6fdeg", float64(a))
}

// DegFactor returns the multiplier that converts a raw column value in
// the named unit into degrees. Supported units are "deg", "rad" and
// "hourangle"; anything else returns 1 (value passed through unchanged).
func DegFactor(unit string) float64 {
	switch unit {
	case "rad":
		return 180.0 / math.Pi
	case "hourangle":
		return 15.0
	default:
		return 1.0
	}
}

// ParseAngle parses a quantity string of the form "<value> [unit]",
// e.g. "2 deg", "0.05 rad" or "1.2 arcmin". A bare number is taken to
// be in degrees. Unknown units are an error so that configuration
// typos do not silently change the scale.
func ParseAngle(s string) (Angle, error) {
	fields := strings.Fields(s)
	if len(fields) == 0 || len(fields) > 2 {
		return 0, fmt.Errorf("invalid angle %q", s)
	}

	v, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return 0, fmt.Errorf("invalid angle %q: %w", s, err)
	}

	unit := "deg"
	if len(fields) == 2 {
		unit = fields[1]
	}

	switch unit {
	case "deg":
		return Degrees(v), nil
	case "rad":
		return Radians(v), nil
	case "hourangle":
		return HourAngle(v), nil
	case "arcmin":
		return Degrees(v / 60.0), nil
	case "arcsec":
		return Degrees(v / 3600.0), nil
	default:
		return 0, fmt.Errorf("invalid angle %q: unknown unit %q", s, unit)
	}
}
