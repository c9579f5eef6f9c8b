package astro

import "math"

// EarthLocation is an observatory site on the geoid. Longitude is
// positive towards the East, height is meters above sea level.
type EarthLocation struct {
	Lat    Angle
	Lon    Angle
	Height float64
}

// Roque is the Roque de los Muchachos observatory on La Palma, the site
// shared by the MAGIC and LST-1 telescopes. Used as the default when no
// site is configured.
var Roque = EarthLocation{
	Lat:    Degrees(28.761758),
	Lon:    Degrees(-17.890659),
	Height: 2200.0,
}

// Equatorial is a sky position in the equatorial frame (ICRS-aligned
// right ascension and declination).
type Equatorial struct {
	RA  Angle `json:"ra"`
	Dec Angle `json:"dec"`
}

// Horizontal is a direction in the local horizontal frame. Azimuth is
// measured from North, increasing towards East; altitude is the
// complement of zenith distance.
type Horizontal struct {
	Az  Angle `json:"az"`
	Alt Angle `json:"alt"`
}

// LMST returns the local mean sidereal time at the location for the
// given MJD.
func (loc EarthLocation) LMST(mjd float64) Angle {
	return (GMST(mjd) + loc.Lon).Wrap360()
}

// ToEquatorial transforms a horizontal direction observed at the given
// MJD into equatorial coordinates.
func (loc EarthLocation) ToEquatorial(h Horizontal, mjd float64) Equatorial {
	sinAlt := math.Sin(h.Alt.Rad())
	cosAlt := math.Cos(h.Alt.Rad())
	sinAz := math.Sin(h.Az.Rad())
	cosAz := math.Cos(h.Az.Rad())
	sinLat := math.Sin(loc.Lat.Rad())
	cosLat := math.Cos(loc.Lat.Rad())

	sinDec := sinLat*sinAlt + cosLat*cosAlt*cosAz
	dec := Radians(math.Asin(clamp1(sinDec)))

	// Hour angle, measured westward from the meridian.
	ha := math.Atan2(
		-sinAz*cosAlt,
		sinAlt*cosLat-cosAlt*cosAz*sinLat,
	)

	ra := (loc.LMST(mjd) - Radians(ha)).Wrap360()

	return Equatorial{RA: ra, Dec: dec}
}

// ToHorizontal transforms an equatorial position into the horizontal
// direction seen from the location at the given MJD.
func (loc EarthLocation) ToHorizontal(eq Equatorial, mjd float64) Horizontal {
	ha := (loc.LMST(mjd) - eq.RA).Wrap360()

	sinHA := math.Sin(ha.Rad())
	cosHA := math.Cos(ha.Rad())
	sinDec := math.Sin(eq.Dec.Rad())
	cosDec := math.Cos(eq.Dec.Rad())
	sinLat := math.Sin(loc.Lat.Rad())
	cosLat := math.Cos(loc.Lat.Rad())

	sinAlt := sinLat*sinDec + cosLat*cosDec*cosHA
	alt := Radians(math.Asin(clamp1(sinAlt)))

	az := math.Atan2(
		-cosDec*sinHA,
		sinDec*cosLat-cosDec*cosHA*sinLat,
	)

	return Horizontal{Az: Radians(az).Wrap360(), Alt: alt}
}

// Separation returns the great-circle angular distance to another
// equatorial position, computed with the haversine formulation which
// stays numerically stable at small separations.
func (eq Equatorial) Separation(other Equatorial) Angle {
	dRA := (other.RA - eq.RA).Rad()
	dDec := (other.Dec - eq.Dec).Rad()

	sinDec := math.Sin(dDec / 2)
	sinRA := math.Sin(dRA / 2)

	h := sinDec*sinDec + math.Cos(eq.Dec.Rad())*math.Cos(other.Dec.Rad())*sinRA*sinRA
	if h > 1 {
		h = 1
	}

	return Radians(2 * math.Asin(math.Sqrt(h)))
}

// clamp1 keeps rounding noise from pushing a sine value outside the
// domain of Asin.
func clamp1(v float64) float64 {
	if v > 1 {
		return 1
	}
	if v < -1 {
		return -1
	}
	return v
}
