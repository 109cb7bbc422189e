// Package astro computes the sun's position for day/night detection.
//
// The formulas are the low-precision solar ephemeris used by common
// sunrise calculators, accurate to a fraction of a degree.
package astro

import (
	"math"
	"time"
)

const (
	rad      = math.Pi / 180
	julian70 = 2440588.0
	julian00 = 2451545.0
	obliq    = rad * 23.4397
)

// Position returns the sun's altitude above the horizon and its azimuth,
// both in degrees, for the given instant and observer location.
func Position(t time.Time, lat, lon float64) (altitude, azimuth float64) {
	d := daysSinceJ2000(t)
	lw := rad * -lon
	phi := rad * lat

	m := rad * (357.5291 + 0.98560028*d)
	c := rad * (1.9148*math.Sin(m) + 0.02*math.Sin(2*m) + 0.0003*math.Sin(3*m))
	l := m + c + rad*102.9372 + math.Pi

	dec := math.Asin(math.Sin(obliq) * math.Sin(l))
	ra := math.Atan2(math.Sin(l)*math.Cos(obliq), math.Cos(l))

	h := rad*(280.16+360.9856235*d) - lw - ra

	alt := math.Asin(math.Sin(phi)*math.Sin(dec) + math.Cos(phi)*math.Cos(dec)*math.Cos(h))
	az := math.Atan2(math.Sin(h), math.Cos(h)*math.Sin(phi)-math.Tan(dec)*math.Cos(phi))

	return alt / rad, math.Mod(az/rad+180, 360)
}

// Altitude returns only the sun's altitude in degrees.
func Altitude(t time.Time, lat, lon float64) float64 {
	alt, _ := Position(t, lat, lon)
	return alt
}

func daysSinceJ2000(t time.Time) float64 {
	ms := float64(t.UnixMilli())
	return ms/86400000 - 0.5 + julian70 - julian00
}
