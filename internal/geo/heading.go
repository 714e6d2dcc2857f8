package geo

import "math"

// Headings follow the navigation convention: 0 is north (+N), pi/2 is east
// (+E), increasing clockwise. The forward unit vector for heading h is
// (sin h, cos h) in (easting, northing).

// NormalizeHeading wraps h into [0, 2pi).
func NormalizeHeading(h float64) float64 {
	h = math.Mod(h, 2*math.Pi)
	if h < 0 {
		h += 2 * math.Pi
	}
	return h
}

// HeadingDelta returns the smallest signed rotation taking heading from to
// heading to, in (-pi, pi]. Positive means clockwise.
func HeadingDelta(from, to float64) float64 {
	d := NormalizeHeading(to - from)
	if d > math.Pi {
		d -= 2 * math.Pi
	}
	return d
}

// HeadingOf returns the heading of the direction from a to b.
// Coincident points give heading 0.
func HeadingOf(a, b Point) float64 {
	d := b.Sub(a)
	if d.E == 0 && d.N == 0 {
		return 0
	}
	return NormalizeHeading(math.Atan2(d.E, d.N))
}

// Forward returns the unit vector pointing along heading h.
func Forward(h float64) Point {
	return Point{E: math.Sin(h), N: math.Cos(h)}
}

// Right returns the unit vector pointing 90 degrees clockwise of heading h,
// i.e. to the right of travel.
func Right(h float64) Point {
	return Point{E: math.Cos(h), N: -math.Sin(h)}
}
