// Package geo provides the plane geometry primitives shared by the guidance,
// boundary, and coverage engines. All coordinates are local east/north meters.
package geo

import "math"

// Point is a position in the local tangent plane (easting, northing) in meters.
type Point struct {
	E float64
	N float64
}

// Add returns p + q.
func (p Point) Add(q Point) Point { return Point{p.E + q.E, p.N + q.N} }

// Sub returns p - q.
func (p Point) Sub(q Point) Point { return Point{p.E - q.E, p.N - q.N} }

// Scale returns p scaled by s.
func (p Point) Scale(s float64) Point { return Point{p.E * s, p.N * s} }

// Dot returns the dot product of p and q.
func (p Point) Dot(q Point) float64 { return p.E*q.E + p.N*q.N }

// Cross returns the z component of the cross product of p and q.
// Positive when q is counter-clockwise from p.
func (p Point) Cross(q Point) float64 { return p.E*q.N - p.N*q.E }

// Length returns the euclidean norm of p.
func (p Point) Length() float64 { return math.Hypot(p.E, p.N) }

// LengthSquared returns the squared norm of p, avoiding the sqrt.
func (p Point) LengthSquared() float64 { return p.E*p.E + p.N*p.N }

// Distance returns the euclidean distance from p to q in meters.
func (p Point) Distance(q Point) float64 { return p.Sub(q).Length() }

// DistanceSquared returns the squared distance from p to q.
func (p Point) DistanceSquared(q Point) float64 { return p.Sub(q).LengthSquared() }

// Normalize returns p scaled to unit length. The zero vector maps to the
// zero vector rather than NaN.
func (p Point) Normalize() Point {
	l := p.Length()
	if l < 1e-12 {
		return Point{}
	}
	return Point{p.E / l, p.N / l}
}

// Lerp returns the point a fraction t of the way from p to q.
func (p Point) Lerp(q Point, t float64) Point {
	return Point{p.E + (q.E-p.E)*t, p.N + (q.N-p.N)*t}
}

// PointH is a position with an associated heading in radians.
// Headings are measured clockwise from north and normalized to [0, 2pi).
type PointH struct {
	E       float64
	N       float64
	Heading float64
}

// NewPointH builds a PointH with the heading normalized to [0, 2pi).
func NewPointH(e, n, heading float64) PointH {
	return PointH{E: e, N: n, Heading: NormalizeHeading(heading)}
}

// Point drops the heading. The conversion is explicit on purpose; a plain
// position and an oriented position are different things.
func (p PointH) Point() Point { return Point{p.E, p.N} }

// WithHeading returns a copy of p with the heading replaced (normalized).
func (p PointH) WithHeading(heading float64) PointH {
	p.Heading = NormalizeHeading(heading)
	return p
}
