// Package boundary implements the field boundary and headland geometry:
// winding and spacing normalization, point-in-area classification, and
// concentric polygon offsetting for headland construction.
package boundary

import (
	"errors"
	"fmt"
	"math"

	"github.com/furrow-data/fieldline/internal/geo"
)

var (
	// ErrTooFewPoints rejects rings that cannot form a polygon.
	ErrTooFewPoints = errors.New("ring needs at least 3 points")

	// ErrCollapsed reports an offset distance too large for the ring.
	ErrCollapsed = errors.New("offset distance too large: polygon collapsed")
)

// Ring is an ordered closed ring of heading-bearing points. The closing edge
// from the last point back to the first is implicit.
type Ring []geo.PointH

// Area returns the signed shoelace area in square meters. Counter-clockwise
// rings are positive.
func (r Ring) Area() float64 { return geo.Area(r) }

// Perimeter returns the total edge length including the closing edge.
func (r Ring) Perimeter() float64 {
	if len(r) < 2 {
		return 0
	}
	sum := 0.0
	for i := range r {
		j := (i + 1) % len(r)
		sum += r[i].Point().Distance(r[j].Point())
	}
	return sum
}

// Clone returns a deep copy of the ring.
func (r Ring) Clone() Ring {
	out := make(Ring, len(r))
	copy(out, r)
	return out
}

// Reversed returns a copy traversed in the opposite direction. Reversing
// travel flips every stored heading by pi.
func (r Ring) Reversed() Ring {
	n := len(r)
	out := make(Ring, n)
	for i, p := range r {
		p.Heading = geo.NormalizeHeading(p.Heading + math.Pi)
		out[n-1-i] = p
	}
	return out
}

// RecalcHeadings rewrites each point's heading from the chord between its
// neighbors, wrapping around the ring. Rings with fewer than 3 points are
// left untouched.
func (r Ring) RecalcHeadings() {
	n := len(r)
	if n < 3 {
		return
	}
	for i := range r {
		prev := r[(i-1+n)%n].Point()
		next := r[(i+1)%n].Point()
		r[i].Heading = geo.HeadingOf(prev, next)
	}
}

// Hole is an inner ring cut out of the usable area. DriveThrough holes mark
// passable obstacles (waterways, grass strips) that sections must not work
// but the vehicle may cross.
type Hole struct {
	Ring         Ring
	DriveThrough bool
}

// Boundary is one outer fence ring plus zero or more holes and, once built,
// the derived headland rings. The outer ring is wound counter-clockwise
// (positive area), holes clockwise.
type Boundary struct {
	Outer    Ring
	Holes    []Hole
	Headland []Ring
}

// NewBoundary validates and normalizes the rings into a Boundary. Winding is
// fixed up; rings with fewer than 3 points are rejected.
func NewBoundary(outer Ring, holes ...Hole) (*Boundary, error) {
	if len(outer) < 3 {
		return nil, fmt.Errorf("outer ring: %w (got %d)", ErrTooFewPoints, len(outer))
	}
	b := &Boundary{Outer: FixWinding(outer, false), Holes: make([]Hole, len(holes))}
	for i, h := range holes {
		if len(h.Ring) < 3 {
			return nil, fmt.Errorf("hole %d: %w (got %d)", i, ErrTooFewPoints, len(h.Ring))
		}
		h.Ring = FixWinding(h.Ring, true)
		b.Holes[i] = h
	}
	return b, nil
}

// IsInside reports whether pt lies in the usable area of the field.
func (b *Boundary) IsInside(pt geo.Point) bool {
	return IsInsideArea(pt, b.Outer, b.Holes)
}

// InHeadland reports whether pt lies in the strip between the outer fence
// and the innermost headland ring. Always false until a headland is built.
func (b *Boundary) InHeadland(pt geo.Point) bool {
	if len(b.Headland) == 0 || !b.IsInside(pt) {
		return false
	}
	return !pointInRing(pt, b.Headland[len(b.Headland)-1])
}

// AreaM2 returns the workable area in square meters: the outer ring minus
// every hole. Hole rings are wound clockwise, so their signed area already
// subtracts.
func (b *Boundary) AreaM2() float64 {
	a := b.Outer.Area()
	for _, h := range b.Holes {
		a += h.Ring.Area()
	}
	if a < 0 {
		return 0
	}
	return a
}
