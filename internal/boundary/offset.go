package boundary

import (
	"fmt"
	"math"

	"github.com/furrow-data/fieldline/internal/geo"
)

// Join selects how diverging corners of an offset ring are closed.
type Join int

const (
	// JoinRound bridges the corner with an arc of interpolated points
	// passing through the corner apex.
	JoinRound Join = iota
	// JoinMiter extends both edges to their intersection.
	JoinMiter
	// JoinBevel cuts the corner flat between the translated edge ends.
	JoinBevel
)

// String returns the lowercase name used in config files and logs.
func (j Join) String() string {
	switch j {
	case JoinRound:
		return "round"
	case JoinMiter:
		return "miter"
	case JoinBevel:
		return "bevel"
	}
	return fmt.Sprintf("join(%d)", int(j))
}

// ParseJoin maps a config string to a Join.
func ParseJoin(s string) (Join, error) {
	switch s {
	case "round", "":
		return JoinRound, nil
	case "miter":
		return JoinMiter, nil
	case "bevel":
		return JoinBevel, nil
	}
	return JoinRound, fmt.Errorf("unknown join style %q (want round, miter, or bevel)", s)
}

// Direction selects which side of the ring the offset is built on, relative
// to the direction of travel around it.
type Direction int

const (
	// LeftOfTravel offsets toward the left of travel. Under the standard
	// winding (counter-clockwise outer, clockwise holes) this is always
	// toward the usable area.
	LeftOfTravel Direction = iota
	// RightOfTravel offsets toward the right of travel.
	RightOfTravel
)

// OffsetConfig tunes the polygon offset primitives. Zero fields fall back
// to the defaults.
type OffsetConfig struct {
	// CollapseTolerance culls candidate points closer to the source ring
	// than CollapseTolerance * distance. Fold-backs at tight corners
	// produce such points.
	CollapseTolerance float64

	// MiterLimit bounds corner spikes as a multiple of the offset
	// distance; corners beyond it are beveled instead.
	MiterLimit float64

	// ArcStep is the angular step in radians between interpolated round
	// join points.
	ArcStep float64
}

// DefaultOffsetConfig returns the tuning used by the headland builder.
func DefaultOffsetConfig() OffsetConfig {
	return OffsetConfig{
		CollapseTolerance: 0.9,
		MiterLimit:        4.0,
		ArcStep:           0.3,
	}
}

func (c OffsetConfig) withDefaults() OffsetConfig {
	d := DefaultOffsetConfig()
	if c.CollapseTolerance <= 0 {
		c.CollapseTolerance = d.CollapseTolerance
	}
	if c.MiterLimit <= 0 {
		c.MiterLimit = d.MiterLimit
	}
	if c.ArcStep <= 0 {
		c.ArcStep = d.ArcStep
	}
	return c
}

// minOffsetArea rejects offset results that degenerated to slivers.
const minOffsetArea = 0.01 // m2

// OffsetRing builds a parallel ring at the given distance on the chosen
// side. Each edge is translated perpendicular to its direction and
// consecutive translated edges are intersected to find the new vertices;
// diverging corners are closed per the join style. Points that fold back
// within CollapseTolerance * distance of the source ring are culled. The
// result carries recomputed headings.
//
// A ring that collapses (fewer than 3 surviving points, a sliver area, or
// flipped winding) returns ErrCollapsed. The input is never modified.
func OffsetRing(ring Ring, distance float64, join Join, dir Direction, cfg OffsetConfig) (Ring, error) {
	if len(ring) < 3 {
		return nil, fmt.Errorf("offset: %w (got %d)", ErrTooFewPoints, len(ring))
	}
	if distance <= 0 {
		return nil, fmt.Errorf("offset distance must be positive, got %g", distance)
	}
	cfg = cfg.withDefaults()

	sign := 1.0
	if dir == RightOfTravel {
		sign = -1.0
	}

	src := make([]geo.Point, len(ring))
	for i, p := range ring {
		src[i] = p.Point()
	}

	// Translated edges. Zero-length source edges are skipped so duplicate
	// input points cannot produce unstable normals.
	type edge struct {
		a, b geo.Point // translated endpoints
		u    geo.Point // unit direction of the source edge
		sp   geo.Point // source start point (the corner it leaves)
	}
	edges := make([]edge, 0, len(src))
	for i := range src {
		p, q := src[i], src[(i+1)%len(src)]
		d := q.Sub(p)
		l := d.Length()
		if l < 1e-9 {
			continue
		}
		u := d.Scale(1 / l)
		off := geo.Point{E: -u.N, N: u.E}.Scale(sign * distance) // left of travel, flipped by sign
		edges = append(edges, edge{a: p.Add(off), b: q.Add(off), u: u, sp: p})
	}
	m := len(edges)
	if m < 3 {
		return nil, fmt.Errorf("offset: %w: %d usable edges", ErrCollapsed, m)
	}

	var out Ring
	push := func(p geo.Point) {
		if n := len(out); n > 0 && out[n-1].Point().DistanceSquared(p) < 1e-12 {
			return
		}
		out = append(out, geo.PointH{E: p.E, N: p.N})
	}

	for k := 0; k < m; k++ {
		prev, cur := edges[(k-1+m)%m], edges[k]
		cross := prev.u.Cross(cur.u)
		dot := prev.u.Dot(cur.u)

		// Straight-through corner: the translated endpoints coincide.
		if math.Abs(cross) < 1e-9 && dot > 0 {
			push(cur.a)
			continue
		}

		apex, haveApex := geo.LineIntersection(prev.a, prev.b, cur.a, cur.b)

		if sign*cross > 0 {
			// Converging corner: the natural vertex.
			if haveApex {
				push(apex)
			} else {
				push(cur.a)
			}
			continue
		}

		// Diverging corner: close the gap between prev.b and cur.a.
		style := join
		if !haveApex || apex.Distance(cur.sp) > cfg.MiterLimit*distance {
			style = JoinBevel
		}
		switch style {
		case JoinMiter:
			push(apex)
		case JoinBevel:
			push(prev.b)
			push(cur.a)
		case JoinRound:
			push(prev.b)
			for _, p := range arcPoints(prev.b, apex, cur.a, cfg.ArcStep) {
				push(p)
			}
			push(cur.a)
		}
	}

	// Drop the closing duplicate if the walk wrapped onto the first point.
	if n := len(out); n > 1 && out[0].Point().DistanceSquared(out[n-1].Point()) < 1e-12 {
		out = out[:n-1]
	}

	// Cull fold-backs: points pulled inside the collapse band around the
	// source ring belong to self-intersection loops.
	minDistSq := cfg.CollapseTolerance * distance
	minDistSq *= minDistSq
	culled := make(Ring, 0, len(out))
	for _, p := range out {
		if distToRingSquared(p.Point(), src) >= minDistSq {
			culled = append(culled, p)
		}
	}

	if len(culled) < 3 {
		return nil, fmt.Errorf("offset by %g: %w: %d points survive culling", distance, ErrCollapsed, len(culled))
	}
	culled.RecalcHeadings()

	area, srcArea := culled.Area(), ring.Area()
	if math.Abs(area) < minOffsetArea || area*srcArea < 0 {
		return nil, fmt.Errorf("offset by %g: %w: area %.2f m2 from source %.2f m2", distance, ErrCollapsed, area, srcArea)
	}
	return culled, nil
}

// MultiPassOffset builds up to passes concentric rings, each offset from
// the previous one. The first collapse after a successful pass stops early
// and returns the rings built so far; a collapse on the very first pass is
// an error.
func MultiPassOffset(ring Ring, distance float64, passes int, join Join, dir Direction, cfg OffsetConfig) ([]Ring, error) {
	if passes <= 0 {
		return nil, fmt.Errorf("offset passes must be positive, got %d", passes)
	}
	rings := make([]Ring, 0, passes)
	cur := ring
	for i := 0; i < passes; i++ {
		next, err := OffsetRing(cur, distance, join, dir, cfg)
		if err != nil {
			if i == 0 {
				return nil, fmt.Errorf("pass 1 of %d: %w", passes, err)
			}
			return rings, nil
		}
		rings = append(rings, next)
		cur = next
	}
	return rings, nil
}

// BuildHeadland derives the concentric headland rings by offsetting the
// outer fence toward the field interior and stores them on the boundary.
func BuildHeadland(b *Boundary, distance float64, passes int, join Join, cfg OffsetConfig) error {
	rings, err := MultiPassOffset(b.Outer, distance, passes, join, LeftOfTravel, cfg)
	if err != nil {
		return fmt.Errorf("building headland: %w", err)
	}
	b.Headland = rings
	return nil
}

// arcPoints interpolates a circular arc through a, mid, b in that order and
// returns the interior points including mid, excluding the two ends. When
// the three points are collinear only mid is returned.
func arcPoints(a, mid, b geo.Point, step float64) []geo.Point {
	c, ok := circumcenter(a, mid, b)
	if !ok {
		return []geo.Point{mid}
	}
	r := c.Distance(a)
	a0 := math.Atan2(a.N-c.N, a.E-c.E)
	a1 := math.Atan2(mid.N-c.N, mid.E-c.E)
	a2 := math.Atan2(b.N-c.N, b.E-c.E)

	var pts []geo.Point
	sweep := func(from, to float64) {
		d := geo.HeadingDelta(from, to)
		n := int(math.Ceil(math.Abs(d) / step))
		for s := 1; s < n; s++ {
			ang := from + d*float64(s)/float64(n)
			pts = append(pts, geo.Point{E: c.E + r*math.Cos(ang), N: c.N + r*math.Sin(ang)})
		}
	}
	sweep(a0, a1)
	pts = append(pts, mid)
	sweep(a1, a2)
	return pts
}

// circumcenter returns the center of the circle through three points, or
// false when they are (near) collinear.
func circumcenter(a, b, c geo.Point) (geo.Point, bool) {
	d := 2 * (a.E*(b.N-c.N) + b.E*(c.N-a.N) + c.E*(a.N-b.N))
	if math.Abs(d) < 1e-9 {
		return geo.Point{}, false
	}
	a2, b2, c2 := a.LengthSquared(), b.LengthSquared(), c.LengthSquared()
	return geo.Point{
		E: (a2*(b.N-c.N) + b2*(c.N-a.N) + c2*(a.N-b.N)) / d,
		N: (a2*(c.E-b.E) + b2*(a.E-c.E) + c2*(b.E-a.E)) / d,
	}, true
}

// distToRingSquared returns the squared distance from p to the nearest
// segment of the ring.
func distToRingSquared(p geo.Point, ring []geo.Point) float64 {
	best := math.MaxFloat64
	for i := range ring {
		j := (i + 1) % len(ring)
		if d := geo.DistanceToSegmentSquared(p, ring[i], ring[j]); d < best {
			best = d
		}
	}
	return best
}
