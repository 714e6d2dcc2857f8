package geo

// ClosestPointOnSegment returns the point on segment ab nearest to p, and the
// clamped parameter t in [0, 1] locating it along the segment.
func ClosestPointOnSegment(p, a, b Point) (Point, float64) {
	d := b.Sub(a)
	l2 := d.LengthSquared()
	if l2 < 1e-12 {
		return a, 0
	}
	t := p.Sub(a).Dot(d) / l2
	if t < 0 {
		t = 0
	} else if t > 1 {
		t = 1
	}
	return a.Add(d.Scale(t)), t
}

// DistanceToSegmentSquared returns the squared distance from p to segment ab.
func DistanceToSegmentSquared(p, a, b Point) float64 {
	c, _ := ClosestPointOnSegment(p, a, b)
	return p.DistanceSquared(c)
}

// LineIntersection intersects the infinite lines through a1-a2 and b1-b2.
// The second return is false when the lines are parallel or either segment
// is degenerate.
func LineIntersection(a1, a2, b1, b2 Point) (Point, bool) {
	da := a2.Sub(a1)
	db := b2.Sub(b1)
	denom := da.Cross(db)
	if denom > -1e-12 && denom < 1e-12 {
		return Point{}, false
	}
	t := b1.Sub(a1).Cross(db) / denom
	return a1.Add(da.Scale(t)), true
}

// SegmentsIntersect reports whether the closed segments a1-a2 and b1-b2 share
// a point.
func SegmentsIntersect(a1, a2, b1, b2 Point) bool {
	d1 := b2.Sub(b1).Cross(a1.Sub(b1))
	d2 := b2.Sub(b1).Cross(a2.Sub(b1))
	d3 := a2.Sub(a1).Cross(b1.Sub(a1))
	d4 := a2.Sub(a1).Cross(b2.Sub(a1))

	if ((d1 > 0 && d2 < 0) || (d1 < 0 && d2 > 0)) &&
		((d3 > 0 && d4 < 0) || (d3 < 0 && d4 > 0)) {
		return true
	}
	return (d1 == 0 && onSegment(b1, b2, a1)) ||
		(d2 == 0 && onSegment(b1, b2, a2)) ||
		(d3 == 0 && onSegment(a1, a2, b1)) ||
		(d4 == 0 && onSegment(a1, a2, b2))
}

// onSegment assumes p is collinear with segment ab and reports whether it
// lies within the segment's bounding box.
func onSegment(a, b, p Point) bool {
	return min(a.E, b.E) <= p.E && p.E <= max(a.E, b.E) &&
		min(a.N, b.N) <= p.N && p.N <= max(a.N, b.N)
}

// Area returns the signed shoelace area of the ring in square meters.
// Counter-clockwise rings (viewed with east right, north up) are positive.
func Area(ring []PointH) float64 {
	n := len(ring)
	if n < 3 {
		return 0
	}
	sum := 0.0
	j := n - 1
	for i := 0; i < n; i++ {
		sum += (ring[j].E + ring[i].E) * (ring[j].N - ring[i].N)
		j = i
	}
	return -sum / 2
}

// Centroid returns the vertex average of the ring. Empty rings give the
// origin.
func Centroid(ring []PointH) Point {
	if len(ring) == 0 {
		return Point{}
	}
	var c Point
	for _, p := range ring {
		c.E += p.E
		c.N += p.N
	}
	return c.Scale(1 / float64(len(ring)))
}
