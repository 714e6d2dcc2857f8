package guidance

import (
	"fmt"

	"github.com/furrow-data/fieldline/internal/geo"
)

// Track is an ordered sequence of heading-bearing points the vehicle is
// guided along. Two points form an infinite AB line; three or more form a
// curve followed segment by segment. Consecutive points never coincide.
type Track struct {
	Name   string
	Points []geo.PointH
}

// minPointSpacing rejects zero-length segments when building tracks.
const minPointSpacing = 1e-6

// NewTrack builds a track, dropping consecutive duplicate points. An empty
// point list is an error; a single surviving point is allowed so recorders
// can grow a track incrementally.
func NewTrack(name string, points []geo.PointH) (*Track, error) {
	if len(points) == 0 {
		return nil, fmt.Errorf("track %q has no points", name)
	}
	kept := make([]geo.PointH, 0, len(points))
	for _, p := range points {
		if n := len(kept); n > 0 && kept[n-1].Point().Distance(p.Point()) < minPointSpacing {
			continue
		}
		kept = append(kept, p)
	}
	return &Track{Name: name, Points: kept}, nil
}

// NewABTrack builds a straight AB line from two distinct points. The stored
// headings are the A to B direction.
func NewABTrack(name string, a, b geo.Point) (*Track, error) {
	if a.Distance(b) < minPointSpacing {
		return nil, fmt.Errorf("track %q: A and B coincide at %v", name, a)
	}
	h := geo.HeadingOf(a, b)
	return &Track{Name: name, Points: []geo.PointH{
		{E: a.E, N: a.N, Heading: h},
		{E: b.E, N: b.N, Heading: h},
	}}, nil
}

// IsCurve reports whether the track is followed in curve mode.
func (t *Track) IsCurve() bool { return len(t.Points) >= 3 }

// Heading returns the overall A to B heading for AB lines, or the first
// segment heading for curves.
func (t *Track) Heading() float64 {
	if len(t.Points) < 2 {
		return 0
	}
	return geo.HeadingOf(t.Points[0].Point(), t.Points[1].Point())
}

// Length returns the polyline length in meters.
func (t *Track) Length() float64 {
	sum := 0.0
	for i := 1; i < len(t.Points); i++ {
		sum += t.Points[i-1].Point().Distance(t.Points[i].Point())
	}
	return sum
}

// Offset returns a parallel copy of the track shifted n implement widths to
// the side: positive n shifts right of each point's heading, negative left.
// Used to advance to the next pass.
func (t *Track) Offset(widthMeters float64, n int) *Track {
	return t.shift(float64(n) * widthMeters)
}

// Nudge returns a copy of the track shifted sideways by the given distance,
// positive to the right of travel. Used for small operator corrections.
func (t *Track) Nudge(meters float64) *Track {
	return t.shift(meters)
}

func (t *Track) shift(d float64) *Track {
	pts := make([]geo.PointH, len(t.Points))
	for i, p := range t.Points {
		r := geo.Right(p.Heading).Scale(d)
		pts[i] = geo.PointH{E: p.E + r.E, N: p.N + r.N, Heading: p.Heading}
	}
	name := t.Name
	if d != 0 {
		name = fmt.Sprintf("%s %+.2fm", t.Name, d)
	}
	return &Track{Name: name, Points: pts}
}
