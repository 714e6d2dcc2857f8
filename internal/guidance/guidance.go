// Package guidance implements the track steering engine: pure pursuit and
// Stanley control laws over AB lines and recorded curves. Compute is a pure
// function of (config, input, previous state); all persistent state lives in
// the State value owned by the caller.
package guidance

import (
	"math"

	"github.com/furrow-data/fieldline/internal/geo"
)

const degPerRad = 180 / math.Pi

// State carries the per-track guidance memory between ticks. The zero value
// is a valid starting state for a freshly acquired track.
type State struct {
	// Integral is the windup-limited steering trim, as a fraction of the
	// max steer angle.
	Integral float64

	// FilteredPivotErr is the low-pass filtered pivot cross-track error.
	FilteredPivotErr float64

	// PrevFilteredErr is the filtered error at the last derivative sample.
	PrevFilteredErr float64

	// Derivative is the most recent error derivative sample.
	Derivative float64

	// FrameCount gates the derivative to every fifth frame.
	FrameCount int

	// Cursor is the curve segment index from the previous tick, the start
	// of the windowed nearest-segment search.
	Cursor int
}

// Input is everything the engine needs for one tick.
type Input struct {
	Track     *Track
	Pivot     geo.PointH // rear axle / pivot pose
	SteerAxle geo.PointH // front axle pose
	Speed     float64    // meters per second, magnitude
	Reverse   bool
	Engaged   bool // auto-steer switch; when off, no steer command is emitted
	Roll      float64
	// GlobalSearch forces a full scan for the nearest curve segment.
	// Set it when the track was just acquired or after a turn.
	GlobalSearch bool
}

// Output is the guidance result for one tick. When Active is false the
// track could not be followed and every other field is zero.
type Output struct {
	Active        bool
	SteerAngleDeg float64 // positive steers right; zero when not engaged
	CrossTrackErr float64 // meters, positive right of the line
	HeadingErr    float64 // radians, signed
	GoalPoint     geo.Point
	ClosestPoint  geo.Point
	LineSide      int // +1 right of line, -1 left, 0 on it
	EndOfCurve    bool
}

// WireAngle returns the steering angle in the hundredths-of-a-degree wire
// encoding used by steer controllers.
func (o Output) WireAngle() int16 {
	return int16(math.Round(o.SteerAngleDeg * 100))
}

// lineLocation is the projection of the pivot onto the track.
type lineLocation struct {
	seg     int     // segment index (always 0 for AB lines)
	t       float64 // clamped parameter along the segment (curves only)
	foot    geo.Point
	heading float64 // tangent heading in the track's point order
}

// Compute runs one guidance tick. It never panics and never returns NaN or
// Inf: degenerate geometry yields "no correction" instead. Tracks with
// fewer than 2 points produce an inactive output.
func Compute(cfg Config, in Input, st State) (Output, State) {
	if in.Track == nil || len(in.Track.Points) < 2 {
		return Output{}, st
	}
	pts := in.Track.Points
	pivot := in.Pivot.Point()

	effHeading := in.Pivot.Heading
	if in.Reverse {
		effHeading = geo.NormalizeHeading(effHeading + math.Pi)
	}

	var loc lineLocation
	if in.Track.IsCurve() {
		loc, st = locateOnCurve(cfg, pts, pivot, in.GlobalSearch, st)
	} else {
		loc = locateOnAB(pts, pivot)
	}
	if math.IsNaN(loc.heading) {
		return Output{}, st
	}

	// Travel direction: follow the track the way the vehicle points.
	sameWay := math.Abs(geo.HeadingDelta(effHeading, loc.heading)) <= math.Pi/2
	travelHeading := loc.heading
	if !sameWay {
		travelHeading = geo.NormalizeHeading(loc.heading + math.Pi)
	}
	right := geo.Right(travelHeading)

	xte := pivot.Sub(loc.foot).Dot(right)
	if in.Roll != RollInvalid && cfg.SideHillCompFactor != 0 {
		// Antenna lean on a side slope reads as lateral offset; trim it
		// out of the error before either law sees it.
		xte += in.Roll * cfg.SideHillCompFactor
	}
	// Re-anchor the foot so both laws steer to the corrected line.
	foot := pivot.Sub(right.Scale(xte))

	out := Output{
		Active:        true,
		CrossTrackErr: xte,
		HeadingErr:    geo.HeadingDelta(effHeading, travelHeading),
		ClosestPoint:  foot,
		GoalPoint:     foot,
	}
	switch {
	case xte > 0.001:
		out.LineSide = 1
	case xte < -0.001:
		out.LineSide = -1
	}
	if in.Track.IsCurve() {
		last := len(pts) - 2
		if (sameWay && loc.seg == last && loc.t >= 1) ||
			(!sameWay && loc.seg == 0 && loc.t <= 0) {
			out.EndOfCurve = true
		}
	}

	var steer float64
	if cfg.Law == Stanley {
		steer, st = stanleySteer(cfg, in, st, loc, sameWay, travelHeading, effHeading)
	} else {
		var goal geo.Point
		var offEnd bool
		steer, goal, offEnd, st = pursuitSteer(cfg, in, st, loc, sameWay, travelHeading, effHeading, foot, xte)
		out.GoalPoint = goal
		out.EndOfCurve = out.EndOfCurve || offEnd
	}

	if in.Reverse {
		steer = -steer
	}
	if steer > cfg.MaxSteerAngleDeg {
		steer = cfg.MaxSteerAngleDeg
	} else if steer < -cfg.MaxSteerAngleDeg {
		steer = -cfg.MaxSteerAngleDeg
	}
	if in.Engaged {
		out.SteerAngleDeg = steer
	}
	return out, st
}

// locateOnAB projects the pivot onto the infinite line through the two
// track points.
func locateOnAB(pts []geo.PointH, pivot geo.Point) lineLocation {
	a, b := pts[0].Point(), pts[1].Point()
	d := b.Sub(a)
	l2 := d.LengthSquared()
	if l2 < 1e-12 {
		return lineLocation{heading: math.NaN()}
	}
	t := pivot.Sub(a).Dot(d) / l2
	return lineLocation{
		foot:    a.Add(d.Scale(t)),
		heading: geo.HeadingOf(a, b),
	}
}

// locateOnCurve finds the nearest segment to the pivot, scanning the whole
// curve or a window around the previous tick's cursor, and interpolates the
// perpendicular foot on it. The updated cursor is stored in the state.
func locateOnCurve(cfg Config, pts []geo.PointH, pivot geo.Point, global bool, st State) (lineLocation, State) {
	lo, hi := 0, len(pts)-2
	if !global {
		lo = st.Cursor - cfg.SearchWindow
		hi = st.Cursor + cfg.SearchWindow
	}
	seg := nearestSegmentIn(pts, pivot, lo, hi)
	a, b := pts[seg].Point(), pts[seg+1].Point()
	foot, t := geo.ClosestPointOnSegment(pivot, a, b)
	st.Cursor = seg
	return lineLocation{
		seg:     seg,
		t:       t,
		foot:    foot,
		heading: geo.HeadingOf(a, b),
	}, st
}

// nearestSegmentIn scans segments [lo, hi], clamped to the curve, and
// returns the index nearest to p. The comparison is strict so exact ties
// resolve to the lower index and the global and windowed searches always
// agree.
func nearestSegmentIn(pts []geo.PointH, p geo.Point, lo, hi int) int {
	last := len(pts) - 2
	if lo < 0 {
		lo = 0
	}
	if hi > last {
		hi = last
	}
	best, bestD := lo, math.MaxFloat64
	for i := lo; i <= hi; i++ {
		d := geo.DistanceToSegmentSquared(p, pts[i].Point(), pts[i+1].Point())
		if d < bestD {
			best, bestD = i, d
		}
	}
	return best
}

// walkCurve advances dist meters along the curve from the foot on segment
// seg, forward through rising indexes or backward, and returns the reached
// point plus whether the walk ran off the curve's end.
func walkCurve(pts []geo.PointH, seg int, foot geo.Point, dist float64, forward bool) (geo.Point, bool) {
	cur := foot
	if forward {
		for next := seg + 1; next < len(pts); next++ {
			step := cur.Distance(pts[next].Point())
			if step > 1e-9 && step >= dist {
				return cur.Lerp(pts[next].Point(), dist/step), false
			}
			dist -= step
			cur = pts[next].Point()
		}
		return pts[len(pts)-1].Point(), true
	}
	for next := seg; next >= 0; next-- {
		step := cur.Distance(pts[next].Point())
		if step > 1e-9 && step >= dist {
			return cur.Lerp(pts[next].Point(), dist/step), false
		}
		dist -= step
		cur = pts[next].Point()
	}
	return pts[0].Point(), true
}
