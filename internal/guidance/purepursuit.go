package guidance

import (
	"math"

	"github.com/furrow-data/fieldline/internal/geo"
)

// Shared integral tuning. Both laws keep the accumulator as a fraction of
// the max steer angle, capped at integralCap.
const (
	integralCap       = 0.2
	errFilterKeep     = 0.9
	errFilterNew      = 0.1
	derivativeGate    = 0.1  // integrate only while the error is stable
	integralSpeedGate = 0.7  // m/s; below this the integral only decays
	integralDeadband  = 0.02 // m; inside this band there is nothing to trim
	integralRate      = 0.02
	integralBleedRate = 0.04 // faster unwinding when fighting the error
	integralDecay     = 0.95
)

// pursuitSteer computes the pure pursuit steering angle in degrees, the
// goal point, and whether the goal walk ran off the end of a curve.
func pursuitSteer(cfg Config, in Input, st State, loc lineLocation, sameWay bool, travelHeading, effHeading float64, foot geo.Point, xte float64) (float64, geo.Point, bool, State) {
	st = updatePursuitIntegral(cfg, in, st, xte)

	goalDist := in.Speed * cfg.LookAheadSeconds
	if goalDist < cfg.MinLookAheadMeters {
		goalDist = cfg.MinLookAheadMeters
	} else if goalDist > cfg.MaxLookAheadMeters {
		goalDist = cfg.MaxLookAheadMeters
	}
	if math.Abs(xte) > cfg.AcquireDistanceMeters {
		// Far off the line: hold the goal close for a sharper approach.
		goalDist = cfg.MinLookAheadMeters * cfg.AcquireFactor
	}

	var goal geo.Point
	var offEnd bool
	if in.Track.IsCurve() {
		goal, offEnd = walkCurve(in.Track.Points, loc.seg, loc.foot, goalDist, sameWay)
		// Carry any side-hill correction along: the walk ran on the raw
		// curve, the vehicle steers to the shifted one.
		goal = goal.Add(foot.Sub(loc.foot))
	} else {
		goal = foot.Add(geo.Forward(travelHeading).Scale(goalDist))
	}

	gv := goal.Sub(in.Pivot.Point())
	d2 := gv.LengthSquared()
	steer := st.Integral * cfg.MaxSteerAngleDeg
	if d2 > 1e-9 {
		lateral := gv.Dot(geo.Right(effHeading))
		steer += math.Atan(2*cfg.WheelbaseMeters*lateral/d2) * degPerRad
	}
	return steer, goal, offEnd, st
}

// updatePursuitIntegral accumulates steering trim from the low-pass
// filtered pivot error. The derivative, sampled every fifth frame, gates
// accumulation to steady-state error; when disengaged, reversing, slow, or
// unsettled the accumulator decays instead.
func updatePursuitIntegral(cfg Config, in Input, st State, xte float64) State {
	if cfg.IntegralGain == 0 || in.Reverse {
		st.Integral = 0
		return st
	}
	st.FilteredPivotErr = st.FilteredPivotErr*errFilterKeep + xte*errFilterNew
	st.FrameCount++
	if st.FrameCount > 4 {
		st.Derivative = st.FilteredPivotErr - st.PrevFilteredErr
		st.PrevFilteredErr = st.FilteredPivotErr
		st.FrameCount = 0
	}

	if !in.Engaged || in.Speed < integralSpeedGate || math.Abs(st.Derivative) > derivativeGate {
		st.Integral *= integralDecay
		return st
	}
	if (st.Integral > 0 && xte > 0) || (st.Integral < 0 && xte < 0) {
		// Trim points the wrong way; unwind it quickly.
		st.Integral -= st.FilteredPivotErr * cfg.IntegralGain * integralBleedRate
	} else if math.Abs(xte) > integralDeadband {
		st.Integral -= st.FilteredPivotErr * cfg.IntegralGain * integralRate
	}
	st.Integral = clampIntegral(st.Integral)
	return st
}

func clampIntegral(v float64) float64 {
	if v > integralCap {
		return integralCap
	}
	if v < -integralCap {
		return -integralCap
	}
	return v
}
