package guidance

import (
	"math"

	"github.com/furrow-data/fieldline/internal/geo"
)

// stanleySteer computes the Stanley steering angle in degrees: heading
// error times its gain plus the cross-track correction measured at the
// steer axle.
func stanleySteer(cfg Config, in Input, st State, loc lineLocation, sameWay bool, travelHeading, effHeading float64) (float64, State) {
	sx := steerAxleCrossTrack(cfg, in, loc, sameWay)
	if in.Roll != RollInvalid && cfg.SideHillCompFactor != 0 {
		sx += in.Roll * cfg.SideHillCompFactor
	}
	st = updateStanleyIntegral(cfg, in, st, sx)

	hErr := geo.HeadingDelta(effHeading, travelHeading)
	steerRad := cfg.StanleyHeadingGain*hErr +
		math.Atan(cfg.StanleyDistanceGain*(-sx)/(math.Abs(in.Speed)+1))
	return steerRad*degPerRad + st.Integral*cfg.MaxSteerAngleDeg, st
}

// steerAxleCrossTrack projects the steer axle onto the track. Curves get
// their own windowed segment search seeded from the pivot's segment, since
// the axle sits up to a wheelbase away.
func steerAxleCrossTrack(cfg Config, in Input, loc lineLocation, sameWay bool) float64 {
	pts := in.Track.Points
	steer := in.SteerAxle.Point()
	if !in.Track.IsCurve() {
		a, b := pts[0].Point(), pts[1].Point()
		d := b.Sub(a)
		l2 := d.LengthSquared()
		if l2 < 1e-12 {
			return 0
		}
		t := steer.Sub(a).Dot(d) / l2
		foot := a.Add(d.Scale(t))
		h := loc.heading
		if !sameWay {
			h = geo.NormalizeHeading(h + math.Pi)
		}
		return steer.Sub(foot).Dot(geo.Right(h))
	}

	seg := nearestSegmentIn(pts, steer, loc.seg-cfg.SearchWindow, loc.seg+cfg.SearchWindow)
	a, b := pts[seg].Point(), pts[seg+1].Point()
	foot, _ := geo.ClosestPointOnSegment(steer, a, b)
	h := geo.HeadingOf(a, b)
	if !sameWay {
		h = geo.NormalizeHeading(h + math.Pi)
	}
	return steer.Sub(foot).Dot(geo.Right(h))
}

// updateStanleyIntegral accumulates trim only while the steer-axle error
// sits between the deadband and the trigger distance. Large acquisition
// offsets never wind it up; once outside the band it decays away.
func updateStanleyIntegral(cfg Config, in Input, st State, steerXte float64) State {
	if cfg.IntegralGain == 0 || in.Reverse {
		st.Integral = 0
		return st
	}
	a := math.Abs(steerXte)
	if !in.Engaged || in.Speed < integralSpeedGate ||
		a <= integralDeadband || a >= cfg.StanleyIntegralTriggerMeters {
		st.Integral *= integralDecay
		return st
	}
	st.Integral = clampIntegral(st.Integral - steerXte*cfg.IntegralGain*integralRate)
	return st
}
