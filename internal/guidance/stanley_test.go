package guidance

import (
	"math"
	"testing"
)

func stanleyConfig() Config {
	cfg := DefaultConfig()
	cfg.Law = Stanley
	return cfg
}

func TestStanleyOnLineZeroSteer(t *testing.T) {
	out, _ := Compute(stanleyConfig(), inputAt(northLine(t), 0, 50, 0), State{})
	if !out.Active {
		t.Fatal("output inactive")
	}
	if math.Abs(out.SteerAngleDeg) > 1e-9 {
		t.Errorf("on-line steer = %v, want 0", out.SteerAngleDeg)
	}
}

func TestStanleyDistanceTerm(t *testing.T) {
	cfg := stanleyConfig()
	tr := northLine(t)

	// Aligned with the line, offset sideways: the whole command is the
	// cross-track term, atan(gain * xte / (speed + 1)).
	want := math.Atan(cfg.StanleyDistanceGain*1/(1+1)) * degPerRad
	out, _ := Compute(cfg, inputAt(tr, 1, 50, 0), State{})
	if math.Abs(out.SteerAngleDeg+want) > 1e-9 {
		t.Errorf("east of line: steer = %v, want %v", out.SteerAngleDeg, -want)
	}
	out, _ = Compute(cfg, inputAt(tr, -1, 50, 0), State{})
	if math.Abs(out.SteerAngleDeg-want) > 1e-9 {
		t.Errorf("west of line: steer = %v, want %v", out.SteerAngleDeg, want)
	}
}

func TestStanleyHeadingTerm(t *testing.T) {
	cfg := stanleyConfig()
	tr := northLine(t)

	// Nose cocked 10 degrees east with the steer axle dead on the line:
	// the cross-track term vanishes and the command is the heading error
	// times its gain.
	h := 10 * math.Pi / 180
	out, _ := Compute(cfg, inputAt(tr, -2.8*math.Sin(h), 50, h), State{})
	if math.Abs(out.SteerAngleDeg+10) > 1e-9 {
		t.Errorf("steer = %v, want -10", out.SteerAngleDeg)
	}
}

func TestStanleySpeedSoftensCorrection(t *testing.T) {
	cfg := stanleyConfig()
	tr := northLine(t)

	slow := inputAt(tr, 1, 50, 0)
	slow.Speed = 2
	fast := inputAt(tr, 1, 50, 0)
	fast.Speed = 8

	so, _ := Compute(cfg, slow, State{})
	fo, _ := Compute(cfg, fast, State{})
	if math.Abs(fo.SteerAngleDeg) >= math.Abs(so.SteerAngleDeg) {
		t.Errorf("faster speed should soften steering: slow %v, fast %v", so.SteerAngleDeg, fo.SteerAngleDeg)
	}
}

func TestStanleyIntegralTriggerBand(t *testing.T) {
	cfg := stanleyConfig()
	cfg.IntegralGain = 1
	tr := northLine(t)

	// Inside the trigger band the accumulator winds up against the error.
	in := inputAt(tr, 0.5, 50, 0)
	var st State
	for i := 0; i < 30; i++ {
		_, st = Compute(cfg, in, st)
	}
	if st.Integral >= 0 {
		t.Errorf("integral = %v after persistent in-band offset, want negative", st.Integral)
	}
	if math.Abs(st.Integral) > integralCap+1e-12 {
		t.Errorf("integral %v exceeded cap %v", st.Integral, integralCap)
	}

	// A large acquisition offset never winds it up from rest.
	far := inputAt(tr, 5, 50, 0)
	var fresh State
	for i := 0; i < 30; i++ {
		_, fresh = Compute(cfg, far, fresh)
	}
	if fresh.Integral != 0 {
		t.Errorf("integral = %v at offset beyond trigger, want 0", fresh.Integral)
	}

	// Leaving the band decays whatever accumulated.
	wound := math.Abs(st.Integral)
	for i := 0; i < 10; i++ {
		_, st = Compute(cfg, far, st)
	}
	if math.Abs(st.Integral) >= wound {
		t.Errorf("integral did not decay outside the band: %v -> %v", wound, st.Integral)
	}
}

func TestStanleyReverse(t *testing.T) {
	cfg := stanleyConfig()
	tr := northLine(t)

	fwd, _ := Compute(cfg, inputAt(tr, 1, 50, 0), State{})
	in := inputAt(tr, 1, 50, 0)
	in.Reverse = true
	rev, _ := Compute(cfg, in, State{})

	// Backing up east of the line still pulls toward it, with the same
	// magnitude as the forward case.
	if rev.SteerAngleDeg >= 0 {
		t.Errorf("reversing east of line: steer = %v, want negative", rev.SteerAngleDeg)
	}
	if math.Abs(math.Abs(fwd.SteerAngleDeg)-math.Abs(rev.SteerAngleDeg)) > 1e-9 {
		t.Errorf("reverse magnitude %v != forward %v", rev.SteerAngleDeg, fwd.SteerAngleDeg)
	}
}

func TestStanleyOnCurve(t *testing.T) {
	cfg := stanleyConfig()
	tr := arcTrack(t)

	// Tracking the arc cleanly: the command stays small and finite, and
	// the steer axle's own segment search does not jump the window.
	p := tr.Points[10]
	in := inputAt(tr, p.E, p.N, p.Heading)
	in.GlobalSearch = true
	out, st := Compute(cfg, in, State{})
	if !out.Active {
		t.Fatal("curve output inactive")
	}
	if math.IsNaN(out.SteerAngleDeg) || math.Abs(out.SteerAngleDeg) > 5 {
		t.Errorf("on-curve steer = %v, want small", out.SteerAngleDeg)
	}
	if st.Cursor != 9 && st.Cursor != 10 {
		t.Errorf("cursor = %d, want the vehicle's segment", st.Cursor)
	}
}
