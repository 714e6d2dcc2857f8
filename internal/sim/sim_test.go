package sim

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/furrow-data/fieldline/internal/agent"
	"github.com/furrow-data/fieldline/internal/coverage"
	"github.com/furrow-data/fieldline/internal/field"
	"github.com/furrow-data/fieldline/internal/geo"
	"github.com/furrow-data/fieldline/internal/guidance"
	"github.com/furrow-data/fieldline/internal/timeutil"
)

func TestStepDrivesStraight(t *testing.T) {
	v := New(DefaultConfig(), nil)
	for i := 0; i < 10; i++ {
		v.Step(0.1)
	}
	p := v.Pose()
	if math.Abs(p.E) > 1e-9 || math.Abs(p.N-2) > 1e-9 || p.Heading != 0 {
		t.Errorf("pose after 1 s straight = %+v, want (0, 2) heading 0", p)
	}
}

func TestStepTurnsWithSteer(t *testing.T) {
	v := New(DefaultConfig(), nil)
	v.Steer(guidance.Output{SteerAngleDeg: 10})
	v.Step(1.0)

	// One second at 2 m/s with 10 degrees of steer and a 2.8 m wheelbase.
	want := 2 * math.Tan(10*math.Pi/180) / 2.8
	if p := v.Pose(); math.Abs(p.Heading-want) > 1e-9 {
		t.Errorf("heading = %f, want %f (right turn)", p.Heading, want)
	}
}

func TestStepReverseBacksUp(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Reverse = true
	v := New(cfg, nil)
	s := v.Step(1.0)
	if math.Abs(s.Northing+2) > 1e-9 {
		t.Errorf("northing = %f, want -2 after 1 s in reverse", s.Northing)
	}
	if !s.Reverse {
		t.Error("sample not flagged reverse")
	}
}

func TestSteerSlewLimit(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxSteerRateDegPerSec = 5
	v := New(cfg, nil)
	v.Steer(guidance.Output{SteerAngleDeg: 35})
	v.Step(0.1)

	// The actuator has only reached half a degree; an instant command
	// would have yawed forty times more.
	if p := v.Pose(); p.Heading > 0.001 {
		t.Errorf("heading = %f after one slew-limited step, want < 0.001", p.Heading)
	}
}

func closedLoop(t *testing.T, start geo.PointH, reverse bool, ticks int) (*Vehicle, guidance.Output) {
	t.Helper()
	f := field.New("sim", coverage.DefaultConfig())
	tr, err := guidance.NewABTrack("ab", geo.Point{E: 0, N: 0}, geo.Point{E: 0, N: 200})
	if err != nil {
		t.Fatalf("NewABTrack: %v", err)
	}
	f.AddTrack(tr)

	vcfg := DefaultConfig()
	vcfg.Start = start
	vcfg.Reverse = reverse
	v := New(vcfg, nil)

	a := agent.New(agent.DefaultConfig(), f, v, v, nil, nil)
	if err := a.SetTrack("ab"); err != nil {
		t.Fatalf("SetTrack: %v", err)
	}
	if err := a.Engage(true); err != nil {
		t.Fatalf("Engage: %v", err)
	}

	var out guidance.Output
	for i := 0; i < ticks; i++ {
		out = a.Tick(v.Step(0.1))
		if !out.Active {
			t.Fatalf("guidance went inactive at tick %d", i)
		}
		if math.Abs(out.SteerAngleDeg) > 35+1e-9 {
			t.Fatalf("steer %f exceeds the 35 degree clamp at tick %d", out.SteerAngleDeg, i)
		}
	}
	return v, out
}

// The full loop: simulator poses in, guidance steer out, applied back to
// the simulator. From a 2 m offset the vehicle settles onto the line.
func TestClosedLoopConvergesToLine(t *testing.T) {
	v, out := closedLoop(t, geo.NewPointH(2, 0, 0), false, 600)

	if math.Abs(out.CrossTrackErr) > 0.05 {
		t.Errorf("cross-track error after 60 s = %f, want < 0.05", out.CrossTrackErr)
	}
	if p := v.Pose(); p.N < 100 {
		t.Errorf("vehicle only reached N=%f, want past 100", p.N)
	}
}

// Backing down the line from a small offset converges too; the steer sign
// convention holds end to end in reverse.
func TestClosedLoopConvergesInReverse(t *testing.T) {
	v, out := closedLoop(t, geo.NewPointH(0.5, 100, 0), true, 600)

	if math.Abs(out.CrossTrackErr) > 0.1 {
		t.Errorf("cross-track error after 60 s reversing = %f, want < 0.1", out.CrossTrackErr)
	}
	if p := v.Pose(); p.N > 50 {
		t.Errorf("vehicle still at N=%f, want well below the start", p.N)
	}
}

func TestPosesTicksOnClock(t *testing.T) {
	clock := timeutil.NewMockClock(time.Unix(1700000000, 0))
	v := New(DefaultConfig(), clock)

	ctx, cancel := context.WithCancel(context.Background())
	ch := v.Poses(ctx)

	clock.Advance(100 * time.Millisecond)
	s := <-ch
	if math.Abs(s.Northing-0.2) > 1e-9 {
		t.Errorf("first sample northing = %f, want 0.2", s.Northing)
	}
	if s.Speed != 2 {
		t.Errorf("sample speed = %f, want 2", s.Speed)
	}

	cancel()
	for range ch {
	}
}
