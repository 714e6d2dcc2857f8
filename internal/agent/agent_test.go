package agent

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/furrow-data/fieldline/internal/coverage"
	"github.com/furrow-data/fieldline/internal/field"
	"github.com/furrow-data/fieldline/internal/geo"
	"github.com/furrow-data/fieldline/internal/guidance"
	"github.com/furrow-data/fieldline/internal/timeutil"
)

type captureSink struct {
	outs []guidance.Output
}

func (c *captureSink) Steer(o guidance.Output) { c.outs = append(c.outs, o) }

type capturedEvent struct {
	at     time.Time
	kind   string
	detail string
}

type captureRecorder struct {
	ticks  []TickSample
	events []capturedEvent
}

func (r *captureRecorder) RecordTick(s TickSample) { r.ticks = append(r.ticks, s) }

func (r *captureRecorder) RecordEvent(at time.Time, kind, detail string) {
	r.events = append(r.events, capturedEvent{at, kind, detail})
}

type slicePoses []PoseSample

func (s slicePoses) Poses(ctx context.Context) <-chan PoseSample {
	ch := make(chan PoseSample)
	go func() {
		defer close(ch)
		for _, p := range s {
			select {
			case ch <- p:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch
}

func sampleAt(e, n, heading, speed float64) PoseSample {
	return PoseSample{
		Easting:  e,
		Northing: n,
		Heading:  heading,
		Speed:    speed,
		Roll:     guidance.RollInvalid,
		Time:     time.Unix(1700000000, 0),
	}
}

func testField(t *testing.T) *field.Field {
	t.Helper()
	f := field.New("test", coverage.DefaultConfig())
	tr, err := guidance.NewABTrack("ab", geo.Point{E: 0, N: 0}, geo.Point{E: 0, N: 100})
	if err != nil {
		t.Fatalf("NewABTrack: %v", err)
	}
	f.AddTrack(tr)
	return f
}

func TestAgentTickGuidesOnTrack(t *testing.T) {
	sink := &captureSink{}
	rec := &captureRecorder{}
	clock := timeutil.NewMockClock(time.Unix(1700000000, 0))
	a := New(DefaultConfig(), testField(t), nil, sink, rec, clock)

	if err := a.SetTrack("ab"); err != nil {
		t.Fatalf("SetTrack: %v", err)
	}
	if err := a.Engage(true); err != nil {
		t.Fatalf("Engage: %v", err)
	}

	out := a.Tick(sampleAt(1, 10, 0, 2))
	if !out.Active {
		t.Fatal("guidance inactive on a valid track")
	}
	if math.Abs(out.CrossTrackErr-1) > 1e-9 {
		t.Errorf("cross-track error = %f, want 1", out.CrossTrackErr)
	}
	if out.SteerAngleDeg >= 0 {
		t.Errorf("steer = %f, want negative (left toward line)", out.SteerAngleDeg)
	}

	if len(sink.outs) != 1 || sink.outs[0] != out {
		t.Errorf("steer sink got %d outputs, want the tick output", len(sink.outs))
	}
	if len(rec.ticks) != 1 {
		t.Fatalf("recorder got %d ticks, want 1", len(rec.ticks))
	}
	tick := rec.ticks[0]
	if !tick.Engaged || tick.TrackName != "ab" || tick.CrossTrackErr != out.CrossTrackErr {
		t.Errorf("tick record = %+v, want engaged on track ab", tick)
	}

	if len(rec.events) < 2 || rec.events[0].kind != EventTrack || rec.events[1].kind != EventEngage {
		t.Fatalf("events = %+v, want track_selected then engage first", rec.events)
	}

	st := a.Status()
	if !st.Engaged || st.TrackName != "ab" || !st.Guidance.Active {
		t.Errorf("status = %+v, want engaged on ab", st)
	}
	if len(st.SectionsOn) != DefaultToolConfig().Sections {
		t.Errorf("status has %d sections, want %d", len(st.SectionsOn), DefaultToolConfig().Sections)
	}
}

func TestAgentEngageRequiresTrack(t *testing.T) {
	a := New(DefaultConfig(), testField(t), nil, nil, nil, nil)
	if err := a.Engage(true); err == nil {
		t.Fatal("Engage without track succeeded, want error")
	}
	if err := a.SetTrack("ab"); err != nil {
		t.Fatalf("SetTrack: %v", err)
	}
	if err := a.Engage(true); err != nil {
		t.Fatalf("Engage: %v", err)
	}
	if !a.Engaged() {
		t.Error("Engaged() = false after engage")
	}
}

func TestAgentSetTrackUnknown(t *testing.T) {
	a := New(DefaultConfig(), testField(t), nil, nil, nil, nil)
	if err := a.SetTrack("nope"); err == nil {
		t.Fatal("SetTrack of unknown track succeeded, want error")
	}
}

func TestAgentRunDrainsSource(t *testing.T) {
	rec := &captureRecorder{}
	src := slicePoses{
		sampleAt(0, 0, 0, 2),
		sampleAt(0, 2, 0, 2),
		sampleAt(0, 4, 0, 2),
	}
	a := New(DefaultConfig(), testField(t), src, nil, rec, nil)

	if err := a.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(rec.ticks) != 3 {
		t.Errorf("recorder got %d ticks, want 3", len(rec.ticks))
	}
}

type blockedPoses struct{}

func (blockedPoses) Poses(ctx context.Context) <-chan PoseSample {
	return make(chan PoseSample)
}

func TestAgentRunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	a := New(DefaultConfig(), testField(t), blockedPoses{}, nil, nil, nil)
	if err := a.Run(ctx); err != context.Canceled {
		t.Errorf("Run = %v, want context.Canceled", err)
	}
}

// Running off the end of a curve drops auto-steer.
func TestAgentAutoDisengageAtEndOfCurve(t *testing.T) {
	f := field.New("curve", coverage.DefaultConfig())
	tr, err := guidance.NewTrack("headland curve", []geo.PointH{
		geo.NewPointH(0, 0, 0),
		geo.NewPointH(0, 10, 0),
		geo.NewPointH(0, 20, 0),
	})
	if err != nil {
		t.Fatalf("NewTrack: %v", err)
	}
	f.AddTrack(tr)

	rec := &captureRecorder{}
	a := New(DefaultConfig(), f, nil, nil, rec, nil)
	if err := a.SetTrack("headland curve"); err != nil {
		t.Fatalf("SetTrack: %v", err)
	}
	if err := a.Engage(true); err != nil {
		t.Fatalf("Engage: %v", err)
	}

	out := a.Tick(sampleAt(0, 25, 0, 2))
	if !out.EndOfCurve {
		t.Fatal("pivot past the last point did not report end of curve")
	}
	if a.Engaged() {
		t.Error("agent still engaged past the end of the curve")
	}

	var sawEnd, sawDisengage bool
	for _, e := range rec.events {
		switch e.kind {
		case EventEndOfTrack:
			sawEnd = true
		case EventDisengage:
			sawDisengage = true
		}
	}
	if !sawEnd || !sawDisengage {
		t.Errorf("events = %+v, want end_of_track and disengage", rec.events)
	}
}

func TestAgentCoverageSnapshot(t *testing.T) {
	a := New(oneSectionConfig(), field.New("snap", coverage.DefaultConfig()), nil, nil, nil, nil)
	for n := 0.0; n <= 6; n++ {
		a.Tick(sampleAt(0, n, 0, 1))
	}

	passes, worked := a.CoverageSnapshot()
	if len(passes) != 1 {
		t.Fatalf("got %d passes, want 1", len(passes))
	}
	if math.Abs(worked-18) > 1e-9 {
		t.Errorf("worked area = %f, want 18", worked)
	}
	if st := a.Status(); st.WorkedAreaM2 != worked {
		t.Errorf("status area %f != snapshot area %f", st.WorkedAreaM2, worked)
	}
}

func TestAgentClearTrackDisengages(t *testing.T) {
	a := New(DefaultConfig(), testField(t), nil, nil, nil, nil)
	if err := a.SetTrack("ab"); err != nil {
		t.Fatalf("SetTrack: %v", err)
	}
	if err := a.Engage(true); err != nil {
		t.Fatalf("Engage: %v", err)
	}
	a.ClearTrack()
	if a.Engaged() {
		t.Error("still engaged after ClearTrack")
	}
	out := a.Tick(sampleAt(0, 0, 0, 1))
	if out.Active {
		t.Error("guidance active with no track")
	}
}
