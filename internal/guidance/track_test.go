package guidance

import (
	"math"
	"testing"

	"github.com/furrow-data/fieldline/internal/geo"
)

func TestNewTrackDedupes(t *testing.T) {
	pts := []geo.PointH{
		{E: 0, N: 0},
		{E: 0, N: 0}, // duplicate
		{E: 0, N: 10},
		{E: 0, N: 10 + 1e-9}, // within epsilon of previous
		{E: 0, N: 20},
	}
	tr, err := NewTrack("t", pts)
	if err != nil {
		t.Fatalf("NewTrack: %v", err)
	}
	if len(tr.Points) != 3 {
		t.Errorf("got %d points after dedupe, want 3", len(tr.Points))
	}
	for i := 1; i < len(tr.Points); i++ {
		if tr.Points[i-1].Point().Distance(tr.Points[i].Point()) < minPointSpacing {
			t.Errorf("zero-length segment survived at %d", i)
		}
	}

	if _, err := NewTrack("empty", nil); err == nil {
		t.Error("empty point list accepted")
	}
}

func TestNewABTrack(t *testing.T) {
	tr, err := NewABTrack("ab", geo.Point{E: 0, N: 0}, geo.Point{E: 0, N: 100})
	if err != nil {
		t.Fatalf("NewABTrack: %v", err)
	}
	if tr.IsCurve() {
		t.Error("2-point track reported as curve")
	}
	if h := tr.Heading(); math.Abs(h) > 1e-9 {
		t.Errorf("due-north AB heading = %v, want 0", h)
	}
	if math.Abs(tr.Points[0].Heading-tr.Points[1].Heading) > 1e-9 {
		t.Error("AB endpoint headings differ")
	}

	if _, err := NewABTrack("bad", geo.Point{E: 1, N: 1}, geo.Point{E: 1, N: 1}); err == nil {
		t.Error("coincident A and B accepted")
	}
}

func TestTrackOffsetAndNudge(t *testing.T) {
	tr, _ := NewABTrack("ab", geo.Point{E: 0, N: 0}, geo.Point{E: 0, N: 100})

	// Heading north, so one implement width right lands due east.
	next := tr.Offset(6, 1)
	if math.Abs(next.Points[0].E-6) > 1e-9 || math.Abs(next.Points[0].N) > 1e-9 {
		t.Errorf("offset +1 width moved A to (%v, %v), want (6, 0)", next.Points[0].E, next.Points[0].N)
	}
	left := tr.Offset(6, -2)
	if math.Abs(left.Points[1].E+12) > 1e-9 {
		t.Errorf("offset -2 widths moved B to E=%v, want -12", left.Points[1].E)
	}

	nudged := tr.Nudge(-0.05)
	if math.Abs(nudged.Points[0].E+0.05) > 1e-9 {
		t.Errorf("nudge -0.05 moved A to E=%v, want -0.05", nudged.Points[0].E)
	}
	if nudged.Name == tr.Name {
		t.Error("nudged track kept the original name")
	}
	if tr.Points[0].E != 0 {
		t.Error("offset modified the source track")
	}
}

func TestTrackLength(t *testing.T) {
	tr, err := NewTrack("l", []geo.PointH{
		{E: 0, N: 0}, {E: 3, N: 4}, {E: 3, N: 14},
	})
	if err != nil {
		t.Fatalf("NewTrack: %v", err)
	}
	if l := tr.Length(); math.Abs(l-15) > 1e-9 {
		t.Errorf("length = %v, want 15", l)
	}
	if !tr.IsCurve() {
		t.Error("3-point track not reported as curve")
	}
}
