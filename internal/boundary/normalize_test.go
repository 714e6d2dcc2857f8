package boundary

import (
	"math"
	"testing"

	"github.com/furrow-data/fieldline/internal/geo"
)

func TestTargetSpacing(t *testing.T) {
	tests := []struct {
		area   float64
		isHole bool
		want   float64
	}{
		{10000, false, 1.1},
		{300000, false, 2.2},
		{500000, false, 3.3},
		{10000, true, 0.55},
		{-10000, false, 1.1}, // signed area accepted
	}
	for _, tt := range tests {
		if got := TargetSpacing(tt.area, tt.isHole); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("TargetSpacing(%v, %v) = %v, want %v", tt.area, tt.isHole, got, tt.want)
		}
	}
}

func TestNormalizeSpacingInsertsMidpoints(t *testing.T) {
	r := sq(0, 0, 10) // 4 corners only, 10 m gaps
	out := NormalizeSpacing(r, r.Area(), false)

	target := TargetSpacing(r.Area(), false)
	if len(out) <= len(r) {
		t.Fatalf("no points inserted: %d -> %d", len(r), len(out))
	}
	for i := range out {
		j := (i + 1) % len(out)
		d := out[i].Point().Distance(out[j].Point())
		if d > insertFactor*target+1e-9 {
			t.Errorf("gap %d-%d = %v m, above insert threshold %v", i, j, d, insertFactor*target)
		}
	}

	// A mid-edge point should head straight along its edge.
	for _, p := range out {
		if p.N == 0 && p.E > 2 && p.E < 8 {
			if math.Abs(geo.HeadingDelta(p.Heading, math.Pi/2)) > 1e-6 {
				t.Errorf("bottom edge point at E=%v has heading %v, want pi/2", p.E, p.Heading)
			}
			break
		}
	}
}

func TestNormalizeSpacingRemovesClusters(t *testing.T) {
	// A 10x10 square with one edge over-sampled at 0.2 m.
	r := Ring{}
	for e := 0.0; e < 10; e += 0.2 {
		r = append(r, geo.PointH{E: e, N: 0})
	}
	r = append(r, geo.PointH{E: 10, N: 0}, geo.PointH{E: 10, N: 10}, geo.PointH{E: 0, N: 10})
	r.RecalcHeadings()

	out := NormalizeSpacing(r, r.Area(), false)
	target := TargetSpacing(r.Area(), false)
	for i := range out {
		j := (i + 1) % len(out)
		d := out[i].Point().Distance(out[j].Point())
		if d < removeFactor*target-1e-9 {
			t.Errorf("gap %d-%d = %v m, below remove threshold %v", i, j, d, removeFactor*target)
		}
	}
	if len(out) >= len(r) {
		t.Errorf("cluster not thinned: %d -> %d points", len(r), len(out))
	}
}

func TestNormalizeSpacingDoesNotModifyInput(t *testing.T) {
	r := sq(0, 0, 10)
	want := r.Clone()
	_ = NormalizeSpacing(r, r.Area(), false)
	for i := range r {
		if r[i] != want[i] {
			t.Fatalf("input ring modified at %d: %v != %v", i, r[i], want[i])
		}
	}
}

func TestEarList(t *testing.T) {
	r := NormalizeSpacing(sq(0, 0, 10), 100, false)
	ears := EarList(r, 0) // default threshold

	if len(ears) >= len(r)/2 {
		t.Errorf("ear list barely simplified: %d of %d points kept", len(ears), len(r))
	}
	if len(ears) < 4 {
		t.Errorf("ear list too aggressive for a square: %d points", len(ears))
	}

	// Straight runs contribute no heading change, so mid-edge points
	// (away from the corners) must all be dropped.
	for _, p := range ears {
		nearCorner := false
		for _, c := range []geo.Point{{E: 0, N: 0}, {E: 10, N: 0}, {E: 10, N: 10}, {E: 0, N: 10}} {
			if p.Distance(c) < 3 {
				nearCorner = true
				break
			}
		}
		if !nearCorner && p != (r[0].Point()) {
			t.Errorf("kept mid-edge point %v with no heading change", p)
		}
	}
}
