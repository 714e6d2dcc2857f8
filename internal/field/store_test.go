package field

import (
	"math"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/furrow-data/fieldline/internal/boundary"
	"github.com/furrow-data/fieldline/internal/coverage"
	"github.com/furrow-data/fieldline/internal/fsutil"
	"github.com/furrow-data/fieldline/internal/geo"
	"github.com/furrow-data/fieldline/internal/guidance"
)

func newTestStore() *Store {
	return NewStore("fields", fsutil.NewMemoryFileSystem(), coverage.DefaultConfig())
}

func squareRing(x0, y0, size float64) boundary.Ring {
	return boundary.Ring{
		geo.NewPointH(x0, y0, 0),
		geo.NewPointH(x0+size, y0, 0),
		geo.NewPointH(x0+size, y0+size, 0),
		geo.NewPointH(x0, y0+size, 0),
	}
}

func TestStoreCreateOpenRoundTrip(t *testing.T) {
	s := newTestStore()

	f, err := s.Create("north 40")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if f.ID == "" {
		t.Fatal("created field has empty ID")
	}

	b, err := boundary.NewBoundary(squareRing(0, 0, 60),
		boundary.Hole{Ring: squareRing(20, 20, 10)},
		boundary.Hole{Ring: squareRing(40, 40, 5), DriveThrough: true},
	)
	if err != nil {
		t.Fatalf("NewBoundary: %v", err)
	}
	f.Boundary = b

	ab, err := guidance.NewABTrack("ab 1", geo.Point{E: 5, N: 5}, geo.Point{E: 5, N: 55})
	if err != nil {
		t.Fatalf("NewABTrack: %v", err)
	}
	curve, err := guidance.NewTrack("pivot, east", []geo.PointH{
		geo.NewPointH(10, 0, 0),
		geo.NewPointH(10, 10, 0),
		geo.NewPointH(15, 20, 0.5),
	})
	if err != nil {
		t.Fatalf("NewTrack: %v", err)
	}
	f.AddTrack(ab)
	f.AddTrack(curve)

	f.Coverage.SetColor(3)
	f.Coverage.StartMapping(0, geo.Point{E: -1.5, N: 0}, geo.Point{E: 1.5, N: 0})
	f.Coverage.AddCoveragePoint(0, geo.Point{E: -1.5, N: 3}, geo.Point{E: 1.5, N: 3})
	f.Coverage.AddCoveragePoint(0, geo.Point{E: -1.5, N: 6}, geo.Point{E: 1.5, N: 6})
	f.Coverage.StopMapping(0)

	if err := s.Save(f); err != nil {
		t.Fatalf("Save: %v", err)
	}

	g, err := s.Open("north 40")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	if g.ID != f.ID {
		t.Errorf("ID = %q, want %q", g.ID, f.ID)
	}
	if g.Name != "north 40" {
		t.Errorf("Name = %q, want %q", g.Name, "north 40")
	}

	if g.Boundary == nil {
		t.Fatal("boundary did not survive the round trip")
	}
	if len(g.Boundary.Outer) != 4 || len(g.Boundary.Holes) != 2 {
		t.Fatalf("boundary shape = %d outer points, %d holes, want 4 and 2",
			len(g.Boundary.Outer), len(g.Boundary.Holes))
	}
	wantArea := 60*60 - 10*10 - 5*5.0
	if got := g.Boundary.AreaM2(); math.Abs(got-wantArea) > 1e-6 {
		t.Errorf("boundary area = %f, want %f", got, wantArea)
	}
	// All test coordinates survive the fixed-precision file format exactly,
	// so the rings can be compared without a tolerance.
	if diff := cmp.Diff(f.Boundary.Outer, g.Boundary.Outer); diff != "" {
		t.Errorf("outer ring mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(f.Boundary.Holes, g.Boundary.Holes); diff != "" {
		t.Errorf("holes mismatch (-want +got):\n%s", diff)
	}

	if len(g.Tracks) != 2 {
		t.Fatalf("got %d tracks, want 2", len(g.Tracks))
	}
	if diff := cmp.Diff(f.Tracks, g.Tracks); diff != "" {
		t.Errorf("tracks mismatch (-want +got):\n%s", diff)
	}

	if got := g.Coverage.WorkedAreaM2(); math.Abs(got-18) > 1e-6 {
		t.Errorf("coverage area = %f, want 18", got)
	}
	probes := []struct {
		p    geo.Point
		want bool
	}{
		{geo.Point{E: 0, N: 3}, true},
		{geo.Point{E: 0, N: 5.75}, true},
		{geo.Point{E: 2.5, N: 3}, false},
		{geo.Point{E: 0, N: -0.3}, false},
	}
	for _, pr := range probes {
		if got := g.Coverage.IsPointCovered(pr.p); got != pr.want {
			t.Errorf("IsPointCovered(%v) = %v, want %v", pr.p, got, pr.want)
		}
	}
	passes := g.Coverage.Passes()
	if len(passes) != 1 {
		t.Fatalf("got %d passes, want 1", len(passes))
	}
	if passes[0].Section != 0 || passes[0].Color != 3 {
		t.Errorf("pass section/color = %d/%d, want 0/3", passes[0].Section, passes[0].Color)
	}
}

func TestStoreList(t *testing.T) {
	s := newTestStore()
	for _, name := range []string{"bravo", "alpha"} {
		if _, err := s.Create(name); err != nil {
			t.Fatalf("Create(%q): %v", name, err)
		}
	}
	// A stray file in the root must not show up as a field.
	if err := s.fs.WriteFile(filepath.Join("fields", "notes.txt"), []byte("x"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	names, err := s.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(names) != 2 || names[0] != "alpha" || names[1] != "bravo" {
		t.Errorf("List = %v, want [alpha bravo]", names)
	}
}

func TestStoreListEmptyRoot(t *testing.T) {
	s := newTestStore()
	names, err := s.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(names) != 0 {
		t.Errorf("List = %v, want empty", names)
	}
}

func TestStoreRejectsBadNames(t *testing.T) {
	s := newTestStore()
	for _, name := range []string{"", ".", "..", "../evil", "a/b", `a\b`} {
		if _, err := s.Create(name); err == nil {
			t.Errorf("Create(%q) succeeded, want error", name)
		}
		if _, err := s.Open(name); err == nil {
			t.Errorf("Open(%q) succeeded, want error", name)
		}
		if err := s.Delete(name); err == nil {
			t.Errorf("Delete(%q) succeeded, want error", name)
		}
	}
}

func TestStoreOpenMissing(t *testing.T) {
	s := newTestStore()
	if _, err := s.Open("ghost"); err == nil {
		t.Fatal("Open of missing field succeeded, want error")
	}
}

func TestStoreCreateDuplicate(t *testing.T) {
	s := newTestStore()
	if _, err := s.Create("dup"); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := s.Create("dup"); err == nil {
		t.Fatal("second Create succeeded, want error")
	}
}

func TestStoreDelete(t *testing.T) {
	s := newTestStore()
	if _, err := s.Create("gone"); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := s.Delete("gone"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Open("gone"); err == nil {
		t.Fatal("Open after Delete succeeded, want error")
	}
	if err := s.Delete("gone"); err == nil {
		t.Fatal("second Delete succeeded, want error")
	}
}

// A field written by hand with corrupt lines mixed in still opens; the bad
// records are dropped individually.
func TestStoreOpenSkipsCorruptLines(t *testing.T) {
	fs := fsutil.NewMemoryFileSystem()
	s := NewStore("fields", fs, coverage.DefaultConfig())

	dir := filepath.Join("fields", "patch")
	if err := fs.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	write := func(name, body string) {
		t.Helper()
		if err := fs.WriteFile(filepath.Join(dir, name), []byte(body), 0644); err != nil {
			t.Fatalf("WriteFile(%s): %v", name, err)
		}
	}

	write("field.txt", "$FieldV1\nID,abc-123\nName,patch\n")
	write("boundary.txt", "$BoundaryV1\n"+
		"Ring,outer,5\n"+
		"0.000,0.000,0.00000\n"+
		"garbage\n"+
		"60.000,0.000,0.00000\n"+
		"60.000,60.000,0.00000\n"+
		"0.000,60.000,0.00000\n"+
		"Ring,blob,1\n"+
		"1.000,1.000,0.00000\n"+
		"Ring,hole,3\n"+
		"20.000,20.000,0.00000\n"+
		"bad,line\n"+
		"21.000,21.000,0.00000\n")
	write("tracks.txt", "$TracksV1\n"+
		"5.000,5.000,0.00000\n"+
		"Track,2,good one\n"+
		"0.000,0.000,0.00000\n"+
		"0.000,10.000,0.00000\n"+
		"Track,2,empty\n"+
		"not,numbers,here\n"+
		"Track\n")

	f, err := s.Open("patch")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if f.ID != "abc-123" {
		t.Errorf("ID = %q, want abc-123", f.ID)
	}
	if f.Boundary == nil {
		t.Fatal("boundary dropped entirely, want outer ring kept")
	}
	if len(f.Boundary.Outer) != 4 {
		t.Errorf("outer ring has %d points, want 4", len(f.Boundary.Outer))
	}
	if len(f.Boundary.Holes) != 0 {
		t.Errorf("got %d holes, want 0 (degenerate hole dropped)", len(f.Boundary.Holes))
	}
	if len(f.Tracks) != 1 || f.Tracks[0].Name != "good one" {
		t.Fatalf("tracks = %v, want just \"good one\"", trackNames(f.Tracks))
	}
	if len(f.Tracks[0].Points) != 2 {
		t.Errorf("track has %d points, want 2", len(f.Tracks[0].Points))
	}
	// No coverage file on disk leaves a fresh empty map.
	if got := f.Coverage.WorkedAreaM2(); got != 0 {
		t.Errorf("coverage area = %f, want 0", got)
	}
}

// A boundary file whose outer ring is unusable is dropped whole; the field
// still opens without one.
func TestStoreOpenDropsUnusableBoundary(t *testing.T) {
	fs := fsutil.NewMemoryFileSystem()
	s := NewStore("fields", fs, coverage.DefaultConfig())

	dir := filepath.Join("fields", "stub")
	if err := fs.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	body := "$BoundaryV1\nRing,outer,2\n0.000,0.000,0.00000\n1.000,1.000,0.00000\n"
	if err := fs.WriteFile(filepath.Join(dir, "boundary.txt"), []byte(body), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	f, err := s.Open("stub")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if f.Boundary != nil {
		t.Errorf("boundary = %+v, want nil", f.Boundary)
	}
	if f.ID == "" {
		t.Error("opened field without meta has empty ID, want generated one")
	}
}

func trackNames(tracks []*guidance.Track) []string {
	names := make([]string, len(tracks))
	for i, t := range tracks {
		names[i] = t.Name
	}
	return names
}
