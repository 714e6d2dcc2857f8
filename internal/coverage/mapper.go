package coverage

import (
	"github.com/furrow-data/fieldline/internal/geo"
)

// Config holds the coverage engine tuning. The decimation and threshold
// values are installation tuning, not invariants.
type Config struct {
	// CellSizeMeters is the bitmap grid resolution.
	CellSizeMeters float64

	// MinVisualSpacingMeters is the minimum travel between retained
	// visual vertices. Rasterization ignores it.
	MinVisualSpacingMeters float64

	// CoveredThreshold is the fraction at which a sampled segment counts
	// as fully covered.
	CoveredThreshold float64
}

// DefaultConfig returns the standard coverage tuning.
func DefaultConfig() Config {
	return Config{
		CellSizeMeters:         0.5,
		MinVisualSpacingMeters: 5.0,
		CoveredThreshold:       0.95,
	}
}

// Pass is one contiguous worked strip of a section: the ordered left and
// right edge vertices between a section drop and the following lift. Left
// and Right always have equal length.
type Pass struct {
	Section int
	Color   int
	Left    []geo.Point
	Right   []geo.Point
}

// sectionState tracks one implement section between ticks.
type sectionState struct {
	active  bool
	passIdx int // index of the section's current pass in the arena

	// Last rasterized edge pair. Discarded on stop so a lift/drop gap
	// never produces a connecting quad.
	lastLeft  geo.Point
	lastRight geo.Point

	lastVisual geo.Point // midpoint of the last retained visual pair
}

// Mapper is the coverage engine for one field session. Passes live in a
// flat growable arena; each section indexes its current pass. Not safe for
// concurrent use.
type Mapper struct {
	cfg      Config
	bitmap   *Bitmap
	passes   []Pass
	sections map[int]*sectionState
	color    int
}

// NewMapper returns an empty coverage map.
func NewMapper(cfg Config) *Mapper {
	return &Mapper{
		cfg:      cfg,
		bitmap:   NewBitmap(cfg.CellSizeMeters),
		sections: make(map[int]*sectionState),
	}
}

// Bitmap exposes the detection layer.
func (m *Mapper) Bitmap() *Bitmap { return m.bitmap }

// Passes returns the visual pass arena. Callers must not modify it.
func (m *Mapper) Passes() []Pass { return m.passes }

// WorkedAreaM2 returns the accumulated worked area.
func (m *Mapper) WorkedAreaM2() float64 { return m.bitmap.WorkedAreaM2() }

// SetColor sets the color tag stamped on passes begun from now on.
func (m *Mapper) SetColor(c int) { m.color = c }

// IsPointCovered reports whether p has been worked.
func (m *Mapper) IsPointCovered(p geo.Point) bool { return m.bitmap.IsPointCovered(p) }

// Reset discards all coverage and pass state.
func (m *Mapper) Reset() {
	m.bitmap.Reset()
	m.passes = nil
	m.sections = make(map[int]*sectionState)
}

func (m *Mapper) state(section int) *sectionState {
	s, ok := m.sections[section]
	if !ok {
		s = &sectionState{}
		m.sections[section] = s
	}
	return s
}

// StartMapping begins a new visual pass for the section and records the
// edge pair as the rasterization reference. Idempotent while active.
func (m *Mapper) StartMapping(section int, left, right geo.Point) {
	s := m.state(section)
	if s.active {
		return
	}
	m.passes = append(m.passes, Pass{
		Section: section,
		Color:   m.color,
		Left:    []geo.Point{left},
		Right:   []geo.Point{right},
	})
	s.active = true
	s.passIdx = len(m.passes) - 1
	s.lastLeft, s.lastRight = left, right
	s.lastVisual = left.Lerp(right, 0.5)
}

// AddCoveragePoint advances the section to a new edge pair: the quad back
// to the previous pair is rasterized into the bitmap on every call, and a
// visual vertex pair is retained only after MinVisualSpacingMeters of
// travel. Starts the section if it is not mapping yet.
func (m *Mapper) AddCoveragePoint(section int, left, right geo.Point) {
	s := m.state(section)
	if !s.active {
		m.StartMapping(section, left, right)
		return
	}

	m.bitmap.MarkQuad(s.lastLeft, s.lastRight, right, left)
	s.lastLeft, s.lastRight = left, right

	mid := left.Lerp(right, 0.5)
	if mid.Distance(s.lastVisual) >= m.cfg.MinVisualSpacingMeters {
		p := &m.passes[s.passIdx]
		p.Left = append(p.Left, left)
		p.Right = append(p.Right, right)
		s.lastVisual = mid
	}
}

// StopMapping deactivates the section and drops its rasterization
// reference; the next activation starts a fresh pass.
func (m *Mapper) StopMapping(section int) {
	s, ok := m.sections[section]
	if !ok || !s.active {
		return
	}
	// Close the visual pass at the lift point so it renders to the spot
	// the section actually shut off.
	p := &m.passes[s.passIdx]
	if last := len(p.Left) - 1; p.Left[last] != s.lastLeft || p.Right[last] != s.lastRight {
		p.Left = append(p.Left, s.lastLeft)
		p.Right = append(p.Right, s.lastRight)
	}
	s.active = false
}

// IsMapping reports whether the section is currently laying coverage.
func (m *Mapper) IsMapping(section int) bool {
	s, ok := m.sections[section]
	return ok && s.active
}

// SegmentCoverage is the answer to "how much of this section-width strip is
// already worked".
type SegmentCoverage struct {
	Fraction        float64 // covered samples / total samples
	Covered         bool    // Fraction at or above the configured threshold
	UncoveredMeters float64 // estimated unworked width
}

// SegmentCoverage samples across the implement width at cell resolution,
// centered lookAhead meters ahead of center along heading, and reports the
// covered fraction. Samples sit at cell-center spacing strictly inside the
// strip, mirroring how quads land on the cell grid; sampling the exact
// strip edges would read half-covered border cells and a section could
// never see its own pass as covered. This is the primitive section on/off
// control runs on.
func (m *Mapper) SegmentCoverage(center geo.Point, heading, halfWidth, lookAhead float64) SegmentCoverage {
	if lookAhead != 0 {
		center = center.Add(geo.Forward(heading).Scale(lookAhead))
	}
	right := geo.Right(heading)
	cell := m.cfg.CellSizeMeters

	total, covered := 0, 0
	for off := -halfWidth + cell/2; off <= halfWidth-cell/2+1e-9; off += cell {
		total++
		if m.bitmap.IsPointCovered(center.Add(right.Scale(off))) {
			covered++
		}
	}
	if total == 0 {
		// Strip narrower than one cell: fall back to the center point.
		if m.bitmap.IsPointCovered(center) {
			return SegmentCoverage{Fraction: 1, Covered: true}
		}
		return SegmentCoverage{UncoveredMeters: 2 * halfWidth}
	}

	sc := SegmentCoverage{Fraction: float64(covered) / float64(total)}
	sc.Covered = sc.Fraction >= m.cfg.CoveredThreshold
	sc.UncoveredMeters = (1 - sc.Fraction) * 2 * halfWidth
	return sc
}
