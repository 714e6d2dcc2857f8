package agent

import (
	"fmt"

	"github.com/furrow-data/fieldline/internal/geo"
)

// ToolConfig describes the implement carried behind (or ahead of) the
// vehicle and how its sections switch.
type ToolConfig struct {
	// WidthMeters is the full working width, split evenly across sections.
	WidthMeters float64

	// OffsetMeters shifts the tool center laterally from the vehicle
	// centerline, positive right.
	OffsetMeters float64

	// HitchMeters places the tool's working edge behind the pivot.
	// Negative values put a front-mounted tool ahead of it.
	HitchMeters float64

	// Sections is the number of independently switched sections.
	Sections int

	// LookAheadOnSec converts speed into the distance ahead checked when
	// deciding to switch a section on.
	LookAheadOnSec float64

	// LookAheadOffSec is the shorter horizon used for switching off. The
	// gap between the two horizons is the anti-chatter hysteresis band.
	LookAheadOffSec float64

	// MinSpeedMPS stops all sections below this speed.
	MinSpeedMPS float64
}

// DefaultToolConfig returns tuning for a 6 m four-section tool.
func DefaultToolConfig() ToolConfig {
	return ToolConfig{
		WidthMeters:     6.0,
		OffsetMeters:    0,
		HitchMeters:     2.5,
		Sections:        4,
		LookAheadOnSec:  1.0,
		LookAheadOffSec: 0.5,
		MinSpeedMPS:     0.3,
	}
}

// Validate rejects tool configs that cannot switch sensibly.
func (c ToolConfig) Validate() error {
	if c.WidthMeters <= 0 {
		return fmt.Errorf("tool width must be positive, got %g", c.WidthMeters)
	}
	if c.Sections < 1 || c.Sections > 64 {
		return fmt.Errorf("section count %d out of range [1, 64]", c.Sections)
	}
	if c.LookAheadOnSec < 0 || c.LookAheadOffSec < 0 {
		return fmt.Errorf("look-ahead times must be non-negative")
	}
	if c.LookAheadOffSec > c.LookAheadOnSec {
		return fmt.Errorf("off look-ahead %g exceeds on look-ahead %g",
			c.LookAheadOffSec, c.LookAheadOnSec)
	}
	if c.MinSpeedMPS < 0 {
		return fmt.Errorf("min speed must be non-negative, got %g", c.MinSpeedMPS)
	}
	return nil
}

// SectionMode overrides the automatic switching per section.
type SectionMode int

const (
	// SectionAuto switches from coverage and boundary state.
	SectionAuto SectionMode = iota
	// SectionForcedOn keeps the section working whenever moving forward.
	SectionForcedOn
	// SectionForcedOff keeps the section off.
	SectionForcedOff
)

type sectionPhase int

const (
	sectionOff sectionPhase = iota
	// sectionLookOn: uncovered ground in sight ahead, valve commanded
	// open, not yet over workable ground.
	sectionLookOn
	sectionOn
	// sectionLookOff: end of workable ground in sight, still working
	// until the near horizon clears.
	sectionLookOff
)

// sectionControl is the per-section switching state. Lateral offsets are
// from the tool center, positive right.
type sectionControl struct {
	index     int
	mode      SectionMode
	phase     sectionPhase
	leftOff   float64
	midOff    float64
	rightOff  float64
	halfWidth float64
}

func newSections(tool ToolConfig) []*sectionControl {
	if tool.Sections < 1 {
		return nil
	}
	width := tool.WidthMeters / float64(tool.Sections)
	sections := make([]*sectionControl, tool.Sections)
	for i := range sections {
		left := -tool.WidthMeters/2 + float64(i)*width
		sections[i] = &sectionControl{
			index:     i,
			leftOff:   left,
			midOff:    left + width/2,
			rightOff:  left + width,
			halfWidth: width / 2,
		}
	}
	return sections
}

// mapping reports whether the section is laying coverage right now.
func (c *sectionControl) mapping() bool {
	return c.phase == sectionOn || c.phase == sectionLookOff
}

// advance steps the state machine. workAhead and workHere are the "needs
// work" answers at the far and near look-ahead horizons; blocked forces the
// section off regardless. The returns report a mapping start or stop this
// tick.
func (c *sectionControl) advance(workAhead, workHere, blocked bool) (started, stopped bool) {
	if blocked {
		stopped = c.mapping()
		c.phase = sectionOff
		return
	}
	switch c.phase {
	case sectionOff:
		if workHere {
			c.phase = sectionOn
			started = true
		} else if workAhead {
			c.phase = sectionLookOn
		}
	case sectionLookOn:
		if workHere {
			c.phase = sectionOn
			started = true
		} else if !workAhead {
			c.phase = sectionOff
		}
	case sectionOn:
		if !workHere && !workAhead {
			c.phase = sectionOff
			stopped = true
		} else if !workAhead {
			c.phase = sectionLookOff
		}
	case sectionLookOff:
		if workAhead {
			c.phase = sectionOn
		} else if !workHere {
			c.phase = sectionOff
			stopped = true
		}
	}
	return
}

// SetSectionMode overrides automatic switching for one section.
func (a *Agent) SetSectionMode(section int, mode SectionMode) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if section < 0 || section >= len(a.sections) {
		return fmt.Errorf("section %d out of range [0, %d)", section, len(a.sections))
	}
	a.sections[section].mode = mode
	return nil
}

// updateSections runs the switching state machine for every section and
// applies the results to the coverage map. Caller holds a.mu.
func (a *Agent) updateSections(s PoseSample) []eventRec {
	if len(a.sections) == 0 {
		return nil
	}
	tool := a.cfg.Tool
	fwd := geo.Forward(s.Heading)
	right := geo.Right(s.Heading)
	pivot := geo.Point{E: s.Easting, N: s.Northing}
	center := pivot.Sub(fwd.Scale(tool.HitchMeters)).Add(right.Scale(tool.OffsetMeters))

	lookOn := s.Speed * tool.LookAheadOnSec
	lookOff := s.Speed * tool.LookAheadOffSec

	var events []eventRec
	for _, c := range a.sections {
		leftEdge := center.Add(right.Scale(c.leftOff))
		rightEdge := center.Add(right.Scale(c.rightOff))
		mid := center.Add(right.Scale(c.midOff))

		blocked := s.Reverse || s.Speed < tool.MinSpeedMPS || c.mode == SectionForcedOff
		workAhead, workHere := false, false
		if !blocked {
			if c.mode == SectionForcedOn {
				workAhead, workHere = true, true
			} else {
				workAhead = a.needsWork(mid, s.Heading, c.halfWidth, lookOn)
				workHere = a.needsWork(mid, s.Heading, c.halfWidth, lookOff)
			}
		}

		started, stopped := c.advance(workAhead, workHere, blocked)
		switch {
		case started:
			a.field.Coverage.StartMapping(c.index, leftEdge, rightEdge)
			events = append(events, eventRec{EventSectionOn, fmt.Sprintf("section %d", c.index)})
		case stopped:
			a.field.Coverage.StopMapping(c.index)
			events = append(events, eventRec{EventSectionOff, fmt.Sprintf("section %d", c.index)})
		case c.mapping():
			a.field.Coverage.AddCoveragePoint(c.index, leftEdge, rightEdge)
		}
	}
	return events
}

// needsWork reports whether the strip of ground lookAhead meters in front
// of center is inside the workable area and not already covered.
func (a *Agent) needsWork(center geo.Point, heading, halfWidth, lookAhead float64) bool {
	if a.field.Boundary != nil {
		probe := center.Add(geo.Forward(heading).Scale(lookAhead))
		if !a.field.Boundary.IsInside(probe) {
			return false
		}
	}
	seg := a.field.Coverage.SegmentCoverage(center, heading, halfWidth, lookAhead)
	return !seg.Covered
}
