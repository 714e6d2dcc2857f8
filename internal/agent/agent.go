// Package agent runs the per-fix control loop. Each pose sample produces,
// strictly in order: one guidance computation, one steer command, and one
// coverage update. Storage and network I/O never happen on the tick path;
// telemetry goes to a non-blocking Recorder and state queries read a
// snapshot taken at the end of the tick.
package agent

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/furrow-data/fieldline/internal/coverage"
	"github.com/furrow-data/fieldline/internal/field"
	"github.com/furrow-data/fieldline/internal/geo"
	"github.com/furrow-data/fieldline/internal/guidance"
	"github.com/furrow-data/fieldline/internal/timeutil"
)

// PoseSample is one position fix with attitude and motion state.
type PoseSample struct {
	Easting  float64
	Northing float64
	Heading  float64 // radians clockwise from north
	Speed    float64 // m/s, magnitude
	Reverse  bool
	Roll     float64 // degrees; guidance.RollInvalid when no IMU
	Time     time.Time
}

// PoseSource delivers pose samples until the context is canceled or the
// source is exhausted. GPS receivers, replay files, and the simulator all
// sit behind this.
type PoseSource interface {
	Poses(ctx context.Context) <-chan PoseSample
}

// SteerSink receives the guidance output each tick. Implementations talk to
// the steer controller (or close the simulation loop) and must not block.
type SteerSink interface {
	Steer(out guidance.Output)
}

// TickSample is the per-tick telemetry record.
type TickSample struct {
	Time          time.Time
	Easting       float64
	Northing      float64
	Heading       float64
	Speed         float64
	Reverse       bool
	Engaged       bool
	Active        bool
	TrackName     string
	CrossTrackErr float64
	SteerAngleDeg float64
	WorkedAreaM2  float64
}

// Event kinds recorded on state transitions.
const (
	EventEngage     = "engage"
	EventDisengage  = "disengage"
	EventTrack      = "track_selected"
	EventEndOfTrack = "end_of_track"
	EventSectionOn  = "section_on"
	EventSectionOff = "section_off"
)

// Recorder receives telemetry off the tick path. Implementations must not
// block; the sqlite recorder buffers on a channel and drops when full.
type Recorder interface {
	RecordTick(t TickSample)
	RecordEvent(at time.Time, kind, detail string)
}

// Config bundles the agent's tuning.
type Config struct {
	Guidance guidance.Config
	Tool     ToolConfig
}

// DefaultConfig returns agent tuning for a mid-size tractor and tool.
func DefaultConfig() Config {
	return Config{
		Guidance: guidance.DefaultConfig(),
		Tool:     DefaultToolConfig(),
	}
}

// Validate rejects configs that cannot run.
func (c Config) Validate() error {
	if err := c.Guidance.Validate(); err != nil {
		return fmt.Errorf("guidance: %v", err)
	}
	if err := c.Tool.Validate(); err != nil {
		return fmt.Errorf("tool: %v", err)
	}
	return nil
}

// Status is the snapshot taken at the end of each tick.
type Status struct {
	Time         time.Time       `json:"time"`
	Easting      float64         `json:"easting"`
	Northing     float64         `json:"northing"`
	Heading      float64         `json:"heading"`
	Speed        float64         `json:"speed"`
	Reverse      bool            `json:"reverse"`
	Engaged      bool            `json:"engaged"`
	TrackName    string          `json:"track,omitempty"`
	Guidance     guidance.Output `json:"guidance"`
	SectionsOn   []bool          `json:"sections_on"`
	WorkedAreaM2 float64         `json:"worked_area_m2"`
}

// Agent owns the control loop for one loaded field.
type Agent struct {
	cfg    Config
	source PoseSource
	steer  SteerSink
	rec    Recorder
	clock  timeutil.Clock

	mu         sync.Mutex
	field      *field.Field
	track      *guidance.Track
	gst        guidance.State
	needGlobal bool
	engaged    bool
	sections   []*sectionControl
	last       Status
}

type eventRec struct {
	kind   string
	detail string
}

// New builds an agent over a loaded field. rec may be nil when nothing
// records the session; clock may be nil for the real clock.
func New(cfg Config, f *field.Field, source PoseSource, steer SteerSink, rec Recorder, clock timeutil.Clock) *Agent {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Agent{
		cfg:      cfg,
		source:   source,
		steer:    steer,
		rec:      rec,
		clock:    clock,
		field:    f,
		sections: newSections(cfg.Tool),
	}
}

// Field returns the loaded field. The boundary and track list are fixed for
// the agent's lifetime; coverage must be read through CoverageSnapshot.
func (a *Agent) Field() *field.Field { return a.field }

// Status returns the snapshot from the most recent tick.
func (a *Agent) Status() Status {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.last
}

// CoverageSnapshot returns the visual passes and worked area as of the last
// tick. The pass slices are append-only, so the copied headers stay valid.
func (a *Agent) CoverageSnapshot() ([]coverage.Pass, float64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	passes := make([]coverage.Pass, len(a.field.Coverage.Passes()))
	copy(passes, a.field.Coverage.Passes())
	return passes, a.field.Coverage.WorkedAreaM2()
}

// SetTrack selects the named track from the field and resets guidance
// state. The next tick runs a global nearest-segment search.
func (a *Agent) SetTrack(name string) error {
	a.mu.Lock()
	t := a.field.Track(name)
	if t == nil {
		a.mu.Unlock()
		return fmt.Errorf("track %q not found", name)
	}
	a.track = t
	a.gst = guidance.State{}
	a.needGlobal = true
	a.mu.Unlock()

	if a.rec != nil {
		a.rec.RecordEvent(a.clock.Now(), EventTrack, name)
	}
	return nil
}

// ClearTrack drops the active track and disengages.
func (a *Agent) ClearTrack() {
	a.mu.Lock()
	wasEngaged := a.engaged
	a.track = nil
	a.engaged = false
	a.gst = guidance.State{}
	a.mu.Unlock()

	if wasEngaged && a.rec != nil {
		a.rec.RecordEvent(a.clock.Now(), EventDisengage, "track cleared")
	}
}

// Engage switches auto-steer on or off. Engaging requires a selected track.
func (a *Agent) Engage(on bool) error {
	a.mu.Lock()
	if on && a.track == nil {
		a.mu.Unlock()
		return fmt.Errorf("cannot engage: no track selected")
	}
	changed := a.engaged != on
	a.engaged = on
	a.mu.Unlock()

	if changed && a.rec != nil {
		kind := EventEngage
		if !on {
			kind = EventDisengage
		}
		a.rec.RecordEvent(a.clock.Now(), kind, "operator")
	}
	return nil
}

// Engaged reports the auto-steer switch state.
func (a *Agent) Engaged() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.engaged
}

// Run consumes the pose source until the context is canceled or the source
// closes its channel.
func (a *Agent) Run(ctx context.Context) error {
	poses := a.source.Poses(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case s, ok := <-poses:
			if !ok {
				return nil
			}
			a.Tick(s)
		}
	}
}

// Tick processes one pose sample and returns the guidance output. Exported
// so tests and replay tools can drive the loop directly.
func (a *Agent) Tick(s PoseSample) guidance.Output {
	a.mu.Lock()

	pivot := geo.PointH{E: s.Easting, N: s.Northing, Heading: s.Heading}
	axle := pivot.Point().Add(geo.Forward(s.Heading).Scale(a.cfg.Guidance.WheelbaseMeters))
	in := guidance.Input{
		Track:        a.track,
		Pivot:        pivot,
		SteerAxle:    geo.PointH{E: axle.E, N: axle.N, Heading: s.Heading},
		Speed:        s.Speed,
		Reverse:      s.Reverse,
		Engaged:      a.engaged,
		Roll:         s.Roll,
		GlobalSearch: a.needGlobal,
	}
	out, st := guidance.Compute(a.cfg.Guidance, in, a.gst)
	a.gst = st
	a.needGlobal = a.track != nil && !out.Active

	var events []eventRec
	if out.EndOfCurve && a.engaged {
		// Running off the end of a curve drops auto-steer; the operator
		// turns and re-engages.
		a.engaged = false
		events = append(events,
			eventRec{EventEndOfTrack, a.trackNameLocked()},
			eventRec{EventDisengage, "end of track"})
	}

	events = append(events, a.updateSections(s)...)

	status := Status{
		Time:         s.Time,
		Easting:      s.Easting,
		Northing:     s.Northing,
		Heading:      s.Heading,
		Speed:        s.Speed,
		Reverse:      s.Reverse,
		Engaged:      a.engaged,
		TrackName:    a.trackNameLocked(),
		Guidance:     out,
		SectionsOn:   a.sectionsOnLocked(),
		WorkedAreaM2: a.field.Coverage.WorkedAreaM2(),
	}
	a.last = status
	a.mu.Unlock()

	if a.steer != nil {
		a.steer.Steer(out)
	}
	if a.rec != nil {
		a.rec.RecordTick(TickSample{
			Time:          s.Time,
			Easting:       s.Easting,
			Northing:      s.Northing,
			Heading:       s.Heading,
			Speed:         s.Speed,
			Reverse:       s.Reverse,
			Engaged:       status.Engaged,
			Active:        out.Active,
			TrackName:     status.TrackName,
			CrossTrackErr: out.CrossTrackErr,
			SteerAngleDeg: out.SteerAngleDeg,
			WorkedAreaM2:  status.WorkedAreaM2,
		})
		for _, e := range events {
			a.rec.RecordEvent(s.Time, e.kind, e.detail)
		}
	}
	return out
}

func (a *Agent) trackNameLocked() string {
	if a.track == nil {
		return ""
	}
	return a.track.Name
}

func (a *Agent) sectionsOnLocked() []bool {
	on := make([]bool, len(a.sections))
	for i, c := range a.sections {
		on[i] = c.mapping()
	}
	return on
}
