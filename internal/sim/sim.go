// Package sim is a bicycle-model vehicle simulator for dev mode and loop
// tests. It implements the agent's PoseSource and SteerSink, closing the
// control loop: the last commanded steer angle drives the next pose.
package sim

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/furrow-data/fieldline/internal/agent"
	"github.com/furrow-data/fieldline/internal/geo"
	"github.com/furrow-data/fieldline/internal/guidance"
	"github.com/furrow-data/fieldline/internal/timeutil"
)

// Config describes the simulated vehicle and fix stream.
type Config struct {
	// WheelbaseMeters is the pivot-axle to steer-axle distance.
	WheelbaseMeters float64

	// SpeedMPS is the constant ground speed.
	SpeedMPS float64

	// RateHz is the pose fix rate.
	RateHz float64

	// Start is the initial pose.
	Start geo.PointH

	// Reverse backs the vehicle instead of driving forward.
	Reverse bool

	// Roll is the constant IMU roll fed to guidance, in degrees.
	Roll float64

	// MaxSteerRateDegPerSec limits how fast the simulated actuator slews
	// toward the commanded angle. Zero applies commands instantly.
	MaxSteerRateDegPerSec float64
}

// DefaultConfig returns a tractor-like simulation at a 10 Hz fix rate.
func DefaultConfig() Config {
	return Config{
		WheelbaseMeters: 2.8,
		SpeedMPS:        2.0,
		RateHz:          10,
		Roll:            guidance.RollInvalid,
	}
}

// Vehicle is the simulated machine. Step advances it one interval; Poses
// runs it on a clock.
type Vehicle struct {
	cfg   Config
	clock timeutil.Clock

	mu        sync.Mutex
	pos       geo.Point
	heading   float64
	steerDeg  float64 // commanded
	actualDeg float64 // after the slew limit
}

// New returns a vehicle at the configured start pose. clock may be nil for
// the real clock.
func New(cfg Config, clock timeutil.Clock) *Vehicle {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Vehicle{
		cfg:     cfg,
		clock:   clock,
		pos:     cfg.Start.Point(),
		heading: cfg.Start.Heading,
	}
}

// Steer applies the guidance output as the commanded steer angle.
func (v *Vehicle) Steer(out guidance.Output) {
	v.mu.Lock()
	v.steerDeg = out.SteerAngleDeg
	v.mu.Unlock()
}

// Pose returns the current pose without advancing the model.
func (v *Vehicle) Pose() geo.PointH {
	v.mu.Lock()
	defer v.mu.Unlock()
	return geo.PointH{E: v.pos.E, N: v.pos.N, Heading: v.heading}
}

// Step advances the bicycle model by dt seconds and returns the resulting
// pose sample.
func (v *Vehicle) Step(dt float64) agent.PoseSample {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.cfg.MaxSteerRateDegPerSec > 0 {
		limit := v.cfg.MaxSteerRateDegPerSec * dt
		delta := v.steerDeg - v.actualDeg
		if delta > limit {
			delta = limit
		} else if delta < -limit {
			delta = -limit
		}
		v.actualDeg += delta
	} else {
		v.actualDeg = v.steerDeg
	}

	dir := 1.0
	if v.cfg.Reverse {
		dir = -1
	}
	speed := v.cfg.SpeedMPS
	yawRate := speed * math.Tan(v.actualDeg*math.Pi/180) / v.cfg.WheelbaseMeters
	v.heading = geo.NormalizeHeading(v.heading + dir*yawRate*dt)
	v.pos = v.pos.Add(geo.Forward(v.heading).Scale(dir * speed * dt))

	return agent.PoseSample{
		Easting:  v.pos.E,
		Northing: v.pos.N,
		Heading:  v.heading,
		Speed:    speed,
		Reverse:  v.cfg.Reverse,
		Roll:     v.cfg.Roll,
		Time:     v.clock.Now(),
	}
}

// Poses emits fixes at the configured rate until ctx is canceled.
func (v *Vehicle) Poses(ctx context.Context) <-chan agent.PoseSample {
	ch := make(chan agent.PoseSample)
	interval := time.Duration(float64(time.Second) / v.cfg.RateHz)
	ticker := v.clock.NewTicker(interval)
	dt := 1 / v.cfg.RateHz

	go func() {
		defer close(ch)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C():
				select {
				case ch <- v.Step(dt):
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return ch
}
