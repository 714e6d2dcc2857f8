package guidance

import "fmt"

// RollInvalid is the IMU sentinel reporting "no roll available", the wire
// convention of common ag IMU bridges.
const RollInvalid = 88888

// Law selects the steering control law.
type Law int

const (
	// PurePursuit steers by chasing a goal point ahead on the track.
	PurePursuit Law = iota
	// Stanley steers from heading error plus cross-track error at the
	// steer axle.
	Stanley
)

// String returns the lowercase name used in config files and logs.
func (l Law) String() string {
	switch l {
	case PurePursuit:
		return "purepursuit"
	case Stanley:
		return "stanley"
	}
	return fmt.Sprintf("law(%d)", int(l))
}

// ParseLaw maps a config string to a Law.
func ParseLaw(s string) (Law, error) {
	switch s {
	case "purepursuit", "pp", "":
		return PurePursuit, nil
	case "stanley":
		return Stanley, nil
	}
	return PurePursuit, fmt.Errorf("unknown control law %q (want purepursuit or stanley)", s)
}

// Config holds the vehicle geometry and steering gains. Engines receive it
// explicitly on every call; there is no ambient tuning state.
type Config struct {
	// WheelbaseMeters is the pivot-axle to steer-axle distance.
	WheelbaseMeters float64

	// MaxSteerAngleDeg clamps the commanded steering angle.
	MaxSteerAngleDeg float64

	// LookAheadSeconds scales the pure pursuit goal distance with speed.
	LookAheadSeconds float64

	// MinLookAheadMeters floors the goal distance at low speed.
	MinLookAheadMeters float64

	// MaxLookAheadMeters caps the goal distance at high speed.
	MaxLookAheadMeters float64

	// AcquireDistanceMeters is the cross-track error beyond which the
	// vehicle is "acquiring" the line and the look-ahead is held short.
	AcquireDistanceMeters float64

	// AcquireFactor multiplies MinLookAheadMeters while acquiring.
	AcquireFactor float64

	// IntegralGain enables the pure pursuit integral term when non-zero.
	IntegralGain float64

	// StanleyHeadingGain weights the heading error term.
	StanleyHeadingGain float64

	// StanleyDistanceGain weights the cross-track error term.
	StanleyDistanceGain float64

	// StanleyIntegralTriggerMeters bounds the cross-track error inside
	// which the Stanley integral accumulates. Larger offsets never wind
	// it up.
	StanleyIntegralTriggerMeters float64

	// SideHillCompFactor converts IMU roll degrees into a cross-track
	// correction for antenna lean on slopes. Zero disables.
	SideHillCompFactor float64

	// SearchWindow is the half-width, in segments, of the windowed
	// nearest-segment search on curves.
	SearchWindow int

	// Law selects the control law.
	Law Law
}

// DefaultConfig returns tuning for a mid-size tractor.
func DefaultConfig() Config {
	return Config{
		WheelbaseMeters:              2.8,
		MaxSteerAngleDeg:             35.0,
		LookAheadSeconds:             1.4,
		MinLookAheadMeters:           2.0,
		MaxLookAheadMeters:           10.0,
		AcquireDistanceMeters:        2.0,
		AcquireFactor:                0.9,
		IntegralGain:                 0.0, // off until tuned per vehicle
		StanleyHeadingGain:           1.0,
		StanleyDistanceGain:          0.8,
		StanleyIntegralTriggerMeters: 1.0,
		SideHillCompFactor:           0.0,
		SearchWindow:                 10,
		Law:                          PurePursuit,
	}
}

// Validate rejects configs that cannot steer.
func (c Config) Validate() error {
	if c.WheelbaseMeters <= 0 {
		return fmt.Errorf("wheelbase must be positive, got %g", c.WheelbaseMeters)
	}
	if c.MaxSteerAngleDeg <= 0 || c.MaxSteerAngleDeg > 60 {
		return fmt.Errorf("max steer angle %g out of range (0, 60]", c.MaxSteerAngleDeg)
	}
	if c.MinLookAheadMeters <= 0 || c.MaxLookAheadMeters < c.MinLookAheadMeters {
		return fmt.Errorf("look-ahead range [%g, %g] invalid", c.MinLookAheadMeters, c.MaxLookAheadMeters)
	}
	if c.SearchWindow < 1 {
		return fmt.Errorf("search window must be at least 1, got %d", c.SearchWindow)
	}
	return nil
}
