// Package units provides shared constants, validation, and display
// conversions for speed and area units. Internally everything is metric:
// speeds are m/s, areas are square meters; conversion happens only at the
// display edge.
package units

// Speed unit constants
const (
	MPS  = "mps"
	MPH  = "mph"
	KMPH = "kmph"
	KPH  = "kph"
)

// ValidSpeedUnits contains all valid speed unit values
var ValidSpeedUnits = []string{MPS, MPH, KMPH, KPH}

// IsValidSpeedUnit checks if the given unit is in the list of valid speed units
func IsValidSpeedUnit(unit string) bool {
	for _, validUnit := range ValidSpeedUnits {
		if unit == validUnit {
			return true
		}
	}
	return false
}

// SpeedUnitsString returns a comma-separated string of valid speed units for error messages
func SpeedUnitsString() string {
	return "mps, mph, kmph, kph"
}

const mpsToMPH = 2.2369362920544

// ConvertSpeed converts a speed from meters per second to the target units.
// Unknown units pass the value through unchanged.
func ConvertSpeed(speedMPS float64, targetUnits string) float64 {
	switch targetUnits {
	case MPH:
		return speedMPS * mpsToMPH
	case KMPH, KPH:
		return speedMPS * 3.6
	case MPS:
		return speedMPS
	default:
		return speedMPS
	}
}

// SpeedToMPS converts a speed in the given units back to meters per second.
func SpeedToMPS(speed float64, sourceUnits string) float64 {
	switch sourceUnits {
	case MPH:
		return speed / mpsToMPH
	case KMPH, KPH:
		return speed / 3.6
	case MPS:
		return speed
	default:
		return speed
	}
}
