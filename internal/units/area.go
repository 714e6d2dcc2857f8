package units

// Area unit constants
const (
	SquareMeters = "m2"
	Hectares     = "ha"
	Acres        = "acres"
)

// ValidAreaUnits contains all valid area unit values
var ValidAreaUnits = []string{SquareMeters, Hectares, Acres}

// IsValidAreaUnit checks if the given unit is in the list of valid area units
func IsValidAreaUnit(unit string) bool {
	for _, validUnit := range ValidAreaUnits {
		if unit == validUnit {
			return true
		}
	}
	return false
}

// AreaUnitsString returns a comma-separated string of valid area units for error messages
func AreaUnitsString() string {
	return "m2, ha, acres"
}

// One international acre in square meters.
const acreM2 = 4046.8564224

// ConvertArea converts an area from square meters to the target units.
// Unknown units pass the value through unchanged.
func ConvertArea(areaM2 float64, targetUnits string) float64 {
	switch targetUnits {
	case Hectares:
		return areaM2 / 10000
	case Acres:
		return areaM2 / acreM2
	case SquareMeters:
		return areaM2
	default:
		return areaM2
	}
}

// AreaToM2 converts an area in the given units back to square meters.
func AreaToM2(area float64, sourceUnits string) float64 {
	switch sourceUnits {
	case Hectares:
		return area * 10000
	case Acres:
		return area * acreM2
	case SquareMeters:
		return area
	default:
		return area
	}
}
