// Package units provides shared constants and conversions for angle units
package units

import "math"

// Unit constants
const (
	RAD = "rad"
	DEG = "deg"
)

// ValidUnits contains all valid unit values
var ValidUnits = []string{RAD, DEG}

// IsValid checks if the given unit is in the list of valid units
func IsValid(unit string) bool {
	for _, validUnit := range ValidUnits {
		if unit == validUnit {
			return true
		}
	}
	return false
}

// GetValidUnitsString returns a comma-separated string of valid units for error messages
func GetValidUnitsString() string {
	return "rad, deg"
}

// ConvertAngle converts an angle from radians to the target units.
// The estimator works in radians throughout.
func ConvertAngle(rad float64, targetUnits string) float64 {
	switch targetUnits {
	case DEG:
		return rad * 180 / math.Pi
	default:
		return rad
	}
}

// HeadingDegrees converts a yaw in radians to a compass heading in [0, 360).
func HeadingDegrees(yaw float64) float64 {
	h := math.Mod(yaw*180/math.Pi, 360)
	if h < 0 {
		h += 360
	}
	if h >= 360 {
		h = 0
	}
	return h
}
