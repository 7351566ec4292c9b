// Package units provides shared constants and conversions for speed units.
// The core computes speeds in km/h from pixel displacements; the API layer
// converts on the way out.
package units

import "time"

// Unit constants
const (
	MPS  = "mps"
	MPH  = "mph"
	KMPH = "kmph"
	KPH  = "kph"
)

// ValidUnits contains all valid unit values
var ValidUnits = []string{MPS, MPH, KMPH, KPH}

// IsValid checks if the given unit is in the list of valid units
func IsValid(unit string) bool {
	for _, validUnit := range ValidUnits {
		if unit == validUnit {
			return true
		}
	}
	return false
}

// ValidUnitsString returns a comma-separated string of valid units for error
// messages.
func ValidUnitsString() string {
	return "mps, mph, kmph, kph"
}

// ConvertFromKmh converts a speed in km/h to the target units.
func ConvertFromKmh(speedKmh float64, targetUnits string) float64 {
	switch targetUnits {
	case MPS:
		return speedKmh / 3.6
	case MPH:
		return speedKmh * 0.62137119
	case KMPH, KPH:
		return speedKmh
	default:
		return speedKmh
	}
}

// KmhFromPixels converts a pixel displacement over an elapsed interval into
// km/h using the configured linear scale. Non-positive elapsed time yields 0:
// the caller cannot divide a displacement by no time, and the first sample of
// a track always lands here.
func KmhFromPixels(distPx, metersPerPixel float64, elapsed time.Duration) float64 {
	if elapsed <= 0 {
		return 0
	}
	mps := distPx * metersPerPixel / elapsed.Seconds()
	return mps * 3.6
}
