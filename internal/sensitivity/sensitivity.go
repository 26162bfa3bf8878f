// Package sensitivity converts raw mouse parameters into comparable sensitivity metrics.
package sensitivity

import (
	"math"

	"github.com/guregu/null/v6"
)

const (
	distanceNumerator = 6096.0
	countsPerDegree   = 8.0
	opticalSlope      = 0.6
	opticalOffset     = 0.2
)

// PointerScale maps an OS pointer speed index to a pointer multiplier.
type PointerScale struct {
	name        string
	multipliers map[int64]float64
}

// Name identifies the scale.
func (scale PointerScale) Name() string {
	return scale.name
}

// Multiplier returns the multiplier for index, or false when the index is off the scale.
func (scale PointerScale) Multiplier(index int64) (float64, bool) {
	multiplier, ok := scale.multipliers[index]
	return multiplier, ok
}

var (
	// WindowsSlider is the 11 notch pointer speed slider stored on device configs.
	WindowsSlider = PointerScale{
		name: "windows",
		multipliers: map[int64]float64{
			1: 0.03125, 2: 0.0625, 3: 0.25, 4: 0.5, 5: 0.75, 6: 1.0,
			7: 1.5, 8: 2.0, 9: 2.5, 10: 3.0, 11: 3.5,
		},
	}
	// RegistrySpeed is the 20 step registry MouseSensitivity scale used by the calculator.
	RegistrySpeed = PointerScale{
		name: "registry",
		multipliers: map[int64]float64{
			1: 0.03125, 2: 0.0625, 3: 0.125, 4: 0.25, 5: 0.375, 6: 0.5, 7: 0.625, 8: 0.75, 9: 0.875, 10: 1.0,
			11: 1.25, 12: 1.5, 13: 1.75, 14: 2.0, 15: 2.25, 16: 2.5, 17: 2.75, 18: 3.0, 19: 3.25, 20: 3.5,
		},
	}
)

// ScaleByName returns the named scale, defaulting to WindowsSlider.
func ScaleByName(name string) PointerScale {
	if name == RegistrySpeed.name {
		return RegistrySpeed
	}
	return WindowsSlider
}

// Input carries the raw device parameters a metric is derived from.
type Input struct {
	DPI              null.Int
	Sensitivity      null.Float
	RawInput         bool
	PointerSpeed     null.Int
	CustomMultiplier null.Float
	Scale            PointerScale
}

// OpticalFactor converts the in-game sensitivity fraction into the optical factor.
func OpticalFactor(sensitivity float64) float64 {
	return opticalSlope*sensitivity + opticalOffset
}

// PointerMultiplier resolves the OS multiplier: a positive custom multiplier wins,
// then the scale entry for the pointer speed index, then 1.
func PointerMultiplier(input Input) float64 {
	if input.CustomMultiplier.Valid && input.CustomMultiplier.Float64 > 0 {
		return input.CustomMultiplier.Float64
	}
	if input.PointerSpeed.Valid {
		if multiplier, ok := input.Scale.Multiplier(input.PointerSpeed.Int64); ok {
			return multiplier
		}
	}
	return 1.0
}

// DistancePer360 returns centimeters of mouse travel for a full in-game turn.
// Raw input bypasses the OS multiplier entirely.
func DistancePer360(input Input) (float64, bool) {
	if !validDPI(input.DPI) || !validSensitivity(input.Sensitivity) {
		return 0, false
	}
	factor := OpticalFactor(input.Sensitivity.Float64)
	base := distanceNumerator / (float64(input.DPI.Int64) * countsPerDegree * factor * factor * factor) / 2
	if input.RawInput {
		return base, true
	}
	return base / PointerMultiplier(input), true
}

// CursorSpeed returns the DPI after OS pointer scaling, rounded to an integer.
func CursorSpeed(input Input) (int64, bool) {
	if !validDPI(input.DPI) {
		return 0, false
	}
	if input.RawInput {
		return input.DPI.Int64, true
	}
	return int64(math.Round(float64(input.DPI.Int64) * PointerMultiplier(input))), true
}

// SensitivityForDistance inverts DistancePer360 for the remaining parameters of input.
// It reports false when no sensitivity in [0, 1] produces the distance.
func SensitivityForDistance(centimeters float64, input Input) (float64, bool) {
	if !validDPI(input.DPI) || centimeters <= 0 || math.IsNaN(centimeters) || math.IsInf(centimeters, 0) {
		return 0, false
	}
	multiplier := 1.0
	if !input.RawInput {
		multiplier = PointerMultiplier(input)
	}
	cubed := distanceNumerator / (2 * centimeters * multiplier * float64(input.DPI.Int64) * countsPerDegree)
	sensitivity := (math.Cbrt(cubed) - opticalOffset) / opticalSlope
	if sensitivity < 0 || sensitivity > 1 {
		return 0, false
	}
	return sensitivity, true
}

func validDPI(dpi null.Int) bool {
	return dpi.Valid && dpi.Int64 > 0
}

func validSensitivity(sensitivity null.Float) bool {
	if !sensitivity.Valid {
		return false
	}
	value := sensitivity.Float64
	return !math.IsNaN(value) && value >= 0 && value <= 1
}
