package sensitivity

import (
	"math"
	"strconv"
)

const percentPerFraction = 200.0

// FormatCM360 renders a distance per 360 with two decimals and its unit.
func FormatCM360(centimeters float64) string {
	if math.IsNaN(centimeters) || math.IsInf(centimeters, 0) {
		return "-"
	}
	return strconv.FormatFloat(centimeters, 'f', 2, 64) + " cm"
}

// FractionToPercent converts the stored 0-1 sensitivity into the 0-200 percent form field.
func FractionToPercent(fraction float64) int64 {
	return int64(math.Round(fraction * percentPerFraction))
}

// PercentToFraction converts the 0-200 percent form field back into the stored fraction.
func PercentToFraction(percent float64) float64 {
	return percent / percentPerFraction
}
