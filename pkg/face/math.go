package face

import "math"

// clamp restricts a value to a range.
func clamp(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

// unit clamps v to [0,1], substituting def for NaN.
func unit(v, def float64) float64 {
	if math.IsNaN(v) {
		v = def
	}
	return clamp(v, 0, 1)
}

// Clamp01 clamps v to [0,1]. NaN becomes 0.
func Clamp01(v float64) float64 {
	return unit(v, 0)
}
