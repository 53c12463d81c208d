package utils

import "math"

// Round2 rounds to two decimals, halves to even on the scaled value.
// Negative zero comes back as 0.
func Round2(f float64) float64 {
	r := math.RoundToEven(f*100) / 100
	if r == 0 {
		return 0
	}
	return r
}

// Mean is the arithmetic mean of vals, 0 for an empty slice.
func Mean(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	var total float64
	for _, v := range vals {
		total += v
	}
	return total / float64(len(vals))
}
