// Package stats holds the numeric aggregation helpers shared by the deliberation
// phases. Every function is total: empty and singleton inputs have defined results.
package stats

import "math"

// Clamp01 bounds v to [0,1]. NaN maps to 0.
func Clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

// Mean returns the arithmetic mean, or 0 for an empty slice.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// StdDev returns the population standard deviation, or 0 for fewer than two values.
func StdDev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	mean := Mean(values)
	var acc float64
	for _, v := range values {
		d := v - mean
		acc += d * d
	}
	return math.Sqrt(acc / float64(len(values)))
}

// Max returns the largest value, or 0 for an empty slice.
func Max(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	m := values[0]
	for _, v := range values[1:] {
		if v > m {
			m = v
		}
	}
	return m
}

// Cohesion is 1 − stddev, clamped. Identical readings give 1.
func Cohesion(values []float64) float64 {
	return Clamp01(1 - StdDev(values))
}

// PairwiseAgreement is the mean of 1 − |a−b| over all unordered pairs.
// It is 1 when fewer than two values are given.
func PairwiseAgreement(values []float64) float64 {
	if len(values) < 2 {
		return 1
	}
	var sum float64
	var pairs int
	for i := 0; i < len(values); i++ {
		for j := i + 1; j < len(values); j++ {
			sum += 1 - math.Abs(values[i]-values[j])
			pairs++
		}
	}
	return Clamp01(sum / float64(pairs))
}
