package linalg

import (
	"fmt"
	"math"
)

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

// Variance returns the population variance.
func Variance(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	mean := Mean(values)
	var sumSq float64
	for _, v := range values {
		d := v - mean
		sumSq += d * d
	}
	return sumSq / float64(len(values))
}

// StdDev returns the population standard deviation.
func StdDev(values []float64) float64 {
	return math.Sqrt(Variance(values))
}

// SampleStdDev returns the sample (n-1) standard deviation, used for
// volatility estimates from return series.
func SampleStdDev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	mean := Mean(values)
	var sumSq float64
	for _, v := range values {
		d := v - mean
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(len(values)-1))
}

// Skewness returns the population skewness. Zero-variance input yields 0.
func Skewness(values []float64) float64 {
	n := float64(len(values))
	if n == 0 {
		return 0
	}
	mean := Mean(values)
	sigma := StdDev(values)
	if sigma == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		d := (v - mean) / sigma
		sum += d * d * d
	}
	return sum / n
}

// ExcessKurtosis returns the population kurtosis minus 3, so a normal
// distribution reports 0.
func ExcessKurtosis(values []float64) float64 {
	n := float64(len(values))
	if n == 0 {
		return 0
	}
	mean := Mean(values)
	sigma := StdDev(values)
	if sigma == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		d := (v - mean) / sigma
		sum += d * d * d * d
	}
	return sum/n - 3.0
}

// Percentile returns the p-th percentile (0-100) of an ascending-sorted slice
// using linear interpolation between adjacent order statistics.
func Percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if p <= 0 {
		return sorted[0]
	}
	if p >= 100 {
		return sorted[len(sorted)-1]
	}

	idx := p / 100.0 * float64(len(sorted)-1)
	lower := int(math.Floor(idx))
	upper := lower + 1
	if upper >= len(sorted) {
		return sorted[len(sorted)-1]
	}

	weight := idx - float64(lower)
	return sorted[lower]*(1-weight) + sorted[upper]*weight
}

// Pearson returns the Pearson correlation coefficient of two paired series.
// Series with zero variance correlate at 0 rather than NaN.
func Pearson(x, y []float64) (float64, error) {
	if len(x) != len(y) {
		return 0, fmt.Errorf("series length mismatch: %d vs %d", len(x), len(y))
	}
	if len(x) < 2 {
		return 0, fmt.Errorf("need at least 2 observations, got %d", len(x))
	}

	meanX := Mean(x)
	meanY := Mean(y)

	var cov, varX, varY float64
	for i := range x {
		dx := x[i] - meanX
		dy := y[i] - meanY
		cov += dx * dy
		varX += dx * dx
		varY += dy * dy
	}

	if varX == 0 || varY == 0 {
		return 0, nil
	}
	return cov / math.Sqrt(varX*varY), nil
}
