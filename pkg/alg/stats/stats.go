// Package stats summarizes repeated benchmark trials and smooths per-window
// memory growth. Standard deviations are population values (÷n, not ÷(n−1)).
package stats

import (
	"math"
	"slices"
	"time"
)

// Well-known percentile thresholds.
const (
	PercentileMedian = 0.5
	PercentileP95    = 0.95
)

// Mean returns the arithmetic mean of values, or 0 for an empty slice.
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

// MeanStdDev returns the arithmetic mean and population standard deviation.
// Returns (0, 0) for an empty slice.
func MeanStdDev(values []float64) (mean, stddev float64) {
	count := len(values)
	if count == 0 {
		return 0, 0
	}

	mean = Mean(values)

	var sumSq float64

	for _, v := range values {
		diff := v - mean
		sumSq += diff * diff
	}

	return mean, math.Sqrt(sumSq / float64(count))
}

// Percentile returns the p-th percentile of sorted using linear
// interpolation. sorted must be in ascending order; p must be in [0, 1].
func Percentile(sorted []float64, p float64) float64 {
	count := len(sorted)
	if count == 0 {
		return 0
	}

	idx := p * float64(count-1)
	lower := int(math.Floor(idx))
	upper := int(math.Ceil(idx))

	if lower == upper || upper >= count {
		return sorted[lower]
	}

	frac := idx - float64(lower)

	return sorted[lower]*(1-frac) + sorted[upper]*frac
}

// Summary describes the spread of repeated measurements.
type Summary struct {
	N      int     `json:"n" yaml:"n"`
	Mean   float64 `json:"mean" yaml:"mean"`
	StdDev float64 `json:"stddev" yaml:"stddev"`
	Min    float64 `json:"min" yaml:"min"`
	Median float64 `json:"median" yaml:"median"`
	P95    float64 `json:"p95" yaml:"p95"`
	Max    float64 `json:"max" yaml:"max"`
}

// Summarize computes a Summary of values. The input is not modified.
func Summarize(values []float64) Summary {
	if len(values) == 0 {
		return Summary{}
	}

	sorted := slices.Clone(values)
	slices.Sort(sorted)

	mean, stddev := MeanStdDev(sorted)

	return Summary{
		N:      len(sorted),
		Mean:   mean,
		StdDev: stddev,
		Min:    sorted[0],
		Median: Percentile(sorted, PercentileMedian),
		P95:    Percentile(sorted, PercentileP95),
		Max:    sorted[len(sorted)-1],
	}
}

// Seconds converts durations to fractional seconds for Summarize.
func Seconds(durations []time.Duration) []float64 {
	out := make([]float64, len(durations))

	for i, d := range durations {
		out[i] = d.Seconds()
	}

	return out
}
