package stats

import (
	"math"
	"slices"
)

// Percentile returns the p-th percentile of values using linear
// interpolation between the two nearest ranks: for n sorted values the
// rank is p/100 * (n-1), interpolated between its floor and ceil
// neighbors. The input is not mutated; an empty input yields 0.
func Percentile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return 0
	}

	// Work on a copy to avoid mutating the original
	temp := make([]float64, len(values))
	copy(temp, values)
	slices.Sort(temp)

	return PercentileSorted(temp, p)
}

// PercentileSorted is Percentile for values already sorted ascending.
// Hot paths that sort once and read several percentiles use this form.
func PercentileSorted(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if p <= 0 || n == 1 {
		return sorted[0]
	}
	if p >= 100 {
		return sorted[n-1]
	}

	idx := p / 100 * float64(n-1)
	lo := int(math.Floor(idx))
	hi := int(math.Ceil(idx))
	if lo == hi {
		return sorted[lo]
	}
	frac := idx - float64(lo)
	return sorted[lo] + (sorted[hi]-sorted[lo])*frac
}

// Median finds the median value in a slice of floats.
func Median(values []float64) float64 {
	return Percentile(values, 50)
}
