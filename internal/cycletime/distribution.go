package cycletime

import (
	"flowcast-mcp/internal/stats"
)

// DefaultMinSamples is the sample count below which a distribution is
// flagged low-confidence.
const DefaultMinSamples = 5

// Distribution holds the cycle-time samples of one cohort, in the order
// they were collected. Samples are durations in fractional days, never
// negative.
type Distribution struct {
	Cohort        string    `json:"cohort"`
	Samples       []float64 `json:"samples"`
	LowConfidence bool      `json:"low_confidence"`
}

// Add appends a sample and refreshes the confidence flag.
func (d *Distribution) Add(sample float64, minSamples int) {
	d.Samples = append(d.Samples, sample)
	d.LowConfidence = len(d.Samples) < minSamples
}

// Len returns the sample count.
func (d *Distribution) Len() int {
	return len(d.Samples)
}

// Median returns the 50th-percentile sample value.
func (d *Distribution) Median() float64 {
	return stats.Median(d.Samples)
}

// Percentile returns the p-th percentile sample value.
func (d *Distribution) Percentile(p float64) float64 {
	return stats.Percentile(d.Samples, p)
}

// Merge pools several distributions into one, appending samples in the
// order the inputs are given. Callers pass cohorts in sorted key order
// when deterministic pooling matters.
func Merge(cohort string, minSamples int, dists ...*Distribution) *Distribution {
	merged := &Distribution{Cohort: cohort}
	for _, d := range dists {
		if d == nil {
			continue
		}
		merged.Samples = append(merged.Samples, d.Samples...)
	}
	merged.LowConfidence = len(merged.Samples) < minSamples
	return merged
}
