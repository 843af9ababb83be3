package simulation

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"runtime"
	"slices"
	"sync"
	"time"

	"flowcast-mcp/internal/cycletime"
	"flowcast-mcp/internal/stats"
)

// ErrInsufficientData is returned when a forecast is requested against a
// distribution with no completed samples. Callers check it with errors.Is.
var ErrInsufficientData = errors.New("insufficient cycle-time samples")

// DefaultIterations is the trial count used when the caller does not set one.
const DefaultIterations = 10000

// Percentiles are the confidence levels every forecast reports.
var Percentiles = []int{50, 85, 95}

// Options configures an Engine. The zero value is usable: iterations and
// workers fall back to defaults, the seed is derived from the clock and
// recorded on every result, and Now defaults to the current time.
type Options struct {
	Iterations int
	Workers    int
	Seed       *int64
	Now        time.Time
}

// Engine runs bootstrap Monte-Carlo forecasts over cycle-time samples.
// An Engine is deterministic: the same seed, distribution and remaining
// count produce identical results regardless of the worker count.
type Engine struct {
	iterations int
	workers    int
	seed       int64
	now        time.Time
}

// ForecastResult holds the percentile outcomes of one simulation run.
// ElapsedDays and Dates are keyed by percentile (50, 85, 95).
type ForecastResult struct {
	ElapsedDays   map[int]float64   `json:"elapsed_days"`
	Dates         map[int]time.Time `json:"dates"`
	Remaining     int               `json:"remaining"`
	SampleCount   int               `json:"sample_count"`
	Iterations    int               `json:"iterations"`
	LowConfidence bool              `json:"low_confidence"`
	Seed          int64             `json:"seed"`
	GeneratedAt   time.Time         `json:"generated_at"`
}

func NewEngine(opts Options) *Engine {
	e := &Engine{
		iterations: opts.Iterations,
		workers:    opts.Workers,
		now:        opts.Now,
	}
	if e.iterations <= 0 {
		e.iterations = DefaultIterations
	}
	if e.workers <= 0 {
		e.workers = runtime.GOMAXPROCS(0)
	}
	if opts.Seed != nil {
		e.seed = *opts.Seed
	} else {
		e.seed = time.Now().UnixNano()
	}
	if e.now.IsZero() {
		e.now = time.Now().UTC()
	}
	return e
}

// Seed reports the seed the engine resolved at construction.
func (e *Engine) Seed() int64 { return e.seed }

// Forecast simulates completion of `remaining` items by resampling the
// distribution with replacement: each trial draws one sample per remaining
// item and sums them into a total elapsed time in days.
func (e *Engine) Forecast(dist *cycletime.Distribution, remaining int) (*ForecastResult, error) {
	if dist == nil || dist.Len() == 0 {
		return nil, fmt.Errorf("%w: no completed items to resample", ErrInsufficientData)
	}

	result := &ForecastResult{
		ElapsedDays:   make(map[int]float64, len(Percentiles)),
		Dates:         make(map[int]time.Time, len(Percentiles)),
		Remaining:     remaining,
		SampleCount:   dist.Len(),
		LowConfidence: dist.LowConfidence,
		Seed:          e.seed,
		GeneratedAt:   e.now,
	}

	if remaining <= 0 {
		for _, p := range Percentiles {
			result.ElapsedDays[p] = 0
			result.Dates[p] = e.now
		}
		return result, nil
	}

	totals := e.simulate(dist.Samples, remaining)
	result.Iterations = len(totals)
	for _, p := range Percentiles {
		days := stats.PercentileSorted(totals, float64(p))
		result.ElapsedDays[p] = days
		result.Dates[p] = e.now.Add(daysToDuration(days))
	}
	return result, nil
}

// simulate runs the configured number of trials and returns the sorted
// per-trial totals, in days. Trials are spread across workers in disjoint
// index ranges; each trial owns a sub-stream derived from its index, so
// the totals do not depend on how the work was split.
func (e *Engine) simulate(samples []float64, remaining int) []float64 {
	totals := make([]float64, e.iterations)

	workers := e.workers
	if workers > e.iterations {
		workers = e.iterations
	}
	chunk := (e.iterations + workers - 1) / workers

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		start := w * chunk
		end := min(start+chunk, e.iterations)
		if start >= end {
			break
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			for trial := start; trial < end; trial++ {
				rng := rand.New(rand.NewPCG(trialSeed(e.seed, trial), uint64(e.seed)))
				var total float64
				for i := 0; i < remaining; i++ {
					total += samples[rng.IntN(len(samples))]
				}
				totals[trial] = total
			}
		}()
	}
	wg.Wait()

	slices.Sort(totals)
	return totals
}

// trialSeed mixes the engine seed with the trial index (splitmix64
// finalizer) so consecutive trials land on unrelated streams.
func trialSeed(seed int64, trial int) uint64 {
	z := uint64(seed) + (uint64(trial)+1)*0x9E3779B97F4A7C15
	z = (z ^ (z >> 30)) * 0xBF58476D1CE4E5B9
	z = (z ^ (z >> 27)) * 0x94D049BB133111EB
	return z ^ (z >> 31)
}

func daysToDuration(days float64) time.Duration {
	return time.Duration(days * 24 * float64(time.Hour))
}
