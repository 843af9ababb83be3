package simulation

import (
	"fmt"
	"slices"
	"time"

	"flowcast-mcp/internal/cycletime"
	"flowcast-mcp/internal/stats"
	"flowcast-mcp/internal/tracker"
)

// BacktestOptions defines the parameters for walk-forward validation.
type BacktestOptions struct {
	InProgressLabels   []string
	DoneLabels         []string
	ItemsPerCheckpoint int    // batch size forecast at each checkpoint (default 5)
	StepDays           int    // days between checkpoints (default 14)
	LookbackDays       int    // how far back to place checkpoints (default 180)
	MinHistory         int    // completed samples required before a checkpoint runs (default 5)
	Iterations         int    // trials per checkpoint (default 5000)
	Workers            int
	Seed               *int64
}

// Checkpoint is a single point in the past where a forecast was run and
// compared against what actually happened afterwards.
type Checkpoint struct {
	Date         time.Time `json:"date"`
	HistorySize  int       `json:"history_size"`
	Forecast     int       `json:"forecast_items"`
	ActualDays   float64   `json:"actual_days"`
	PredictedP50 float64   `json:"predicted_p50"`
	PredictedP85 float64   `json:"predicted_p85"`
	PredictedP95 float64   `json:"predicted_p95"`
	WithinCone   bool      `json:"within_cone"` // actual between P5 and P95
}

// BacktestResult holds the aggregate outcome of the validation.
type BacktestResult struct {
	AccuracyScore float64      `json:"accuracy_score"` // share of checkpoints within cone
	Checkpoints   []Checkpoint `json:"checkpoints"`
	Message       string       `json:"message"`
}

// Backtest replays history: at each checkpoint date it forecasts how
// long the next batch of items should take using only the completions
// known by that date, then measures how long the batch actually took.
// The accuracy score is the share of checkpoints where the actual
// duration landed inside the predicted P5-P95 cone.
func Backtest(issues []tracker.IssueRecord, opts BacktestOptions) *BacktestResult {
	if opts.ItemsPerCheckpoint <= 0 {
		opts.ItemsPerCheckpoint = 5
	}
	if opts.StepDays <= 0 {
		opts.StepDays = 14
	}
	if opts.LookbackDays <= 0 {
		opts.LookbackDays = 180
	}
	if opts.MinHistory <= 0 {
		opts.MinHistory = cycletime.DefaultMinSamples
	}
	if opts.Iterations <= 0 {
		opts.Iterations = 5000
	}

	// Resolve the seed once so every checkpoint replays the same streams.
	seed := time.Now().UnixNano()
	if opts.Seed != nil {
		seed = *opts.Seed
	}

	result := &BacktestResult{Checkpoints: make([]Checkpoint, 0)}

	comps, _ := cycletime.Completions(issues, cycletime.Options{
		InProgressLabels: opts.InProgressLabels,
		DoneLabels:       opts.DoneLabels,
	})
	slices.SortFunc(comps, func(a, b cycletime.Completion) int {
		return a.Done.Compare(b.Done)
	})

	if len(comps) < opts.MinHistory+opts.ItemsPerCheckpoint {
		result.Message = "Insufficient completed history for a meaningful backtest."
		return result
	}

	last := comps[len(comps)-1].Done
	horizon := last.AddDate(0, 0, -opts.LookbackDays)

	hits := 0
	step := time.Duration(opts.StepDays) * 24 * time.Hour

	for d := last.Add(-step); d.After(horizon); d = d.Add(-step) {
		// Time travel: completions known at d form the history, the
		// rest are the future this checkpoint is judged against.
		split, _ := slices.BinarySearchFunc(comps, d, func(c cycletime.Completion, t time.Time) int {
			if c.Done.After(t) {
				return 1
			}
			return -1
		})
		history, future := comps[:split], comps[split:]

		// Walking backwards only shrinks history, so stop here.
		if len(history) < opts.MinHistory {
			break
		}
		if len(future) < opts.ItemsPerCheckpoint {
			continue
		}

		samples := make([]float64, len(history))
		for i, c := range history {
			samples[i] = c.Days
		}

		engine := NewEngine(Options{
			Iterations: opts.Iterations,
			Workers:    opts.Workers,
			Seed:       &seed,
			Now:        d,
		})
		totals := engine.simulate(samples, opts.ItemsPerCheckpoint)

		actual := future[opts.ItemsPerCheckpoint-1].Done.Sub(d).Hours() / 24.0

		cp := Checkpoint{
			Date:         d,
			HistorySize:  len(history),
			Forecast:     opts.ItemsPerCheckpoint,
			ActualDays:   actual,
			PredictedP50: stats.PercentileSorted(totals, 50),
			PredictedP85: stats.PercentileSorted(totals, 85),
			PredictedP95: stats.PercentileSorted(totals, 95),
		}

		lo := stats.PercentileSorted(totals, 5)
		hi := cp.PredictedP95
		if actual >= lo-0.1 && actual <= hi+0.1 {
			cp.WithinCone = true
			hits++
		}

		result.Checkpoints = append(result.Checkpoints, cp)
	}

	slices.Reverse(result.Checkpoints)

	total := len(result.Checkpoints)
	if total > 0 {
		result.AccuracyScore = float64(hits) / float64(total)
		result.Message = fmt.Sprintf("Walk-forward validation: %d/%d (%.0f%%) of actual outcomes fell within the predicted P5-P95 cone.", hits, total, result.AccuracyScore*100)
	} else {
		result.Message = "Insufficient completed history for a meaningful backtest."
	}

	if result.AccuracyScore < 0.7 && total > 3 {
		result.Message += " Warning: low forecast reliability detected."
	}

	return result
}
