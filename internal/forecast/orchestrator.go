package forecast

import (
	"slices"
	"time"

	"flowcast-mcp/internal/criticalpath"
	"flowcast-mcp/internal/cycletime"
	"flowcast-mcp/internal/depgraph"
	"flowcast-mcp/internal/simulation"
	"flowcast-mcp/internal/tracker"
)

// Params carries every knob the orchestrator threads through the core.
// All of it arrives as plain values; nothing here reads configuration
// or the environment.
type Params struct {
	InProgressLabels []string
	DoneLabels       []string
	Cohort           string // empty means pool all cohorts
	MinSamples       int
	Iterations       int
	Workers          int
	Seed             *int64
	Now              time.Time
	Window           *cycletime.Window
}

func (p Params) collectOptions() cycletime.Options {
	return cycletime.Options{
		InProgressLabels: p.InProgressLabels,
		DoneLabels:       p.DoneLabels,
		MinSamples:       p.MinSamples,
		Window:           p.Window,
	}
}

func (p Params) minSamples() int {
	if p.MinSamples > 0 {
		return p.MinSamples
	}
	return cycletime.DefaultMinSamples
}

// CompletionForecast is a forecast run plus the collection counters of
// the pass that produced its input distribution.
type CompletionForecast struct {
	simulation.ForecastResult
	Cohort     string            `json:"cohort,omitempty"`
	Collection cycletime.Summary `json:"collection"`
}

// ForecastCompletion collects cycle times from the issues and forecasts
// completion of the remaining items. With a cohort set only that
// cohort's samples feed the simulation; otherwise every sample pools
// into one distribution in collection order.
func ForecastCompletion(issues []tracker.IssueRecord, remaining int, p Params) (*CompletionForecast, error) {
	comps, summary := cycletime.Completions(issues, p.collectOptions())

	dist := &cycletime.Distribution{Cohort: p.Cohort}
	for _, c := range comps {
		if p.Cohort != "" && c.Cohort != p.Cohort {
			continue
		}
		dist.Add(c.Days, p.minSamples())
	}

	engine := simulation.NewEngine(simulation.Options{
		Iterations: p.Iterations,
		Workers:    p.Workers,
		Seed:       p.Seed,
		Now:        p.Now,
	})
	res, err := engine.Forecast(dist, remaining)
	if err != nil {
		return nil, err
	}

	return &CompletionForecast{
		ForecastResult: *res,
		Cohort:         p.Cohort,
		Collection:     summary,
	}, nil
}

// DependencyAnalysisResult bundles the graph, its critical path, the
// blocking-issue ranking and the inputs derived along the way.
type DependencyAnalysisResult struct {
	Graph          depgraph.View                `json:"graph"`
	LinkStats      depgraph.BuildStats          `json:"link_stats"`
	CriticalPath   *criticalpath.Result         `json:"critical_path"`
	BlockingReport []criticalpath.BlockingIssue `json:"blocking_report"`
	NodeDurations  map[string]float64           `json:"node_durations"`
	CohortMedians  map[string]float64           `json:"cohort_medians"`
	Collection     cycletime.Summary            `json:"collection"`
}

// AnalyzeDependencies builds the blocking graph and computes the
// critical path and blocking ranks. Node durations are the median
// cycle time of the node's cohort, a plain 50th-percentile sample
// value, never a simulated forecast. Nodes without issue or cohort
// data keep the 0-duration default. When links is nil the links
// attached to the issues are used. Graph problems are reported in the
// result, never raised.
func AnalyzeDependencies(issues []tracker.IssueRecord, links []tracker.LinkRecord, p Params) *DependencyAnalysisResult {
	if links == nil {
		links = tracker.FlattenLinks(issues)
	}

	graph, linkStats := depgraph.Build(links)

	dists, summary := cycletime.Collect(issues, p.collectOptions())
	medians := make(map[string]float64, len(dists))
	for cohort, d := range dists {
		medians[cohort] = d.Median()
	}

	cohortOf := make(map[string]string, len(issues))
	for _, issue := range issues {
		cohortOf[issue.ID] = issue.Cohort
	}

	durations := make(map[string]float64)
	for _, id := range graph.Nodes() {
		cohort, ok := cohortOf[id]
		if !ok {
			continue
		}
		if m, ok := medians[cohort]; ok {
			durations[id] = m
		}
	}

	return &DependencyAnalysisResult{
		Graph:          graph.View(),
		LinkStats:      linkStats,
		CriticalPath:   criticalpath.Analyze(graph, durations),
		BlockingReport: criticalpath.RankBlockingIssues(graph, durations, cohortOf),
		NodeDurations:  durations,
		CohortMedians:  medians,
		Collection:     summary,
	}
}

// CohortStats summarizes one cohort's cycle-time distribution.
type CohortStats struct {
	Cohort        string  `json:"cohort,omitempty"`
	SampleCount   int     `json:"sample_count"`
	MedianDays    float64 `json:"median_days"`
	P85Days       float64 `json:"p85_days"`
	MinDays       float64 `json:"min_days"`
	MaxDays       float64 `json:"max_days"`
	LowConfidence bool    `json:"low_confidence"`
}

// CycleTimeSummary is the per-cohort and pooled view of collected
// cycle times.
type CycleTimeSummary struct {
	Cohorts    []CohortStats     `json:"cohorts"`
	Overall    CohortStats       `json:"overall"`
	Collection cycletime.Summary `json:"collection"`
}

// SummarizeCycleTimes reports cycle-time statistics per cohort, sorted
// by cohort key, plus a pooled overall row.
func SummarizeCycleTimes(issues []tracker.IssueRecord, p Params) *CycleTimeSummary {
	dists, summary := cycletime.Collect(issues, p.collectOptions())

	cohorts := make([]string, 0, len(dists))
	for cohort := range dists {
		cohorts = append(cohorts, cohort)
	}
	slices.Sort(cohorts)

	out := &CycleTimeSummary{
		Cohorts:    make([]CohortStats, 0, len(dists)),
		Collection: summary,
	}

	for _, cohort := range cohorts {
		out.Cohorts = append(out.Cohorts, cohortStats(cohort, dists[cohort]))
	}

	overall := cycletime.Merge("", p.minSamples(), orderedDists(cohorts, dists)...)
	out.Overall = cohortStats("", overall)

	return out
}

func orderedDists(cohorts []string, dists map[string]*cycletime.Distribution) []*cycletime.Distribution {
	ordered := make([]*cycletime.Distribution, len(cohorts))
	for i, cohort := range cohorts {
		ordered[i] = dists[cohort]
	}
	return ordered
}

func cohortStats(cohort string, d *cycletime.Distribution) CohortStats {
	cs := CohortStats{
		Cohort:        cohort,
		SampleCount:   d.Len(),
		LowConfidence: d.LowConfidence,
	}
	if d.Len() == 0 {
		return cs
	}
	cs.MedianDays = d.Median()
	cs.P85Days = d.Percentile(85)
	cs.MinDays = slices.Min(d.Samples)
	cs.MaxDays = slices.Max(d.Samples)
	return cs
}

// BacktestForecast validates the forecaster against the issues' own
// history. A cohort in Params narrows the replay to that cohort's
// issues; labels, seed, workers and sample threshold flow through from
// Params when the backtest options leave them unset.
func BacktestForecast(issues []tracker.IssueRecord, p Params, opts simulation.BacktestOptions) *simulation.BacktestResult {
	if p.Cohort != "" {
		filtered := make([]tracker.IssueRecord, 0, len(issues))
		for _, issue := range issues {
			if issue.Cohort == p.Cohort {
				filtered = append(filtered, issue)
			}
		}
		issues = filtered
	}

	opts.InProgressLabels = p.InProgressLabels
	opts.DoneLabels = p.DoneLabels
	if opts.Seed == nil {
		opts.Seed = p.Seed
	}
	if opts.Workers == 0 {
		opts.Workers = p.Workers
	}
	if opts.MinHistory == 0 {
		opts.MinHistory = p.MinSamples
	}

	return simulation.Backtest(issues, opts)
}
