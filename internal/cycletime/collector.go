package cycletime

import (
	"strings"
	"time"

	"flowcast-mcp/internal/tracker"
)

const hoursPerDay = 24.0

// Options configures a collection pass. Label matching is
// case-insensitive exact match; no cohort normalization or inference
// happens here.
type Options struct {
	InProgressLabels []string
	DoneLabels       []string
	MinSamples       int     // below this a distribution is low-confidence; 0 means DefaultMinSamples
	Window           *Window // optional: keep only samples completed inside the window
}

// Summary counts what happened during a collection pass. Malformed
// timelines are skipped, never errors.
type Summary struct {
	IssuesSeen           int `json:"issues_seen"`
	Samples              int `json:"samples"`
	Skipped              int `json:"skipped"`
	SkippedMissingStart  int `json:"skipped_missing_start"`
	SkippedMissingDone   int `json:"skipped_missing_done"`
	SkippedInverted      int `json:"skipped_inverted"`
	SkippedOutsideWindow int `json:"skipped_outside_window"`
}

// Completion is one measured issue: when it finished and how long it
// took, in fractional days.
type Completion struct {
	IssueID string    `json:"issue_id"`
	Cohort  string    `json:"cohort"`
	Done    time.Time `json:"done"`
	Days    float64   `json:"days"`
}

// Completions extracts one cycle-time measurement per issue that has a
// usable timeline: the first transition into any in-progress label,
// then the first subsequent transition into any done label. The
// measurement is the elapsed time between the two in fractional days.
// Pure function over its inputs.
func Completions(issues []tracker.IssueRecord, opts Options) ([]Completion, Summary) {
	inProgress := labelSet(opts.InProgressLabels)
	done := labelSet(opts.DoneLabels)

	comps := make([]Completion, 0, len(issues))
	summary := Summary{}

	for _, issue := range issues {
		summary.IssuesSeen++

		startIdx := firstInto(issue.Transitions, inProgress, 0)
		if startIdx < 0 {
			summary.Skipped++
			summary.SkippedMissingStart++
			continue
		}

		doneIdx := firstInto(issue.Transitions, done, startIdx+1)
		if doneIdx < 0 {
			summary.Skipped++
			summary.SkippedMissingDone++
			continue
		}

		start := issue.Transitions[startIdx].At
		end := issue.Transitions[doneIdx].At
		if !end.After(start) {
			summary.Skipped++
			summary.SkippedInverted++
			continue
		}

		if opts.Window != nil && !opts.Window.IsZero() && !opts.Window.Contains(end) {
			summary.Skipped++
			summary.SkippedOutsideWindow++
			continue
		}

		comps = append(comps, Completion{
			IssueID: issue.ID,
			Cohort:  issue.Cohort,
			Done:    end,
			Days:    end.Sub(start).Hours() / hoursPerDay,
		})
		summary.Samples++
	}

	return comps, summary
}

// Collect runs Completions and groups the measurements into per-cohort
// distributions.
func Collect(issues []tracker.IssueRecord, opts Options) (map[string]*Distribution, Summary) {
	minSamples := opts.MinSamples
	if minSamples <= 0 {
		minSamples = DefaultMinSamples
	}

	comps, summary := Completions(issues, opts)

	dists := make(map[string]*Distribution)
	for _, c := range comps {
		dist, ok := dists[c.Cohort]
		if !ok {
			dist = &Distribution{Cohort: c.Cohort}
			dists[c.Cohort] = dist
		}
		dist.Add(c.Days, minSamples)
	}

	return dists, summary
}

// firstInto returns the index of the first transition at or after from
// whose status is in the label set, or -1. Transitions are scanned in
// slice order, which callers keep chronological.
func firstInto(transitions []tracker.Transition, labels map[string]bool, from int) int {
	for i := from; i < len(transitions); i++ {
		if labels[strings.ToLower(transitions[i].Status)] {
			return i
		}
	}
	return -1
}

func labelSet(labels []string) map[string]bool {
	set := make(map[string]bool, len(labels))
	for _, l := range labels {
		set[strings.ToLower(l)] = true
	}
	return set
}
