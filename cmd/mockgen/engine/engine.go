package engine

import (
	"fmt"
	"math"
	"math/rand"
	"time"

	"flowcast-mcp/internal/snapshot"
	"flowcast-mcp/internal/tracker"
)

type GeneratorConfig struct {
	Scenario     string
	Distribution string // "uniform" or "weibull"
	Cohorts      []string
	Count        int
	InjectCycle  bool
	Seed         int64 // 0 seeds from the clock
	Now          time.Time
}

// Generate builds synthetic issues with an Open -> In Progress -> Done
// lifecycle and scenario-shaped cycle times, plus blocking links that
// prefer cross-cohort pairs. Items too young to have finished stay in
// Open or In Progress.
func Generate(cfg GeneratorConfig) ([]tracker.IssueRecord, []tracker.LinkRecord) {
	if cfg.Now.IsZero() {
		cfg.Now = time.Now()
	}
	if len(cfg.Cohorts) == 0 {
		cfg.Cohorts = []string{"default"}
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))

	issues := make([]tracker.IssueRecord, 0, cfg.Count)

	// We want the last arrival to be today (cfg.Now)
	// Average arrival rate: 1 per day
	tArrival := cfg.Now.AddDate(0, 0, -cfg.Count)

	for i := 0; i < cfg.Count; i++ {
		id := fmt.Sprintf("MOCK-%d", i+1)
		cohort := cfg.Cohorts[i%len(cfg.Cohorts)]
		arrival := tArrival.Add(time.Duration(i*24) * time.Hour)

		// 1. Determine Parameters
		k, lambda := 2.5, 9.5 // Mild: targeted at ~8.4 day total cycle
		switch cfg.Scenario {
		case "chaos":
			k = 0.8
			if cfg.Distribution == "weibull" {
				lambda = 12.0
			}
		case "drift":
			ratio := float64(i) / float64(cfg.Count)
			k = 2.5 - (1.7 * ratio) // Shift 2.5 -> 0.8
			lambda = 9.5 + (2.5 * ratio)
		}

		// 2. Sample Total Cycle Time (Duration)
		var totalDuration float64
		if cfg.Distribution == "weibull" {
			totalDuration = weibullSample(rng, k, lambda)
		} else {
			// Uniform baseline: 6-11 days
			totalDuration = 6.0 + rng.Float64()*5.0
			if cfg.Scenario == "chaos" && rng.Float64() < 0.2 {
				totalDuration += 10 + rng.Float64()*15 // Controlled Black Swans
			}
			if cfg.Scenario == "drift" && i > cfg.Count/2 {
				totalDuration *= 2.0
			}
		}

		rec := tracker.IssueRecord{
			ID:          id,
			Cohort:      cohort,
			Transitions: []tracker.Transition{{Status: "Open", At: arrival}},
		}

		// Work starts at 40% of the sampled duration, finishes at 100%.
		// Events in the future stay unwritten so WIP looks like WIP.
		tStart := arrival.Add(time.Duration(totalDuration*0.40*24) * time.Hour)
		if tStart.Before(cfg.Now) {
			rec.Transitions = append(rec.Transitions, tracker.Transition{Status: "In Progress", At: tStart})

			tDone := arrival.Add(time.Duration(totalDuration*24) * time.Hour)
			if tDone.Before(cfg.Now) {
				rec.Transitions = append(rec.Transitions, tracker.Transition{Status: "Done", At: tDone})
				done := tDone
				rec.Resolved = &done
			}
		}

		issues = append(issues, rec)
	}

	return issues, generateLinks(rng, issues, cfg.InjectCycle)
}

// generateLinks wires roughly one in eight issues as a blocker of a
// nearby later issue, skewed towards cross-cohort pairs. With
// InjectCycle set the first three issues close a blocking loop.
func generateLinks(rng *rand.Rand, issues []tracker.IssueRecord, injectCycle bool) []tracker.LinkRecord {
	var links []tracker.LinkRecord

	for i := range issues {
		if i+1 >= len(issues) || rng.Float64() >= 0.125 {
			continue
		}
		span := len(issues) - i - 1
		if span > 10 {
			span = 10
		}
		j := i + 1 + rng.Intn(span)

		// Re-roll once if the pair landed in the same cohort.
		if issues[i].Cohort == issues[j].Cohort {
			j = i + 1 + rng.Intn(span)
		}

		links = append(links, tracker.LinkRecord{
			SourceID: issues[i].ID,
			TargetID: issues[j].ID,
			Type:     tracker.LinkBlocks,
		})
	}

	if injectCycle && len(issues) >= 3 {
		a, b, c := issues[0].ID, issues[1].ID, issues[2].ID
		links = append(links,
			tracker.LinkRecord{SourceID: a, TargetID: b, Type: tracker.LinkBlocks},
			tracker.LinkRecord{SourceID: b, TargetID: c, Type: tracker.LinkBlocks},
			tracker.LinkRecord{SourceID: c, TargetID: a, Type: tracker.LinkBlocks},
		)
	}

	return links
}

func weibullSample(rng *rand.Rand, k, lambda float64) float64 {
	u := rng.Float64()
	if u == 0 {
		u = 0.0001
	}
	// X = lambda * (-ln(1-u))^(1/k)
	return lambda * math.Pow(-math.Log(1.0-u), 1.0/k)
}

// Save writes the generated dataset through the snapshot store, so the
// server restores it with load_snapshot from_cache (or at startup).
func Save(outDir, snapshotID string, issues []tracker.IssueRecord, links []tracker.LinkRecord) error {
	store := snapshot.NewStore()
	store.Put(snapshotID, issues, links)
	return store.Save(outDir, snapshotID)
}
