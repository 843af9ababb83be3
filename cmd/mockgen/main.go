package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"flowcast-mcp/cmd/mockgen/engine"
)

func main() {
	scenario := flag.String("scenario", "mild", "Scenario to generate: mild, chaos, drift")
	distribution := flag.String("distribution", "uniform", "Distribution to use: uniform, weibull")
	cohorts := flag.String("cohorts", "payments,checkout,platform", "Comma-separated cohort names")
	count := flag.Int("count", 200, "Number of issues to generate")
	cycle := flag.Bool("cycle", false, "Inject one blocking cycle into the link graph")
	outDir := flag.String("out", "./.cache", "Output directory for the snapshot files")
	snapshotID := flag.String("id", "mock", "Snapshot id to write")
	seed := flag.Int64("seed", 0, "RNG seed, 0 seeds from the clock")
	flag.Parse()

	cfg := engine.GeneratorConfig{
		Scenario:     *scenario,
		Distribution: *distribution,
		Cohorts:      strings.Split(*cohorts, ","),
		Count:        *count,
		InjectCycle:  *cycle,
		Seed:         *seed,
		Now:          time.Now(),
	}

	fmt.Printf("Generating scenario '%s' (Distribution: %s, Count: %d) to %s...\n", cfg.Scenario, cfg.Distribution, cfg.Count, *outDir)

	issues, links := engine.Generate(cfg)

	if err := engine.Save(*outDir, *snapshotID, issues, links); err != nil {
		fmt.Printf("Failed to save mock data: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Done. Wrote %d issues and %d links as snapshot '%s'.\n", len(issues), len(links), *snapshotID)
}
