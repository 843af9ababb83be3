package criticalpath

import (
	"reflect"
	"testing"

	"flowcast-mcp/internal/depgraph"
	"flowcast-mcp/internal/tracker"
)

func blocks(source, target string) tracker.LinkRecord {
	return tracker.LinkRecord{SourceID: source, TargetID: target, Type: tracker.LinkBlocks}
}

func buildGraph(t *testing.T, links ...tracker.LinkRecord) *depgraph.Graph {
	t.Helper()
	g, _ := depgraph.Build(links)
	return g
}

func TestAnalyzePicksHeaviestPath(t *testing.T) {
	g := buildGraph(t,
		blocks("A", "B"),
		blocks("B", "C"),
		blocks("A", "C"),
	)
	durations := map[string]float64{"A": 2, "B": 3, "C": 1}

	res := Analyze(g, durations)

	if want := []string{"A", "B", "C"}; !reflect.DeepEqual(res.Path, want) {
		t.Errorf("Path = %v, want %v (the heavier route, not the A→C shortcut)", res.Path, want)
	}
	if res.TotalWeight != 6 {
		t.Errorf("TotalWeight = %v, want 6", res.TotalWeight)
	}
	if len(res.Cycles) != 0 || len(res.RemovedEdges) != 0 {
		t.Errorf("DAG analysis reported cycles: %+v", res)
	}
}

func TestAnalyzeBreaksCycles(t *testing.T) {
	g := buildGraph(t,
		blocks("A", "B"),
		blocks("B", "C"),
		blocks("C", "A"),
	)
	durations := map[string]float64{"A": 2, "B": 3, "C": 1}

	res := Analyze(g, durations)

	if len(res.Cycles) != 1 {
		t.Fatalf("got %d cycles, want 1: %+v", len(res.Cycles), res.Cycles)
	}
	if want := (depgraph.Cycle{"A", "B", "C"}); !reflect.DeepEqual(res.Cycles[0], want) {
		t.Errorf("cycle = %v, want %v", res.Cycles[0], want)
	}

	// The cheapest constraint to ignore is the one leaving C (duration 1).
	wantRemoved := []depgraph.Edge{{Source: "C", Target: "A"}}
	if !reflect.DeepEqual(res.RemovedEdges, wantRemoved) {
		t.Errorf("RemovedEdges = %v, want %v", res.RemovedEdges, wantRemoved)
	}

	if want := []string{"A", "B", "C"}; !reflect.DeepEqual(res.Path, want) {
		t.Errorf("Path = %v, want %v", res.Path, want)
	}
	if res.TotalWeight != 6 {
		t.Errorf("TotalWeight = %v, want 6", res.TotalWeight)
	}
}

func TestAnalyzeMissingDurationsDefaultToZero(t *testing.T) {
	g := buildGraph(t,
		blocks("A", "B"),
		blocks("B", "C"),
	)

	res := Analyze(g, map[string]float64{"B": 4})

	if want := []string{"A", "B"}; !reflect.DeepEqual(res.Path, want) {
		t.Errorf("Path = %v, want %v", res.Path, want)
	}
	if res.TotalWeight != 4 {
		t.Errorf("TotalWeight = %v, want 4", res.TotalWeight)
	}
}

func TestAnalyzeTieBreaksBySmallerID(t *testing.T) {
	// Two equally heavy routes into C; the one through the smaller id wins.
	g := buildGraph(t,
		blocks("A", "C"),
		blocks("B", "C"),
	)
	durations := map[string]float64{"A": 2, "B": 2, "C": 1}

	res := Analyze(g, durations)

	if want := []string{"A", "C"}; !reflect.DeepEqual(res.Path, want) {
		t.Errorf("Path = %v, want %v", res.Path, want)
	}
	if res.TotalWeight != 3 {
		t.Errorf("TotalWeight = %v, want 3", res.TotalWeight)
	}
}

func TestAnalyzeEmptyGraph(t *testing.T) {
	g, _ := depgraph.Build(nil)

	res := Analyze(g, nil)

	if len(res.Path) != 0 {
		t.Errorf("Path = %v, want empty", res.Path)
	}
	if res.TotalWeight != 0 {
		t.Errorf("TotalWeight = %v, want 0", res.TotalWeight)
	}
}

func TestRankBlockingIssuesTieBreak(t *testing.T) {
	// X blocks two cohorts with downstream weight 10 (score 20).
	// Y blocks one cohort with downstream weight 20 (score 20).
	// Equal scores must order by node id.
	g := buildGraph(t,
		blocks("X", "P"),
		blocks("X", "Q"),
		blocks("Y", "R"),
	)
	durations := map[string]float64{"P": 10, "Q": 4, "R": 20}
	cohorts := map[string]string{"P": "alpha", "Q": "beta", "R": "gamma"}

	report := RankBlockingIssues(g, durations, cohorts)

	if len(report) != 2 {
		t.Fatalf("got %d entries, want 2 (leaves are not blockers): %+v", len(report), report)
	}

	x, y := report[0], report[1]
	if x.NodeID != "X" || y.NodeID != "Y" {
		t.Fatalf("order = [%s, %s], want [X, Y] by id on equal scores", x.NodeID, y.NodeID)
	}
	if x.BlockedCohorts != 2 || x.DownstreamWeight != 10 || x.RankScore != 20 {
		t.Errorf("X = %+v, want 2 cohorts, weight 10, score 20", x)
	}
	if y.BlockedCohorts != 1 || y.DownstreamWeight != 20 || y.RankScore != 20 {
		t.Errorf("Y = %+v, want 1 cohort, weight 20, score 20", y)
	}
}

func TestRankBlockingIssuesChainWeight(t *testing.T) {
	g := buildGraph(t,
		blocks("X", "A"),
		blocks("A", "B"),
	)
	durations := map[string]float64{"X": 5, "A": 2, "B": 3}
	cohorts := map[string]string{"X": "ops", "A": "alpha", "B": "beta"}

	report := RankBlockingIssues(g, durations, cohorts)

	if len(report) != 2 {
		t.Fatalf("got %d entries, want 2: %+v", len(report), report)
	}

	x := report[0]
	if x.NodeID != "X" {
		t.Fatalf("top blocker = %s, want X", x.NodeID)
	}
	// Heaviest chain below X is A then B: 2 + 3.
	if x.DownstreamWeight != 5 {
		t.Errorf("DownstreamWeight = %v, want 5", x.DownstreamWeight)
	}
	if x.BlockedCohorts != 2 {
		t.Errorf("BlockedCohorts = %d, want 2", x.BlockedCohorts)
	}
	if x.RankScore != 10 {
		t.Errorf("RankScore = %v, want 10", x.RankScore)
	}
}

func TestRankBlockingIssuesUnknownCohortCountsOnce(t *testing.T) {
	g := buildGraph(t,
		blocks("X", "P"),
		blocks("X", "Q"),
	)
	durations := map[string]float64{"P": 1, "Q": 2}

	report := RankBlockingIssues(g, durations, nil)

	if len(report) != 1 {
		t.Fatalf("got %d entries, want 1: %+v", len(report), report)
	}
	if report[0].BlockedCohorts != 1 {
		t.Errorf("BlockedCohorts = %d, want 1 (unlabelled nodes pool into one bucket)", report[0].BlockedCohorts)
	}
}

func TestRankBlockingIssuesOnCyclicGraph(t *testing.T) {
	g := buildGraph(t,
		blocks("A", "B"),
		blocks("B", "A"),
	)
	durations := map[string]float64{"A": 2, "B": 3}
	cohorts := map[string]string{"A": "alpha", "B": "beta"}

	report := RankBlockingIssues(g, durations, cohorts)

	// The A→B→A cycle must not hang or double-count. The cheaper
	// constraint (leaving A, duration 2) is dropped, so only B→A
	// survives and B is the lone blocker.
	if len(report) != 1 {
		t.Fatalf("got %d entries, want 1: %+v", len(report), report)
	}
	if report[0].NodeID != "B" {
		t.Errorf("blocker = %s, want B", report[0].NodeID)
	}
	if report[0].DownstreamWeight != 2 {
		t.Errorf("DownstreamWeight = %v, want 2", report[0].DownstreamWeight)
	}
}
