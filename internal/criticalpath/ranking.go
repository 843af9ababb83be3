package criticalpath

import (
	"slices"

	"flowcast-mcp/internal/depgraph"
)

// BlockingIssue reports how much work one node is holding up: how many
// distinct cohorts sit downstream of it and the weight of the heaviest
// chain it blocks. RankScore is the product of the two.
type BlockingIssue struct {
	NodeID           string  `json:"node_id"`
	BlockedCohorts   int     `json:"blocked_cohorts"`
	DownstreamWeight float64 `json:"downstream_weight"`
	RankScore        float64 `json:"rank_score"`
}

// RankBlockingIssues scores every node that blocks at least one other.
// The downstream weight is the heaviest duration chain strictly below
// the node; blocked cohorts are the distinct cohort keys of every node
// reachable through outgoing edges. Cycles are broken the same way
// Analyze breaks them before the chain weights are computed. The
// report is sorted by rank score descending, ties by node id ascending.
func RankBlockingIssues(g *depgraph.Graph, durations map[string]float64, cohortOf map[string]string) []BlockingIssue {
	working, _, _ := breakCycles(g, durations)
	a := newArena(working, durations)
	if len(a.nodes) == 0 {
		return nil
	}

	// chain[v] is the weight of the heaviest path starting at v,
	// including v itself. Computed leaf-first.
	order := a.topoOrder()
	chain := make([]float64, len(a.nodes))
	for i := len(order) - 1; i >= 0; i-- {
		v := order[i]
		chain[v] = a.weight[v]
		for _, w := range a.out[v] {
			if a.weight[v]+chain[w] > chain[v] {
				chain[v] = a.weight[v] + chain[w]
			}
		}
	}

	var report []BlockingIssue
	for v := range a.nodes {
		if len(a.out[v]) == 0 {
			continue
		}

		downstream := 0.0
		for _, w := range a.out[v] {
			if chain[w] > downstream {
				downstream = chain[w]
			}
		}

		cohorts := make(map[string]bool)
		for _, u := range a.reachableFrom(v) {
			cohorts[cohortOf[a.nodes[u]]] = true
		}

		report = append(report, BlockingIssue{
			NodeID:           a.nodes[v],
			BlockedCohorts:   len(cohorts),
			DownstreamWeight: downstream,
			RankScore:        float64(len(cohorts)) * downstream,
		})
	}

	slices.SortFunc(report, func(x, y BlockingIssue) int {
		switch {
		case x.RankScore > y.RankScore:
			return -1
		case x.RankScore < y.RankScore:
			return 1
		case x.NodeID < y.NodeID:
			return -1
		case x.NodeID > y.NodeID:
			return 1
		}
		return 0
	})

	return report
}

// reachableFrom walks outgoing edges breadth-first and returns every
// node below start, not including start itself.
func (a *arena) reachableFrom(start int) []int {
	visited := make(map[int]bool)
	queue := slices.Clone(a.out[start])
	var reached []int

	for len(queue) > 0 {
		v := queue[0]
		queue = queue[1:]
		if visited[v] || v == start {
			continue
		}
		visited[v] = true
		reached = append(reached, v)
		queue = append(queue, a.out[v]...)
	}
	return reached
}
