package criticalpath

import (
	"slices"

	"flowcast-mcp/internal/depgraph"
)

// Result is the outcome of a critical-path analysis. Cycles and the
// edges removed to break them are reported, never raised.
type Result struct {
	Path         []string         `json:"path"`
	TotalWeight  float64          `json:"total_weight"`
	Cycles       []depgraph.Cycle `json:"cycles,omitempty"`
	RemovedEdges []depgraph.Edge  `json:"removed_edges,omitempty"`
}

// Analyze computes the longest duration-weighted path through the
// graph. Cycles are broken first by removing the minimum-weight edge of
// each detected cycle; the acyclic remainder is topologically sorted
// and a single dynamic-programming pass finds the heaviest chain.
// Missing durations count as 0. Ties resolve toward the smaller node id
// so the result is deterministic.
func Analyze(g *depgraph.Graph, durations map[string]float64) *Result {
	result := &Result{Path: []string{}}

	working, cycles, removed := breakCycles(g, durations)
	result.Cycles = cycles
	result.RemovedEdges = removed

	a := newArena(working, durations)
	if len(a.nodes) == 0 {
		return result
	}

	order := a.topoOrder()

	longest := make([]float64, len(a.nodes))
	prev := make([]int, len(a.nodes))
	for _, v := range order {
		longest[v] = a.weight[v]
		prev[v] = -1
		for _, u := range a.in[v] {
			if longest[u]+a.weight[v] > longest[v] {
				longest[v] = longest[u] + a.weight[v]
				prev[v] = u
			}
		}
	}

	end := 0
	for v := 1; v < len(longest); v++ {
		if longest[v] > longest[end] {
			end = v
		}
	}

	for v := end; v != -1; v = prev[v] {
		result.Path = append(result.Path, a.nodes[v])
	}
	slices.Reverse(result.Path)
	result.TotalWeight = longest[end]

	return result
}

// breakCycles removes the minimum-weight edge of every detected cycle
// until the graph is acyclic. An edge's weight is its source node's
// duration (the work lost by ignoring the constraint). Cycles already
// broken by an earlier removal are reported but cost no further edge.
func breakCycles(g *depgraph.Graph, durations map[string]float64) (*depgraph.Graph, []depgraph.Cycle, []depgraph.Edge) {
	working := g
	var cycles []depgraph.Cycle
	var removed []depgraph.Edge

	for {
		found := depgraph.DetectCycles(working)
		if len(found) == 0 {
			return working, cycles, removed
		}
		for _, c := range found {
			cycles = append(cycles, c)
			if !cycleIntact(working, c) {
				continue
			}
			e := lightestEdge(c, durations)
			working = working.WithoutEdge(e.Source, e.Target)
			removed = append(removed, e)
		}
	}
}

// cycleEdges lists the edges of a cycle, including the closing edge
// from the last node back to the first.
func cycleEdges(c depgraph.Cycle) []depgraph.Edge {
	edges := make([]depgraph.Edge, 0, len(c))
	for i := range c {
		edges = append(edges, depgraph.Edge{
			Source: c[i],
			Target: c[(i+1)%len(c)],
		})
	}
	return edges
}

func cycleIntact(g *depgraph.Graph, c depgraph.Cycle) bool {
	for _, e := range cycleEdges(c) {
		if !g.HasEdge(e.Source, e.Target) {
			return false
		}
	}
	return true
}

func lightestEdge(c depgraph.Cycle, durations map[string]float64) depgraph.Edge {
	edges := cycleEdges(c)
	best := edges[0]
	for _, e := range edges[1:] {
		w, bw := durations[e.Source], durations[best.Source]
		if w < bw || (w == bw && (e.Source < best.Source || (e.Source == best.Source && e.Target < best.Target))) {
			best = e
		}
	}
	return best
}

// arena is a node-index view of a graph for the DP passes. Node indexes
// follow sorted id order, so index comparisons are id comparisons.
type arena struct {
	nodes  []string
	out    [][]int
	in     [][]int
	indeg  []int
	weight []float64
}

func newArena(g *depgraph.Graph, durations map[string]float64) *arena {
	nodes := g.Nodes()
	index := make(map[string]int, len(nodes))
	for i, id := range nodes {
		index[id] = i
	}

	a := &arena{
		nodes:  nodes,
		out:    make([][]int, len(nodes)),
		in:     make([][]int, len(nodes)),
		indeg:  make([]int, len(nodes)),
		weight: make([]float64, len(nodes)),
	}
	for i, id := range nodes {
		a.weight[i] = durations[id]
		for _, succ := range g.Successors(id) {
			j := index[succ]
			a.out[i] = append(a.out[i], j)
			a.in[j] = append(a.in[j], i)
			a.indeg[j]++
		}
	}
	for i := range a.in {
		slices.Sort(a.in[i])
	}
	return a
}

// topoOrder returns Kahn's ordering with the frontier kept sorted, so
// equal-rank nodes always appear in id order. The caller guarantees the
// graph is acyclic.
func (a *arena) topoOrder() []int {
	indeg := slices.Clone(a.indeg)

	var frontier []int
	for v := range a.nodes {
		if indeg[v] == 0 {
			frontier = append(frontier, v)
		}
	}

	order := make([]int, 0, len(a.nodes))
	for len(frontier) > 0 {
		v := frontier[0]
		frontier = frontier[1:]
		order = append(order, v)
		for _, w := range a.out[v] {
			indeg[w]--
			if indeg[w] == 0 {
				at, _ := slices.BinarySearch(frontier, w)
				frontier = slices.Insert(frontier, at, w)
			}
		}
	}
	return order
}
