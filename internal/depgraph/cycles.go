package depgraph

import "slices"

// Cycle is a closed walk of node ids. The edge from the last entry back
// to the first closes the loop; the smallest id is rotated to the front
// so the same cycle always prints the same way.
type Cycle []string

// DetectCycles finds the dependency cycles reachable in the graph using
// a depth-first search with white/grey/black coloring. Every back edge
// encountered yields one cycle, reconstructed through the parent chain.
// Runs in time linear in nodes plus edges, plus the length of the
// cycles reported.
func DetectCycles(g *Graph) []Cycle {
	const (
		white = iota // untouched
		grey         // on the current path
		black        // fully explored
	)

	n := g.NodeCount()
	color := make([]int, n)
	parent := make([]int, n)
	for i := range parent {
		parent[i] = -1
	}

	var cycles []Cycle

	var visit func(u int)
	visit = func(u int) {
		color[u] = grey
		for _, v := range g.out[u] {
			switch color[v] {
			case white:
				parent[v] = u
				visit(v)
			case grey:
				// Back edge u→v closes a cycle; walk parents from u
				// back to v to recover it.
				cycle := Cycle{g.nodes[v]}
				for w := u; w != v; w = parent[w] {
					cycle = append(cycle, g.nodes[w])
				}
				slices.Reverse(cycle[1:])
				cycles = append(cycles, canonical(cycle))
			}
		}
		color[u] = black
	}

	for u := 0; u < n; u++ {
		if color[u] == white {
			visit(u)
		}
	}

	return cycles
}

// HasCycle reports whether at least one cycle exists.
func HasCycle(g *Graph) bool {
	return len(DetectCycles(g)) > 0
}

// canonical rotates the cycle so the smallest id comes first, keeping
// the edge order intact.
func canonical(c Cycle) Cycle {
	lo := 0
	for i := 1; i < len(c); i++ {
		if c[i] < c[lo] {
			lo = i
		}
	}
	rotated := make(Cycle, 0, len(c))
	rotated = append(rotated, c[lo:]...)
	rotated = append(rotated, c[:lo]...)
	return rotated
}
