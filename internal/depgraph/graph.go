package depgraph

import "slices"

// Edge is a directed blocking relationship: Source must finish before
// Target can finish.
type Edge struct {
	Source string `json:"source"`
	Target string `json:"target"`
}

// Graph is an immutable directed graph over issue ids. Nodes are kept
// sorted and addressed by index internally; adjacency lists hold node
// indexes in sorted order, so every traversal is deterministic.
type Graph struct {
	nodes []string
	index map[string]int
	out   [][]int
	in    [][]int
	edges int
}

// NodeCount returns the number of nodes.
func (g *Graph) NodeCount() int { return len(g.nodes) }

// EdgeCount returns the number of distinct edges.
func (g *Graph) EdgeCount() int { return g.edges }

// Nodes returns all node ids in sorted order.
func (g *Graph) Nodes() []string {
	return slices.Clone(g.nodes)
}

// HasNode reports whether id appears in the graph.
func (g *Graph) HasNode(id string) bool {
	_, ok := g.index[id]
	return ok
}

// HasEdge reports whether the edge source→target exists.
func (g *Graph) HasEdge(source, target string) bool {
	s, ok := g.index[source]
	if !ok {
		return false
	}
	t, ok := g.index[target]
	if !ok {
		return false
	}
	_, found := slices.BinarySearch(g.out[s], t)
	return found
}

// Successors returns the ids that id blocks, in sorted order.
func (g *Graph) Successors(id string) []string {
	return g.resolve(g.out, id)
}

// Predecessors returns the ids that block id, in sorted order.
func (g *Graph) Predecessors(id string) []string {
	return g.resolve(g.in, id)
}

func (g *Graph) resolve(adj [][]int, id string) []string {
	n, ok := g.index[id]
	if !ok {
		return nil
	}
	ids := make([]string, len(adj[n]))
	for i, m := range adj[n] {
		ids[i] = g.nodes[m]
	}
	return ids
}

// Edges returns every edge sorted by source then target.
func (g *Graph) Edges() []Edge {
	edges := make([]Edge, 0, g.edges)
	for s, targets := range g.out {
		for _, t := range targets {
			edges = append(edges, Edge{Source: g.nodes[s], Target: g.nodes[t]})
		}
	}
	return edges
}

// View is a flattened, serializable snapshot of the graph.
type View struct {
	Nodes []string `json:"nodes"`
	Edges []Edge   `json:"edges"`
}

// View exports the graph for callers that render or serialize it.
func (g *Graph) View() View {
	return View{Nodes: g.Nodes(), Edges: g.Edges()}
}

// WithoutEdge returns a copy of the graph with the edge source→target
// removed. The node set is unchanged, even if a node keeps no edges.
// The receiver is returned as is when the edge does not exist.
func (g *Graph) WithoutEdge(source, target string) *Graph {
	if !g.HasEdge(source, target) {
		return g
	}
	s, t := g.index[source], g.index[target]

	copied := &Graph{
		nodes: g.nodes,
		index: g.index,
		out:   slices.Clone(g.out),
		in:    slices.Clone(g.in),
		edges: g.edges - 1,
	}
	copied.out[s] = remove(copied.out[s], t)
	copied.in[t] = remove(copied.in[t], s)
	return copied
}

func remove(sorted []int, v int) []int {
	i, _ := slices.BinarySearch(sorted, v)
	return slices.Delete(slices.Clone(sorted), i, i+1)
}
