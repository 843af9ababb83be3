package depgraph

import (
	"slices"

	"flowcast-mcp/internal/tracker"
)

// BuildStats counts what happened while normalizing links into edges.
type BuildStats struct {
	LinksSeen           int `json:"links_seen"`
	EdgesAdded          int `json:"edges_added"`
	DuplicatesCollapsed int `json:"duplicates_collapsed"`
	SelfLoopsDropped    int `json:"self_loops_dropped"`
	RelatesIgnored      int `json:"relates_ignored"`
	UnknownTypesIgnored int `json:"unknown_types_ignored"`
}

// Build normalizes issue links into a directed blocking graph.
// BLOCKS(a, b) and BLOCKED_BY(b, a) both mean a must finish before b
// and collapse to the single edge a→b. RELATES links carry no ordering
// and are ignored. Self-loops are dropped, duplicates collapse, and
// only issues touched by a kept edge become nodes.
func Build(links []tracker.LinkRecord) (*Graph, BuildStats) {
	stats := BuildStats{LinksSeen: len(links)}

	type pair struct{ source, target string }
	seen := make(map[pair]bool, len(links))
	var pairs []pair

	for _, link := range links {
		var p pair
		switch link.Type {
		case tracker.LinkBlocks:
			p = pair{link.SourceID, link.TargetID}
		case tracker.LinkBlockedBy:
			p = pair{link.TargetID, link.SourceID}
		case tracker.LinkRelates:
			stats.RelatesIgnored++
			continue
		default:
			stats.UnknownTypesIgnored++
			continue
		}

		if p.source == p.target {
			stats.SelfLoopsDropped++
			continue
		}
		if seen[p] {
			stats.DuplicatesCollapsed++
			continue
		}
		seen[p] = true
		pairs = append(pairs, p)
	}

	idSet := make(map[string]bool, len(pairs)*2)
	for _, p := range pairs {
		idSet[p.source] = true
		idSet[p.target] = true
	}
	nodes := make([]string, 0, len(idSet))
	for id := range idSet {
		nodes = append(nodes, id)
	}
	slices.Sort(nodes)

	g := &Graph{
		nodes: nodes,
		index: make(map[string]int, len(nodes)),
		out:   make([][]int, len(nodes)),
		in:    make([][]int, len(nodes)),
	}
	for i, id := range nodes {
		g.index[id] = i
	}

	for _, p := range pairs {
		s, t := g.index[p.source], g.index[p.target]
		g.out[s] = append(g.out[s], t)
		g.in[t] = append(g.in[t], s)
		g.edges++
		stats.EdgesAdded++
	}
	for n := range g.out {
		slices.Sort(g.out[n])
		slices.Sort(g.in[n])
	}

	return g, stats
}
