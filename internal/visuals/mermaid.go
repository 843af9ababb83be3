package visuals

import (
	"fmt"
	"math"
	"slices"
	"strings"

	"flowcast-mcp/internal/criticalpath"
	"flowcast-mcp/internal/depgraph"
	"flowcast-mcp/internal/simulation"
)

// GenerateForecastCDF creates a Mermaid bar chart showing the cumulative
// probability distribution of the completion forecast.
func GenerateForecastCDF(result simulation.ForecastResult) string {
	if len(result.ElapsedDays) == 0 {
		return ""
	}

	percentiles := make([]int, 0, len(result.ElapsedDays))
	for p := range result.ElapsedDays {
		percentiles = append(percentiles, p)
	}
	slices.Sort(percentiles)

	var labels []string
	var values []string
	maxVal := 0.0
	for _, p := range percentiles {
		days := result.ElapsedDays[p]
		labels = append(labels, fmt.Sprintf("\"%s\"", confidenceLabel(p)))
		values = append(values, fmt.Sprintf("%.1f", days))
		if days > maxVal {
			maxVal = days
		}
	}

	if maxVal == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("```mermaid\n")
	sb.WriteString("xychart-beta\n")
	sb.WriteString("    title \"Completion Forecast (Cumulative Probability)\"\n")
	sb.WriteString(fmt.Sprintf("    x-axis [%s]\n", strings.Join(labels, ", ")))
	sb.WriteString(fmt.Sprintf("    y-axis \"Days Until Done\" 0 --> %d\n", int(math.Ceil(maxVal*1.1))))
	sb.WriteString(fmt.Sprintf("    bar [%s]\n", strings.Join(values, ", ")))
	sb.WriteString("```")
	return sb.String()
}

func confidenceLabel(p int) string {
	switch p {
	case 50:
		return "50% (Coin Toss)"
	case 85:
		return "85% (Likely)"
	case 95:
		return "95% (Safe)"
	}
	return fmt.Sprintf("P%d", p)
}

// Mermaid flowcharts become unreadable past a few dozen nodes, so the
// dependency diagram keeps the critical path and fills the remainder in
// id order.
const maxDiagramNodes = 40

// GenerateDependencyDiagram renders the blocking graph as a Mermaid
// flowchart. Critical-path nodes get a CSS class and critical-path edges
// a thick arrow so the chain driving the timeline stands out.
func GenerateDependencyDiagram(view depgraph.View, critical *criticalpath.Result) string {
	if len(view.Nodes) == 0 {
		return ""
	}

	onPath := make(map[string]bool)
	pathEdges := make(map[depgraph.Edge]bool)
	if critical != nil {
		for _, id := range critical.Path {
			onPath[id] = true
		}
		for i := 0; i+1 < len(critical.Path); i++ {
			pathEdges[depgraph.Edge{Source: critical.Path[i], Target: critical.Path[i+1]}] = true
		}
	}

	kept := view.Nodes
	if len(kept) > maxDiagramNodes {
		kept = make([]string, 0, maxDiagramNodes)
		for _, id := range view.Nodes {
			if onPath[id] {
				kept = append(kept, id)
			}
		}
		for _, id := range view.Nodes {
			if len(kept) >= maxDiagramNodes {
				break
			}
			if !onPath[id] {
				kept = append(kept, id)
			}
		}
		slices.Sort(kept)
	}
	keep := make(map[string]bool, len(kept))
	for _, id := range kept {
		keep[id] = true
	}

	var sb strings.Builder
	sb.WriteString("```mermaid\n")
	sb.WriteString("graph LR\n")

	for _, id := range kept {
		sb.WriteString(fmt.Sprintf("    %s[\"%s\"]\n", nodeHandle(id), id))
	}

	for _, e := range view.Edges {
		if !keep[e.Source] || !keep[e.Target] {
			continue
		}
		arrow := "-->"
		if pathEdges[e] {
			arrow = "==>"
		}
		sb.WriteString(fmt.Sprintf("    %s %s %s\n", nodeHandle(e.Source), arrow, nodeHandle(e.Target)))
	}

	if critical != nil && len(critical.Path) > 0 {
		var handles []string
		for _, id := range critical.Path {
			if keep[id] {
				handles = append(handles, nodeHandle(id))
			}
		}
		if len(handles) > 0 {
			sb.WriteString("    classDef critical fill:#fdd,stroke:#c00,stroke-width:2px\n")
			sb.WriteString(fmt.Sprintf("    class %s critical\n", strings.Join(handles, ",")))
		}
	}

	sb.WriteString("```")
	return sb.String()
}

// nodeHandle maps an issue id to an identifier mermaid accepts; hyphens
// and other punctuation confuse its parser.
func nodeHandle(id string) string {
	var b strings.Builder
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}
