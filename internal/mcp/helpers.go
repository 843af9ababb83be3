package mcp

import (
	"encoding/json"
	"fmt"
	"time"

	"flowcast-mcp/internal/forecast"
	"flowcast-mcp/internal/tracker"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog/log"
)

// dataset is the resolved input of an analysis call: mapped records plus
// the decode counters when the data arrived inline.
type dataset struct {
	source string // snapshot id, or "inline"
	issues []tracker.IssueRecord
	links  []tracker.LinkRecord
	decode *tracker.MapStats
}

// explicitLinks returns the standalone links, nil when there are none
// so graph analysis falls back to the links embedded in the issues.
func (d dataset) explicitLinks() []tracker.LinkRecord {
	if len(d.links) == 0 {
		return nil
	}
	return d.links
}

// resolveDataset picks the input for an analysis tool. An inline issues
// payload wins over snapshot_id; with neither the call is rejected.
func (s *Server) resolveDataset(snapshotID string, issues []tracker.IssuePayload, links []tracker.LinkPayload) (dataset, error) {
	if len(issues) > 0 {
		recs, linkRecs, stats := decodePayload(issues, links)
		return dataset{source: "inline", issues: recs, links: linkRecs, decode: &stats}, nil
	}
	if snapshotID == "" {
		return dataset{}, fmt.Errorf("provide snapshot_id of a loaded snapshot or an inline issues payload")
	}
	stored, ok := s.store.Get(snapshotID)
	if !ok {
		return dataset{}, fmt.Errorf("snapshot '%s' is not loaded. Call 'load_snapshot' first or check 'list_snapshots'", snapshotID)
	}
	ds := dataset{source: snapshotID, issues: stored.Issues, links: stored.Links}
	if len(links) > 0 {
		mapped, stats := tracker.MapLinks(links)
		ds.links = mapped
		ds.decode = &stats
	}
	return ds, nil
}

// decodePayload maps an inline upload, pooling the issue and
// standalone-link counters into one set of stats. With no standalone
// links the returned slice is nil, which downstream code reads as
// "use the links embedded in the issues".
func decodePayload(issues []tracker.IssuePayload, links []tracker.LinkPayload) ([]tracker.IssueRecord, []tracker.LinkRecord, tracker.MapStats) {
	var stats tracker.MapStats
	recs := make([]tracker.IssueRecord, 0, len(issues))
	for _, p := range issues {
		rec, ok := tracker.MapIssue(p, &stats)
		if !ok {
			continue
		}
		recs = append(recs, rec)
	}
	var linkRecs []tracker.LinkRecord
	for _, p := range links {
		link, ok := tracker.MapLink(p, &stats)
		if !ok {
			continue
		}
		linkRecs = append(linkRecs, link)
	}
	return recs, linkRecs, stats
}

// withDefaults fills unset tuning knobs from the server config.
func (s *Server) withDefaults(p forecast.Params) forecast.Params {
	if p.Iterations <= 0 {
		p.Iterations = s.cfg.Iterations
	}
	if p.MinSamples <= 0 {
		p.MinSamples = s.cfg.MinSamples
	}
	if p.Workers == 0 {
		p.Workers = s.cfg.Workers
	}
	return p
}

// textResult wraps text blocks as a tool result, skipping empty blocks
// (chart renderers return "" when there is nothing to draw).
func textResult(blocks ...string) *sdk.CallToolResult {
	content := make([]sdk.Content, 0, len(blocks))
	for _, b := range blocks {
		if b == "" {
			continue
		}
		content = append(content, &sdk.TextContent{Text: b})
	}
	return &sdk.CallToolResult{Content: content}
}

// formatResult renders an analysis result as indented JSON for the model.
func formatResult(data any) string {
	out, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("failed to format result: %v", err)
	}
	return string(out)
}

// logCall emits one line per tool invocation with outcome and duration.
func logCall(tool, source string, start time.Time, err error) {
	evt := log.Info()
	if err != nil {
		evt = log.Warn().Err(err)
	}
	evt.Str("tool", tool).Str("dataset", source).Dur("took", time.Since(start)).Msg("tool call")
}
