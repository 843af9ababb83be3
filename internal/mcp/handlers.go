package mcp

import (
	"context"
	"fmt"
	"time"

	"flowcast-mcp/internal/cycletime"
	"flowcast-mcp/internal/forecast"
	"flowcast-mcp/internal/simulation"
	"flowcast-mcp/internal/snapshot"
	"flowcast-mcp/internal/tracker"
	"flowcast-mcp/internal/visuals"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

type loadResult struct {
	SnapshotID string               `json:"snapshot_id"`
	Mode       string               `json:"mode"`
	Source     string               `json:"source"`
	Issues     int                  `json:"issues"`
	Links      int                  `json:"links"`
	Decode     *tracker.MapStats    `json:"decode,omitempty"`
	Merge      *snapshot.MergeStats `json:"merge,omitempty"`
	Persisted  bool                 `json:"persisted,omitempty"`
}

type clearResult struct {
	SnapshotID string `json:"snapshot_id"`
	Removed    bool   `json:"removed"`
}

type listResult struct {
	Count     int             `json:"count"`
	Snapshots []snapshot.Info `json:"snapshots"`
}

func (s *Server) handleLoadSnapshot(ctx context.Context, req *sdk.CallToolRequest, args LoadSnapshotArgs) (res *sdk.CallToolResult, out any, err error) {
	start := time.Now()
	defer func() { logCall("load_snapshot", args.SnapshotID, start, err) }()

	if args.SnapshotID == "" {
		return nil, nil, fmt.Errorf("snapshot_id is required")
	}
	mode := args.Mode
	if mode == "" {
		mode = "replace"
	}

	if args.FromCache {
		if err = s.store.Load(s.cfg.SnapshotDir, args.SnapshotID); err != nil {
			return nil, nil, err
		}
		if _, ok := s.store.Get(args.SnapshotID); !ok {
			return nil, nil, fmt.Errorf("no cached data for snapshot '%s' in %s", args.SnapshotID, s.cfg.SnapshotDir)
		}
		result := loadResult{SnapshotID: args.SnapshotID, Mode: mode, Source: "cache"}
		result.Issues, result.Links = s.store.Count(args.SnapshotID)
		return textResult(formatResult(result)), nil, nil
	}

	if len(args.Issues) == 0 && len(args.Links) == 0 {
		return nil, nil, fmt.Errorf("provide issues (and optional links), or set from_cache to restore a persisted snapshot")
	}

	recs, linkRecs, stats := decodePayload(args.Issues, args.Links)

	result := loadResult{SnapshotID: args.SnapshotID, Mode: mode, Source: "payload", Decode: &stats}
	switch mode {
	case "replace":
		s.store.Put(args.SnapshotID, recs, linkRecs)
	case "merge":
		merge := s.store.Merge(args.SnapshotID, recs, linkRecs)
		result.Merge = &merge
	default:
		return nil, nil, fmt.Errorf("unknown mode '%s' (want replace or merge)", args.Mode)
	}
	result.Issues, result.Links = s.store.Count(args.SnapshotID)

	if args.Persist {
		if err = s.store.Save(s.cfg.SnapshotDir, args.SnapshotID); err != nil {
			return nil, nil, fmt.Errorf("snapshot loaded but persisting it failed: %w", err)
		}
		result.Persisted = true
	}

	return textResult(formatResult(result)), nil, nil
}

func (s *Server) handleClearSnapshot(ctx context.Context, req *sdk.CallToolRequest, args ClearSnapshotArgs) (res *sdk.CallToolResult, out any, err error) {
	start := time.Now()
	defer func() { logCall("clear_snapshot", args.SnapshotID, start, err) }()

	if args.SnapshotID == "" {
		return nil, nil, fmt.Errorf("snapshot_id is required")
	}
	removed := s.store.Clear(args.SnapshotID)
	return textResult(formatResult(clearResult{SnapshotID: args.SnapshotID, Removed: removed})), nil, nil
}

func (s *Server) handleListSnapshots(ctx context.Context, req *sdk.CallToolRequest, args ListSnapshotsArgs) (res *sdk.CallToolResult, out any, err error) {
	start := time.Now()
	defer func() { logCall("list_snapshots", "", start, err) }()

	infos := s.store.Infos()
	return textResult(formatResult(listResult{Count: len(infos), Snapshots: infos})), nil, nil
}

func (s *Server) handleForecastCompletion(ctx context.Context, req *sdk.CallToolRequest, args ForecastCompletionArgs) (res *sdk.CallToolResult, out any, err error) {
	start := time.Now()
	defer func() { logCall("forecast_completion", args.SnapshotID, start, err) }()

	if args.RemainingItems < 0 {
		return nil, nil, fmt.Errorf("remaining_items must not be negative")
	}
	ds, err := s.resolveDataset(args.SnapshotID, args.Issues, nil)
	if err != nil {
		return nil, nil, err
	}

	p := s.withDefaults(forecast.Params{
		InProgressLabels: args.InProgressLabels,
		DoneLabels:       args.DoneLabels,
		Cohort:           args.Cohort,
		Iterations:       args.Iterations,
		MinSamples:       args.MinSamples,
		Seed:             args.Seed,
	})

	fc, err := forecast.ForecastCompletion(ds.issues, args.RemainingItems, p)
	if err != nil {
		return nil, nil, err
	}

	blocks := []string{formatResult(fc)}
	if s.cfg.EnableCharts {
		blocks = append(blocks, visuals.GenerateForecastCDF(fc.ForecastResult))
	}
	return textResult(blocks...), nil, nil
}

func (s *Server) handleAnalyzeDependencies(ctx context.Context, req *sdk.CallToolRequest, args AnalyzeDependenciesArgs) (res *sdk.CallToolResult, out any, err error) {
	start := time.Now()
	defer func() { logCall("analyze_dependencies", args.SnapshotID, start, err) }()

	ds, err := s.resolveDataset(args.SnapshotID, args.Issues, args.Links)
	if err != nil {
		return nil, nil, err
	}

	p := s.withDefaults(forecast.Params{
		InProgressLabels: args.InProgressLabels,
		DoneLabels:       args.DoneLabels,
		MinSamples:       args.MinSamples,
	})

	analysis := forecast.AnalyzeDependencies(ds.issues, ds.explicitLinks(), p)

	blocks := []string{formatResult(analysis)}
	if s.cfg.EnableCharts {
		blocks = append(blocks, visuals.GenerateDependencyDiagram(analysis.Graph, analysis.CriticalPath))
	}
	return textResult(blocks...), nil, nil
}

func (s *Server) handleSummarizeCycleTimes(ctx context.Context, req *sdk.CallToolRequest, args SummarizeCycleTimesArgs) (res *sdk.CallToolResult, out any, err error) {
	start := time.Now()
	defer func() { logCall("summarize_cycle_times", args.SnapshotID, start, err) }()

	ds, err := s.resolveDataset(args.SnapshotID, args.Issues, nil)
	if err != nil {
		return nil, nil, err
	}

	p := s.withDefaults(forecast.Params{
		InProgressLabels: args.InProgressLabels,
		DoneLabels:       args.DoneLabels,
		MinSamples:       args.MinSamples,
	})
	if args.LookbackDays > 0 {
		p.Window = &cycletime.Window{Start: time.Now().AddDate(0, 0, -args.LookbackDays)}
	}

	summary := forecast.SummarizeCycleTimes(ds.issues, p)
	return textResult(formatResult(summary)), nil, nil
}

func (s *Server) handleGetForecastAccuracy(ctx context.Context, req *sdk.CallToolRequest, args GetForecastAccuracyArgs) (res *sdk.CallToolResult, out any, err error) {
	start := time.Now()
	defer func() { logCall("get_forecast_accuracy", args.SnapshotID, start, err) }()

	ds, err := s.resolveDataset(args.SnapshotID, args.Issues, nil)
	if err != nil {
		return nil, nil, err
	}

	p := s.withDefaults(forecast.Params{
		InProgressLabels: args.InProgressLabels,
		DoneLabels:       args.DoneLabels,
		Cohort:           args.Cohort,
		Iterations:       args.Iterations,
		Seed:             args.Seed,
	})
	opts := simulation.BacktestOptions{
		ItemsPerCheckpoint: args.ItemsPerCheckpoint,
		StepDays:           args.StepDays,
		LookbackDays:       args.LookbackDays,
		MinHistory:         args.MinHistory,
		Iterations:         args.Iterations,
	}

	result := forecast.BacktestForecast(ds.issues, p, opts)
	return textResult(formatResult(result)), nil, nil
}
