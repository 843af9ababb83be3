package mcp

import (
	"fmt"

	"flowcast-mcp/internal/tracker"

	"github.com/google/jsonschema-go/jsonschema"
	sdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

// LoadSnapshotArgs is the payload form of a dataset upload. Issue
// timestamps are strings on the wire; tracker.MapIssues parses and
// normalizes them.
type LoadSnapshotArgs struct {
	SnapshotID string                 `json:"snapshot_id" jsonschema:"Identifier for the dataset. Later tool calls reference it."`
	Issues     []tracker.IssuePayload `json:"issues,omitempty" jsonschema:"Issue records: id, cohort, ordered lifecycle transitions (status + timestamp) and optional outgoing links."`
	Links      []tracker.LinkPayload  `json:"links,omitempty" jsonschema:"Standalone link records. BLOCKS/BLOCKED_BY carry dependency direction, RELATES is ignored."`
	Mode       string                 `json:"mode,omitempty" jsonschema:"'replace' (default) swaps the dataset, 'merge' appends and skips duplicates."`
	FromCache  bool                   `json:"from_cache,omitempty" jsonschema:"Restore the snapshot from the server-side JSONL cache instead of an inline payload."`
	Persist    bool                   `json:"persist,omitempty" jsonschema:"Write the dataset to the server-side JSONL cache after loading."`
}

type ClearSnapshotArgs struct {
	SnapshotID string `json:"snapshot_id" jsonschema:"Dataset to drop from memory."`
}

type ListSnapshotsArgs struct{}

type ForecastCompletionArgs struct {
	SnapshotID       string                 `json:"snapshot_id,omitempty" jsonschema:"Dataset to analyze; omit when passing inline issues."`
	Issues           []tracker.IssuePayload `json:"issues,omitempty" jsonschema:"Inline issue payload used instead of a stored snapshot."`
	InProgressLabels []string               `json:"in_progress_labels" jsonschema:"Status labels that mean work has started (case-insensitive exact match)."`
	DoneLabels       []string               `json:"done_labels" jsonschema:"Status labels that mean work is finished (case-insensitive exact match)."`
	RemainingItems   int                    `json:"remaining_items" jsonschema:"How many items are still to finish."`
	Cohort           string                 `json:"cohort,omitempty" jsonschema:"Restrict the sample base to one cohort; empty pools every cohort."`
	Iterations       int                    `json:"iterations,omitempty" jsonschema:"Monte Carlo trials; 0 uses the configured default."`
	Seed             *int64                 `json:"seed,omitempty" jsonschema:"Fix the RNG seed for reproducible runs."`
	MinSamples       int                    `json:"min_samples,omitempty" jsonschema:"Low-confidence threshold override; 0 uses the configured default."`
}

type AnalyzeDependenciesArgs struct {
	SnapshotID       string                 `json:"snapshot_id,omitempty" jsonschema:"Dataset to analyze; omit when passing inline issues."`
	Issues           []tracker.IssuePayload `json:"issues,omitempty" jsonschema:"Inline issue payload used instead of a stored snapshot."`
	Links            []tracker.LinkPayload  `json:"links,omitempty" jsonschema:"Explicit link records; when present they replace the links embedded in the issues."`
	InProgressLabels []string               `json:"in_progress_labels" jsonschema:"Status labels that mean work has started."`
	DoneLabels       []string               `json:"done_labels" jsonschema:"Status labels that mean work is finished."`
	MinSamples       int                    `json:"min_samples,omitempty" jsonschema:"Low-confidence threshold override."`
}

type SummarizeCycleTimesArgs struct {
	SnapshotID       string                 `json:"snapshot_id,omitempty" jsonschema:"Dataset to analyze; omit when passing inline issues."`
	Issues           []tracker.IssuePayload `json:"issues,omitempty" jsonschema:"Inline issue payload used instead of a stored snapshot."`
	InProgressLabels []string               `json:"in_progress_labels" jsonschema:"Status labels that mean work has started."`
	DoneLabels       []string               `json:"done_labels" jsonschema:"Status labels that mean work is finished."`
	MinSamples       int                    `json:"min_samples,omitempty" jsonschema:"Low-confidence threshold override."`
	LookbackDays     int                    `json:"lookback_days,omitempty" jsonschema:"Only count items completed within the last N days."`
}

type GetForecastAccuracyArgs struct {
	SnapshotID         string                 `json:"snapshot_id,omitempty" jsonschema:"Dataset to validate against; omit when passing inline issues."`
	Issues             []tracker.IssuePayload `json:"issues,omitempty" jsonschema:"Inline issue payload used instead of a stored snapshot."`
	InProgressLabels   []string               `json:"in_progress_labels" jsonschema:"Status labels that mean work has started."`
	DoneLabels         []string               `json:"done_labels" jsonschema:"Status labels that mean work is finished."`
	Cohort             string                 `json:"cohort,omitempty" jsonschema:"Validate against a single cohort's history; empty pools every cohort."`
	ItemsPerCheckpoint int                    `json:"items_per_checkpoint,omitempty" jsonschema:"Items forecast at each checkpoint. Default: 5"`
	StepDays           int                    `json:"step_days,omitempty" jsonschema:"Days between checkpoints walking backwards. Default: 14"`
	LookbackDays       int                    `json:"lookback_days,omitempty" jsonschema:"How far back the walk reaches. Default: 180"`
	MinHistory         int                    `json:"min_history,omitempty" jsonschema:"Completed samples a checkpoint needs before it forecasts."`
	Iterations         int                    `json:"iterations,omitempty" jsonschema:"Monte Carlo trials per checkpoint. Default: 5000"`
	Seed               *int64                 `json:"seed,omitempty" jsonschema:"Fix the RNG seed for reproducible validation runs."`
}

func (s *Server) registerTools(srv *sdk.Server) error {
	loadSchema, err := schemaFor[LoadSnapshotArgs](func(sc *jsonschema.Schema) {
		sc.Properties["mode"].Enum = []any{"replace", "merge"}
	})
	if err != nil {
		return err
	}
	sdk.AddTool(srv, &sdk.Tool{
		Name: "load_snapshot",
		Description: "Load a dataset of tracker issues (lifecycle transitions) and blocking links into the server for analysis. \n\n" +
			"Guidance: call this before any forecasting or dependency tool, then reference the dataset by snapshot_id. " +
			"Use mode 'merge' to extend an existing snapshot without duplicating issues or links; use from_cache to restore a dataset persisted earlier. " +
			"Malformed records are skipped and counted in the decode stats, never fatal - inspect the counters and tell the user when a payload lost records.",
		InputSchema: loadSchema,
	}, s.handleLoadSnapshot)

	clearSchema, err := schemaFor[ClearSnapshotArgs](nil)
	if err != nil {
		return err
	}
	sdk.AddTool(srv, &sdk.Tool{
		Name: "clear_snapshot",
		Description: "Drop a loaded snapshot from memory. The JSONL cache on disk is left untouched; " +
			"'load_snapshot' with from_cache restores it.",
		InputSchema: clearSchema,
	}, s.handleClearSnapshot)

	listSchema, err := schemaFor[ListSnapshotsArgs](nil)
	if err != nil {
		return err
	}
	sdk.AddTool(srv, &sdk.Tool{
		Name:        "list_snapshots",
		Description: "List the snapshots currently loaded in memory with their sizes and load times.",
		InputSchema: listSchema,
	}, s.handleListSnapshots)

	forecastSchema, err := schemaFor[ForecastCompletionArgs](func(sc *jsonschema.Schema) {
		sc.Properties["remaining_items"].Minimum = ptrFloat(0)
	})
	if err != nil {
		return err
	}
	sdk.AddTool(srv, &sdk.Tool{
		Name: "forecast_completion",
		Description: "Run a Monte-Carlo bootstrap simulation to forecast WHEN the remaining work will be finished, based solely on historical CYCLE TIMES " +
			"(first entry into an in-progress status until the next entry into a done status) of completed items. \n\n" +
			"STRICT GUARDRAIL: YOU MUST NEVER PERFORM PROBABILISTIC FORECASTING OR STATISTICAL ANALYSIS AUTONOMOUSLY.\n" +
			"DO NOT provide date ranges or probability estimates (e.g., 'There is an 85% chance...') if this tool fails or reports insufficient data. " +
			"If the tool fails, you MUST report the error to the user and ask for clarification. \n" +
			"If the result carries low_confidence=true you MUST warn the user that the sample base is thin.",
		InputSchema: forecastSchema,
	}, s.handleForecastCompletion)

	analyzeSchema, err := schemaFor[AnalyzeDependenciesArgs](nil)
	if err != nil {
		return err
	}
	sdk.AddTool(srv, &sdk.Tool{
		Name: "analyze_dependencies",
		Description: "Build the directed blocking graph from issue links (BLOCKS and BLOCKED_BY normalize to blocker->blocked, RELATES is ignored), " +
			"detect dependency cycles, compute the critical path and rank the issues whose downstream chains hold up the most work across cohorts. " +
			"Node durations are per-cohort MEDIAN cycle times, never simulated forecasts. \n\n" +
			"Cycles are reported in the result and broken for path computation; they are never fatal. " +
			"Guidance: treat removed_edges as a data-quality signal worth surfacing to the user.",
		InputSchema: analyzeSchema,
	}, s.handleAnalyzeDependencies)

	summarizeSchema, err := schemaFor[SummarizeCycleTimesArgs](nil)
	if err != nil {
		return err
	}
	sdk.AddTool(srv, &sdk.Tool{
		Name: "summarize_cycle_times",
		Description: "Summarize collected cycle times per cohort (sample count, median, P85, min/max, low-confidence flag) plus a pooled overall row. " +
			"Use this to sanity-check the sample base BEFORE forecasting; thin or heavily skipped cohorts make forecasts unreliable.",
		InputSchema: summarizeSchema,
	}, s.handleSummarizeCycleTimes)

	accuracySchema, err := schemaFor[GetForecastAccuracyArgs](nil)
	if err != nil {
		return err
	}
	sdk.AddTool(srv, &sdk.Tool{
		Name: "get_forecast_accuracy",
		Description: "Perform a 'Walk-Forward Analysis' (Backtesting) to empirically validate the accuracy of the Monte-Carlo forecaster against the snapshot's own history. \n\n" +
			"The tool reconstructs the dataset as it looked at past checkpoints, forecasts the next batch of items from only the history visible then, " +
			"and checks whether the ACTUAL outcome fell within the predicted P5-P95 cone. \n" +
			"Guidance: an accuracy score below 0.7 means the historical process shifted; you MUST warn the user that forward-looking forecasts inherit that unreliability.",
		InputSchema: accuracySchema,
	}, s.handleGetForecastAccuracy)

	return nil
}

func schemaFor[T any](mutate func(*jsonschema.Schema)) (*jsonschema.Schema, error) {
	sc, err := jsonschema.For[T](nil)
	if err != nil {
		return nil, fmt.Errorf("tool schema: %w", err)
	}
	if mutate != nil {
		mutate(sc)
	}
	return sc, nil
}

func ptrFloat(v float64) *float64 { return &v }
