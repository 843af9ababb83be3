package commands

import (
	"flowcast-mcp/internal/config"
	"flowcast-mcp/internal/logging"
	"flowcast-mcp/internal/mcp"
	"flowcast-mcp/internal/snapshot"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	// Version, Commit, and BuildDate are set at build time via ldflags.
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"

	verbose bool
	cfg     *config.AppConfig

	store *snapshot.Store
)

var rootCmd = &cobra.Command{
	Use:   "flowcast-mcp",
	Short: "flowcast-mcp is a probabilistic delivery-forecasting MCP server",
	Long: `An MCP server that turns tracker snapshots (issue lifecycle transitions plus
blocking links) into Monte-Carlo completion forecasts, dependency critical-path
analysis and walk-forward forecast validation.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logging.Init(verbose)

		// Load configuration
		var err error
		cfg, err = config.Load()
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to load configuration")
		}

		// Warm the in-memory store from the JSONL cache. A broken cache
		// only costs the warm start.
		store = snapshot.NewStore()
		ids, err := store.LoadAll(cfg.SnapshotDir)
		if err != nil {
			log.Warn().Err(err).Str("dir", cfg.SnapshotDir).Msg("Snapshot cache restore failed")
		} else if len(ids) > 0 {
			log.Info().Strs("snapshots", ids).Msg("Restored snapshots from cache")
		}

		log.Info().
			Str("version", Version).
			Str("commit", Commit).
			Str("buildDate", BuildDate).
			Msg("flowcast-mcp starting")
	},
	Run: func(cmd *cobra.Command, args []string) {
		server := mcp.NewServer(cfg, store, Version)
		if err := server.Run(cmd.Context()); err != nil {
			log.Fatal().Err(err).Msg("MCP server terminated")
		}
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")
}
