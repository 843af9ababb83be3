package mcp

import (
	"context"

	"flowcast-mcp/internal/config"
	"flowcast-mcp/internal/snapshot"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog/log"
)

const serverInstructions = `flowcast-mcp turns a snapshot of tracker issues (lifecycle transitions
plus blocking links) into probabilistic delivery forecasts. Load a
snapshot first, then forecast or analyze it. All statistics come from
the tools; never compute percentiles, probabilities or dates yourself.`

// Server exposes the forecasting toolset over the Model Context
// Protocol. It owns no analysis logic; handlers decode arguments, pull
// records from the snapshot store and delegate to internal/forecast.
type Server struct {
	cfg   *config.AppConfig
	store *snapshot.Store

	version string
}

// NewServer creates an MCP server around a snapshot store.
func NewServer(cfg *config.AppConfig, store *snapshot.Store, version string) *Server {
	return &Server{cfg: cfg, store: store, version: version}
}

// Run serves the toolset over stdio until ctx is cancelled or the
// client disconnects.
func (s *Server) Run(ctx context.Context) error {
	srv, err := s.build()
	if err != nil {
		return err
	}

	log.Info().Str("version", s.version).Msg("MCP server starting stdio transport")
	return srv.Run(ctx, &sdk.StdioTransport{})
}

func (s *Server) build() (*sdk.Server, error) {
	srv := sdk.NewServer(
		&sdk.Implementation{Name: "flowcast-mcp", Version: s.version},
		&sdk.ServerOptions{Instructions: serverInstructions},
	)
	if err := s.registerTools(srv); err != nil {
		return nil, err
	}
	return srv, nil
}
