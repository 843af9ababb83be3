package config

import (
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// AppConfig holds the complete application configuration. Everything
// here feeds the serving layer; the analysis core receives these values
// as plain parameters and never reads the environment itself.
type AppConfig struct {
	Iterations   int    // Monte Carlo trials per forecast
	MinSamples   int    // below this a distribution is flagged low-confidence
	Workers      int    // simulation workers, 0 = GOMAXPROCS
	SnapshotDir  string // JSONL snapshot cache
	LogDir       string
	EnableCharts bool // attach mermaid blocks to tool responses
}

// Load loads the configuration from .env files and environment variables.
func Load() (*AppConfig, error) {
	// 1. Try to load from the executable's directory (highest priority for MCP servers)
	exePath, err := os.Executable()
	if err == nil {
		envPath := filepath.Join(filepath.Dir(exePath), ".env")
		if err := godotenv.Load(envPath); err == nil {
			log.Debug().Str("path", envPath).Msg("Loaded configuration from binary directory")
		}
	}

	// 2. Fallback to current working directory (useful for development/go run)
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("No .env file found in working directory, relying on environment variables or binary-relative .env")
	}

	cfg := &AppConfig{
		Iterations:   getEnvInt("FLOWCAST_ITERATIONS", 10000),
		MinSamples:   getEnvInt("FLOWCAST_MIN_SAMPLES", 5),
		Workers:      getEnvInt("FLOWCAST_WORKERS", 0),
		SnapshotDir:  getEnv("FLOWCAST_SNAPSHOT_DIR", "./.cache"),
		LogDir:       getEnv("FLOWCAST_LOG_DIR", "./logs"),
		EnableCharts: getEnvBool("FLOWCAST_ENABLE_CHARTS", true),
	}

	// Ensure directories exist
	if err := os.MkdirAll(cfg.SnapshotDir, 0o755); err != nil {
		log.Warn().Err(err).Str("path", cfg.SnapshotDir).Msg("Failed to create snapshot directory")
	}
	if err := os.MkdirAll(cfg.LogDir, 0o755); err != nil {
		log.Warn().Err(err).Str("path", cfg.LogDir).Msg("Failed to create log directory")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return fallback
}
