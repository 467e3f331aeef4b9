// Package main provides the vvograph CLI entry point.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/vvo-tools/vvograph/internal/config"
	"github.com/vvo-tools/vvograph/internal/graph"
	"github.com/vvo-tools/vvograph/internal/line"
	"github.com/vvo-tools/vvograph/internal/logging"
	"github.com/vvo-tools/vvograph/internal/stop"
	"github.com/vvo-tools/vvograph/internal/storage"
	"github.com/vvo-tools/vvograph/internal/vvo"
)

// Version is set at build time via ldflags
var Version = "dev"

var (
	humanOutput bool
	dataDirFlag string
	verbose     bool
	logFormat   string
)

// cfg is the loaded global configuration; set before any command runs.
var cfg *config.GlobalConfig

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(ExitError)
	}
}

var rootCmd = &cobra.Command{
	Use:   "vvograph",
	Short: "Build a connectivity graph of the VVO transit network",
	Long: `vvograph samples the VVO trip endpoint line by line and merges the
scheduled stop-to-stop connections into one graph.

Typical workflow:
  vvograph fetch            download the stop catalogue and derive lines
  vvograph graph            sample lines and write data/vvo-graph.json
  vvograph geojson          project the graph to data/vvo-graph.geojson

All commands output JSON by default. Use --human for human-readable output.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
}

func init() {
	// Load .env file if present (for VVOGRAPH_* overrides)
	_ = godotenv.Load()

	rootCmd.PersistentFlags().BoolVar(&humanOutput, "human", false, "Use human-readable output instead of JSON")
	rootCmd.PersistentFlags().StringVar(&dataDirFlag, "data-dir", "", "Data directory (default from config, then ./data)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log debug messages")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", logging.FormatText, "Log format: text or json")
	rootCmd.Version = Version
}

func setup(cmd *cobra.Command, args []string) error {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(logging.New(os.Stderr, level, logFormat))

	loaded, err := config.LoadGlobalConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, config.HelpfulConfigMessage())
		exitWithError(ExitConfigError, "loading config: %v", err)
	}
	cfg = loaded
	if dataDirFlag != "" {
		cfg.DataDir = config.ExpandPath(dataDirFlag)
	}
	return nil
}

// signalContext returns a context canceled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// newClient creates a VVO client from the loaded config.
func newClient() *vvo.Client {
	return vvo.NewClient(
		vvo.WithBaseURL(cfg.BaseURL),
		vvo.WithStopsURL(cfg.StopsURL),
		vvo.WithRateLimit(rate.Limit(cfg.RequestsPerSecond)),
		vvo.WithHTTPClient(&http.Client{Timeout: cfg.Timeout}),
	)
}

// mustLoadStops loads the cached stop catalogue, exits on error.
func mustLoadStops(dataDir string) []stop.Stop {
	stops, err := storage.ReadStops(config.StopsPath(dataDir))
	if err != nil {
		if errors.Is(err, storage.ErrNoStops) {
			exitWithError(ExitConfigError, "%v\n\nRun 'vvograph fetch' first.", err)
		}
		exitWithError(ExitDataError, "loading stops: %v", err)
	}
	return stops
}

// mustLoadLines loads the line index, deriving it from stops if needed.
func mustLoadLines(dataDir string, stops []stop.Stop) line.Collection {
	lines, err := storage.LoadLines(config.LinesPath(dataDir), stops)
	if err != nil {
		exitWithError(ExitDataError, "loading lines: %v", err)
	}
	return lines
}

// mustLoadGraph loads the built graph, exits on error.
func mustLoadGraph(dataDir string) *graph.Graph {
	g, err := storage.ReadGraph(config.GraphPath(dataDir))
	if err != nil {
		if errors.Is(err, storage.ErrGraphNotBuilt) {
			exitWithError(ExitConfigError, "%v: run 'vvograph graph' first", err)
		}
		exitWithError(ExitDataError, "loading graph: %v", err)
	}
	return g
}

// mustOpenDatabase opens the diagnostics database, exits on error.
// The caller is responsible for calling Close() on the returned DB.
func mustOpenDatabase(dataDir string) *storage.DB {
	db, err := storage.OpenDB(config.DBPath(dataDir))
	if err != nil {
		exitWithError(ExitError, "opening database: %v", err)
	}
	return db
}
