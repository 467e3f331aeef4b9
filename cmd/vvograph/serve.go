package main

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/vvo-tools/vvograph/internal/config"
	"github.com/vvo-tools/vvograph/internal/logging"
	"github.com/vvo-tools/vvograph/internal/metrics"
	"github.com/vvo-tools/vvograph/internal/network"
	"github.com/vvo-tools/vvograph/internal/server"
	"github.com/vvo-tools/vvograph/internal/storage"
)

var (
	serveAddr    string
	serveOrigins []string
)

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (default from config: :8080)")
	serveCmd.Flags().StringSliceVar(&serveOrigins, "cors-origin", []string{"*"}, "Allowed CORS origins")
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the graph, GeoJSON and diagnostics over HTTP",
	Long: `Start a read-only HTTP server over the data directory.

Endpoints:
  GET /health
  GET /metrics
  GET /api/graph
  GET /api/geojson
  GET /api/networks
  GET /api/stats
  GET /api/path?from=<stop>&to=<stop>
  GET /api/stops/{stopId}/neighbors
  GET /api/failures?limit=&trip=&kind=
  GET /api/builds`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	addr := cfg.ServeAddr
	if serveAddr != "" {
		addr = serveAddr
	}

	db := mustOpenDatabase(cfg.DataDir)
	defer logging.SafeClose(db, slog.Default(), "closing database")

	m := metrics.New()
	if g, err := storage.ReadGraph(config.GraphPath(cfg.DataDir)); err == nil {
		st := network.New(g).Stats()
		m.ObserveGraph(st.Nodes, st.Edges)
	}

	srv := server.New(cfg.DataDir,
		server.WithDB(db),
		server.WithMetrics(m),
		server.WithLogger(slog.Default()),
		server.WithAllowedOrigins(serveOrigins...))

	if err := srv.ListenAndServe(ctx, addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		exitWithError(ExitError, "serving: %v", err)
	}
	return nil
}
