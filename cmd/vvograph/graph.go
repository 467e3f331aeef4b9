package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/vvo-tools/vvograph/internal/builder"
	"github.com/vvo-tools/vvograph/internal/config"
	"github.com/vvo-tools/vvograph/internal/graph"
	"github.com/vvo-tools/vvograph/internal/line"
	"github.com/vvo-tools/vvograph/internal/logging"
	"github.com/vvo-tools/vvograph/internal/metrics"
	"github.com/vvo-tools/vvograph/internal/sampler"
	"github.com/vvo-tools/vvograph/internal/stop"
	"github.com/vvo-tools/vvograph/internal/storage"
	"github.com/vvo-tools/vvograph/internal/throttle"
)

var (
	graphFilter         []string
	graphCooldown       time.Duration
	graphResume         bool
	graphBudget         int
	graphKeepCheckpoint bool
	graphShowLines      bool
)

func init() {
	graphCmd.Flags().StringSliceVar(&graphFilter, "filter", nil, "Trip id prefixes to build (default from config: voe)")
	graphCmd.Flags().DurationVar(&graphCooldown, "cooldown", 0, "Pause after each line before the next one starts (default from config: 10s)")
	graphCmd.Flags().BoolVar(&graphResume, "resume", false, "Continue from the checkpoint of an interrupted build")
	graphCmd.Flags().IntVar(&graphBudget, "budget", 0, "Trip queries per line (default from config: 20)")
	graphCmd.Flags().BoolVar(&graphKeepCheckpoint, "keep-checkpoint", false, "Keep the checkpoint after a successful build")
	graphCmd.Flags().BoolVar(&graphShowLines, "lines", false, "Include per-line results in the output")
	rootCmd.AddCommand(graphCmd)
}

var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Sample trips and build the network graph",
	Long: `Sample every selected line against the VVO trip endpoint and merge the
scheduled stop-to-stop connections into data/vvo-graph.json.

Lines are processed one at a time with a cooldown pause between lines. After
every line the partial graph is written to data/vvo-graph-tmp.json; use
--resume to continue an interrupted build from there. Failed queries are
recorded in the diagnostics database and in data/log/.

Examples:
  vvograph graph
  vvograph graph --filter voe:11 --cooldown 5s --human
  vvograph graph --resume`,
	Args: cobra.NoArgs,
	RunE: runGraph,
}

// graphParams collects everything a build needs.
type graphParams struct {
	DataDir        string
	Catalog        *stop.Catalog
	Lines          line.Collection
	Querier        sampler.TripQuerier
	Recorder       sampler.FailureRecorder
	Limiter        throttle.Limiter
	Metrics        *metrics.Metrics
	Logger         *slog.Logger
	Filter         []string
	Budget         int
	Resume         bool
	KeepCheckpoint bool
}

// GraphResult is the response for the graph command.
type GraphResult struct {
	Status      string               `json:"status"`
	Path        string               `json:"path,omitempty"`
	BuildID     string               `json:"build_id"`
	Nodes       int                  `json:"nodes"`
	Edges       int                  `json:"edges"`
	LinesOK     int                  `json:"lines_ok"`
	LinesEmpty  int                  `json:"lines_empty"`
	LinesFailed int                  `json:"lines_failed"`
	Skipped     int                  `json:"lines_skipped"`
	Attempts    int                  `json:"query_attempts"`
	Failures    int                  `json:"query_failures"`
	FailureRate float64              `json:"failure_rate"`
	Duplicates  int                  `json:"duplicate_warnings"`
	Duration    string               `json:"duration"`
	Lines       []builder.LineResult `json:"lines,omitempty"`
}

func runGraph(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	filter := cfg.Filter
	if cmd.Flags().Changed("filter") {
		filter = graphFilter
	}
	cooldown := cfg.Cooldown
	if cmd.Flags().Changed("cooldown") {
		cooldown = graphCooldown
	}
	budget := cfg.Budget
	if cmd.Flags().Changed("budget") {
		budget = graphBudget
	}

	stops := mustLoadStops(cfg.DataDir)
	lines := mustLoadLines(cfg.DataDir, stops)

	db := mustOpenDatabase(cfg.DataDir)
	defer logging.SafeClose(db, slog.Default(), "closing database")

	logger := slog.Default()
	m := metrics.New()
	started := time.Now()

	g, report, err := buildGraph(ctx, graphParams{
		DataDir: cfg.DataDir,
		Catalog: stop.NewCatalog(stops),
		Lines:   lines,
		Querier: newClient(),
		Recorder: storage.MultiRecorder{
			db,
			storage.NewFailureLog(config.FailureLogPath(cfg.DataDir, started)),
		},
		Limiter:        throttle.NewInterval(cooldown),
		Metrics:        m,
		Logger:         logger,
		Filter:         filter,
		Budget:         budget,
		Resume:         graphResume,
		KeepCheckpoint: graphKeepCheckpoint,
	})

	if report != nil {
		if rerr := db.RecordReport(context.Background(), report); rerr != nil {
			logging.LogError(logger, "recording build report", rerr)
		}
		if cfg.MetricsFile != "" {
			if werr := m.WriteTextfile(cfg.MetricsFile); werr != nil {
				logging.LogError(logger, "writing metrics textfile", werr)
			}
		}
	}

	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			if report != nil {
				printGraphResult(summarizeBuild(report, "interrupted", ""))
			}
			exitWithError(ExitInterrupted, "build interrupted; continue with 'vvograph graph --resume'")
		}
		exitWithError(ExitError, "building graph: %v", err)
	}

	if rate := report.FailureRate(); rate > cfg.FailureRateWarn {
		logger.Warn("high trip query failure rate",
			slog.Float64("failure_rate", rate),
			slog.Float64("threshold", cfg.FailureRateWarn),
			slog.Int("failures", report.QueryFailures))
	}

	result := summarizeBuild(report, "built", config.GraphPath(cfg.DataDir))
	if g.EdgeCount() == 0 {
		logger.Warn("graph has no edges", slog.Int("nodes", g.NodeCount()))
	}
	printGraphResult(result)
	return nil
}

// buildGraph runs a build and writes the graph document. On error the
// partial report is returned and the checkpoint is left in place.
func buildGraph(ctx context.Context, p graphParams) (*graph.Graph, *builder.Report, error) {
	if p.Metrics == nil {
		p.Metrics = metrics.New()
	}
	if p.Logger == nil {
		p.Logger = slog.Default()
	}

	smp := sampler.New(p.Querier,
		sampler.WithBudget(p.Budget),
		sampler.WithRecorder(p.Recorder),
		sampler.WithLogger(p.Logger))

	checkpoint := storage.Checkpoint{Path: config.CheckpointPath(p.DataDir)}
	b := builder.New(smp,
		builder.WithLimiter(p.Limiter),
		builder.WithCheckpointer(checkpoint),
		builder.WithObserver(p.Metrics),
		builder.WithLogger(p.Logger))

	g, report, err := b.Build(ctx, p.Catalog, p.Lines, builder.Options{
		Filter: p.Filter,
		Resume: p.Resume,
	})
	if report != nil {
		p.Metrics.ObserveReport(report)
	}
	if err != nil {
		return g, report, err
	}

	if err := storage.WriteGraph(config.GraphPath(p.DataDir), g); err != nil {
		return g, report, fmt.Errorf("writing graph: %w", err)
	}
	if !p.KeepCheckpoint {
		if err := checkpoint.Remove(); err != nil {
			logging.LogError(p.Logger, "removing checkpoint", err)
		}
	}
	return g, report, nil
}

func summarizeBuild(r *builder.Report, status, path string) GraphResult {
	result := GraphResult{
		Status:      status,
		Path:        path,
		BuildID:     r.BuildID,
		Nodes:       r.Nodes,
		Edges:       r.Edges,
		LinesOK:     r.Count(builder.StatusOK),
		LinesEmpty:  r.Count(builder.StatusEmpty),
		LinesFailed: r.Count(builder.StatusFailed),
		Skipped:     r.Count(builder.StatusSkipped),
		Attempts:    r.QueryAttempts,
		Failures:    r.QueryFailures,
		FailureRate: r.FailureRate(),
		Duplicates:  r.DuplicateWarnings,
		Duration:    r.FinishedAt.Sub(r.StartedAt).Round(time.Second).String(),
	}
	if graphShowLines {
		result.Lines = r.Lines
	}
	return result
}

func printGraphResult(r GraphResult) {
	if !humanOutput {
		outputJSON(r)
		return
	}
	outputHuman("Build %s (%s): %d stops, %d edges in %s\n", r.BuildID, r.Status, r.Nodes, r.Edges, r.Duration)
	outputHuman("  lines: %d ok, %d empty, %d failed, %d skipped\n", r.LinesOK, r.LinesEmpty, r.LinesFailed, r.Skipped)
	outputHuman("  queries: %d, failed %d (%.1f%%)\n", r.Attempts, r.Failures, 100*r.FailureRate)
	if r.Duplicates > 0 {
		outputHuman("  duplicate edge warnings: %d\n", r.Duplicates)
	}
	for _, lr := range r.Lines {
		outputHuman("  %-28s %-7s edges=%d attempts=%d %s\n", lr.LineID, lr.Status, lr.EdgesFound, lr.Attempts, lr.Reason)
	}
	if r.Path != "" {
		outputHuman("Written to %s\n", r.Path)
	}
}
