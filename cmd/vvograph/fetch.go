package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vvo-tools/vvograph/internal/config"
	"github.com/vvo-tools/vvograph/internal/line"
	"github.com/vvo-tools/vvograph/internal/stop"
	"github.com/vvo-tools/vvograph/internal/storage"
)

func init() {
	rootCmd.AddCommand(fetchCmd)
}

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Download the stop catalogue and derive the line index",
	Long: `Download the VVO open data stop catalogue, cache it in the data
directory and derive the line index from the lines listed at each stop.

Examples:
  vvograph fetch
  vvograph fetch --data-dir /srv/vvo --human`,
	Args: cobra.NoArgs,
	RunE: runFetch,
}

// CatalogueResult is the response for fetch and import-gtfs.
type CatalogueResult struct {
	Status    string `json:"status"`
	Source    string `json:"source"`
	StopsPath string `json:"stops_path"`
	LinesPath string `json:"lines_path"`
	Stops     int    `json:"stops"`
	Located   int    `json:"located"`
	Lines     int    `json:"lines"`
}

// stopsFetcher is the part of the VVO client used by fetch.
type stopsFetcher interface {
	FetchStops(ctx context.Context) ([]stop.Stop, error)
}

func runFetch(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	result, err := fetchCatalogue(ctx, newClient(), cfg.StopsURL, cfg.DataDir)
	if err != nil {
		exitWithError(ExitAPIError, "fetching stops: %v", err)
	}
	printCatalogueResult(result)
	return nil
}

func fetchCatalogue(ctx context.Context, client stopsFetcher, source, dataDir string) (CatalogueResult, error) {
	stops, err := client.FetchStops(ctx)
	if err != nil {
		return CatalogueResult{}, err
	}
	return saveCatalogue(stops, source, dataDir)
}

// saveCatalogue caches stops and the line index derived from them.
func saveCatalogue(stops []stop.Stop, source, dataDir string) (CatalogueResult, error) {
	lines := line.Extract(stops)

	result := CatalogueResult{
		Status:    "fetched",
		Source:    source,
		StopsPath: config.StopsPath(dataDir),
		LinesPath: config.LinesPath(dataDir),
		Stops:     len(stops),
		Lines:     len(lines),
	}
	for _, s := range stops {
		if s.HasCoordinates() {
			result.Located++
		}
	}

	if err := storage.WriteStops(result.StopsPath, stops); err != nil {
		return CatalogueResult{}, fmt.Errorf("writing stops: %w", err)
	}
	if err := storage.WriteLines(result.LinesPath, lines); err != nil {
		return CatalogueResult{}, fmt.Errorf("writing lines: %w", err)
	}
	return result, nil
}

func printCatalogueResult(r CatalogueResult) {
	if humanOutput {
		outputHuman("Cached %d stops (%d with coordinates) and %d lines from %s\n", r.Stops, r.Located, r.Lines, r.Source)
		outputHuman("  %s\n  %s\n", r.StopsPath, r.LinesPath)
		return
	}
	outputJSON(r)
}
