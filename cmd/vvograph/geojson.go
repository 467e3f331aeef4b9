package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/vvo-tools/vvograph/internal/config"
	"github.com/vvo-tools/vvograph/internal/geo"
	"github.com/vvo-tools/vvograph/internal/graph"
	"github.com/vvo-tools/vvograph/internal/stop"
	"github.com/vvo-tools/vvograph/internal/storage"
)

var geojsonStops bool

func init() {
	geojsonCmd.Flags().BoolVar(&geojsonStops, "stops", false, "Also write every located stop to data/vvo-stops.geojson")
	rootCmd.AddCommand(geojsonCmd)
}

var geojsonCmd = &cobra.Command{
	Use:   "geojson",
	Short: "Project the graph to GeoJSON",
	Long: `Convert data/vvo-graph.json into a GeoJSON FeatureCollection: one Point
per stop and one two-point LineString per edge.

The file is not written when an edge endpoint has no usable coordinates in
the stop catalogue; the offending edges are listed instead.`,
	Args: cobra.NoArgs,
	RunE: runGeoJSON,
}

// GeoJSONResult is the response for the geojson command.
type GeoJSONResult struct {
	Status    string `json:"status"`
	Path      string `json:"path"`
	Points    int    `json:"points"`
	Lines     int    `json:"lines"`
	StopsPath string `json:"stops_path,omitempty"`
	Stops     int    `json:"stops,omitempty"`
}

// GeoJSONErrorResponse lists the edges that could not be projected.
type GeoJSONErrorResponse struct {
	Error  string              `json:"error"`
	Failed []*geo.FeatureError `json:"failed"`
}

var errUnlocatedEdges = errors.New("edges with unlocated endpoints")

func runGeoJSON(cmd *cobra.Command, args []string) error {
	g := mustLoadGraph(cfg.DataDir)
	stops := mustLoadStops(cfg.DataDir)

	result, err := writeGeoJSON(g, stops, cfg.DataDir, geojsonStops)
	if err != nil {
		failed := geo.FeatureErrors(err)
		if len(failed) == 0 {
			exitWithError(ExitError, "writing geojson: %v", err)
		}
		if humanOutput {
			fmt.Fprintf(os.Stderr, "error: %d %v, nothing written\n", len(failed), errUnlocatedEdges)
			for _, fe := range failed {
				fmt.Fprintf(os.Stderr, "  %v\n", fe)
			}
		} else {
			outputJSON(GeoJSONErrorResponse{Error: errUnlocatedEdges.Error(), Failed: failed})
		}
		os.Exit(ExitDataError)
	}

	if humanOutput {
		outputHuman("Wrote %d stops and %d edges to %s\n", result.Points, result.Lines, result.Path)
		if result.StopsPath != "" {
			outputHuman("Wrote %d located stops to %s\n", result.Stops, result.StopsPath)
		}
		return nil
	}
	outputJSON(result)
	return nil
}

// writeGeoJSON projects g and writes the collection. A projection error
// leaves the output untouched and is returned as is.
func writeGeoJSON(g *graph.Graph, stops []stop.Stop, dataDir string, withStops bool) (GeoJSONResult, error) {
	fc, err := geo.Project(g, stop.NewCatalog(stops))
	if err != nil {
		return GeoJSONResult{}, err
	}

	result := GeoJSONResult{
		Status: "written",
		Path:   config.GeoJSONPath(dataDir),
	}
	result.Points, result.Lines = fc.Count()
	if err := storage.WriteJSON(result.Path, fc); err != nil {
		return GeoJSONResult{}, err
	}

	if withStops {
		sfc := geo.ProjectStops(stops)
		result.StopsPath = config.StopsGeoJSONPath(dataDir)
		result.Stops = len(sfc.Features)
		if err := storage.WriteJSON(result.StopsPath, sfc); err != nil {
			return GeoJSONResult{}, err
		}
	}
	return result, nil
}
