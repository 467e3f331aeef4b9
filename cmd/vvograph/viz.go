package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vvo-tools/vvograph/internal/config"
	"github.com/vvo-tools/vvograph/internal/graph"
	"github.com/vvo-tools/vvograph/internal/storage"
	"github.com/vvo-tools/vvograph/internal/viz"
)

var (
	vizLayout string
	vizOutput string
)

func init() {
	vizCmd.Flags().StringVar(&vizLayout, "layout", "geo", "Layout: "+strings.Join(viz.ValidLayouts, ", "))
	vizCmd.Flags().StringVarP(&vizOutput, "output", "o", "", "Output file (default data/vvo-graph.html)")
	rootCmd.AddCommand(vizCmd)
}

var vizCmd = &cobra.Command{
	Use:   "viz",
	Short: "Render the graph as an interactive HTML page",
	Long: `Write a self-contained HTML page that draws the built graph with
Cytoscape.js. The default geo layout places stops by their coordinates;
stops without coordinates are drawn as gray squares below the map.

Examples:
  vvograph viz
  vvograph viz --layout force -o /tmp/network.html`,
	Args: cobra.NoArgs,
	RunE: runViz,
}

func runViz(cmd *cobra.Command, args []string) error {
	g := mustLoadGraph(cfg.DataDir)

	path := vizOutput
	if path == "" {
		path = config.VizPath(cfg.DataDir)
	}

	if err := writeViz(g, path, vizLayout); err != nil {
		exitWithError(ExitError, "%v", err)
	}

	if humanOutput {
		outputHuman("Wrote %d stops and %d edges to %s\n", g.NodeCount(), g.EdgeCount(), path)
		return nil
	}
	outputJSON(StatusResponse{Status: "written", Path: path, Count: g.EdgeCount()})
	return nil
}

func writeViz(g *graph.Graph, path, layout string) error {
	opts := viz.DefaultOptions()
	opts.Layout = layout
	if g.Label != "" {
		opts.Title = g.Label
	}

	html, err := viz.GenerateHTML(viz.FromGraph(g), opts)
	if err != nil {
		return fmt.Errorf("generating HTML: %w", err)
	}
	return storage.WriteFile(path, []byte(html))
}
