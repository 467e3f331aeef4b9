package main

import (
	"errors"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vvo-tools/vvograph/internal/config"
	"github.com/vvo-tools/vvograph/internal/network"
	"github.com/vvo-tools/vvograph/internal/stop"
	"github.com/vvo-tools/vvograph/internal/storage"
)

func init() {
	rootCmd.AddCommand(pathCmd)
}

var pathCmd = &cobra.Command{
	Use:   "path <from-stop> <to-stop>",
	Short: "Find the fastest scheduled connection between two stops",
	Long: `Find the path with the smallest total scheduled travel time between two
stop ids of the built graph. Transfer times are not modelled.

Examples:
  vvograph path 33000028 33000005 --human`,
	Args: cobra.ExactArgs(2),
	RunE: runPath,
}

func runPath(cmd *cobra.Command, args []string) error {
	n := network.New(mustLoadGraph(cfg.DataDir))

	p, err := n.FastestPath(args[0], args[1])
	if err != nil {
		switch {
		case errors.Is(err, network.ErrUnknownStop):
			exitWithError(ExitDataError, "%v", err)
		case errors.Is(err, network.ErrNoPath):
			exitWithError(ExitError, "%v", err)
		}
		exitWithError(ExitError, "finding path: %v", err)
	}

	if !humanOutput {
		outputJSON(p)
		return nil
	}

	// Names are a convenience; the catalogue may not be cached.
	names := map[string]string{}
	if stops, err := storage.ReadStops(config.StopsPath(cfg.DataDir)); err == nil {
		catalog := stop.NewCatalog(stops)
		for _, id := range p.Stops {
			if s, ok := catalog.Lookup(id); ok {
				names[id] = s.Name
			}
		}
	}

	outputHuman("%s to %s: %s over %d hops\n", label(args[0], names), label(args[1], names), formatSeconds(p.TotalSeconds), len(p.Hops))
	for _, h := range p.Hops {
		outputHuman("  %6s  %-40s -> %-40s %s\n", formatSeconds(h.Seconds), label(h.From, names), label(h.To, names), strings.Join(h.Lines, ", "))
	}
	return nil
}

func label(id string, names map[string]string) string {
	if name := names[id]; name != "" {
		return name + " (" + id + ")"
	}
	return id
}
