package main

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/vvo-tools/vvograph/internal/config"
	"github.com/vvo-tools/vvograph/internal/line"
	"github.com/vvo-tools/vvograph/internal/storage"
)

func init() {
	rootCmd.AddCommand(networksCmd)
}

var networksCmd = &cobra.Command{
	Use:   "networks",
	Short: "List the operator networks of the line index",
	Long: `Group the lines by the network prefix of their trip id (the part before
the first colon, e.g. "voe" in "voe:11003: :H:j24") and write the summary to
data/networks.json. Use a prefix as --filter for 'vvograph graph'.`,
	Args: cobra.NoArgs,
	RunE: runNetworks,
}

// NetworksResult is the response for the networks command.
type NetworksResult struct {
	Path     string         `json:"path"`
	Networks []line.Network `json:"networks"`
}

func runNetworks(cmd *cobra.Command, args []string) error {
	stops := mustLoadStops(cfg.DataDir)
	lines := mustLoadLines(cfg.DataDir, stops)

	result, err := writeNetworks(lines, cfg.DataDir)
	if err != nil {
		exitWithError(ExitError, "writing networks: %v", err)
	}

	if humanOutput {
		for _, n := range result.Networks {
			outputHuman("%-8s %5d lines  %s\n", n.Prefix, n.LineCount, strings.Join(n.Operators, ", "))
		}
		outputHuman("\nWritten to %s\n", result.Path)
		return nil
	}
	outputJSON(result)
	return nil
}

func writeNetworks(lines line.Collection, dataDir string) (NetworksResult, error) {
	result := NetworksResult{
		Path:     config.NetworksPath(dataDir),
		Networks: line.Networks(lines),
	}
	if err := storage.WriteJSON(result.Path, result.Networks); err != nil {
		return NetworksResult{}, err
	}
	return result, nil
}
