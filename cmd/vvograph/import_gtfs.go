package main

import (
	"github.com/spf13/cobra"

	"github.com/vvo-tools/vvograph/internal/stop"
)

func init() {
	rootCmd.AddCommand(importGTFSCmd)
}

var importGTFSCmd = &cobra.Command{
	Use:   "import-gtfs <feed.zip>",
	Short: "Derive the stop catalogue from a GTFS static feed",
	Long: `Build the stop catalogue from a GTFS static feed instead of the VVO
open data catalogue. Platforms are merged into their parent station and
every route calling at a station is listed as one of its lines.

Examples:
  vvograph import-gtfs ~/Downloads/vvo-gtfs.zip`,
	Args: cobra.ExactArgs(1),
	RunE: runImportGTFS,
}

func runImportGTFS(cmd *cobra.Command, args []string) error {
	result, err := importGTFS(args[0], cfg.DataDir)
	if err != nil {
		exitWithError(ExitDataError, "importing GTFS feed: %v", err)
	}
	printCatalogueResult(result)
	return nil
}

func importGTFS(feedPath, dataDir string) (CatalogueResult, error) {
	stops, err := stop.LoadGTFS(feedPath)
	if err != nil {
		return CatalogueResult{}, err
	}
	result, err := saveCatalogue(stops, feedPath, dataDir)
	if err != nil {
		return CatalogueResult{}, err
	}
	result.Status = "imported"
	return result, nil
}
