package main

import (
	"context"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vvo-tools/vvograph/internal/logging"
	"github.com/vvo-tools/vvograph/internal/storage"
)

var buildsLimit int

func init() {
	buildsCmd.Flags().IntVar(&buildsLimit, "limit", 10, "Maximum builds to list (0 = all)")
	rootCmd.AddCommand(buildsCmd)
}

var buildsCmd = &cobra.Command{
	Use:   "builds",
	Short: "List previous graph builds",
	Args:  cobra.NoArgs,
	RunE:  runBuilds,
}

func runBuilds(cmd *cobra.Command, args []string) error {
	db := mustOpenDatabase(cfg.DataDir)
	defer logging.SafeClose(db, slog.Default(), "closing database")

	runs, err := db.ListBuilds(context.Background(), buildsLimit)
	if err != nil {
		exitWithError(ExitError, "listing builds: %v", err)
	}
	if runs == nil {
		runs = []storage.BuildRun{}
	}

	if !humanOutput {
		outputJSON(runs)
		return nil
	}
	if len(runs) == 0 {
		outputHuman("No builds recorded.\n")
		return nil
	}
	for _, r := range runs {
		resumed := ""
		if r.Resumed {
			resumed = " (resumed)"
		}
		outputHuman("%s  %s%s\n", r.StartedAt.Local().Format("2006-01-02 15:04"), r.BuildID, resumed)
		outputHuman("  filter=%s nodes=%d edges=%d queries=%d failed=%d failed_lines=%d\n",
			strings.Join(r.Filter, ","), r.Nodes, r.Edges, r.QueryAttempts, r.QueryFailures, r.FailedLines)
	}
	return nil
}
