package main

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/vvo-tools/vvograph/internal/logging"
	"github.com/vvo-tools/vvograph/internal/sampler"
	"github.com/vvo-tools/vvograph/internal/storage"
)

var (
	failuresLimit int
	failuresTrip  string
	failuresKind  string
	failuresSince time.Duration
	failuresKinds bool
)

func init() {
	failuresCmd.Flags().IntVar(&failuresLimit, "limit", 50, "Maximum failures to list (0 = all)")
	failuresCmd.Flags().StringVar(&failuresTrip, "trip", "", "Only failures of this trip id")
	failuresCmd.Flags().StringVar(&failuresKind, "kind", "", "Only failures of this kind (network, rate_limited, invalid_response, bad_timestamp, api)")
	failuresCmd.Flags().DurationVar(&failuresSince, "since", 0, "Only failures recorded within this duration (e.g. 24h)")
	failuresCmd.Flags().BoolVar(&failuresKinds, "kinds", false, "Show counts per kind instead of individual failures")
	rootCmd.AddCommand(failuresCmd)
}

var failuresCmd = &cobra.Command{
	Use:   "failures",
	Short: "List recorded trip query failures",
	Long: `List the trip query failures recorded by previous builds, newest first.

Examples:
  vvograph failures --limit 20 --human
  vvograph failures --kind network --since 24h
  vvograph failures --kinds`,
	Args: cobra.NoArgs,
	RunE: runFailures,
}

// KindCount is one row of the --kinds output.
type KindCount struct {
	Kind  string `json:"kind"`
	Count int    `json:"count"`
}

func runFailures(cmd *cobra.Command, args []string) error {
	db := mustOpenDatabase(cfg.DataDir)
	defer logging.SafeClose(db, slog.Default(), "closing database")
	ctx := context.Background()

	if failuresKinds {
		counts, err := kindCounts(ctx, db)
		if err != nil {
			exitWithError(ExitError, "counting failures: %v", err)
		}
		if !humanOutput {
			outputJSON(counts)
			return nil
		}
		if len(counts) == 0 {
			outputHuman("No failures recorded.\n")
		}
		for _, kc := range counts {
			outputHuman("%-18s %d\n", kc.Kind, kc.Count)
		}
		return nil
	}

	filter := storage.FailureFilter{
		TripID: failuresTrip,
		Kind:   failuresKind,
		Limit:  failuresLimit,
	}
	if failuresSince > 0 {
		filter.Since = time.Now().Add(-failuresSince)
	}

	failures, err := db.ListFailures(ctx, filter)
	if err != nil {
		exitWithError(ExitError, "listing failures: %v", err)
	}
	if failures == nil {
		failures = []sampler.Failure{}
	}

	if !humanOutput {
		outputJSON(failures)
		return nil
	}
	if len(failures) == 0 {
		outputHuman("No failures recorded.\n")
		return nil
	}
	for _, f := range failures {
		outputHuman("%s  %-16s %-28s %-10s %s\n",
			f.RecordedAt.Local().Format("2006-01-02 15:04:05"), f.Kind, f.TripID, f.StopID, f.Message)
	}
	return nil
}

// kindCounts returns failure counts sorted by count, then kind.
func kindCounts(ctx context.Context, db *storage.DB) ([]KindCount, error) {
	m, err := db.FailureKindCounts(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]KindCount, 0, len(m))
	for k, n := range m {
		out = append(out, KindCount{Kind: k, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Kind < out[j].Kind
	})
	return out, nil
}
