package main

import (
	"github.com/spf13/cobra"

	"github.com/vvo-tools/vvograph/internal/network"
)

var statsComponents int

func init() {
	statsCmd.Flags().IntVar(&statsComponents, "components", 0, "List the stops of the N largest components")
	rootCmd.AddCommand(statsCmd)
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show connectivity statistics of the built graph",
	Args:  cobra.NoArgs,
	RunE:  runStats,
}

// StatsResult is the response for the stats command.
type StatsResult struct {
	network.Stats
	Largest [][]string `json:"largest_components,omitempty"`
}

func runStats(cmd *cobra.Command, args []string) error {
	n := network.New(mustLoadGraph(cfg.DataDir))
	result := StatsResult{Stats: n.Stats()}
	if statsComponents > 0 {
		comps := n.Components()
		if len(comps) > statsComponents {
			comps = comps[:statsComponents]
		}
		result.Largest = comps
	}

	if !humanOutput {
		outputJSON(result)
		return nil
	}

	st := result.Stats
	outputHuman("Stops:               %d\n", st.Nodes)
	outputHuman("Edges:               %d (%d stop pairs, %d duplicated)\n", st.Edges, st.StopPairs, st.DuplicatePairs)
	outputHuman("Lines:               %d\n", st.Lines)
	outputHuman("Components:          %d (largest %d, isolated %d)\n", st.Components, st.LargestComponent, st.IsolatedStops)
	outputHuman("Mean degree:         %.2f\n", st.MeanDegree)
	outputHuman("Mean travel time:    %s\n", formatSeconds(int(st.MeanTravelSeconds+0.5)))
	if st.DanglingEndpoints > 0 || st.SelfLoops > 0 || st.NegativeTravelTime > 0 {
		outputHuman("Anomalies:           %d dangling, %d self-loops, %d negative times\n",
			st.DanglingEndpoints, st.SelfLoops, st.NegativeTravelTime)
	}
	for i, c := range result.Largest {
		outputHuman("\nComponent %d (%d stops)\n", i+1, len(c))
		for _, id := range c {
			outputHuman("  %s\n", id)
		}
	}
	return nil
}
