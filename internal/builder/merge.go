package builder

import (
	"log/slog"
	"slices"

	"github.com/vvo-tools/vvograph/internal/graph"
)

type mergeStats struct {
	added      int
	merged     int
	duplicates int
}

// mergeEdges folds sampled edges into g. An edge whose endpoint pair is
// already connected contributes its lines and trip ids to every stored edge
// of that pair; the stored travel time is kept.
func mergeEdges(g *graph.Graph, edges []graph.Edge, logger *slog.Logger) mergeStats {
	var st mergeStats
	for _, e := range edges {
		existing := g.EdgesBetween(e.Source, e.Target)
		if len(existing) == 0 {
			g.AddEdge(e)
			st.added++
			continue
		}
		if len(existing) > 1 {
			st.duplicates++
			logger.Warn("duplicate edges between stops",
				slog.String("source", e.Source),
				slog.String("target", e.Target),
				slog.Int("count", len(existing)))
		}
		for _, stored := range existing {
			stored.Metadata.Lines = appendUnique(stored.Metadata.Lines, e.Metadata.Lines...)
			stored.Metadata.TripIDs = appendUnique(stored.Metadata.TripIDs, e.Metadata.TripIDs...)
		}
		st.merged++
	}
	return st
}

func appendUnique(dst []string, values ...string) []string {
	for _, v := range values {
		if !slices.Contains(dst, v) {
			dst = append(dst, v)
		}
	}
	return dst
}
