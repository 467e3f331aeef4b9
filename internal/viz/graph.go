package viz

import (
	"strings"

	"github.com/vvo-tools/vvograph/internal/graph"
)

// FromGraph converts a built graph for rendering. Edge endpoints that are not
// nodes of g are added as unlocated stops so every edge can be drawn.
func FromGraph(g *graph.Graph) *GraphData {
	data := &GraphData{
		Nodes: make([]Node, 0, g.NodeCount()),
		Edges: make([]Edge, 0, g.EdgeCount()),
	}
	index := make(map[string]int, g.NodeCount())

	for _, n := range g.Nodes() {
		index[n.ID] = len(data.Nodes)
		data.Nodes = append(data.Nodes, Node{
			ID:      n.ID,
			Label:   n.Label,
			Place:   n.Metadata.Place,
			Located: !n.Metadata.Unlocated && (n.Metadata.X != 0 || n.Metadata.Y != 0),
			Lon:     n.Metadata.X,
			Lat:     n.Metadata.Y,
		})
	}

	endpoint := func(id string) {
		i, ok := index[id]
		if !ok {
			i = len(data.Nodes)
			index[id] = i
			data.Nodes = append(data.Nodes, Node{ID: id, Label: id})
		}
		data.Nodes[i].Degree++
	}

	for _, e := range g.Edges() {
		endpoint(e.Source)
		endpoint(e.Target)
		data.Edges = append(data.Edges, Edge{
			ID:        e.ID,
			Source:    e.Source,
			Target:    e.Target,
			Lines:     strings.Join(e.Metadata.Lines, ", "),
			TripCount: len(e.Metadata.TripIDs),
			Seconds:   e.Metadata.Time,
		})
	}

	return data
}
