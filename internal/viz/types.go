// Package viz renders the transit graph as a self-contained Cytoscape.js page.
package viz

// GraphData contains all data needed to render the visualization.
type GraphData struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// Node is a stop.
type Node struct {
	ID      string `json:"id"`
	Label   string `json:"label"`
	Place   string `json:"place,omitempty"`
	Located bool   `json:"located"`

	// Lon and Lat are the stop coordinates; zero when not located.
	Lon float64 `json:"lon"`
	Lat float64 `json:"lat"`

	Degree int `json:"degree"`
}

// Edge is a scheduled connection between two stops.
type Edge struct {
	ID        string `json:"id"`
	Source    string `json:"source"`
	Target    string `json:"target"`
	Lines     string `json:"lines"` // comma separated line names
	TripCount int    `json:"tripCount"`
	Seconds   int    `json:"seconds"`
}

// IsEmpty returns true if the graph has no nodes.
func (g *GraphData) IsEmpty() bool {
	return len(g.Nodes) == 0
}
