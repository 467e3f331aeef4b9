package viz

import (
	"encoding/json"
	"fmt"
	"math"
)

// geoScale is the number of pixels per degree of latitude in the geo layout.
const geoScale = 20000

// CytoscapeElements represents the Cytoscape.js data format.
type CytoscapeElements struct {
	Nodes []CytoscapeNode `json:"nodes"`
	Edges []CytoscapeEdge `json:"edges"`
}

// CytoscapeNode represents a node in Cytoscape.js format.
type CytoscapeNode struct {
	Data     Node      `json:"data"`
	Position *Position `json:"position,omitempty"`
}

// Position is a model position in pixels.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// CytoscapeEdge represents an edge in Cytoscape.js format.
type CytoscapeEdge struct {
	Data Edge `json:"data"`
}

// ToCytoscapeJSON converts GraphData to Cytoscape.js JSON format. With
// positions set, located stops get an equirectangular position and unlocated
// stops are stacked below the bottom left corner of the map.
func (g *GraphData) ToCytoscapeJSON(positions bool) (string, error) {
	elements := CytoscapeElements{
		Nodes: make([]CytoscapeNode, 0, len(g.Nodes)),
		Edges: make([]CytoscapeEdge, 0, len(g.Edges)),
	}

	var project func(Node) Position
	if positions {
		project = g.projection()
	}

	unlocated := 0
	for _, n := range g.Nodes {
		cyNode := CytoscapeNode{Data: n}
		if project != nil {
			var p Position
			if n.Located {
				p = project(n)
			} else {
				unlocated++
				p = project(Node{Lon: math.NaN()})
				p.Y += float64(unlocated) * 30
			}
			cyNode.Position = &p
		}
		elements.Nodes = append(elements.Nodes, cyNode)
	}

	for _, e := range g.Edges {
		elements.Edges = append(elements.Edges, CytoscapeEdge{Data: e})
	}

	jsonBytes, err := json.Marshal(elements)
	if err != nil {
		return "", fmt.Errorf("marshaling Cytoscape elements to JSON: %w", err)
	}
	return string(jsonBytes), nil
}

// projection returns a function mapping coordinates into the bounding box of
// the located stops, north up. A NaN longitude maps to the bottom left corner.
func (g *GraphData) projection() func(Node) Position {
	minLon, maxLat := math.Inf(1), math.Inf(-1)
	minLat := math.Inf(1)
	for _, n := range g.Nodes {
		if !n.Located {
			continue
		}
		minLon = math.Min(minLon, n.Lon)
		minLat = math.Min(minLat, n.Lat)
		maxLat = math.Max(maxLat, n.Lat)
	}
	if math.IsInf(minLon, 1) {
		minLon, minLat, maxLat = 0, 0, 0
	}
	lonScale := geoScale * math.Cos((minLat+maxLat)/2*math.Pi/180)

	return func(n Node) Position {
		if math.IsNaN(n.Lon) {
			return Position{X: 0, Y: (maxLat - minLat) * geoScale}
		}
		return Position{
			X: (n.Lon - minLon) * lonScale,
			Y: (maxLat - n.Lat) * geoScale,
		}
	}
}
