// Package jgf encodes graphs in the JSON Graph Format (single-graph form).
package jgf

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/vvo-tools/vvograph/internal/graph"
)

// Document is the top-level JSON Graph Format object.
type Document struct {
	Graph GraphDoc `json:"graph"`
}

// GraphDoc is the serialized graph.
type GraphDoc struct {
	ID       string         `json:"id"`
	Type     string         `json:"type"`
	Label    string         `json:"label"`
	Directed bool           `json:"directed"`
	Metadata graph.Metadata `json:"metadata"`
	Nodes    []graph.Node   `json:"nodes"`
	Edges    []graph.Edge   `json:"edges"`
}

// ErrDuplicateNode is returned when a document lists a node id twice.
var ErrDuplicateNode = errors.New("duplicate node id")

// Encode converts a graph into a document.
func Encode(g *graph.Graph) Document {
	doc := Document{Graph: GraphDoc{
		ID:       g.ID,
		Type:     g.Type,
		Label:    g.Label,
		Directed: g.Directed,
		Metadata: g.Metadata,
		Nodes:    make([]graph.Node, 0, g.NodeCount()),
		Edges:    make([]graph.Edge, 0, g.EdgeCount()),
	}}
	for _, n := range g.Nodes() {
		doc.Graph.Nodes = append(doc.Graph.Nodes, *n)
	}
	for _, e := range g.Edges() {
		doc.Graph.Edges = append(doc.Graph.Edges, *e)
	}
	return doc
}

// Decode rebuilds an in-memory graph from a document.
// Node ids must be unique and every edge must name both endpoints.
func Decode(doc Document) (*graph.Graph, error) {
	gd := doc.Graph
	g := graph.New(gd.ID, gd.Type, gd.Label)
	g.Directed = gd.Directed
	g.Metadata = gd.Metadata

	for i, n := range gd.Nodes {
		if n.ID == "" {
			return nil, fmt.Errorf("node %d: %w", i, graph.ErrEmptyNodeID)
		}
		if g.HasNode(n.ID) {
			return nil, fmt.Errorf("node %d: %w: %s", i, ErrDuplicateNode, n.ID)
		}
		g.AddNode(n)
	}
	for i, e := range gd.Edges {
		if err := e.Validate(); err != nil {
			return nil, fmt.Errorf("edge %d: %w", i, err)
		}
		g.AddEdge(e)
	}
	return g, nil
}

// Marshal encodes a graph as indented JSON.
func Marshal(g *graph.Graph) ([]byte, error) {
	return json.MarshalIndent(Encode(g), "", "  ")
}

// Unmarshal parses JSON into a graph.
func Unmarshal(data []byte) (*graph.Graph, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing graph document: %w", err)
	}
	return Decode(doc)
}
