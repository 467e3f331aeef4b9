package jgf

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vvo-tools/vvograph/internal/graph"
)

func sampleGraph() *graph.Graph {
	g := graph.New(graph.DefaultID, graph.DefaultType, "vvo")
	g.Metadata = graph.Metadata{
		GeneratedAt:    time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		TripFilter:     []string{"voe"},
		ProcessedLines: []string{"voe:1"},
	}
	g.AddNode(graph.Node{ID: "1", Label: "A", Metadata: graph.NodeMetadata{X: 13.0, Y: 51.0, Place: "Dresden"}})
	g.AddNode(graph.Node{ID: "2", Label: "B", Metadata: graph.NodeMetadata{X: 13.1, Y: 51.1, Place: "Dresden"}})
	g.AddEdge(graph.NewEdge("1", "2", "L", "voe:1", 4))
	return g
}

func TestMarshalUnmarshal(t *testing.T) {
	data, err := Marshal(sampleGraph())
	require.NoError(t, err)

	s := string(data)
	assert.Contains(t, s, `"graph"`)
	assert.Contains(t, s, `"tripIds"`)
	assert.Contains(t, s, `"relation": "regional"`)

	g, err := Unmarshal(data)
	require.NoError(t, err)
	assert.Equal(t, graph.DefaultID, g.ID)
	assert.Equal(t, []string{"voe"}, g.Metadata.TripFilter)
	assert.Equal(t, 2, g.NodeCount())
	require.Len(t, g.EdgesBetween("2", "1"), 1, "pair index is rebuilt on load")
	assert.Equal(t, 4, g.Edges()[0].Metadata.Time)
	assert.True(t, g.Metadata.GeneratedAt.Equal(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)))
}

func TestDecode_Errors(t *testing.T) {
	tests := []struct {
		name    string
		json    string
		wantErr string
	}{
		{
			name:    "duplicate node",
			json:    `{"graph":{"nodes":[{"id":"1"},{"id":"1"}],"edges":[]}}`,
			wantErr: "duplicate node id",
		},
		{
			name:    "empty node id",
			json:    `{"graph":{"nodes":[{"id":""}],"edges":[]}}`,
			wantErr: "node id is required",
		},
		{
			name:    "edge without target",
			json:    `{"graph":{"nodes":[],"edges":[{"source":"1"}]}}`,
			wantErr: "edge target is required",
		},
		{
			name:    "not json",
			json:    `{graph`,
			wantErr: "parsing graph document",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Unmarshal([]byte(tt.json))
			require.Error(t, err)
			assert.True(t, strings.Contains(err.Error(), tt.wantErr), "got %v", err)
		})
	}
}
