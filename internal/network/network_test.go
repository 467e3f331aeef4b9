package network

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vvo-tools/vvograph/internal/graph"
)

// testGraph:
//
//	A --60-- B --60-- C
//	 \______300______/
//	D --30-- E           F (isolated)
func testGraph() *graph.Graph {
	g := graph.New(graph.DefaultID, graph.DefaultType, "test")
	for _, id := range []string{"A", "B", "C", "D", "E", "F"} {
		g.AddNode(graph.Node{ID: id, Label: id})
	}
	g.AddEdge(graph.NewEdge("A", "B", "1", "voe:1", 60))
	g.AddEdge(graph.NewEdge("C", "B", "1", "voe:1", 60))
	g.AddEdge(graph.NewEdge("A", "C", "2", "voe:2", 300))
	g.AddEdge(graph.NewEdge("D", "E", "3", "voe:3", 30))
	return g
}

func TestStats(t *testing.T) {
	st := New(testGraph()).Stats()

	assert.Equal(t, 6, st.Nodes)
	assert.Equal(t, 4, st.Edges)
	assert.Equal(t, 4, st.StopPairs)
	assert.Equal(t, 3, st.Components)
	assert.Equal(t, 3, st.LargestComponent)
	assert.Equal(t, 1, st.IsolatedStops)
	assert.Equal(t, 3, st.Lines)
	assert.InDelta(t, 8.0/6.0, st.MeanDegree, 1e-9)
	assert.InDelta(t, 112.5, st.MeanTravelSeconds, 1e-9)
	assert.Zero(t, st.DanglingEndpoints)
	assert.Zero(t, st.DuplicatePairs)
}

func TestStats_Anomalies(t *testing.T) {
	g := testGraph()
	g.AddEdge(graph.NewEdge("A", "A", "1", "voe:1", 0))
	g.AddEdge(graph.NewEdge("E", "Z", "3", "voe:3", -5))
	g.AddEdge(graph.NewEdge("B", "A", "9", "voe:9", 45))

	st := New(g).Stats()
	assert.Equal(t, 1, st.SelfLoops)
	assert.Equal(t, 1, st.NegativeTravelTime)
	assert.Equal(t, 1, st.DanglingEndpoints)
	assert.Equal(t, 1, st.DuplicatePairs)
	assert.Equal(t, 7, st.Nodes)
}

func TestComponents(t *testing.T) {
	cc := New(testGraph()).Components()
	require.Len(t, cc, 3)
	assert.Equal(t, []string{"A", "B", "C"}, cc[0])
	assert.Equal(t, []string{"D", "E"}, cc[1])
	assert.Equal(t, []string{"F"}, cc[2])
}

func TestFastestPath(t *testing.T) {
	n := New(testGraph())

	p, err := n.FastestPath("A", "C")
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B", "C"}, p.Stops)
	assert.Equal(t, 120, p.TotalSeconds)
	require.Len(t, p.Hops, 2)
	assert.Equal(t, Hop{From: "B", To: "C", Seconds: 60, Lines: []string{"1"}}, p.Hops[1])
}

func TestFastestPath_PrefersFasterParallelEdge(t *testing.T) {
	g := testGraph()
	g.AddEdge(graph.NewEdge("A", "C", "4", "voe:4", 90))

	p, err := New(g).FastestPath("C", "A")
	require.NoError(t, err)
	assert.Equal(t, []string{"C", "A"}, p.Stops)
	assert.Equal(t, 90, p.TotalSeconds)
}

func TestFastestPath_Errors(t *testing.T) {
	n := New(testGraph())

	_, err := n.FastestPath("A", "nope")
	assert.ErrorIs(t, err, ErrUnknownStop)

	_, err = n.FastestPath("A", "D")
	assert.ErrorIs(t, err, ErrNoPath)
}

func TestFastestPath_SameStop(t *testing.T) {
	p, err := New(testGraph()).FastestPath("B", "B")
	require.NoError(t, err)
	assert.Equal(t, []string{"B"}, p.Stops)
	assert.Zero(t, p.TotalSeconds)
}

func TestNeighbors(t *testing.T) {
	n := New(testGraph())

	got, err := n.Neighbors("B")
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "C"}, got)

	_, err = n.Neighbors("nope")
	assert.ErrorIs(t, err, ErrUnknownStop)
}
