// Package network analyzes the transit graph: connectivity and fastest paths
// by scheduled travel time.
package network

import (
	"errors"
	"fmt"
	"sort"

	gg "gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/path"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"

	"github.com/vvo-tools/vvograph/internal/graph"
)

var (
	ErrUnknownStop = errors.New("stop is not in the graph")
	ErrNoPath      = errors.New("no path between stops")
)

// stopNode is a gonum node carrying the stop id.
type stopNode struct {
	id     int64
	StopID string
}

func (n stopNode) ID() int64 { return n.id }

// Network is a weighted undirected view of a transit graph. The weight of a
// stop pair is the smallest travel time of the edges connecting it.
type Network struct {
	g     *simple.WeightedUndirectedGraph
	ids   map[string]int64
	nodes []stopNode
	best  map[graph.PairKey]*graph.Edge

	source       *graph.Graph
	selfLoops    int
	negative     int
	danglingEnds int
}

// New builds the network view of g. Edges ending at a stop that has no node
// add that stop as a bare node. Self loops and edges with a negative travel
// time are counted but not routable.
func New(g *graph.Graph) *Network {
	n := &Network{
		g:      simple.NewWeightedUndirectedGraph(0, 0),
		ids:    make(map[string]int64),
		best:   make(map[graph.PairKey]*graph.Edge),
		source: g,
	}

	for _, node := range g.Nodes() {
		n.node(node.ID)
	}

	for _, e := range g.Edges() {
		for _, end := range []string{e.Source, e.Target} {
			if _, seen := n.ids[end]; !seen {
				n.danglingEnds++
			}
			n.node(end)
		}
		from, to := n.node(e.Source), n.node(e.Target)
		if e.Source == e.Target {
			n.selfLoops++
			continue
		}
		if e.Metadata.Time < 0 {
			n.negative++
			continue
		}

		key := e.Pair()
		if cur, ok := n.best[key]; ok && cur.Metadata.Time <= e.Metadata.Time {
			continue
		}
		n.best[key] = e
		n.g.SetWeightedEdge(n.g.NewWeightedEdge(from, to, float64(e.Metadata.Time)))
	}
	return n
}

func (n *Network) node(stopID string) stopNode {
	if id, ok := n.ids[stopID]; ok {
		return n.nodes[id]
	}
	sn := stopNode{id: int64(len(n.nodes)), StopID: stopID}
	n.ids[stopID] = sn.id
	n.nodes = append(n.nodes, sn)
	n.g.AddNode(sn)
	return sn
}

// Stats summarizes the connectivity of a graph.
type Stats struct {
	Nodes              int     `json:"nodes"`
	Edges              int     `json:"edges"`
	StopPairs          int     `json:"stop_pairs"`
	DuplicatePairs     int     `json:"duplicate_pairs"`
	Components         int     `json:"components"`
	LargestComponent   int     `json:"largest_component"`
	IsolatedStops      int     `json:"isolated_stops"`
	MeanDegree         float64 `json:"mean_degree"`
	MeanTravelSeconds  float64 `json:"mean_travel_seconds"`
	Lines              int     `json:"lines"`
	DanglingEndpoints  int     `json:"dangling_endpoints"`
	SelfLoops          int     `json:"self_loops,omitempty"`
	NegativeTravelTime int     `json:"negative_travel_time,omitempty"`
}

// Stats computes connectivity statistics.
func (n *Network) Stats() Stats {
	st := Stats{
		Nodes:              len(n.nodes),
		Edges:              n.source.EdgeCount(),
		StopPairs:          len(n.best),
		DuplicatePairs:     len(n.source.FindDuplicatePairs()),
		DanglingEndpoints:  n.danglingEnds,
		SelfLoops:          n.selfLoops,
		NegativeTravelTime: n.negative,
	}

	for _, cc := range topo.ConnectedComponents(n.g) {
		st.Components++
		if len(cc) > st.LargestComponent {
			st.LargestComponent = len(cc)
		}
		if len(cc) == 1 {
			st.IsolatedStops++
		}
	}

	if st.Nodes > 0 {
		st.MeanDegree = 2 * float64(st.StopPairs) / float64(st.Nodes)
	}

	lines := make(map[string]bool)
	total := 0
	for _, e := range n.best {
		total += e.Metadata.Time
		for _, l := range e.Metadata.Lines {
			lines[l] = true
		}
	}
	if len(n.best) > 0 {
		st.MeanTravelSeconds = float64(total) / float64(len(n.best))
	}
	st.Lines = len(lines)
	return st
}

// Components returns the stop ids of every connected component, largest
// first. Stop ids within a component are sorted.
func (n *Network) Components() [][]string {
	var out [][]string
	for _, cc := range topo.ConnectedComponents(n.g) {
		ids := make([]string, 0, len(cc))
		for _, node := range cc {
			ids = append(ids, node.(stopNode).StopID)
		}
		sort.Strings(ids)
		out = append(out, ids)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if len(out[i]) != len(out[j]) {
			return len(out[i]) > len(out[j])
		}
		return out[i][0] < out[j][0]
	})
	return out
}

// Hop is one edge of a path.
type Hop struct {
	From    string   `json:"from"`
	To      string   `json:"to"`
	Seconds int      `json:"seconds"`
	Lines   []string `json:"lines"`
}

// Path is a route through the network.
type Path struct {
	Stops        []string `json:"stops"`
	Hops         []Hop    `json:"hops"`
	TotalSeconds int      `json:"total_seconds"`
}

// FastestPath returns the path from one stop to another with the smallest
// total scheduled travel time. Transfer times are not modelled.
func (n *Network) FastestPath(from, to string) (Path, error) {
	fromID, ok := n.ids[from]
	if !ok {
		return Path{}, fmt.Errorf("%w: %s", ErrUnknownStop, from)
	}
	toID, ok := n.ids[to]
	if !ok {
		return Path{}, fmt.Errorf("%w: %s", ErrUnknownStop, to)
	}

	shortest := path.DijkstraFrom(n.nodes[fromID], n.g)
	nodes, _ := shortest.To(toID)
	if len(nodes) == 0 {
		return Path{}, fmt.Errorf("%w: %s to %s", ErrNoPath, from, to)
	}

	p := Path{Stops: stopIDs(nodes)}
	for i := 1; i < len(p.Stops); i++ {
		a, b := p.Stops[i-1], p.Stops[i]
		e := n.best[graph.NewPairKey(a, b)]
		p.Hops = append(p.Hops, Hop{From: a, To: b, Seconds: e.Metadata.Time, Lines: e.Metadata.Lines})
		p.TotalSeconds += e.Metadata.Time
	}
	return p, nil
}

// Neighbors returns the stops directly connected to a stop, sorted.
func (n *Network) Neighbors(stopID string) ([]string, error) {
	id, ok := n.ids[stopID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownStop, stopID)
	}
	out := stopIDs(gg.NodesOf(n.g.From(id)))
	sort.Strings(out)
	return out, nil
}

func stopIDs(nodes []gg.Node) []string {
	out := make([]string, len(nodes))
	for i, node := range nodes {
		out[i] = node.(stopNode).StopID
	}
	return out
}
