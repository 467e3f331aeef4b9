// Package graph is the in-memory store for the transit connectivity graph.
//
// The store holds nodes keyed by stop id and an insertion-ordered edge list.
// It has no deduplication policy of its own: callers look up existing edges
// with EdgesBetween and decide whether to merge or insert.
package graph

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

const (
	// DefaultID is the id of the network graph.
	DefaultID = "vvo-network"
	// DefaultType is the graph type written to graph documents.
	DefaultType = "transit-network"
	// RelationTransit tags edges discovered from trip schedules.
	RelationTransit = "regional"
)

// edgeNamespace scopes the name-based edge ids.
var edgeNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://webapi.vvo-online.de/dm/trip"))

// NodeMetadata carries the stop position and place of a node. Unlocated
// marks a catalogue stop whose coordinates do not parse; X and Y are zero then.
type NodeMetadata struct {
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Place     string  `json:"place,omitempty"`
	Unlocated bool    `json:"unlocated,omitempty"`
}

// Node is a stop in the graph.
type Node struct {
	ID       string       `json:"id"`
	Label    string       `json:"label"`
	Metadata NodeMetadata `json:"metadata"`
}

// EdgeMetadata carries the lines and trips travelling an edge and the travel
// time in seconds observed on first discovery.
type EdgeMetadata struct {
	Lines   []string `json:"lines"`
	TripIDs []string `json:"tripIds"`
	Time    int      `json:"time"`
}

// Edge is a timed connection between two stops.
// Source and target are stored as discovered, but lookups ignore direction.
type Edge struct {
	ID       string       `json:"id,omitempty"`
	Source   string       `json:"source"`
	Target   string       `json:"target"`
	Relation string       `json:"relation"`
	Directed bool         `json:"directed"`
	Metadata EdgeMetadata `json:"metadata"`
}

// Validation errors.
var (
	ErrEmptySource = errors.New("edge source is required")
	ErrEmptyTarget = errors.New("edge target is required")
	ErrEmptyNodeID = errors.New("node id is required")
)

// NewEdge creates an undirected transit edge for one line and trip.
func NewEdge(source, target, lineName, tripID string, seconds int) Edge {
	return Edge{
		ID:       EdgeID(source, target),
		Source:   source,
		Target:   target,
		Relation: RelationTransit,
		Directed: false,
		Metadata: EdgeMetadata{
			Lines:   []string{lineName},
			TripIDs: []string{tripID},
			Time:    seconds,
		},
	}
}

// EdgeID returns a stable id for an edge with the given endpoints.
func EdgeID(source, target string) string {
	return uuid.NewSHA1(edgeNamespace, []byte(source+"\x00"+target)).String()
}

// Validate checks that the edge has both endpoints.
func (e *Edge) Validate() error {
	if e.Source == "" {
		return ErrEmptySource
	}
	if e.Target == "" {
		return ErrEmptyTarget
	}
	return nil
}

// Pair returns the unordered endpoint pair of the edge.
func (e *Edge) Pair() PairKey {
	return NewPairKey(e.Source, e.Target)
}

// PairKey identifies an unordered endpoint pair.
type PairKey struct {
	A, B string // A <= B
}

// NewPairKey orders the endpoints so that {a, b} and {b, a} share a key.
func NewPairKey(a, b string) PairKey {
	if b < a {
		a, b = b, a
	}
	return PairKey{A: a, B: b}
}

// Metadata describes how and when a graph was generated.
type Metadata struct {
	GeneratedAt    time.Time `json:"generatedAt"`
	TripFilter     []string  `json:"tripFilter,omitempty"`
	BuildID        string    `json:"buildId,omitempty"`
	ProcessedLines []string  `json:"processedLines,omitempty"`
}

// Graph is the node/edge container.
type Graph struct {
	ID       string
	Type     string
	Label    string
	Directed bool
	Metadata Metadata

	nodes     map[string]*Node
	nodeOrder []string
	edges     []*Edge
	pairs     map[PairKey][]*Edge
}

// New creates an empty undirected graph.
func New(id, graphType, label string) *Graph {
	return &Graph{
		ID:    id,
		Type:  graphType,
		Label: label,
		nodes: make(map[string]*Node),
		pairs: make(map[PairKey][]*Edge),
	}
}

// AddNode inserts a node. Adding an id twice replaces the stored node but
// keeps its original position.
func (g *Graph) AddNode(n Node) {
	if existing, ok := g.nodes[n.ID]; ok {
		*existing = n
		return
	}
	node := n
	g.nodes[n.ID] = &node
	g.nodeOrder = append(g.nodeOrder, n.ID)
}

// HasNode reports whether a node with the id exists.
func (g *Graph) HasNode(id string) bool {
	_, ok := g.nodes[id]
	return ok
}

// Node returns the node with the given id.
func (g *Graph) Node(id string) (*Node, bool) {
	n, ok := g.nodes[id]
	return n, ok
}

// Nodes returns the nodes in insertion order.
func (g *Graph) Nodes() []*Node {
	out := make([]*Node, 0, len(g.nodeOrder))
	for _, id := range g.nodeOrder {
		out = append(out, g.nodes[id])
	}
	return out
}

// NodeCount returns the number of nodes.
func (g *Graph) NodeCount() int {
	return len(g.nodes)
}

// AddEdge appends an edge. No merging happens here.
func (g *Graph) AddEdge(e Edge) *Edge {
	edge := e
	g.edges = append(g.edges, &edge)
	key := edge.Pair()
	g.pairs[key] = append(g.pairs[key], &edge)
	return &edge
}

// Edges returns the edges in insertion order.
func (g *Graph) Edges() []*Edge {
	out := make([]*Edge, len(g.edges))
	copy(out, g.edges)
	return out
}

// EdgeCount returns the number of edges.
func (g *Graph) EdgeCount() int {
	return len(g.edges)
}

// EdgesBetween returns every edge connecting a and b, in either direction.
// The returned edges are the stored ones; mutating their metadata updates
// the graph.
func (g *Graph) EdgesBetween(a, b string) []*Edge {
	found := g.pairs[NewPairKey(a, b)]
	if len(found) == 0 {
		return nil
	}
	out := make([]*Edge, len(found))
	copy(out, found)
	return out
}

// FindDuplicatePairs returns the endpoint pairs connected by more than one
// edge, with their edge count.
func (g *Graph) FindDuplicatePairs() map[PairKey]int {
	duplicates := make(map[PairKey]int)
	for key, edges := range g.pairs {
		if len(edges) > 1 {
			duplicates[key] = len(edges)
		}
	}
	return duplicates
}
