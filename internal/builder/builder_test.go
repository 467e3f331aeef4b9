package builder

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vvo-tools/vvograph/internal/graph"
	"github.com/vvo-tools/vvograph/internal/jgf"
	"github.com/vvo-tools/vvograph/internal/line"
	"github.com/vvo-tools/vvograph/internal/logging"
	"github.com/vvo-tools/vvograph/internal/sampler"
	"github.com/vvo-tools/vvograph/internal/stop"
	"github.com/vvo-tools/vvograph/internal/throttle"
	"github.com/vvo-tools/vvograph/internal/vvo"
)

// stubSampler returns canned edges per line id.
type stubSampler struct {
	edges   map[string][]graph.Edge
	errs    map[string]error
	sampled []string
}

func (s *stubSampler) Sample(ctx context.Context, l line.Line) (sampler.Result, error) {
	s.sampled = append(s.sampled, l.ID)
	res := sampler.Result{LineID: l.ID, Attempts: 1, FailureKinds: map[string]int{}}
	if err, ok := s.errs[l.ID]; ok {
		res.Failures = 1
		res.FailureKinds[vvo.Kind(err)]++
		res.LastError = err
		return res, nil
	}
	res.Edges = s.edges[l.ID]
	return res, nil
}

// countingLimiter never blocks and counts waits.
type countingLimiter struct {
	waits int
	dones int
	err   error
}

func (c *countingLimiter) Wait(ctx context.Context) error {
	c.waits++
	return c.err
}

func (c *countingLimiter) Done() {
	c.dones++
}

type memCheckpointer struct {
	stored *graph.Graph
	saves  int
}

func (m *memCheckpointer) LoadCheckpoint() (*graph.Graph, error) {
	if m.stored == nil {
		return nil, fmt.Errorf("checkpoint: %w", fs.ErrNotExist)
	}
	return m.stored, nil
}

func (m *memCheckpointer) SaveCheckpoint(g *graph.Graph) error {
	m.saves++
	m.stored = g
	return nil
}

type recordingObserver struct {
	lines []LineResult
}

func (o *recordingObserver) ObserveLine(lr LineResult) {
	o.lines = append(o.lines, lr)
}

var buildTime = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func testCatalog() *stop.Catalog {
	return stop.NewCatalog([]stop.Stop{
		{ID: "1", Name: "Postplatz", Place: "Dresden", X: "13.0", Y: "51.0"},
		{ID: "2", Name: "Altmarkt", Place: "Dresden", X: "13.1", Y: "51.1"},
		{ID: "3", Name: "Pirnaischer Platz", Place: "Dresden", X: "13.2", Y: "51.2"},
		{ID: "4", Name: "Nowhere", Place: "Dresden"},
	})
}

func testLines() line.Collection {
	return line.Collection{
		"voe:A": {ID: "voe:A", Name: "A", Stops: []string{"1", "2"}},
		"voe:B": {ID: "voe:B", Name: "B", Stops: []string{"2", "1", "3"}},
		"ddb:C": {ID: "ddb:C", Name: "C", Stops: []string{"3", "99"}},
	}
}

func newTestBuilder(s LineSampler, opts ...Option) (*Builder, *countingLimiter) {
	lim := &countingLimiter{}
	base := []Option{
		WithLimiter(lim),
		WithLogger(logging.Discard()),
		WithClock(func() time.Time { return buildTime }),
	}
	return New(s, append(base, opts...)...), lim
}

func TestBuild_MissingStopsCreateNoNodes(t *testing.T) {
	s := &stubSampler{}
	b, _ := newTestBuilder(s)

	g, _, err := b.Build(context.Background(), testCatalog(), testLines(), Options{})
	require.NoError(t, err)

	assert.Equal(t, 3, g.NodeCount())
	assert.False(t, g.HasNode("99"), "unknown stop")
	assert.False(t, g.HasNode("4"), "stop served by no selected line")

	n, ok := g.Node("1")
	require.True(t, ok)
	assert.Equal(t, "Postplatz", n.Label)
	assert.Equal(t, graph.NodeMetadata{X: 13.0, Y: 51.0, Place: "Dresden"}, n.Metadata)
}

func TestBuild_UnlocatedStopGetsNode(t *testing.T) {
	lines := line.Collection{
		"voe:D": {ID: "voe:D", Name: "D", Stops: []string{"1", "4", "99"}},
	}
	b, _ := newTestBuilder(&stubSampler{})

	g, _, err := b.Build(context.Background(), testCatalog(), lines, Options{})
	require.NoError(t, err)

	assert.Equal(t, 2, g.NodeCount())
	assert.False(t, g.HasNode("99"), "unknown stop")

	n, ok := g.Node("4")
	require.True(t, ok, "catalogue stop without coordinates")
	assert.Equal(t, "Nowhere", n.Label)
	assert.Equal(t, graph.NodeMetadata{Place: "Dresden", Unlocated: true}, n.Metadata)

	located, ok := g.Node("1")
	require.True(t, ok)
	assert.False(t, located.Metadata.Unlocated)
}

func TestBuild_OneEdgePerPair(t *testing.T) {
	s := &stubSampler{edges: map[string][]graph.Edge{
		"voe:A": {graph.NewEdge("1", "2", "A", "voe:A", 120)},
		"voe:B": {
			graph.NewEdge("2", "1", "B", "voe:B", 180),
			graph.NewEdge("1", "3", "B", "voe:B", 60),
		},
	}}
	b, _ := newTestBuilder(s)

	g, report, err := b.Build(context.Background(), testCatalog(), testLines(), Options{Filter: []string{"voe"}})
	require.NoError(t, err)

	require.Equal(t, 2, g.EdgeCount())
	between := g.EdgesBetween("1", "2")
	require.Len(t, between, 1)
	e := between[0]
	assert.Equal(t, "1", e.Source)
	assert.Equal(t, []string{"A", "B"}, e.Metadata.Lines)
	assert.Equal(t, []string{"voe:A", "voe:B"}, e.Metadata.TripIDs)
	assert.Equal(t, 120, e.Metadata.Time, "first observed time is kept")

	assert.Equal(t, 2, report.EdgesAdded)
	assert.Equal(t, 1, report.EdgesMerged)
	assert.Zero(t, report.DuplicateWarnings)
}

func TestBuild_MergeDoesNotRepeatTags(t *testing.T) {
	s := &stubSampler{edges: map[string][]graph.Edge{
		"voe:A": {
			graph.NewEdge("1", "2", "A", "voe:A", 120),
			graph.NewEdge("2", "1", "A", "voe:A", 120),
		},
	}}
	b, _ := newTestBuilder(s)

	g, _, err := b.Build(context.Background(), testCatalog(), testLines(), Options{Filter: []string{"voe:A"}})
	require.NoError(t, err)

	e := g.EdgesBetween("1", "2")[0]
	assert.Equal(t, []string{"A"}, e.Metadata.Lines)
	assert.Equal(t, []string{"voe:A"}, e.Metadata.TripIDs)
}

func TestBuild_FilterAndOrder(t *testing.T) {
	s := &stubSampler{}
	b, lim := newTestBuilder(s)

	g, report, err := b.Build(context.Background(), testCatalog(), testLines(), Options{Filter: []string{"voe"}})
	require.NoError(t, err)

	assert.Equal(t, []string{"voe:A", "voe:B"}, s.sampled)
	assert.Equal(t, 2, lim.waits, "one wait per line start")
	assert.Equal(t, 2, lim.dones, "one done per finished line")
	assert.Len(t, report.Lines, 2)
	assert.Equal(t, []string{"voe"}, g.Metadata.TripFilter)
	assert.Equal(t, []string{"voe:A", "voe:B"}, g.Metadata.ProcessedLines)
}

func TestBuild_NoFilterProcessesAllLines(t *testing.T) {
	s := &stubSampler{}
	b, _ := newTestBuilder(s)

	_, _, err := b.Build(context.Background(), testCatalog(), testLines(), Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"ddb:C", "voe:A", "voe:B"}, s.sampled)
}

func TestBuild_Idempotent(t *testing.T) {
	trips := map[string]*vvo.Trip{
		"1": {Stops: []vvo.TripStop{
			{ID: "1", Time: "/Date(1000-0000)/"},
			{ID: "2", Time: "/Date(5000-0000)/"},
			{ID: "3", Time: "/Date(65000-0000)/"},
		}},
		"2": {Stops: []vvo.TripStop{
			{ID: "2", Time: "/Date(0-0000)/"},
			{ID: "1", Time: "/Date(7000-0000)/"},
		}},
	}
	build := func() []byte {
		q := &tableQuerier{trips: trips}
		smp := sampler.New(q,
			sampler.WithLogger(logging.Discard()),
			sampler.WithClock(func() time.Time { return buildTime }))
		b, _ := newTestBuilder(smp)
		g, _, err := b.Build(context.Background(), testCatalog(), testLines(), Options{Filter: []string{"voe"}})
		require.NoError(t, err)
		g.Metadata.BuildID = ""
		data, err := jgf.Marshal(g)
		require.NoError(t, err)
		return data
	}

	first := build()
	second := build()
	assert.Equal(t, string(first), string(second))
}

func TestBuild_FailedLine(t *testing.T) {
	s := &stubSampler{errs: map[string]error{
		"voe:A": fmt.Errorf("%w: timeout", vvo.ErrNetworkError),
	}}
	obs := &recordingObserver{}
	b, _ := newTestBuilder(s, WithObserver(obs))

	_, report, err := b.Build(context.Background(), testCatalog(), testLines(), Options{Filter: []string{"voe"}})
	require.NoError(t, err)

	assert.Equal(t, 1, report.Count(StatusFailed))
	assert.Equal(t, 1, report.Count(StatusEmpty))
	assert.Equal(t, 2, report.QueryAttempts)
	assert.Equal(t, 1, report.QueryFailures)
	assert.InDelta(t, 0.5, report.FailureRate(), 1e-9)
	assert.Contains(t, report.Lines[0].Reason, "timeout")
	assert.Len(t, obs.lines, 2)
}

func TestBuild_CheckpointsEveryLine(t *testing.T) {
	cp := &memCheckpointer{}
	b, _ := newTestBuilder(&stubSampler{}, WithCheckpointer(cp))

	_, _, err := b.Build(context.Background(), testCatalog(), testLines(), Options{})
	require.NoError(t, err)
	assert.Equal(t, 3, cp.saves)
	assert.Len(t, cp.stored.Metadata.ProcessedLines, 3)
}

func TestBuild_Resume(t *testing.T) {
	prior := graph.New(graph.DefaultID, graph.DefaultType, DefaultLabel)
	prior.Metadata.BuildID = "prior-build"
	prior.Metadata.ProcessedLines = []string{"voe:A"}
	prior.AddEdge(graph.NewEdge("1", "2", "A", "voe:A", 120))
	cp := &memCheckpointer{stored: prior}

	s := &stubSampler{edges: map[string][]graph.Edge{
		"voe:B": {graph.NewEdge("1", "2", "B", "voe:B", 99)},
	}}
	b, lim := newTestBuilder(s, WithCheckpointer(cp))

	g, report, err := b.Build(context.Background(), testCatalog(), testLines(), Options{Filter: []string{"voe"}, Resume: true})
	require.NoError(t, err)

	assert.True(t, report.Resumed)
	assert.Equal(t, "prior-build", report.BuildID)
	assert.Equal(t, []string{"voe:B"}, s.sampled)
	assert.Equal(t, 1, lim.waits, "skipped lines do not wait")
	assert.Equal(t, 1, report.Count(StatusSkipped))

	require.Equal(t, 1, g.EdgeCount())
	e := g.EdgesBetween("1", "2")[0]
	assert.Equal(t, []string{"A", "B"}, e.Metadata.Lines)
	assert.Equal(t, 120, e.Metadata.Time)
	assert.Equal(t, []string{"voe:A", "voe:B"}, g.Metadata.ProcessedLines)
}

func TestBuild_ResumeWithoutCheckpoint(t *testing.T) {
	cp := &memCheckpointer{}
	s := &stubSampler{}
	b, _ := newTestBuilder(s, WithCheckpointer(cp))

	_, report, err := b.Build(context.Background(), testCatalog(), testLines(), Options{Resume: true})
	require.NoError(t, err)
	assert.False(t, report.Resumed)
	assert.Len(t, s.sampled, 3)
}

func TestBuild_DuplicateWarning(t *testing.T) {
	prior := graph.New(graph.DefaultID, graph.DefaultType, DefaultLabel)
	prior.AddEdge(graph.NewEdge("1", "2", "X", "voe:X", 10))
	prior.AddEdge(graph.NewEdge("2", "1", "Y", "voe:Y", 20))
	cp := &memCheckpointer{stored: prior}

	s := &stubSampler{edges: map[string][]graph.Edge{
		"voe:A": {graph.NewEdge("1", "2", "A", "voe:A", 120)},
	}}
	b, _ := newTestBuilder(s, WithCheckpointer(cp))

	g, report, err := b.Build(context.Background(), testCatalog(), testLines(), Options{Filter: []string{"voe:A"}, Resume: true})
	require.NoError(t, err)

	assert.Equal(t, 1, report.DuplicateWarnings)
	for _, e := range g.EdgesBetween("1", "2") {
		assert.Contains(t, e.Metadata.Lines, "A")
	}
	assert.Equal(t, 2, g.EdgeCount())
}

func TestBuild_LimiterError(t *testing.T) {
	s := &stubSampler{}
	b, lim := newTestBuilder(s)
	lim.err = context.Canceled

	g, report, err := b.Build(context.Background(), testCatalog(), testLines(), Options{})
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, g)
	require.NotNil(t, report)
	assert.Empty(t, s.sampled)
	assert.Equal(t, 3, report.Nodes)
}

func TestBuild_CheckpointLoadError(t *testing.T) {
	b, _ := newTestBuilder(&stubSampler{}, WithCheckpointer(brokenCheckpointer{}))
	_, _, err := b.Build(context.Background(), testCatalog(), testLines(), Options{Resume: true})
	assert.ErrorContains(t, err, "loading checkpoint")
}

func TestReport_FailureRateEmpty(t *testing.T) {
	var r *Report
	assert.Zero(t, r.FailureRate())
	assert.Zero(t, (&Report{}).FailureRate())
}

type brokenCheckpointer struct{}

func (brokenCheckpointer) LoadCheckpoint() (*graph.Graph, error) {
	return nil, errors.New("corrupt checkpoint")
}

func (brokenCheckpointer) SaveCheckpoint(*graph.Graph) error { return nil }

type tableQuerier struct {
	trips map[string]*vvo.Trip
}

func (q *tableQuerier) Trip(ctx context.Context, req vvo.TripRequest) (*vvo.Trip, error) {
	if trip, ok := q.trips[req.StopID]; ok {
		return trip, nil
	}
	return nil, vvo.ErrInvalidResponse
}

// slowSampler takes a fixed time per line and records when each line started
// and ended.
type slowSampler struct {
	delay  time.Duration
	starts []time.Time
	ends   []time.Time
}

func (s *slowSampler) Sample(ctx context.Context, l line.Line) (sampler.Result, error) {
	s.starts = append(s.starts, time.Now())
	time.Sleep(s.delay)
	s.ends = append(s.ends, time.Now())
	return sampler.Result{LineID: l.ID, Attempts: 1, FailureKinds: map[string]int{}}, nil
}

func TestBuild_CooldownAfterSlowLine(t *testing.T) {
	const cooldown = 60 * time.Millisecond
	s := &slowSampler{delay: 2 * cooldown}
	b := New(s,
		WithLimiter(throttle.NewInterval(cooldown)),
		WithLogger(logging.Discard()))

	start := time.Now()
	_, _, err := b.Build(context.Background(), testCatalog(), testLines(), Options{Filter: []string{"voe"}})
	require.NoError(t, err)

	require.Len(t, s.starts, 2)
	assert.Less(t, s.starts[0].Sub(start), cooldown, "the first line does not wait")
	gap := s.starts[1].Sub(s.ends[0])
	assert.GreaterOrEqual(t, gap, cooldown-5*time.Millisecond,
		"pause between end of line %d and start of the next", 1)
}
