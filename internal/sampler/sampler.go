// Package sampler discovers timed edges of one line by querying the trip
// endpoint at stops that have not been covered yet.
package sampler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/vvo-tools/vvograph/internal/graph"
	"github.com/vvo-tools/vvograph/internal/line"
	"github.com/vvo-tools/vvograph/internal/logging"
	"github.com/vvo-tools/vvograph/internal/vvo"
)

// DefaultBudget bounds the trip queries issued per line.
const DefaultBudget = 20

// TripQuerier is the part of the VVO client the sampler needs.
type TripQuerier interface {
	Trip(ctx context.Context, req vvo.TripRequest) (*vvo.Trip, error)
}

// Failure describes one failed trip query.
type Failure struct {
	RecordedAt time.Time `json:"recorded_at"`
	TripID     string    `json:"trip_id"`
	StopID     string    `json:"stop_id"`
	Kind       string    `json:"kind"`
	Message    string    `json:"message"`
}

// FailureRecorder persists query failures.
type FailureRecorder interface {
	RecordFailure(ctx context.Context, f Failure) error
}

// Result is the outcome of sampling one line.
type Result struct {
	LineID       string
	Edges        []graph.Edge
	Attempts     int
	Failures     int
	FailureKinds map[string]int
	LastError    error
}

// Sampler runs the bounded discovery loop.
type Sampler struct {
	querier  TripQuerier
	recorder FailureRecorder
	budget   int
	now      func() time.Time
	logger   *slog.Logger
}

// Option configures a Sampler.
type Option func(*Sampler)

// WithBudget sets the maximum number of queries per line.
func WithBudget(n int) Option {
	return func(s *Sampler) {
		if n > 0 {
			s.budget = n
		}
	}
}

// WithRecorder sets where query failures are recorded.
func WithRecorder(r FailureRecorder) Option {
	return func(s *Sampler) {
		s.recorder = r
	}
}

// WithClock sets the time source used for request times and diagnostics.
func WithClock(now func() time.Time) Option {
	return func(s *Sampler) {
		s.now = now
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Sampler) {
		s.logger = l
	}
}

// New creates a sampler querying q.
func New(q TripQuerier, opts ...Option) *Sampler {
	s := &Sampler{
		querier: q,
		budget:  DefaultBudget,
		now:     time.Now,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Budget returns the per-line query budget.
func (s *Sampler) Budget() int {
	return s.budget
}

// Sample discovers edges of l. Query failures never abort the loop; they are
// counted, recorded and yield no edges for that round. Only a done context
// ends sampling early, in which case the edges found so far are returned with
// ctx.Err().
func (s *Sampler) Sample(ctx context.Context, l line.Line) (Result, error) {
	res := Result{LineID: l.ID, FailureKinds: map[string]int{}}
	visited := make(map[string]bool, len(l.Stops))
	remaining := s.budget

	for remaining > 0 {
		next, ok := nextUnvisited(l.Stops, visited)
		if !ok {
			break
		}
		if err := ctx.Err(); err != nil {
			return res, err
		}
		visited[next] = true

		edges, err := s.query(ctx, l, next)
		res.Attempts++
		remaining--

		if err != nil {
			if ctx.Err() != nil {
				return res, ctx.Err()
			}
			res.Failures++
			res.FailureKinds[vvo.Kind(err)]++
			res.LastError = err
			s.recordFailure(ctx, l.ID, next, err)
			continue
		}

		for _, e := range edges {
			visited[e.Source] = true
			visited[e.Target] = true
		}
		res.Edges = append(res.Edges, edges...)
	}

	return res, nil
}

func (s *Sampler) query(ctx context.Context, l line.Line, stopID string) ([]graph.Edge, error) {
	trip, err := s.querier.Trip(ctx, vvo.NewTripRequest(l.ID, stopID, s.now()))
	if err != nil {
		return nil, err
	}
	if trip == nil {
		return nil, fmt.Errorf("%w: no trip returned", vvo.ErrInvalidResponse)
	}
	return EdgesFromTrip(l, trip)
}

func (s *Sampler) recordFailure(ctx context.Context, tripID, stopID string, err error) {
	logging.LogError(s.logger, "trip query failed", err,
		slog.String("trip_id", tripID),
		slog.String("stop_id", stopID))

	if s.recorder == nil {
		return
	}
	f := Failure{
		RecordedAt: s.now().UTC(),
		TripID:     tripID,
		StopID:     stopID,
		Kind:       vvo.Kind(err),
		Message:    err.Error(),
	}
	if rerr := s.recorder.RecordFailure(ctx, f); rerr != nil {
		logging.LogError(s.logger, "recording query failure", rerr,
			slog.String("trip_id", tripID))
	}
}

func nextUnvisited(stops []string, visited map[string]bool) (string, bool) {
	for _, id := range stops {
		if !visited[id] {
			return id, true
		}
	}
	return "", false
}

// EdgesFromTrip converts consecutive scheduled stops into edges tagged with
// the line name and trip id. A schedule time that does not parse, or a
// scheduled stop without an id, fails the whole trip.
func EdgesFromTrip(l line.Line, trip *vvo.Trip) ([]graph.Edge, error) {
	if len(trip.Stops) < 2 {
		return nil, nil
	}
	edges := make([]graph.Edge, 0, len(trip.Stops)-1)
	for i := 1; i < len(trip.Stops); i++ {
		prev, curr := trip.Stops[i-1], trip.Stops[i]
		seconds, err := vvo.TravelSeconds(prev.Time, curr.Time)
		if err != nil {
			return nil, fmt.Errorf("trip %s, stop %s: %w", l.ID, curr.ID, err)
		}
		e := graph.NewEdge(prev.ID, curr.ID, l.Name, l.ID, seconds)
		if err := e.Validate(); err != nil {
			return nil, fmt.Errorf("%w: trip %s, stop %d: %w", vvo.ErrInvalidResponse, l.ID, i, err)
		}
		edges = append(edges, e)
	}
	return edges, nil
}
