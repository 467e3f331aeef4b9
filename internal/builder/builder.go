// Package builder assembles the network graph line by line from sampled trip
// schedules.
package builder

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vvo-tools/vvograph/internal/graph"
	"github.com/vvo-tools/vvograph/internal/line"
	"github.com/vvo-tools/vvograph/internal/logging"
	"github.com/vvo-tools/vvograph/internal/sampler"
	"github.com/vvo-tools/vvograph/internal/stop"
	"github.com/vvo-tools/vvograph/internal/throttle"
)

// DefaultCooldown is the pause between the end of one line and the start of
// the next.
const DefaultCooldown = 10 * time.Second

// announceLimit is the number of filtered lines listed by id before only
// their count is logged.
const announceLimit = 20

// DefaultLabel labels built graphs.
const DefaultLabel = "VVO network"

// LineSampler discovers the edges of a single line.
type LineSampler interface {
	Sample(ctx context.Context, l line.Line) (sampler.Result, error)
}

// Checkpointer persists intermediate graphs. LoadCheckpoint returns an error
// matching fs.ErrNotExist when no checkpoint exists.
type Checkpointer interface {
	LoadCheckpoint() (*graph.Graph, error)
	SaveCheckpoint(g *graph.Graph) error
}

// Observer is notified after every line.
type Observer interface {
	ObserveLine(lr LineResult)
}

// Options control a single build.
type Options struct {
	// Filter keeps lines whose id starts with one of the prefixes.
	// Empty keeps every line.
	Filter []string
	// Resume continues from the checkpoint when one exists.
	Resume bool
	Label  string
}

// Builder runs builds.
type Builder struct {
	sampler      LineSampler
	limiter      throttle.Limiter
	checkpointer Checkpointer
	observer     Observer
	logger       *slog.Logger
	now          func() time.Time
}

// Option configures a Builder.
type Option func(*Builder)

// WithLimiter sets the limiter waited on before every line. Done is called
// once a line is merged and checkpointed.
func WithLimiter(l throttle.Limiter) Option {
	return func(b *Builder) {
		b.limiter = l
	}
}

// WithCheckpointer enables checkpointing after every line.
func WithCheckpointer(c Checkpointer) Option {
	return func(b *Builder) {
		b.checkpointer = c
	}
}

// WithObserver registers a per-line observer.
func WithObserver(o Observer) Option {
	return func(b *Builder) {
		b.observer = o
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(b *Builder) {
		b.logger = l
	}
}

// WithClock sets the time source for graph metadata.
func WithClock(now func() time.Time) Option {
	return func(b *Builder) {
		b.now = now
	}
}

// New creates a builder around s. Without WithLimiter lines are paced by
// DefaultCooldown.
func New(s LineSampler, opts ...Option) *Builder {
	b := &Builder{
		sampler: s,
		logger:  slog.Default(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.limiter == nil {
		b.limiter = throttle.NewInterval(DefaultCooldown)
	}
	return b
}

// Build samples every selected line and merges the discovered edges into one
// graph. On a context error the partially built graph and report are returned
// together with the error; the last checkpoint stays usable for a resume.
func (b *Builder) Build(ctx context.Context, catalog *stop.Catalog, lines line.Collection, opts Options) (*graph.Graph, *Report, error) {
	selected := lines
	if len(opts.Filter) > 0 {
		selected = line.Filter(lines, opts.Filter)
		b.announce(selected, opts.Filter)
	}

	g, resumed, err := b.startGraph(opts)
	if err != nil {
		return nil, nil, err
	}

	report := &Report{
		BuildID:   g.Metadata.BuildID,
		StartedAt: b.now().UTC(),
		Filter:    opts.Filter,
		Resumed:   resumed,
	}
	g.Metadata.TripFilter = opts.Filter

	ids := selected.IDs()
	addNodes(g, catalog, selected, ids)

	processed := make(map[string]bool, len(g.Metadata.ProcessedLines))
	for _, id := range g.Metadata.ProcessedLines {
		processed[id] = true
	}

	for i, id := range ids {
		if processed[id] {
			report.add(LineResult{LineID: id, Status: StatusSkipped})
			continue
		}

		waitStart := b.now()
		if err := b.limiter.Wait(ctx); err != nil {
			return b.finish(g, report), report, err
		}
		if waited := b.now().Sub(waitStart); waited >= time.Second {
			b.logger.Debug("cooled down", slog.Duration("waited", waited.Round(time.Second)))
		}

		res, err := b.sampler.Sample(ctx, selected[id])
		if err != nil {
			return b.finish(g, report), report, fmt.Errorf("sampling line %s: %w", id, err)
		}

		lr := lineResultFrom(res)
		st := mergeEdges(g, res.Edges, b.logger)
		lr.EdgesAdded, lr.EdgesMerged, lr.Duplicates = st.added, st.merged, st.duplicates
		report.add(lr)

		processed[id] = true
		g.Metadata.ProcessedLines = append(g.Metadata.ProcessedLines, id)

		b.logger.Info("computed trip",
			slog.String("trip_id", id),
			slog.String("progress", fmt.Sprintf("%d/%d", i+1, len(ids))),
			slog.String("status", lr.Status),
			slog.Int("edges", lr.EdgesFound))

		if b.observer != nil {
			b.observer.ObserveLine(lr)
		}

		if b.checkpointer != nil {
			g.Metadata.GeneratedAt = b.now().UTC()
			if err := b.checkpointer.SaveCheckpoint(g); err != nil {
				return b.finish(g, report), report, fmt.Errorf("saving checkpoint: %w", err)
			}
		}
		b.limiter.Done()
	}

	b.finish(g, report)
	logging.LogOperation(b.logger, "graph build",
		slog.String("build_id", report.BuildID),
		slog.Int("nodes", report.Nodes),
		slog.Int("edges", report.Edges),
		slog.Int("query_failures", report.QueryFailures),
		slog.Duration("duration", report.FinishedAt.Sub(report.StartedAt)))
	return g, report, nil
}

func (b *Builder) startGraph(opts Options) (*graph.Graph, bool, error) {
	if opts.Resume && b.checkpointer != nil {
		g, err := b.checkpointer.LoadCheckpoint()
		switch {
		case err == nil:
			b.logger.Info("resuming from checkpoint",
				slog.Int("processed_lines", len(g.Metadata.ProcessedLines)),
				slog.Int("edges", g.EdgeCount()))
			if g.Metadata.BuildID == "" {
				g.Metadata.BuildID = uuid.NewString()
			}
			return g, true, nil
		case errors.Is(err, fs.ErrNotExist):
			b.logger.Info("no checkpoint found, starting a fresh build")
		default:
			return nil, false, fmt.Errorf("loading checkpoint: %w", err)
		}
	}

	label := opts.Label
	if label == "" {
		label = DefaultLabel
	}
	g := graph.New(graph.DefaultID, graph.DefaultType, label)
	g.Metadata.BuildID = uuid.NewString()
	return g, false, nil
}

func (b *Builder) finish(g *graph.Graph, report *Report) *graph.Graph {
	report.FinishedAt = b.now().UTC()
	report.Nodes = g.NodeCount()
	report.Edges = g.EdgeCount()
	g.Metadata.GeneratedAt = report.FinishedAt
	return g
}

func (b *Builder) announce(selected line.Collection, filter []string) {
	if len(selected) < announceLimit {
		b.logger.Info("filtered lines",
			slog.String("filter", strings.Join(filter, ",")),
			slog.Any("lines", selected.IDs()))
		return
	}
	b.logger.Info("filtered lines",
		slog.String("filter", strings.Join(filter, ",")),
		slog.Int("count", len(selected)))
}

// addNodes creates a node for every catalogue stop served by the selected
// lines. Stops missing from the catalogue are skipped; stops whose
// coordinates do not parse become unlocated nodes.
func addNodes(g *graph.Graph, catalog *stop.Catalog, selected line.Collection, ids []string) {
	for _, id := range ids {
		for _, stopID := range selected[id].Stops {
			s, ok := catalog.Lookup(stopID)
			if !ok {
				continue
			}
			meta := graph.NodeMetadata{Place: s.Place}
			if coords, err := s.Coordinates(); err == nil {
				meta.X, meta.Y = coords[0], coords[1]
			} else {
				meta.Unlocated = true
			}
			g.AddNode(graph.Node{
				ID:       s.ID,
				Label:    s.Name,
				Metadata: meta,
			})
		}
	}
}
