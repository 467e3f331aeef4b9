// Package metrics exposes build and HTTP metrics in the Prometheus format.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vvo-tools/vvograph/internal/builder"
)

const namespace = "vvograph"

// Metrics holds the collectors of one process, registered on their own
// registry.
type Metrics struct {
	Registry *prometheus.Registry

	LinesProcessed    *prometheus.CounterVec
	QueryAttempts     prometheus.Counter
	QueryFailures     *prometheus.CounterVec
	EdgesAdded        prometheus.Counter
	EdgesMerged       prometheus.Counter
	DuplicateWarnings prometheus.Counter
	GraphNodes        prometheus.Gauge
	GraphEdges        prometheus.Gauge
	FailureRate       prometheus.Gauge
	LastBuild         prometheus.Gauge

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// New creates and registers all collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		LinesProcessed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lines_processed_total",
			Help:      "Lines processed by the graph builder, by outcome.",
		}, []string{"status"}),
		QueryAttempts: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "trip_queries_total",
			Help:      "Trip queries issued.",
		}),
		QueryFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "trip_query_failures_total",
			Help:      "Failed trip queries, by failure kind.",
		}, []string{"kind"}),
		EdgesAdded: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "edges_added_total",
			Help:      "Edges inserted into the graph.",
		}),
		EdgesMerged: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "edges_merged_total",
			Help:      "Sampled edges merged into an existing edge.",
		}),
		DuplicateWarnings: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "duplicate_edge_warnings_total",
			Help:      "Merges that found more than one stored edge for a stop pair.",
		}),
		GraphNodes: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "graph_nodes",
			Help:      "Nodes in the last built graph.",
		}),
		GraphEdges: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "graph_edges",
			Help:      "Edges in the last built graph.",
		}),
		FailureRate: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "build_query_failure_ratio",
			Help:      "Share of failed trip queries in the last build.",
		}),
		LastBuild: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_build_timestamp_seconds",
			Help:      "Unix time the last build finished.",
		}),

		HTTPRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests served.",
		}, []string{"method", "route", "status"}),
		HTTPRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5},
		}, []string{"method", "route"}),
	}
}

// ObserveLine records the outcome of one line. It implements builder.Observer.
func (m *Metrics) ObserveLine(lr builder.LineResult) {
	m.LinesProcessed.WithLabelValues(lr.Status).Inc()
	m.QueryAttempts.Add(float64(lr.Attempts))
	for kind, n := range lr.FailureKinds {
		m.QueryFailures.WithLabelValues(kind).Add(float64(n))
	}
	m.EdgesAdded.Add(float64(lr.EdgesAdded))
	m.EdgesMerged.Add(float64(lr.EdgesMerged))
	m.DuplicateWarnings.Add(float64(lr.Duplicates))
}

// ObserveReport sets the gauges describing a finished build.
func (m *Metrics) ObserveReport(r *builder.Report) {
	m.GraphNodes.Set(float64(r.Nodes))
	m.GraphEdges.Set(float64(r.Edges))
	m.FailureRate.Set(r.FailureRate())
	m.LastBuild.Set(float64(r.FinishedAt.Unix()))
}

// ObserveGraph sets the graph size gauges.
func (m *Metrics) ObserveGraph(nodes, edges int) {
	m.GraphNodes.Set(float64(nodes))
	m.GraphEdges.Set(float64(edges))
}

// WriteTextfile writes the current values in the text exposition format,
// e.g. for the node exporter textfile collector.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.Registry)
}

// Handler serves the registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}

// ObserveRequest records one served HTTP request.
func (m *Metrics) ObserveRequest(method, route string, status int, d time.Duration) {
	m.HTTPRequestDuration.WithLabelValues(method, route).Observe(d.Seconds())
	m.HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
}
