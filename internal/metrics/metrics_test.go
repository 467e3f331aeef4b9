package metrics

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vvo-tools/vvograph/internal/builder"
)

func TestObserveLine(t *testing.T) {
	m := New()

	m.ObserveLine(builder.LineResult{
		LineID: "voe:1", Status: builder.StatusOK,
		Attempts: 3, Failures: 1, FailureKinds: map[string]int{"network": 1},
		EdgesAdded: 4, EdgesMerged: 2, Duplicates: 1,
	})
	m.ObserveLine(builder.LineResult{
		LineID: "voe:2", Status: builder.StatusFailed,
		Attempts: 2, Failures: 2, FailureKinds: map[string]int{"network": 1, "not_found": 1},
	})

	assert.Equal(t, 1.0, testutil.ToFloat64(m.LinesProcessed.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LinesProcessed.WithLabelValues("failed")))
	assert.Equal(t, 5.0, testutil.ToFloat64(m.QueryAttempts))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.QueryFailures.WithLabelValues("network")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.QueryFailures.WithLabelValues("not_found")))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.EdgesAdded))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.EdgesMerged))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DuplicateWarnings))
}

func TestObserveReport(t *testing.T) {
	m := New()
	finished := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	m.ObserveReport(&builder.Report{
		Nodes: 12, Edges: 15, QueryAttempts: 10, QueryFailures: 2, FinishedAt: finished,
	})

	assert.Equal(t, 12.0, testutil.ToFloat64(m.GraphNodes))
	assert.Equal(t, 15.0, testutil.ToFloat64(m.GraphEdges))
	assert.InDelta(t, 0.2, testutil.ToFloat64(m.FailureRate), 1e-9)
	assert.Equal(t, float64(finished.Unix()), testutil.ToFloat64(m.LastBuild))
}

func TestWriteTextfile(t *testing.T) {
	m := New()
	m.ObserveGraph(3, 2)

	path := filepath.Join(t.TempDir(), "vvograph.prom")
	require.NoError(t, m.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "vvograph_graph_nodes 3")
	assert.Contains(t, string(data), "vvograph_graph_edges 2")
}

func TestHandler(t *testing.T) {
	m := New()
	m.ObserveRequest(http.MethodGet, "/graph", http.StatusOK, 5*time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `vvograph_http_requests_total{method="GET",route="/graph",status="200"} 1`), body)
	assert.Contains(t, body, "vvograph_http_request_duration_seconds_bucket")
}

func TestNew_IndependentRegistries(t *testing.T) {
	a, b := New(), New()
	a.EdgesAdded.Inc()
	assert.Equal(t, 0.0, testutil.ToFloat64(b.EdgesAdded))
}
