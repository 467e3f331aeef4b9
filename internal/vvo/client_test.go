package vvo

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(
		WithBaseURL(srv.URL),
		WithStopsURL(srv.URL+"/stops.json"),
		WithRateLimit(rate.Inf),
	)
}

func TestClient_Trip(t *testing.T) {
	var got TripRequest
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/dm/trip", r.URL.Path)
		assert.Contains(t, r.Header.Get("Content-Type"), "application/json")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"Stops":[{"Id":"1","Name":"A","Time":"/Date(1000-0000)/"},{"Id":"2","Name":"B","Time":"/Date(5000-0000)/"}],"Status":{"Code":"Ok"}}`))
	})

	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	trip, err := c.Trip(context.Background(), NewTripRequest("voe:11003", "1", at))
	require.NoError(t, err)

	assert.Equal(t, TripRequest{TripID: "voe:11003", Time: "2024-03-01T12:00:00.000Z", StopID: "1"}, got)
	require.Len(t, trip.Stops, 2)
	assert.Equal(t, "2", trip.Stops[1].ID)
}

func TestClient_TripErrors(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantKind string
		check    func(error) bool
	}{
		{name: "rate limited", status: 429, wantKind: "rate_limited", check: IsRateLimited},
		{name: "not found", status: 404, wantKind: "not_found", check: IsNotFound},
		{name: "server error", status: 500, wantKind: "api_error", check: func(err error) bool {
			var apiErr *APIError
			return errors.As(err, &apiErr) && apiErr.StatusCode == 500
		}},
		{name: "empty body", status: 200, body: "", wantKind: "invalid_response", check: func(err error) bool {
			return errors.Is(err, ErrInvalidResponse)
		}},
		{name: "malformed body", status: 200, body: "<html>", wantKind: "invalid_response", check: func(err error) bool {
			return errors.Is(err, ErrInvalidResponse)
		}},
		{name: "no stops", status: 200, body: `{}`, wantKind: "invalid_response", check: func(err error) bool {
			return errors.Is(err, ErrInvalidResponse)
		}},
		{name: "status not ok", status: 200, body: `{"Status":{"Code":"ServiceError","Message":"boom"}}`, wantKind: "api_error", check: func(err error) bool {
			var apiErr *APIError
			return errors.As(err, &apiErr) && apiErr.Code == "ServiceError"
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})
			_, err := c.Trip(context.Background(), NewTripRequest("t", "s", time.Now()))
			require.Error(t, err)
			assert.True(t, tt.check(err), "unexpected error %v", err)
			assert.Equal(t, tt.wantKind, Kind(err))
		})
	}
}

func TestClient_TripNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	c := NewClient(WithBaseURL(url), WithRateLimit(rate.Inf))
	_, err := c.Trip(context.Background(), NewTripRequest("t", "s", time.Now()))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNetworkError)
	assert.Equal(t, "network", Kind(err))
}

func TestClient_FetchStops(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/stops.json", r.URL.Path)
		_, _ = w.Write([]byte(`[{"id":"33000028","name":"Hauptbahnhof","place":"Dresden","x":"13.732","y":"51.040","Lines":[{"TripID":"voe:11003","LineNr":"3"}]}]`))
	})

	stops, err := c.FetchStops(context.Background())
	require.NoError(t, err)
	require.Len(t, stops, 1)
	assert.Equal(t, "Hauptbahnhof", stops[0].Name)
	assert.Equal(t, "13.732", stops[0].X)
	require.Len(t, stops[0].Lines, 1)
	assert.Equal(t, "voe:11003", stops[0].Lines[0].TripID)
}

func TestClient_CanceledContext(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"Stops":[]}`))
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Trip(ctx, NewTripRequest("t", "s", time.Now()))
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}
