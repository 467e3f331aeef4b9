// Package vvo is a client for the VVO web API trip endpoint and open data
// stop catalogue.
package vvo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/vvo-tools/vvograph/internal/stop"
)

const (
	// BaseURL is the VVO web API base URL.
	BaseURL = "https://webapi.vvo-online.de"

	// StopsURL is the open data stop catalogue.
	StopsURL = "https://www.vvo-online.de/open_data/VVO_STOPS.JSON"

	// DefaultTimeout is the default HTTP request timeout.
	DefaultTimeout = 30 * time.Second

	// RateLimit caps single requests per second, independent of line pacing.
	RateLimit = 1.0

	// maxBodyBytes bounds how much of a response is read.
	maxBodyBytes = 32 << 20
)

// RequestTimeLayout is the ISO-8601 layout used for the request time.
const RequestTimeLayout = "2006-01-02T15:04:05.000Z07:00"

// TripRequest asks for the trip of a line passing a stop at a given time.
type TripRequest struct {
	TripID string `json:"tripid"`
	Time   string `json:"time"`
	StopID string `json:"stopid"`
}

// NewTripRequest builds a request for the given time.
func NewTripRequest(tripID, stopID string, at time.Time) TripRequest {
	return TripRequest{
		TripID: tripID,
		Time:   at.UTC().Format(RequestTimeLayout),
		StopID: stopID,
	}
}

// TripStop is one scheduled call of a trip.
type TripStop struct {
	ID    string `json:"Id"`
	DhID  string `json:"DhId"`
	Name  string `json:"Name"`
	Place string `json:"Place"`
	Time  string `json:"Time"` // e.g. /Date(1644840600000-0000)/
}

// Status is the optional status block of web API responses.
type Status struct {
	Code    string `json:"Code"`
	Message string `json:"Message,omitempty"`
}

// Trip is the trip endpoint response.
type Trip struct {
	Stops  []TripStop `json:"Stops"`
	Status *Status    `json:"Status,omitempty"`
}

// Client is a rate-limited HTTP client for the VVO web API.
type Client struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	baseURL    string
	stopsURL   string
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithBaseURL sets a custom web API base URL (for testing).
func WithBaseURL(url string) ClientOption {
	return func(c *Client) {
		c.baseURL = url
	}
}

// WithStopsURL sets a custom stop catalogue URL.
func WithStopsURL(url string) ClientOption {
	return func(c *Client) {
		c.stopsURL = url
	}
}

// WithRateLimit sets the per-request rate limit. rate.Inf disables it.
func WithRateLimit(r rate.Limit) ClientOption {
	return func(c *Client) {
		c.limiter = rate.NewLimiter(r, 1)
	}
}

// NewClient creates a new VVO client.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: DefaultTimeout},
		limiter:    rate.NewLimiter(rate.Limit(RateLimit), 1),
		baseURL:    BaseURL,
		stopsURL:   StopsURL,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// checkHTTPErrors returns an error if the HTTP response indicates a problem.
func checkHTTPErrors(resp *http.Response) error {
	if resp.StatusCode == http.StatusTooManyRequests {
		return fmt.Errorf("%w: status %d", ErrRateLimited, resp.StatusCode)
	}
	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: status %d", ErrNotFound, resp.StatusCode)
	}
	if resp.StatusCode >= 400 {
		return &APIError{
			StatusCode: resp.StatusCode,
			Code:       "http_error",
			Message:    fmt.Sprintf("HTTP %d", resp.StatusCode),
		}
	}
	return nil
}

// do sends a request after waiting on the limiter and returns the body.
func (c *Client) do(ctx context.Context, method, url string, payload any) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshaling request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json; charset=utf-8")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNetworkError, err)
	}
	defer resp.Body.Close()

	if err := checkHTTPErrors(resp); err != nil {
		return nil, err
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: reading body: %w", ErrNetworkError, err)
	}
	return data, nil
}

// Trip queries the trip of a line at a stop.
// An empty body, a body without a Stops list or a non-Ok status is an error.
func (c *Client) Trip(ctx context.Context, req TripRequest) (*Trip, error) {
	data, err := c.do(ctx, http.MethodPost, c.baseURL+"/dm/trip", req)
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("%w: empty body", ErrInvalidResponse)
	}

	var trip Trip
	if err := json.Unmarshal(data, &trip); err != nil {
		return nil, fmt.Errorf("%w: parsing trip: %v", ErrInvalidResponse, err)
	}
	if trip.Status != nil && trip.Status.Code != "" && trip.Status.Code != "Ok" {
		return nil, &APIError{
			StatusCode: http.StatusOK,
			Code:       trip.Status.Code,
			Message:    trip.Status.Message,
			TripID:     req.TripID,
		}
	}
	if trip.Stops == nil {
		return nil, fmt.Errorf("%w: no Stops in trip %s", ErrInvalidResponse, req.TripID)
	}
	return &trip, nil
}

// FetchStops downloads the open data stop catalogue.
func (c *Client) FetchStops(ctx context.Context) ([]stop.Stop, error) {
	data, err := c.do(ctx, http.MethodGet, c.stopsURL, nil)
	if err != nil {
		return nil, err
	}
	var stops []stop.Stop
	if err := json.Unmarshal(data, &stops); err != nil {
		return nil, fmt.Errorf("%w: parsing stops: %v", ErrInvalidResponse, err)
	}
	return stops, nil
}
