package vvo

import (
	"errors"
	"fmt"
)

// Common errors returned by the VVO client.
var (
	// ErrNotFound indicates the trip or stop is unknown to the service.
	ErrNotFound = errors.New("not found at VVO")

	// ErrRateLimited indicates the service throttled the request.
	ErrRateLimited = errors.New("VVO rate limit exceeded")

	// ErrNetworkError indicates a network connectivity issue.
	ErrNetworkError = errors.New("network error communicating with VVO")

	// ErrInvalidResponse indicates an absent or malformed response body.
	ErrInvalidResponse = errors.New("invalid response from VVO")

	// ErrBadTimestamp indicates a schedule time that is not in /Date(ms±zzzz)/ form.
	ErrBadTimestamp = errors.New("malformed VVO timestamp")
)

// APIError represents an error status reported by the VVO web API.
type APIError struct {
	StatusCode int
	Code       string // Status.Code from the response body, if any
	Message    string
	TripID     string
}

func (e *APIError) Error() string {
	if e.TripID != "" {
		return fmt.Sprintf("VVO API error (status %d, code %s): %s (trip: %s)", e.StatusCode, e.Code, e.Message, e.TripID)
	}
	return fmt.Sprintf("VVO API error (status %d, code %s): %s", e.StatusCode, e.Code, e.Message)
}

// IsNotFound returns true if the error indicates a resource was not found.
func IsNotFound(err error) bool {
	if errors.Is(err, ErrNotFound) {
		return true
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 404
	}
	return false
}

// IsRateLimited returns true if the error indicates rate limiting.
func IsRateLimited(err error) bool {
	if errors.Is(err, ErrRateLimited) {
		return true
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 429
	}
	return false
}

// Kind classifies an error for diagnostics and metrics labels.
func Kind(err error) string {
	switch {
	case err == nil:
		return "ok"
	case IsRateLimited(err):
		return "rate_limited"
	case IsNotFound(err):
		return "not_found"
	case errors.Is(err, ErrNetworkError):
		return "network"
	case errors.Is(err, ErrInvalidResponse), errors.Is(err, ErrBadTimestamp):
		return "invalid_response"
	default:
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			return "api_error"
		}
		return "other"
	}
}
