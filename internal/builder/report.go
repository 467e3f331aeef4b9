package builder

import (
	"time"

	"github.com/vvo-tools/vvograph/internal/sampler"
)

// Line statuses reported per processed line.
const (
	StatusOK      = "ok"
	StatusEmpty   = "empty"
	StatusFailed  = "failed"
	StatusSkipped = "skipped"
)

// LineResult summarizes the work done for one line.
type LineResult struct {
	LineID       string         `json:"line_id"`
	Status       string         `json:"status"`
	EdgesFound   int            `json:"edges_found"`
	EdgesAdded   int            `json:"edges_added"`
	EdgesMerged  int            `json:"edges_merged"`
	Duplicates   int            `json:"duplicate_warnings,omitempty"`
	Attempts     int            `json:"attempts"`
	Failures     int            `json:"failures"`
	FailureKinds map[string]int `json:"failure_kinds,omitempty"`
	Reason       string         `json:"reason,omitempty"`
}

// Report is the outcome of a build.
type Report struct {
	BuildID           string       `json:"build_id"`
	StartedAt         time.Time    `json:"started_at"`
	FinishedAt        time.Time    `json:"finished_at"`
	Filter            []string     `json:"filter,omitempty"`
	Resumed           bool         `json:"resumed"`
	Lines             []LineResult `json:"lines"`
	Nodes             int          `json:"nodes"`
	Edges             int          `json:"edges"`
	EdgesAdded        int          `json:"edges_added"`
	EdgesMerged       int          `json:"edges_merged"`
	DuplicateWarnings int          `json:"duplicate_warnings"`
	QueryAttempts     int          `json:"query_attempts"`
	QueryFailures     int          `json:"query_failures"`
}

// FailureRate is the share of trip queries that failed, between 0 and 1.
func (r *Report) FailureRate() float64 {
	if r == nil || r.QueryAttempts == 0 {
		return 0
	}
	return float64(r.QueryFailures) / float64(r.QueryAttempts)
}

// Count returns how many lines ended with the given status.
func (r *Report) Count(status string) int {
	if r == nil {
		return 0
	}
	n := 0
	for _, lr := range r.Lines {
		if lr.Status == status {
			n++
		}
	}
	return n
}

func (r *Report) add(lr LineResult) {
	r.Lines = append(r.Lines, lr)
	r.EdgesAdded += lr.EdgesAdded
	r.EdgesMerged += lr.EdgesMerged
	r.DuplicateWarnings += lr.Duplicates
	r.QueryAttempts += lr.Attempts
	r.QueryFailures += lr.Failures
}

func lineResultFrom(res sampler.Result) LineResult {
	lr := LineResult{
		LineID:     res.LineID,
		EdgesFound: len(res.Edges),
		Attempts:   res.Attempts,
		Failures:   res.Failures,
	}
	if len(res.FailureKinds) > 0 {
		lr.FailureKinds = res.FailureKinds
	}
	switch {
	case len(res.Edges) > 0:
		lr.Status = StatusOK
	case res.Failures > 0:
		lr.Status = StatusFailed
	default:
		lr.Status = StatusEmpty
	}
	if lr.Status == StatusFailed && res.LastError != nil {
		lr.Reason = res.LastError.Error()
	}
	return lr
}
