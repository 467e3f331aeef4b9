package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/vvo-tools/vvograph/internal/sampler"
)

func TestFailureLog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "log", "failures.jsonl")
	log := NewFailureLog(path)
	ctx := context.Background()

	failures := []sampler.Failure{
		{RecordedAt: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC), TripID: "voe:1", StopID: "1", Kind: "network", Message: "timeout"},
		{RecordedAt: time.Date(2024, 3, 1, 12, 0, 10, 0, time.UTC), TripID: "voe:1", StopID: "2", Kind: "not_found", Message: "no trip"},
	}
	for _, f := range failures {
		if err := log.RecordFailure(ctx, f); err != nil {
			t.Fatalf("RecordFailure() error = %v", err)
		}
	}

	got, err := ReadFailures(path)
	if err != nil {
		t.Fatalf("ReadFailures() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("ReadFailures() returned %d failures, want 2", len(got))
	}
	if got[1].StopID != "2" || got[1].Kind != "not_found" {
		t.Errorf("second failure = %+v", got[1])
	}
	if !got[0].RecordedAt.Equal(failures[0].RecordedAt) {
		t.Errorf("RecordedAt = %v, want %v", got[0].RecordedAt, failures[0].RecordedAt)
	}
}

func TestReadFailures_Missing(t *testing.T) {
	got, err := ReadFailures(filepath.Join(t.TempDir(), "none.jsonl"))
	if err != nil {
		t.Fatalf("ReadFailures() error = %v", err)
	}
	if got != nil {
		t.Errorf("ReadFailures() = %v, want nil", got)
	}
}

type countingRecorder struct {
	n   int
	err error
}

func (c *countingRecorder) RecordFailure(ctx context.Context, f sampler.Failure) error {
	c.n++
	return c.err
}

func TestMultiRecorder(t *testing.T) {
	broken := &countingRecorder{err: errors.New("broken")}
	ok := &countingRecorder{}

	err := MultiRecorder{broken, ok}.RecordFailure(context.Background(), sampler.Failure{})
	if err == nil || err.Error() != "broken" {
		t.Errorf("RecordFailure() error = %v, want broken", err)
	}
	if broken.n != 1 || ok.n != 1 {
		t.Errorf("calls = %d, %d; want every recorder called once", broken.n, ok.n)
	}
}
