// Package storage persists graph documents, catalogue caches and build
// diagnostics as JSON files and in SQLite.
package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/vvo-tools/vvograph/internal/sampler"
)

// MaxJSONLLineCapacity is the maximum buffer size for reading JSONL lines (1MB per line).
const MaxJSONLLineCapacity = 1024 * 1024

// ReadFailures reads all failures from a JSONL log.
func ReadFailures(path string) ([]sampler.Failure, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening failure log: %w", err)
	}
	defer f.Close()

	var failures []sampler.Failure
	scanner := bufio.NewScanner(f)
	buf := make([]byte, MaxJSONLLineCapacity)
	scanner.Buffer(buf, MaxJSONLLineCapacity)

	lineNum := 0
	for scanner.Scan() {
		lineNum++
		data := scanner.Bytes()
		if len(data) == 0 {
			continue
		}
		var fl sampler.Failure
		if err := json.Unmarshal(data, &fl); err != nil {
			return nil, fmt.Errorf("parsing line %d: %w", lineNum, err)
		}
		failures = append(failures, fl)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading failure log: %w", err)
	}
	return failures, nil
}

// FailureLog appends failures to a JSONL file, one per line.
type FailureLog struct {
	Path string
	mu   sync.Mutex
}

// NewFailureLog returns a log writing to path.
func NewFailureLog(path string) *FailureLog {
	return &FailureLog{Path: path}
}

// RecordFailure appends f to the log.
func (l *FailureLog) RecordFailure(ctx context.Context, f sampler.Failure) error {
	data, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("encoding failure: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(l.Path), 0755); err != nil {
		return fmt.Errorf("creating log directory: %w", err)
	}
	file, err := os.OpenFile(l.Path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("opening failure log for append: %w", err)
	}
	defer file.Close()

	if _, err := file.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("writing failure: %w", err)
	}
	return nil
}

// MultiRecorder records each failure to every recorder. All recorders are
// tried; the first error is returned.
type MultiRecorder []sampler.FailureRecorder

// RecordFailure implements sampler.FailureRecorder.
func (m MultiRecorder) RecordFailure(ctx context.Context, f sampler.Failure) error {
	var first error
	for _, r := range m {
		if err := r.RecordFailure(ctx, f); err != nil && first == nil {
			first = err
		}
	}
	return first
}
