package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/vvo-tools/vvograph/internal/builder"
	"github.com/vvo-tools/vvograph/internal/sampler"
)

// timeLayout stores UTC timestamps with a fixed width so they sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// DB wraps a SQLite database connection.
type DB struct {
	db *sql.DB
}

// OpenDB opens or creates a SQLite database at the given path.
func OpenDB(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite doesn't support concurrent writes

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &DB{db: db}, nil
}

// Close closes the database connection.
func (d *DB) Close() error {
	return d.db.Close()
}

func createSchema(db *sql.DB) error {
	schema := `
		-- Failed trip queries, keyed by the time they were observed
		CREATE TABLE IF NOT EXISTS query_failures (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			recorded_at TEXT NOT NULL,
			trip_id TEXT NOT NULL,
			stop_id TEXT NOT NULL,
			kind TEXT NOT NULL,
			message TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_failures_recorded ON query_failures(recorded_at);
		CREATE INDEX IF NOT EXISTS idx_failures_trip ON query_failures(trip_id);

		CREATE TABLE IF NOT EXISTS build_runs (
			build_id TEXT PRIMARY KEY,
			started_at TEXT NOT NULL,
			finished_at TEXT NOT NULL,
			filter_json TEXT,
			resumed INTEGER NOT NULL,
			nodes INTEGER NOT NULL,
			edges INTEGER NOT NULL,
			edges_added INTEGER NOT NULL,
			edges_merged INTEGER NOT NULL,
			duplicate_warnings INTEGER NOT NULL,
			query_attempts INTEGER NOT NULL,
			query_failures INTEGER NOT NULL
		);

		CREATE TABLE IF NOT EXISTS line_results (
			build_id TEXT NOT NULL,
			line_id TEXT NOT NULL,
			status TEXT NOT NULL,
			edges_found INTEGER NOT NULL,
			attempts INTEGER NOT NULL,
			failures INTEGER NOT NULL,
			reason TEXT,
			PRIMARY KEY (build_id, line_id)
		);
	`

	_, err := db.Exec(schema)
	return err
}

// RecordFailure stores a failed trip query. It implements
// sampler.FailureRecorder.
func (d *DB) RecordFailure(ctx context.Context, f sampler.Failure) error {
	_, err := d.db.ExecContext(ctx, `
		INSERT INTO query_failures (recorded_at, trip_id, stop_id, kind, message)
		VALUES (?, ?, ?, ?, ?)
	`, f.RecordedAt.UTC().Format(timeLayout), f.TripID, f.StopID, f.Kind, f.Message)
	if err != nil {
		return fmt.Errorf("inserting failure: %w", err)
	}
	return nil
}

// FailureFilter narrows ListFailures.
type FailureFilter struct {
	TripID string    // exact trip id
	Kind   string    // failure kind, e.g. "network"
	Since  time.Time // zero means no lower bound
	Limit  int       // 0 means no limit
}

// ListFailures returns recorded failures, newest first.
func (d *DB) ListFailures(ctx context.Context, filter FailureFilter) ([]sampler.Failure, error) {
	query := `SELECT recorded_at, trip_id, stop_id, kind, message FROM query_failures WHERE 1=1`
	var args []any
	if filter.TripID != "" {
		query += ` AND trip_id = ?`
		args = append(args, filter.TripID)
	}
	if filter.Kind != "" {
		query += ` AND kind = ?`
		args = append(args, filter.Kind)
	}
	if !filter.Since.IsZero() {
		query += ` AND recorded_at >= ?`
		args = append(args, filter.Since.UTC().Format(timeLayout))
	}
	query += ` ORDER BY recorded_at DESC, id DESC`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing failures: %w", err)
	}
	defer rows.Close()

	var failures []sampler.Failure
	for rows.Next() {
		var f sampler.Failure
		var recordedAt string
		if err := rows.Scan(&recordedAt, &f.TripID, &f.StopID, &f.Kind, &f.Message); err != nil {
			return nil, fmt.Errorf("scanning failure: %w", err)
		}
		f.RecordedAt, err = time.Parse(timeLayout, recordedAt)
		if err != nil {
			return nil, fmt.Errorf("parsing recorded_at %q: %w", recordedAt, err)
		}
		failures = append(failures, f)
	}
	return failures, rows.Err()
}

// FailureKindCounts returns the number of recorded failures per kind.
func (d *DB) FailureKindCounts(ctx context.Context) (map[string]int, error) {
	rows, err := d.db.QueryContext(ctx, `SELECT kind, COUNT(*) FROM query_failures GROUP BY kind`)
	if err != nil {
		return nil, fmt.Errorf("counting failures: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var kind string
		var n int
		if err := rows.Scan(&kind, &n); err != nil {
			return nil, fmt.Errorf("scanning failure count: %w", err)
		}
		counts[kind] = n
	}
	return counts, rows.Err()
}

// RecordReport stores the summary and per-line results of a build.
// Recording the same build twice replaces the earlier rows.
func (d *DB) RecordReport(ctx context.Context, r *builder.Report) error {
	filterJSON, err := json.Marshal(r.Filter)
	if err != nil {
		return fmt.Errorf("encoding filter: %w", err)
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT OR REPLACE INTO build_runs (
			build_id, started_at, finished_at, filter_json, resumed,
			nodes, edges, edges_added, edges_merged, duplicate_warnings,
			query_attempts, query_failures
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, r.BuildID,
		r.StartedAt.UTC().Format(timeLayout), r.FinishedAt.UTC().Format(timeLayout),
		string(filterJSON), r.Resumed,
		r.Nodes, r.Edges, r.EdgesAdded, r.EdgesMerged, r.DuplicateWarnings,
		r.QueryAttempts, r.QueryFailures)
	if err != nil {
		return fmt.Errorf("inserting build run: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM line_results WHERE build_id = ?`, r.BuildID); err != nil {
		return fmt.Errorf("clearing line results: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO line_results (build_id, line_id, status, edges_found, attempts, failures, reason)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("preparing line result insert: %w", err)
	}
	defer stmt.Close()

	for _, lr := range r.Lines {
		if _, err := stmt.ExecContext(ctx, r.BuildID, lr.LineID, lr.Status,
			lr.EdgesFound, lr.Attempts, lr.Failures, nullableString(lr.Reason)); err != nil {
			return fmt.Errorf("inserting line result %s: %w", lr.LineID, err)
		}
	}

	return tx.Commit()
}

// BuildRun is a stored build summary.
type BuildRun struct {
	BuildID       string    `json:"build_id"`
	StartedAt     time.Time `json:"started_at"`
	FinishedAt    time.Time `json:"finished_at"`
	Filter        []string  `json:"filter,omitempty"`
	Resumed       bool      `json:"resumed"`
	Nodes         int       `json:"nodes"`
	Edges         int       `json:"edges"`
	QueryAttempts int       `json:"query_attempts"`
	QueryFailures int       `json:"query_failures"`
	FailedLines   int       `json:"failed_lines"`
}

// ListBuilds returns stored builds, newest first.
func (d *DB) ListBuilds(ctx context.Context, limit int) ([]BuildRun, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := d.db.QueryContext(ctx, `
		SELECT b.build_id, b.started_at, b.finished_at, b.filter_json, b.resumed,
			b.nodes, b.edges, b.query_attempts, b.query_failures,
			(SELECT COUNT(*) FROM line_results l WHERE l.build_id = b.build_id AND l.status = 'failed')
		FROM build_runs b
		ORDER BY b.started_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing builds: %w", err)
	}
	defer rows.Close()

	var runs []BuildRun
	for rows.Next() {
		var run BuildRun
		var started, finished string
		var filterJSON sql.NullString
		if err := rows.Scan(&run.BuildID, &started, &finished, &filterJSON, &run.Resumed,
			&run.Nodes, &run.Edges, &run.QueryAttempts, &run.QueryFailures, &run.FailedLines); err != nil {
			return nil, fmt.Errorf("scanning build: %w", err)
		}
		if run.StartedAt, err = time.Parse(timeLayout, started); err != nil {
			return nil, fmt.Errorf("parsing started_at: %w", err)
		}
		if run.FinishedAt, err = time.Parse(timeLayout, finished); err != nil {
			return nil, fmt.Errorf("parsing finished_at: %w", err)
		}
		if filterJSON.Valid && filterJSON.String != "" {
			if err := json.Unmarshal([]byte(filterJSON.String), &run.Filter); err != nil {
				return nil, fmt.Errorf("parsing filter: %w", err)
			}
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func nullableString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
