// Package store keeps a SQLite history of test runs, their per-category
// analyses and the points of load, stress and endurance runs.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/jj-shen99/testbench/internal/model"
)

// Run kinds recorded in the history.
const (
	KindTest      = "test"
	KindLoad      = "load"
	KindStress    = "stress"
	KindEndurance = "endurance"
)

// RunRecord is one row of the run history.
type RunRecord struct {
	ID              string    `json:"id"`
	Kind            string    `json:"kind"`
	StartedAt       time.Time `json:"started_at"`
	FinishedAt      time.Time `json:"finished_at"`
	Total           int       `json:"total"`
	Passed          int       `json:"passed"`
	Failed          int       `json:"failed"`
	Errors          int       `json:"errors"`
	Timeouts        int       `json:"timeouts"`
	DurationSeconds float64   `json:"duration_seconds"`
}

// LoadRun is a finished load, stress or endurance run.
type LoadRun struct {
	ID         string
	Kind       string
	StartedAt  time.Time
	FinishedAt time.Time
	Points     []model.StressPoint
}

// Store is a run history backed by SQLite.
type Store struct {
	db *sql.DB
}

// Open opens or creates the database at path and applies pending migrations.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// SQLite allows a single writer.
	db.SetMaxOpenConns(1)

	if err := migrate(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveTestRun records a test run summary and its category analyses. An empty
// summary.RunID is replaced by a new UUID, which is returned.
func (s *Store) SaveTestRun(ctx context.Context, summary model.RunSummary, analyses map[string]model.CategoryAnalysis) (string, error) {
	id := summary.RunID
	if id == "" {
		id = uuid.NewString()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (id, kind, started_at, finished_at, total, passed, failed, errors, timeouts, duration_seconds)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, id, KindTest, summary.StartedAt.UTC(), summary.FinishedAt.UTC(), summary.Total, summary.Passed,
		summary.Failed, summary.Errors, summary.Timeouts, summary.DurationSeconds)
	if err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}

	for _, a := range analyses {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO category_results (run_id, category, total, passed, failed, errors, timeouts, duration_seconds)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, id, a.Category, a.Total, a.Passed, a.Failed, a.Errors, a.Timeouts, a.DurationSeconds)
		if err != nil {
			return "", fmt.Errorf("insert category %s: %w", a.Category, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	return id, nil
}

// SaveLoadRun records a load, stress or endurance run and its points. The
// run totals count requests: failed is the sum of error counts.
func (s *Store) SaveLoadRun(ctx context.Context, run LoadRun) (string, error) {
	id := run.ID
	if id == "" {
		id = uuid.NewString()
	}

	var total, failed int
	for _, p := range run.Points {
		total += p.Analysis.TotalRequests
		failed += p.Analysis.ErrorCount
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (id, kind, started_at, finished_at, total, passed, failed, duration_seconds)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, id, run.Kind, run.StartedAt.UTC(), run.FinishedAt.UTC(), total, total-failed, failed,
		run.FinishedAt.Sub(run.StartedAt).Seconds())
	if err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}

	for i, p := range run.Points {
		a := p.Analysis
		_, err := tx.ExecContext(ctx, `
			INSERT INTO load_points (run_id, seq, num_users, interval, total_requests, success_rate_percent,
			                         avg_response_time, p95_response_time, max_response_time, min_response_time,
			                         error_count, degraded)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, id, i, p.NumUsers, p.Interval, a.TotalRequests, a.SuccessRatePercent, a.AvgResponseTime,
			a.P95ResponseTime, a.MaxResponseTime, a.MinResponseTime, a.ErrorCount, p.Degraded)
		if err != nil {
			return "", fmt.Errorf("insert point %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	return id, nil
}

// ListRuns returns the most recent runs, newest first. A non-positive limit
// returns every run.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, kind, started_at, finished_at, total, passed, failed, errors, timeouts, duration_seconds
		FROM runs
		ORDER BY started_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []RunRecord
	for rows.Next() {
		var r RunRecord
		if err := rows.Scan(&r.ID, &r.Kind, &r.StartedAt, &r.FinishedAt, &r.Total, &r.Passed,
			&r.Failed, &r.Errors, &r.Timeouts, &r.DurationSeconds); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// CategoryResults returns the category analyses of a test run, sorted by
// category name.
func (s *Store) CategoryResults(ctx context.Context, runID string) ([]model.CategoryAnalysis, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT category, total, passed, failed, errors, timeouts, duration_seconds
		FROM category_results
		WHERE run_id = ?
		ORDER BY category
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query categories: %w", err)
	}
	defer rows.Close()

	var out []model.CategoryAnalysis
	for rows.Next() {
		var a model.CategoryAnalysis
		if err := rows.Scan(&a.Category, &a.Total, &a.Passed, &a.Failed, &a.Errors, &a.Timeouts, &a.DurationSeconds); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// LoadPoints returns the points of a load run in execution order.
func (s *Store) LoadPoints(ctx context.Context, runID string) ([]model.StressPoint, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT num_users, interval, total_requests, success_rate_percent, avg_response_time,
		       p95_response_time, max_response_time, min_response_time, error_count, degraded
		FROM load_points
		WHERE run_id = ?
		ORDER BY seq
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query points: %w", err)
	}
	defer rows.Close()

	var out []model.StressPoint
	for rows.Next() {
		var p model.StressPoint
		a := &p.Analysis
		if err := rows.Scan(&p.NumUsers, &p.Interval, &a.TotalRequests, &a.SuccessRatePercent, &a.AvgResponseTime,
			&a.P95ResponseTime, &a.MaxResponseTime, &a.MinResponseTime, &a.ErrorCount, &p.Degraded); err != nil {
			return nil, fmt.Errorf("scan point: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
