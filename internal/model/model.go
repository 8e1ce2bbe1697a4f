// Package model provides the result records shared by the orchestrator, the
// load engine and their collaborators (aggregator, reports, history store).
// This package exists to break import cycles between packages that need to
// share type definitions.
package model

import (
	"fmt"
	"time"
)

// Status classifies the outcome of a single test unit execution.
type Status string

const (
	// StatusPass means the unit ran and signaled success.
	StatusPass Status = "pass"
	// StatusFail means the unit ran to completion and reported failure.
	StatusFail Status = "fail"
	// StatusTimeout means the unit did not complete within its timeout and was abandoned.
	StatusTimeout Status = "timeout"
	// StatusError means the unit could not be started or failed before reporting a status.
	StatusError Status = "error"
)

// Statuses lists every valid status in report order.
var Statuses = []Status{StatusPass, StatusFail, StatusTimeout, StatusError}

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPass, StatusFail, StatusTimeout, StatusError:
		return true
	}
	return false
}

// CategoryConfig is the execution policy of one test category.
// It is immutable for the duration of a run.
type CategoryConfig struct {
	Name       string        `json:"name"`
	Parallel   bool          `json:"parallel"`
	MaxWorkers int           `json:"max_workers"`
	Timeout    time.Duration `json:"-"`
	DependsOn  []string      `json:"depends_on,omitempty"`
}

// TimeoutSeconds returns the category timeout in seconds.
func (c CategoryConfig) TimeoutSeconds() float64 {
	return c.Timeout.Seconds()
}

// TestOutcome is the immutable record of one unit execution.
type TestOutcome struct {
	UnitRef         string  `json:"unit_reference"`
	Status          Status  `json:"status"`
	DurationSeconds float64 `json:"duration_seconds"`
	Stdout          string  `json:"stdout"`
	Stderr          string  `json:"stderr"`

	// Cases holds the test cases reported in the unit's output, when the
	// category names a parser that recognised it.
	Cases *CaseCounts `json:"cases,omitempty"`
}

// CaseCounts are test-case totals parsed from a test runner's output.
type CaseCounts struct {
	Passed   int           `json:"passed"`
	Failed   int           `json:"failed"`
	Skipped  int           `json:"skipped"`
	Failures []CaseFailure `json:"failures,omitempty"`
}

// Total returns the number of cases seen.
func (c CaseCounts) Total() int {
	return c.Passed + c.Failed + c.Skipped
}

// CaseFailure names one failed test case.
type CaseFailure struct {
	Name   string `json:"name"`
	Reason string `json:"reason,omitempty"`
}

// CategoryAnalysis holds per-category outcome counts.
// Total is always Passed+Failed+Errors+Timeouts.
type CategoryAnalysis struct {
	Category        string  `json:"category"`
	Total           int     `json:"total"`
	Passed          int     `json:"passed"`
	Failed          int     `json:"failed"`
	Errors          int     `json:"errors"`
	Timeouts        int     `json:"timeouts"`
	DurationSeconds float64 `json:"duration_seconds"`
}

// Record counts one outcome.
func (a *CategoryAnalysis) Record(o TestOutcome) {
	switch o.Status {
	case StatusPass:
		a.Passed++
	case StatusFail:
		a.Failed++
	case StatusError:
		a.Errors++
	case StatusTimeout:
		a.Timeouts++
	default:
		return
	}
	a.Total++
	a.DurationSeconds += o.DurationSeconds
}

// Consistent reports whether Total matches the sum of the status counts.
func (a CategoryAnalysis) Consistent() bool {
	return a.Total == a.Passed+a.Failed+a.Errors+a.Timeouts
}

// RunSummary holds global sums over all category analyses.
type RunSummary struct {
	RunID           string    `json:"run_id,omitempty"`
	StartedAt       time.Time `json:"started_at"`
	FinishedAt      time.Time `json:"finished_at"`
	Total           int       `json:"total_tests"`
	Passed          int       `json:"passed"`
	Failed          int       `json:"failed"`
	Errors          int       `json:"errors"`
	Timeouts        int       `json:"timeouts"`
	DurationSeconds float64   `json:"duration_seconds"`
}

// Add folds a category analysis into the summary.
func (s *RunSummary) Add(a CategoryAnalysis) {
	s.Total += a.Total
	s.Passed += a.Passed
	s.Failed += a.Failed
	s.Errors += a.Errors
	s.Timeouts += a.Timeouts
	s.DurationSeconds += a.DurationSeconds
}

// Consistent reports whether Total matches the sum of the status counts.
func (s RunSummary) Consistent() bool {
	return s.Total == s.Passed+s.Failed+s.Errors+s.Timeouts
}

// AllPassed reports whether every test in the run passed.
func (s RunSummary) AllPassed() bool {
	return s.Total == s.Passed
}

// LoadSessionResult is the outcome of one simulated user session.
type LoadSessionResult struct {
	Success             bool    `json:"success"`
	ResponseTimeSeconds float64 `json:"response_time_seconds"`
	Error               string  `json:"error,omitempty"`
}

// ResourceSample is a host utilisation reading taken during a load window.
type ResourceSample struct {
	At            time.Time `json:"at"`
	CPUPercent    float64   `json:"cpu_percent"`
	MemoryPercent float64   `json:"memory_percent"`
}

// LoadTestResult is the raw output of one load window. Its fields are
// read-only snapshots once returned by the engine.
type LoadTestResult struct {
	RequestedUsers  int              `json:"requested_users"`
	DurationSeconds float64          `json:"duration_seconds"`
	Submitted       int              `json:"submitted"`
	Successful      int              `json:"successful"`
	Failed          int              `json:"failed"`
	ResponseTimes   []float64        `json:"response_times"`
	Errors          []string         `json:"errors"`
	Resources       []ResourceSample `json:"resources,omitempty"`
}

// LoadAnalysis is derived from a LoadTestResult and never mutated afterwards.
type LoadAnalysis struct {
	TotalRequests      int     `json:"total_requests"`
	SuccessRatePercent float64 `json:"success_rate_percent"`
	AvgResponseTime    float64 `json:"avg_response_time"`
	P95ResponseTime    float64 `json:"p95_response_time"`
	MaxResponseTime    float64 `json:"max_response_time"`
	MinResponseTime    float64 `json:"min_response_time"`
	ErrorCount         int     `json:"error_count"`
}

// StressPoint is one step of a stress or endurance run.
type StressPoint struct {
	NumUsers int          `json:"num_users"`
	Interval int          `json:"interval,omitempty"`
	Analysis LoadAnalysis `json:"analysis"`
	Degraded bool         `json:"degraded"`
}

func (p StressPoint) String() string {
	return fmt.Sprintf("users=%d avg=%.3fs p95=%.3fs success=%.1f%% degraded=%t",
		p.NumUsers, p.Analysis.AvgResponseTime, p.Analysis.P95ResponseTime,
		p.Analysis.SuccessRatePercent, p.Degraded)
}
