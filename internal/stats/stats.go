// Package stats provides the numeric helpers used to analyze load-test windows.
package stats

import (
	"fmt"

	"github.com/montanaflynn/stats"

	tberrors "github.com/jj-shen99/testbench/internal/errors"
	"github.com/jj-shen99/testbench/internal/model"
)

// P95 is the percentile reported as p95_response_time.
const P95 = 95.0

// Mean returns the arithmetic mean of xs.
func Mean(xs []float64) (float64, error) {
	if len(xs) == 0 {
		return 0, tberrors.EmptyInput("mean")
	}
	return stats.Mean(xs)
}

// Max returns the largest value in xs.
func Max(xs []float64) (float64, error) {
	if len(xs) == 0 {
		return 0, tberrors.EmptyInput("max")
	}
	return stats.Max(xs)
}

// Min returns the smallest value in xs.
func Min(xs []float64) (float64, error) {
	if len(xs) == 0 {
		return 0, tberrors.EmptyInput("min")
	}
	return stats.Min(xs)
}

// Percentile returns the nearest-rank p-th percentile of xs.
// p must be within [0, 100]; xs is not modified.
func Percentile(xs []float64, p float64) (float64, error) {
	if len(xs) == 0 {
		return 0, tberrors.EmptyInput("percentile")
	}
	if p < 0 || p > 100 {
		return 0, tberrors.Validationf("percentile %v out of range [0, 100]", p)
	}
	v, err := stats.PercentileNearestRank(xs, p)
	if err != nil {
		return 0, fmt.Errorf("percentile %v: %w", p, err)
	}
	return v, nil
}

// orZero returns v, or 0 when the statistic was requested on empty input.
func orZero(v float64, err error) float64 {
	if err != nil {
		return 0
	}
	return v
}

// Analyze derives a LoadAnalysis from a finished load window.
// Latency statistics default to 0 when no session completed successfully.
func Analyze(result model.LoadTestResult) model.LoadAnalysis {
	total := result.Successful + result.Failed

	var successRate float64
	if total > 0 {
		successRate = float64(result.Successful) / float64(total) * 100
	}

	rt := result.ResponseTimes
	return model.LoadAnalysis{
		TotalRequests:      total,
		SuccessRatePercent: successRate,
		AvgResponseTime:    orZero(Mean(rt)),
		P95ResponseTime:    orZero(Percentile(rt, P95)),
		MaxResponseTime:    orZero(Max(rt)),
		MinResponseTime:    orZero(Min(rt)),
		ErrorCount:         len(result.Errors),
	}
}
