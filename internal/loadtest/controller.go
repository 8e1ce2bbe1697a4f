package loadtest

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	tberrors "github.com/jj-shen99/testbench/internal/errors"
	"github.com/jj-shen99/testbench/internal/metrics"
	"github.com/jj-shen99/testbench/internal/model"
	"github.com/jj-shen99/testbench/internal/stats"
)

const (
	// DefaultMaxAvgResponse is the average response time above which a
	// window counts as degraded.
	DefaultMaxAvgResponse = 1.0
	// DefaultMinSuccessRate is the success percentage below which a window
	// counts as degraded.
	DefaultMinSuccessRate = 95.0
)

// DegradationPredicate decides whether a window's analysis shows degraded
// performance.
type DegradationPredicate func(model.LoadAnalysis) bool

// ThresholdPredicate reports degradation when the average response time
// exceeds maxAvg seconds or the success rate drops below minSuccess percent.
func ThresholdPredicate(maxAvg, minSuccess float64) DegradationPredicate {
	return func(a model.LoadAnalysis) bool {
		return a.AvgResponseTime > maxAvg || a.SuccessRatePercent < minSuccess
	}
}

// DefaultPredicate is ThresholdPredicate(1.0, 95).
func DefaultPredicate(a model.LoadAnalysis) bool {
	return ThresholdPredicate(DefaultMaxAvgResponse, DefaultMinSuccessRate)(a)
}

// StressOptions configures a stress run.
type StressOptions struct {
	StartUsers int
	MaxUsers   int
	Step       int
	Window     time.Duration
	Scenario   Scenario
	Degraded   DegradationPredicate // Defaults to DefaultPredicate

	Logger  zerolog.Logger
	Metrics metrics.Collector
}

func (o StressOptions) validate() error {
	switch {
	case o.StartUsers <= 0:
		return tberrors.Configf("stress: start users must be positive, got %d", o.StartUsers)
	case o.Step <= 0:
		return tberrors.Configf("stress: step must be positive, got %d", o.Step)
	case o.MaxUsers < o.StartUsers:
		return tberrors.Configf("stress: max users %d is below start users %d", o.MaxUsers, o.StartUsers)
	case o.Window <= 0:
		return tberrors.Configf("stress: window must be positive, got %v", o.Window)
	}
	return nil
}

// RunStress runs one window per user count from StartUsers to MaxUsers
// inclusive, increasing by Step, and stops right after the first degraded
// window. The returned points are in execution order.
func RunStress(ctx context.Context, r Runner, opts StressOptions) ([]model.StressPoint, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	degraded := opts.Degraded
	if degraded == nil {
		degraded = DefaultPredicate
	}
	collector := opts.Metrics
	if collector == nil {
		collector = metrics.Noop{}
	}

	var points []model.StressPoint
	for users := opts.StartUsers; users <= opts.MaxUsers; users += opts.Step {
		if err := ctx.Err(); err != nil {
			return points, err
		}

		opts.Logger.Info().Int("users", users).Msg("stress step started")
		result, err := r.Run(ctx, users, opts.Window, opts.Scenario)
		if err != nil {
			return points, err
		}

		analysis := stats.Analyze(result)
		point := model.StressPoint{NumUsers: users, Analysis: analysis, Degraded: degraded(analysis)}
		points = append(points, point)
		collector.WindowFinished(users, analysis)
		opts.Logger.Info().Stringer("point", point).Msg("stress step finished")

		if point.Degraded {
			opts.Logger.Warn().Int("users", users).Msg("performance degradation detected")
			break
		}
	}
	return points, nil
}

// EnduranceOptions configures an endurance run.
type EnduranceOptions struct {
	Users    int
	Total    time.Duration
	Interval time.Duration
	Scenario Scenario
	Degraded DegradationPredicate // Defaults to DefaultPredicate

	Logger  zerolog.Logger
	Metrics metrics.Collector

	now func() time.Time
}

func (o EnduranceOptions) validate() error {
	switch {
	case o.Users <= 0:
		return tberrors.Configf("endurance: users must be positive, got %d", o.Users)
	case o.Total <= 0:
		return tberrors.Configf("endurance: duration must be positive, got %v", o.Total)
	case o.Interval <= 0:
		return tberrors.Configf("endurance: interval must be positive, got %v", o.Interval)
	}
	return nil
}

// RunEndurance repeats Interval-long windows at a constant user count until
// Total has elapsed or a window is degraded. A window started before Total
// elapses always runs its full Interval.
func RunEndurance(ctx context.Context, r Runner, opts EnduranceOptions) ([]model.StressPoint, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	degraded := opts.Degraded
	if degraded == nil {
		degraded = DefaultPredicate
	}
	collector := opts.Metrics
	if collector == nil {
		collector = metrics.Noop{}
	}
	now := opts.now
	if now == nil {
		now = time.Now
	}

	start := now()
	var points []model.StressPoint
	for interval := 1; now().Sub(start) < opts.Total; interval++ {
		if err := ctx.Err(); err != nil {
			return points, err
		}

		result, err := r.Run(ctx, opts.Users, opts.Interval, opts.Scenario)
		if err != nil {
			return points, err
		}

		analysis := stats.Analyze(result)
		point := model.StressPoint{
			NumUsers: opts.Users,
			Interval: interval,
			Analysis: analysis,
			Degraded: degraded(analysis),
		}
		points = append(points, point)
		collector.WindowFinished(opts.Users, analysis)
		opts.Logger.Info().Int("interval", interval).Stringer("point", point).Msg("endurance window finished")

		if point.Degraded {
			opts.Logger.Warn().Int("interval", interval).Msg("performance degradation detected")
			break
		}
	}
	return points, nil
}
