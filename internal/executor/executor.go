// Package executor runs a single test unit under a timeout and converts
// whatever happens into a TestOutcome.
package executor

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/jj-shen99/testbench/internal/metrics"
	"github.com/jj-shen99/testbench/internal/model"
	"github.com/jj-shen99/testbench/internal/unit"
)

// Executor runs units. It is safe for concurrent use.
type Executor struct {
	log     zerolog.Logger
	metrics metrics.Collector
	now     func() time.Time
}

// Option configures an Executor.
type Option func(*Executor)

// WithLogger sets the logger used for per-unit diagnostics.
func WithLogger(log zerolog.Logger) Option {
	return func(e *Executor) { e.log = log }
}

// WithMetrics sets the collector notified after every unit.
func WithMetrics(c metrics.Collector) Option {
	return func(e *Executor) { e.metrics = c }
}

// New creates an Executor.
func New(opts ...Option) *Executor {
	e := &Executor{
		log:     zerolog.Nop(),
		metrics: metrics.Noop{},
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

type runResult struct {
	res unit.Result
	err error
}

// Execute runs u with the given timeout and always returns an outcome.
//
// A unit that does not finish in time is abandoned: its context is cancelled
// and the executor returns immediately with StatusTimeout and a duration equal
// to the timeout. If parent is cancelled first, the unit is abandoned the same
// way but recorded as StatusError with the elapsed duration. A unit that
// cannot be started yields StatusError with zero duration. Otherwise the
// status reflects the unit's own pass/fail signal and the measured wall-clock
// duration.
func (e *Executor) Execute(parent context.Context, u unit.Unit, timeout time.Duration) model.TestOutcome {
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	done := make(chan runResult, 1)
	start := e.now()
	go func() {
		res, err := u.Run(ctx)
		done <- runResult{res: res, err: err}
	}()

	var out model.TestOutcome
	select {
	case r := <-done:
		// A unit that observed its context ending reports that as an error
		// or failure; classify it by why the context ended.
		if ctx.Err() != nil && (r.err != nil || !r.res.Passed) {
			out = e.interrupted(parent, u, timeout, start)
		} else {
			out = e.fromResult(u, r, e.now().Sub(start))
		}
	case <-ctx.Done():
		out = e.interrupted(parent, u, timeout, start)
	}

	e.metrics.UnitFinished(u.Category(), out.Status, time.Duration(out.DurationSeconds*float64(time.Second)))
	return out
}

// interrupted builds the outcome of a unit whose context ended before it
// finished: a timeout when its own deadline passed, an error when parent
// was cancelled.
func (e *Executor) interrupted(parent context.Context, u unit.Unit, timeout time.Duration, start time.Time) model.TestOutcome {
	if err := parent.Err(); err != nil {
		e.log.Warn().
			Err(err).
			Str("category", u.Category()).
			Str("unit", u.Ref()).
			Msg("run cancelled, unit abandoned")
		return model.TestOutcome{
			UnitRef:         u.Ref(),
			Status:          model.StatusError,
			DurationSeconds: e.now().Sub(start).Seconds(),
			Stderr:          "run cancelled: " + err.Error(),
		}
	}

	e.log.Warn().
		Str("category", u.Category()).
		Str("unit", u.Ref()).
		Dur("timeout", timeout).
		Msg("unit timed out and was abandoned")
	return model.TestOutcome{
		UnitRef:         u.Ref(),
		Status:          model.StatusTimeout,
		DurationSeconds: timeout.Seconds(),
		Stderr:          fmt.Sprintf("unit exceeded timeout of %v seconds", timeout.Seconds()),
	}
}

func (e *Executor) fromResult(u unit.Unit, r runResult, elapsed time.Duration) model.TestOutcome {
	if r.err != nil {
		e.log.Error().
			Err(r.err).
			Str("category", u.Category()).
			Str("unit", u.Ref()).
			Msg("unit could not run")
		return model.TestOutcome{
			UnitRef: u.Ref(),
			Status:  model.StatusError,
			Stdout:  r.res.Stdout,
			Stderr:  r.err.Error(),
		}
	}

	status := model.StatusPass
	if !r.res.Passed {
		status = model.StatusFail
	}
	e.log.Debug().
		Str("category", u.Category()).
		Str("unit", u.Ref()).
		Str("status", string(status)).
		Dur("duration", elapsed).
		Msg("unit finished")

	return model.TestOutcome{
		UnitRef:         u.Ref(),
		Status:          status,
		DurationSeconds: elapsed.Seconds(),
		Stdout:          r.res.Stdout,
		Stderr:          r.res.Stderr,
		Cases:           r.res.Cases,
	}
}
