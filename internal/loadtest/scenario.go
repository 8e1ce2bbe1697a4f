// Package loadtest drives synthetic concurrent-user load against a scenario
// of operations and detects performance degradation under increasing
// (stress) or sustained (endurance) load.
package loadtest

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/jj-shen99/testbench/internal/model"
)

// Operation is one step of a simulated user session.
type Operation interface {
	Name() string
	Execute(ctx context.Context) error
}

// Scenario is the ordered list of operations a session performs.
type Scenario []Operation

// OperationFunc adapts a function into an Operation.
type OperationFunc struct {
	OpName string
	Fn     func(ctx context.Context) error
}

func (o OperationFunc) Name() string                      { return o.OpName }
func (o OperationFunc) Execute(ctx context.Context) error { return o.Fn(ctx) }

// RunOnce executes every operation of the scenario in order and measures the
// total elapsed time. The first failing operation ends the session; its
// error is reported as "<operation>: <error>" and the response time covers
// the work done up to the failure.
func RunOnce(ctx context.Context, scenario Scenario) model.LoadSessionResult {
	start := time.Now()
	for _, op := range scenario {
		if err := op.Execute(ctx); err != nil {
			return model.LoadSessionResult{
				Success:             false,
				ResponseTimeSeconds: time.Since(start).Seconds(),
				Error:               fmt.Sprintf("%s: %v", op.Name(), err),
			}
		}
	}
	return model.LoadSessionResult{
		Success:             true,
		ResponseTimeSeconds: time.Since(start).Seconds(),
	}
}

// lockedSource serializes access to a rand.Rand shared by concurrent sessions.
type lockedSource struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func (s *lockedSource) normal(mean, stddev time.Duration) time.Duration {
	s.mu.Lock()
	v := s.rng.NormFloat64()
	s.mu.Unlock()
	d := time.Duration(float64(mean) + v*float64(stddev))
	if d < 0 {
		return 0
	}
	return d
}

// LatencyOperation sleeps for a normally distributed duration.
type LatencyOperation struct {
	name   string
	mean   time.Duration
	stddev time.Duration
	src    *lockedSource
}

func (o *LatencyOperation) Name() string { return o.name }

// Execute sleeps for one sampled latency, returning early with ctx.Err()
// when the context is done.
func (o *LatencyOperation) Execute(ctx context.Context) error {
	timer := time.NewTimer(o.src.normal(o.mean, o.stddev))
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SimulatedScenario returns the default synthetic session: a database query
// (100±20 ms), a computation (50±10 ms) and an I/O operation (150±30 ms).
// A nil rng seeds one from the current time.
func SimulatedScenario(rng *rand.Rand) Scenario {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	src := &lockedSource{rng: rng}
	return Scenario{
		&LatencyOperation{name: "database_query", mean: 100 * time.Millisecond, stddev: 20 * time.Millisecond, src: src},
		&LatencyOperation{name: "computation", mean: 50 * time.Millisecond, stddev: 10 * time.Millisecond, src: src},
		&LatencyOperation{name: "io_operation", mean: 150 * time.Millisecond, stddev: 30 * time.Millisecond, src: src},
	}
}
