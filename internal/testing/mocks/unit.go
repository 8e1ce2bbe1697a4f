// Package mocks provides shared test doubles for testbench packages.
package mocks

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jj-shen99/testbench/internal/unit"
)

// Tracker records execution order and concurrency across any number of mocks.
// The zero value is ready to use.
type Tracker struct {
	inFlight    int32
	maxInFlight int32

	mu    sync.Mutex
	order []string
}

func (t *Tracker) enter(ref string) {
	n := atomic.AddInt32(&t.inFlight, 1)
	for {
		max := atomic.LoadInt32(&t.maxInFlight)
		if n <= max || atomic.CompareAndSwapInt32(&t.maxInFlight, max, n) {
			break
		}
	}
	t.mu.Lock()
	t.order = append(t.order, ref)
	t.mu.Unlock()
}

func (t *Tracker) leave() {
	atomic.AddInt32(&t.inFlight, -1)
}

// MaxInFlight returns the highest number of mocks observed running at once.
func (t *Tracker) MaxInFlight() int {
	return int(atomic.LoadInt32(&t.maxInFlight))
}

// Order returns the refs of started mocks in start order.
func (t *Tracker) Order() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]string, len(t.order))
	copy(out, t.order)
	return out
}

// Unit implements unit.Unit for testing.
// Use NewUnit() to create instances with a fluent builder API.
type Unit struct {
	ref      string
	category string
	delay    time.Duration
	result   unit.Result
	err      error
	tracker  *Tracker

	// RunFunc replaces the default behavior when set.
	RunFunc func(ctx context.Context) (unit.Result, error)

	runCount int32
}

var _ unit.Unit = (*Unit)(nil)

// NewUnit creates a passing mock unit.
func NewUnit(category, ref string) *Unit {
	return &Unit{
		ref:      ref,
		category: category,
		result:   unit.Result{Passed: true},
	}
}

// WithDelay makes Run sleep for d, or until ctx is cancelled.
func (m *Unit) WithDelay(d time.Duration) *Unit {
	m.delay = d
	return m
}

// Failing makes Run report a failed result with the given stderr.
func (m *Unit) Failing(stderr string) *Unit {
	m.result = unit.Result{Passed: false, Stderr: stderr}
	return m
}

// WithOutput sets the stdout reported by Run.
func (m *Unit) WithOutput(stdout string) *Unit {
	m.result.Stdout = stdout
	return m
}

// WithError makes Run return err, as if the unit could not start.
func (m *Unit) WithError(err error) *Unit {
	m.err = err
	return m
}

// WithTracker shares concurrency and ordering tracking with other mocks.
func (m *Unit) WithTracker(t *Tracker) *Unit {
	m.tracker = t
	return m
}

// WithRunFunc sets the function called by Run.
func (m *Unit) WithRunFunc(fn func(ctx context.Context) (unit.Result, error)) *Unit {
	m.RunFunc = fn
	return m
}

func (m *Unit) Ref() string      { return m.ref }
func (m *Unit) Category() string { return m.category }

func (m *Unit) Run(ctx context.Context) (unit.Result, error) {
	atomic.AddInt32(&m.runCount, 1)
	if m.tracker != nil {
		m.tracker.enter(m.ref)
		defer m.tracker.leave()
	}

	if m.RunFunc != nil {
		return m.RunFunc(ctx)
	}

	if m.delay > 0 {
		timer := time.NewTimer(m.delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return unit.Result{}, ctx.Err()
		}
	}
	if m.err != nil {
		return unit.Result{}, m.err
	}
	return m.result, nil
}

// RunCount returns the number of times Run was called.
func (m *Unit) RunCount() int {
	return int(atomic.LoadInt32(&m.runCount))
}
