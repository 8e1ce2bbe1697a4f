package mocks

import (
	"context"
	"sync/atomic"
	"time"
)

// Operation is a load-test operation double with a fixed latency and an
// optional error. It satisfies loadtest.Operation.
type Operation struct {
	name    string
	latency time.Duration
	err     error
	every   int64
	tracker *Tracker
	calls   int64
}

// NewOperation creates an operation that succeeds after latency.
func NewOperation(name string, latency time.Duration) *Operation {
	return &Operation{name: name, latency: latency}
}

// WithError makes every call fail with err after the latency.
func (o *Operation) WithError(err error) *Operation {
	o.err = err
	return o
}

// FailEvery makes only every n-th call fail with err; the others succeed.
func (o *Operation) FailEvery(n int, err error) *Operation {
	o.err = err
	o.every = int64(n)
	return o
}

// WithTracker records concurrent executions in t.
func (o *Operation) WithTracker(t *Tracker) *Operation {
	o.tracker = t
	return o
}

func (o *Operation) Name() string { return o.name }

func (o *Operation) Execute(ctx context.Context) error {
	n := atomic.AddInt64(&o.calls, 1)
	if o.tracker != nil {
		o.tracker.enter(o.name)
		defer o.tracker.leave()
	}
	if o.latency > 0 {
		timer := time.NewTimer(o.latency)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if o.every > 0 && n%o.every != 0 {
		return nil
	}
	return o.err
}

// Calls returns the number of times Execute was called.
func (o *Operation) Calls() int {
	return int(atomic.LoadInt64(&o.calls))
}
