package loadtest

import (
	"context"
	"sync"
	"time"

	"github.com/VividCortex/ewma"
	"github.com/rs/zerolog"
	"go.uber.org/atomic"
)

const defaultMovingAverageAge = 10

// ThroughputTracker keeps an exponentially weighted moving average of
// sessions submitted and completed per tick, and logs it every tick.
type ThroughputTracker struct {
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	log    zerolog.Logger
	tick   time.Duration

	submitted atomic.Int64
	completed atomic.Int64
	inFlight  atomic.Int64

	mu            sync.Mutex
	submittedEWMA ewma.MovingAverage
	completedEWMA ewma.MovingAverage
}

// NewThroughputTracker starts a tracker that updates and logs its averages
// every tick until Stop is called or ctx is done.
func NewThroughputTracker(ctx context.Context, log zerolog.Logger, tick time.Duration) *ThroughputTracker {
	ctx, cancel := context.WithCancel(ctx)
	t := &ThroughputTracker{
		ctx:           ctx,
		cancel:        cancel,
		log:           log,
		tick:          tick,
		submittedEWMA: ewma.NewMovingAverage(defaultMovingAverageAge),
		completedEWMA: ewma.NewMovingAverage(defaultMovingAverageAge),
	}

	t.wg.Add(1)
	go t.updateForever()
	return t
}

func (t *ThroughputTracker) updateForever() {
	defer t.wg.Done()

	ticker := time.NewTicker(t.tick)
	defer ticker.Stop()

	lastSubmitted, lastCompleted := t.submitted.Load(), t.completed.Load()
	for {
		select {
		case <-ticker.C:
			submitted, completed := t.submitted.Load(), t.completed.Load()
			t.mu.Lock()
			t.submittedEWMA.Add(float64(submitted - lastSubmitted))
			t.completedEWMA.Add(float64(completed - lastCompleted))
			submittedAvg, completedAvg := t.submittedEWMA.Value(), t.completedEWMA.Value()
			t.mu.Unlock()
			lastSubmitted, lastCompleted = submitted, completed

			t.log.Info().
				Int64("submitted", submitted).
				Int64("completed", completed).
				Int64("in_flight", t.inFlight.Load()).
				Float64("submitted_ewma", submittedAvg).
				Float64("completed_ewma", completedAvg).
				Msg("load stats")
		case <-t.ctx.Done():
			return
		}
	}
}

// Stop halts the background updates and waits for them to finish.
func (t *ThroughputTracker) Stop() {
	t.cancel()
	t.wg.Wait()
}

func (t *ThroughputTracker) IncSubmitted() {
	t.submitted.Inc()
	t.inFlight.Inc()
}

func (t *ThroughputTracker) IncCompleted() {
	t.completed.Inc()
	t.inFlight.Dec()
}

func (t *ThroughputTracker) Submitted() int64 { return t.submitted.Load() }
func (t *ThroughputTracker) Completed() int64 { return t.completed.Load() }
func (t *ThroughputTracker) InFlight() int64  { return t.inFlight.Load() }

// CompletedRate returns the moving average of sessions completed per tick.
func (t *ThroughputTracker) CompletedRate() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.completedEWMA.Value()
}
