package loadtest

import (
	"context"
	"sync"
	"time"

	"github.com/gammazero/workerpool"
	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	tberrors "github.com/jj-shen99/testbench/internal/errors"
	"github.com/jj-shen99/testbench/internal/metrics"
	"github.com/jj-shen99/testbench/internal/model"
)

const (
	// DefaultSubmitInterval spaces session submissions within a window.
	DefaultSubmitInterval = 100 * time.Millisecond

	defaultStatsTick      = time.Second
	defaultSampleInterval = time.Second
)

// Sampler takes one host resource reading.
type Sampler interface {
	Sample(ctx context.Context) (model.ResourceSample, error)
}

// Runner runs one load window. Engine is the production implementation.
type Runner interface {
	Run(ctx context.Context, users int, duration time.Duration, scenario Scenario) (model.LoadTestResult, error)
}

// Engine runs load windows on a worker pool.
type Engine struct {
	interval       time.Duration
	statsTick      time.Duration
	log            zerolog.Logger
	metrics        metrics.Collector
	sampler        Sampler
	sampleInterval time.Duration
}

var _ Runner = (*Engine)(nil)

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithSubmitInterval sets the pause between session submissions.
// Non-positive values keep the default.
func WithSubmitInterval(d time.Duration) EngineOption {
	return func(e *Engine) {
		if d > 0 {
			e.interval = d
		}
	}
}

// WithLogger sets the logger used for throughput and window logs.
func WithLogger(log zerolog.Logger) EngineOption {
	return func(e *Engine) { e.log = log }
}

// WithMetrics sets the collector notified after every session.
func WithMetrics(c metrics.Collector) EngineOption {
	return func(e *Engine) { e.metrics = c }
}

// WithSampler attaches resource samples taken every interval to each window.
func WithSampler(s Sampler, interval time.Duration) EngineOption {
	return func(e *Engine) {
		e.sampler = s
		if interval > 0 {
			e.sampleInterval = interval
		}
	}
}

// WithStatsTick sets how often throughput statistics are logged.
func WithStatsTick(d time.Duration) EngineOption {
	return func(e *Engine) {
		if d > 0 {
			e.statsTick = d
		}
	}
}

// NewEngine creates an Engine.
func NewEngine(opts ...EngineOption) *Engine {
	e := &Engine{
		interval:       DefaultSubmitInterval,
		statsTick:      defaultStatsTick,
		log:            zerolog.Nop(),
		metrics:        metrics.Noop{},
		sampleInterval: defaultSampleInterval,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// accumulator collects session results from concurrent workers.
type accumulator struct {
	mu     sync.Mutex
	result model.LoadTestResult
}

func (a *accumulator) add(r model.LoadSessionResult) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if r.Success {
		a.result.Successful++
		a.result.ResponseTimes = append(a.result.ResponseTimes, r.ResponseTimeSeconds)
		return
	}
	a.result.Failed++
	a.result.Errors = append(a.result.Errors, r.Error)
}

func (a *accumulator) addSample(s model.ResourceSample) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.result.Resources = append(a.result.Resources, s)
}

// Run submits sessions of scenario to a pool of users workers for the given
// duration, pacing submissions by the submit interval. At most users sessions
// are submitted and unfinished at any time; when every worker is busy the
// submitter waits for a free one, so nothing queues behind the pool. When the
// window elapses no more sessions are submitted, but every submitted session
// runs to completion before the result is returned.
//
// If ctx is cancelled the window ends early; the partial result is returned
// together with ctx.Err().
func (e *Engine) Run(ctx context.Context, users int, duration time.Duration, scenario Scenario) (model.LoadTestResult, error) {
	if users <= 0 {
		return model.LoadTestResult{}, tberrors.Configf("users must be positive, got %d", users)
	}
	if duration <= 0 {
		return model.LoadTestResult{}, tberrors.Configf("duration must be positive, got %v", duration)
	}

	log := e.log.With().Int("users", users).Dur("window", duration).Logger()
	log.Info().Msg("load window started")

	acc := &accumulator{}
	acc.result.RequestedUsers = users

	tracker := NewThroughputTracker(ctx, log, e.statsTick)
	defer tracker.Stop()

	windowCtx, cancel := context.WithTimeout(ctx, duration)
	defer cancel()

	var samplerWG sync.WaitGroup
	if e.sampler != nil {
		samplerWG.Add(1)
		go func() {
			defer samplerWG.Done()
			e.sample(windowCtx, acc, log)
		}()
	}

	pool := workerpool.New(users)
	slots := semaphore.NewWeighted(int64(users))
	limiter := rate.NewLimiter(rate.Every(e.interval), 1)

	start := time.Now()
	for {
		// Wait fails once the next token would arrive after the window deadline.
		if err := limiter.Wait(windowCtx); err != nil {
			break
		}
		if err := slots.Acquire(windowCtx, 1); err != nil {
			break
		}
		tracker.IncSubmitted()
		pool.Submit(func() {
			defer slots.Release(1)
			res := RunOnce(ctx, scenario)
			acc.add(res)
			tracker.IncCompleted()
			e.metrics.SessionFinished(res.Success, time.Duration(res.ResponseTimeSeconds*float64(time.Second)))
		})
	}

	pool.StopWait()
	cancel()
	samplerWG.Wait()

	acc.mu.Lock()
	result := acc.result
	acc.mu.Unlock()
	result.Submitted = int(tracker.Submitted())
	result.DurationSeconds = time.Since(start).Seconds()

	log.Info().
		Int("submitted", result.Submitted).
		Int("successful", result.Successful).
		Int("failed", result.Failed).
		Msg("load window finished")

	if err := ctx.Err(); err != nil {
		return result, err
	}
	return result, nil
}

func (e *Engine) sample(ctx context.Context, acc *accumulator, log zerolog.Logger) {
	ticker := time.NewTicker(e.sampleInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s, err := e.sampler.Sample(ctx)
			if err != nil {
				log.Debug().Err(err).Msg("resource sample failed")
				continue
			}
			acc.addSample(s)
		case <-ctx.Done():
			return
		}
	}
}
