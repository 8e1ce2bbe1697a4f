// Package metrics provides the collector interface through which the
// orchestrator and the load engine report observations, plus a Prometheus
// implementation.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/jj-shen99/testbench/internal/model"
)

const namespace = "testbench"

// Collector receives observations from running components. Implementations
// must be safe for concurrent use.
type Collector interface {
	UnitFinished(category string, status model.Status, duration time.Duration)
	SessionFinished(success bool, responseTime time.Duration)
	WindowFinished(users int, analysis model.LoadAnalysis)
}

// Noop discards all observations.
type Noop struct{}

func (Noop) UnitFinished(string, model.Status, time.Duration) {}
func (Noop) SessionFinished(bool, time.Duration)              {}
func (Noop) WindowFinished(int, model.LoadAnalysis)           {}

// Prometheus records observations into its own registry.
type Prometheus struct {
	registry *prometheus.Registry

	unitOutcomes  *prometheus.CounterVec
	unitDuration  *prometheus.HistogramVec
	sessions      *prometheus.CounterVec
	sessionTime   prometheus.Histogram
	windowAvg     *prometheus.GaugeVec
	windowP95     *prometheus.GaugeVec
	windowSuccess *prometheus.GaugeVec
}

var _ Collector = (*Prometheus)(nil)

// NewPrometheus creates a collector backed by a fresh registry.
func NewPrometheus() *Prometheus {
	p := &Prometheus{
		registry: prometheus.NewRegistry(),
		unitOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "unit",
			Name:      "outcomes_total",
			Help:      "Number of test unit executions by category and status.",
		}, []string{"category", "status"}),
		unitDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "unit",
			Name:      "duration_seconds",
			Help:      "Test unit execution time.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		}, []string{"category"}),
		sessions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "load",
			Name:      "sessions_total",
			Help:      "Number of simulated sessions by result.",
		}, []string{"result"}),
		sessionTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "load",
			Name:      "session_response_seconds",
			Help:      "Simulated session response time.",
			Buckets:   prometheus.DefBuckets,
		}),
		windowAvg: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "load",
			Name:      "window_avg_response_seconds",
			Help:      "Average response time of the last window per user count.",
		}, []string{"users"}),
		windowP95: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "load",
			Name:      "window_p95_response_seconds",
			Help:      "95th percentile response time of the last window per user count.",
		}, []string{"users"}),
		windowSuccess: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "load",
			Name:      "window_success_rate_percent",
			Help:      "Success rate of the last window per user count.",
		}, []string{"users"}),
	}

	p.registry.MustRegister(
		p.unitOutcomes,
		p.unitDuration,
		p.sessions,
		p.sessionTime,
		p.windowAvg,
		p.windowP95,
		p.windowSuccess,
	)
	return p
}

// Registry exposes the underlying registry, e.g. for an HTTP handler.
func (p *Prometheus) Registry() *prometheus.Registry {
	return p.registry
}

func (p *Prometheus) UnitFinished(category string, status model.Status, duration time.Duration) {
	p.unitOutcomes.WithLabelValues(category, string(status)).Inc()
	p.unitDuration.WithLabelValues(category).Observe(duration.Seconds())
}

func (p *Prometheus) SessionFinished(success bool, responseTime time.Duration) {
	result := "success"
	if !success {
		result = "failure"
	}
	p.sessions.WithLabelValues(result).Inc()
	p.sessionTime.Observe(responseTime.Seconds())
}

func (p *Prometheus) WindowFinished(users int, analysis model.LoadAnalysis) {
	label := strconv.Itoa(users)
	p.windowAvg.WithLabelValues(label).Set(analysis.AvgResponseTime)
	p.windowP95.WithLabelValues(label).Set(analysis.P95ResponseTime)
	p.windowSuccess.WithLabelValues(label).Set(analysis.SuccessRatePercent)
}

// WriteTextfile writes the current metrics in the Prometheus text format,
// suitable for the node exporter textfile collector.
func (p *Prometheus) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, p.registry)
}
