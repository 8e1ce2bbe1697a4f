package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jj-shen99/testbench/internal/model"
)

func TestPrometheus_UnitFinished(t *testing.T) {
	p := NewPrometheus()

	p.UnitFinished("unit", model.StatusPass, 100*time.Millisecond)
	p.UnitFinished("unit", model.StatusPass, 200*time.Millisecond)
	p.UnitFinished("unit", model.StatusTimeout, time.Second)

	assert.Equal(t, 2.0, testutil.ToFloat64(p.unitOutcomes.WithLabelValues("unit", "pass")))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.unitOutcomes.WithLabelValues("unit", "timeout")))
}

func TestPrometheus_Sessions(t *testing.T) {
	p := NewPrometheus()

	p.SessionFinished(true, 300*time.Millisecond)
	p.SessionFinished(false, 50*time.Millisecond)
	p.SessionFinished(true, 310*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(p.sessions.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.sessions.WithLabelValues("failure")))
}

func TestPrometheus_WindowFinished(t *testing.T) {
	p := NewPrometheus()

	p.WindowFinished(200, model.LoadAnalysis{AvgResponseTime: 0.3, P95ResponseTime: 0.45, SuccessRatePercent: 99})

	assert.Equal(t, 0.3, testutil.ToFloat64(p.windowAvg.WithLabelValues("200")))
	assert.Equal(t, 0.45, testutil.ToFloat64(p.windowP95.WithLabelValues("200")))
	assert.Equal(t, 99.0, testutil.ToFloat64(p.windowSuccess.WithLabelValues("200")))
}

func TestPrometheus_WriteTextfile(t *testing.T) {
	p := NewPrometheus()
	p.UnitFinished("integration", model.StatusFail, time.Second)

	path := filepath.Join(t.TempDir(), "testbench.prom")
	require.NoError(t, p.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), `testbench_unit_outcomes_total{category="integration",status="fail"} 1`))
}

func TestNoop(t *testing.T) {
	var c Collector = Noop{}
	c.UnitFinished("unit", model.StatusPass, time.Second)
	c.SessionFinished(true, time.Second)
	c.WindowFinished(1, model.LoadAnalysis{})
}
