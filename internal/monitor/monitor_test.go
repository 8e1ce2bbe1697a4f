package monitor

import (
	"context"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jj-shen99/testbench/internal/model"
)

func TestHostSampler_Sample(t *testing.T) {
	if runtime.GOOS != "linux" && runtime.GOOS != "darwin" {
		t.Skip("host metrics only verified on linux and darwin")
	}
	s := NewHostSampler()

	sample, err := s.Sample(context.Background())
	require.NoError(t, err)

	assert.False(t, sample.At.IsZero())
	assert.GreaterOrEqual(t, sample.CPUPercent, 0.0)
	assert.LessOrEqual(t, sample.CPUPercent, 100.0)
	assert.Greater(t, sample.MemoryPercent, 0.0)
	assert.LessOrEqual(t, sample.MemoryPercent, 100.0)
}

func TestPeak(t *testing.T) {
	now := time.Now()
	cpuPct, memPct := Peak([]model.ResourceSample{
		{At: now, CPUPercent: 20, MemoryPercent: 55},
		{At: now, CPUPercent: 85, MemoryPercent: 50},
		{At: now, CPUPercent: 40, MemoryPercent: 61},
	})
	assert.Equal(t, 85.0, cpuPct)
	assert.Equal(t, 61.0, memPct)

	cpuPct, memPct = Peak(nil)
	assert.Zero(t, cpuPct)
	assert.Zero(t, memPct)
}
