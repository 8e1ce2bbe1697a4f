// Package monitor samples host CPU and memory utilisation while load windows
// run.
package monitor

import (
	"context"
	"fmt"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/jj-shen99/testbench/internal/model"
)

// HostSampler reads system-wide utilisation through gopsutil.
type HostSampler struct {
	now func() time.Time
}

// NewHostSampler creates a sampler for the local host.
func NewHostSampler() *HostSampler {
	return &HostSampler{now: time.Now}
}

// Sample returns the CPU usage since the previous call and the current
// memory usage, both in percent.
func (s *HostSampler) Sample(ctx context.Context) (model.ResourceSample, error) {
	cpus, err := cpu.PercentWithContext(ctx, 0, false)
	if err != nil {
		return model.ResourceSample{}, fmt.Errorf("cpu percent: %w", err)
	}
	if len(cpus) == 0 {
		return model.ResourceSample{}, fmt.Errorf("cpu percent: no data")
	}

	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return model.ResourceSample{}, fmt.Errorf("virtual memory: %w", err)
	}

	return model.ResourceSample{
		At:            s.now(),
		CPUPercent:    cpus[0],
		MemoryPercent: vm.UsedPercent,
	}, nil
}

// Peak returns the highest CPU and memory readings among samples.
func Peak(samples []model.ResourceSample) (cpuPct, memPct float64) {
	for _, s := range samples {
		cpuPct = max(cpuPct, s.CPUPercent)
		memPct = max(memPct, s.MemoryPercent)
	}
	return cpuPct, memPct
}
