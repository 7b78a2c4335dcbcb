// CPU usage reader: gathers overall and per-core CPU utilization.
// Uses gopsutil for cross-platform CPU metrics.
package collector

import (
	"context"
	"errors"

	"github.com/shirou/gopsutil/v3/cpu"

	"github.com/Guliveer/devtrack-agent/internal/models"
)

// CPU gathers CPU usage. The overall measurement blocks for the configured
// sample window to compute an accurate percentage.
func (h *PsutilHost) CPU(ctx context.Context) (models.CPUUsage, error) {
	overall, err := cpu.PercentWithContext(ctx, h.window, false)
	if err != nil {
		return models.CPUUsage{}, err
	}
	if len(overall) == 0 {
		return models.CPUUsage{}, errors.New("no overall CPU reading")
	}

	// Per-core usage since the previous call. Non-fatal.
	cores, err := cpu.PercentWithContext(ctx, 0, true)
	if err != nil {
		cores = nil
	}
	for i := range cores {
		cores[i] = clampPercent(cores[i])
	}

	return models.CPUUsage{
		OverallUsage: clampPercent(overall[0]),
		PerCore:      cores,
	}, nil
}

// clampPercent keeps readings in [0,100]; counters sampled across a CPU
// hotplug or clock adjustment can briefly produce values outside it.
func clampPercent(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 100:
		return 100
	default:
		return v
	}
}
