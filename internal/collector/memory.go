// RAM usage reader: gathers total, used and percent memory.
// Uses gopsutil for cross-platform memory metrics.
package collector

import (
	"context"

	"github.com/shirou/gopsutil/v3/mem"

	"github.com/Guliveer/devtrack-agent/internal/models"
)

// Memory gathers physical memory usage.
func (h *PsutilHost) Memory(ctx context.Context) (models.MemoryUsage, error) {
	v, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return models.MemoryUsage{}, err
	}
	return models.MemoryUsage{
		Total:   v.Total,
		Used:    v.Used,
		Percent: clampPercent(v.UsedPercent),
	}, nil
}
