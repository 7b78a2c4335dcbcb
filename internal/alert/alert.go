// Package alert derives active alerts from a metrics sample.
//
// Evaluation is a pure function of its input: nothing is remembered between
// calls, so a condition that clears simply stops appearing.
package alert

import (
	"fmt"
	"strings"

	"github.com/Guliveer/devtrack-agent/internal/models"
)

// Thresholds configures when each alert category fires.
type Thresholds struct {
	// CPUPercent fires high-cpu when overall usage exceeds it.
	CPUPercent float64
	// MemoryPercent fires high-memory when memory usage exceeds it.
	MemoryPercent float64
	// DiskUsedPercent fires low-disk when any volume is at least this full.
	DiskUsedPercent float64
}

// DefaultThresholds returns the stock thresholds (90% for every category).
func DefaultThresholds() Thresholds {
	return Thresholds{CPUPercent: 90, MemoryPercent: 90, DiskUsedPercent: 90}
}

// NetworkPredicate decides whether network counters are anomalous. It
// returns the alert message and true when they are.
type NetworkPredicate func(n models.NetworkCounters) (string, bool)

// RateAbove flags a send or receive rate above limit bytes per second.
// Samples without a rate never fire. A non-positive limit disables it.
func RateAbove(limit float64) NetworkPredicate {
	return func(n models.NetworkCounters) (string, bool) {
		if limit <= 0 {
			return "", false
		}
		var parts []string
		if n.SendRate != nil && *n.SendRate > limit {
			parts = append(parts, "send "+formatRate(*n.SendRate))
		}
		if n.RecvRate != nil && *n.RecvRate > limit {
			parts = append(parts, "receive "+formatRate(*n.RecvRate))
		}
		if len(parts) == 0 {
			return "", false
		}
		return fmt.Sprintf("Network %s exceeds %s", strings.Join(parts, " and "), formatRate(limit)), true
	}
}

// Evaluator applies thresholds to a metrics sample.
type Evaluator struct {
	thresholds Thresholds
	network    NetworkPredicate
}

// Option customizes an Evaluator.
type Option func(*Evaluator)

// WithNetworkPredicate replaces the network anomaly predicate. A nil
// predicate disables network-anomaly alerts.
func WithNetworkPredicate(p NetworkPredicate) Option {
	return func(e *Evaluator) { e.network = p }
}

// New creates an Evaluator. Without options no network-anomaly alert fires.
func New(t Thresholds, opts ...Option) *Evaluator {
	e := &Evaluator{thresholds: t}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Evaluate returns the alerts active for m, in a fixed category order:
// high-cpu, high-memory, low-disk, network-anomaly. The result is never nil.
func (e *Evaluator) Evaluate(m models.SystemMetrics) []models.Alert {
	alerts := make([]models.Alert, 0, 4)

	if m.CPU.OverallUsage > e.thresholds.CPUPercent {
		alerts = append(alerts, models.NewAlert(models.AlertHighCPU,
			fmt.Sprintf("CPU usage %.1f%% exceeds %.0f%%", m.CPU.OverallUsage, e.thresholds.CPUPercent)))
	}

	if m.Memory.Percent > e.thresholds.MemoryPercent {
		alerts = append(alerts, models.NewAlert(models.AlertHighMemory,
			fmt.Sprintf("Memory usage %.1f%% exceeds %.0f%%", m.Memory.Percent, e.thresholds.MemoryPercent)))
	}

	if full := e.fullVolumes(m); len(full) > 0 {
		alerts = append(alerts, models.NewAlert(models.AlertLowDisk,
			fmt.Sprintf("Low disk space: %s", strings.Join(full, ", "))))
	}

	if e.network != nil && m.Network != nil {
		if msg, ok := e.network(*m.Network); ok {
			alerts = append(alerts, models.NewAlert(models.AlertNetworkAnomaly, msg))
		}
	}

	return alerts
}

// fullVolumes describes every volume at or above the disk threshold. The
// primary disk is only consulted when no volume list is present.
func (e *Evaluator) fullVolumes(m models.SystemMetrics) []string {
	disks := m.Disks
	if len(disks) == 0 && m.Disk != nil {
		disks = []models.DiskInfo{*m.Disk}
	}

	var full []string
	for _, d := range disks {
		if d.Percent >= e.thresholds.DiskUsedPercent {
			mount := d.Mount
			if mount == "" {
				mount = "volume"
			}
			full = append(full, fmt.Sprintf("%s %.1f%% used", mount, d.Percent))
		}
	}
	return full
}

func formatRate(bytesPerSec float64) string {
	const unit = 1024.0
	switch {
	case bytesPerSec >= unit*unit*unit:
		return fmt.Sprintf("%.1f GiB/s", bytesPerSec/(unit*unit*unit))
	case bytesPerSec >= unit*unit:
		return fmt.Sprintf("%.1f MiB/s", bytesPerSec/(unit*unit))
	case bytesPerSec >= unit:
		return fmt.Sprintf("%.1f KiB/s", bytesPerSec/unit)
	default:
		return fmt.Sprintf("%.0f B/s", bytesPerSec)
	}
}
