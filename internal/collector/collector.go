// Package collector samples the process table, system-wide OS counters and
// host identity.
//
// Failures are tolerated at two levels: a process that cannot be read is
// skipped, and a field that cannot be read is left nil. Only the loss of
// system-wide CPU or memory readings is reported, as a *CollectionError.
package collector

import (
	"time"

	"go.uber.org/zap"

	"github.com/Guliveer/devtrack-agent/internal/platform"
)

// Live bundles the gopsutil-backed samplers used by the agent.
type Live struct {
	Processes *ProcessSampler
	System    *SystemSampler
}

// NewLive wires the OS-backed samplers.
func NewLive(cpuWindow, inventoryTTL time.Duration, p platform.Platform, logger *zap.Logger) *Live {
	if logger == nil {
		logger = zap.NewNop()
	}
	host := NewPsutilHost(cpuWindow, logger.Named("host"))
	identity := NewIdentitySampler(p, inventoryTTL, logger.Named("identity"))
	return &Live{
		Processes: NewProcessSampler(NewPsutilSource(), logger.Named("process")),
		System:    NewSystemSampler(host, identity, logger),
	}
}
