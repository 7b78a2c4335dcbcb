// System sampler: reads system-wide CPU, memory, disk and network counters
// together with the host identity.
package collector

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Guliveer/devtrack-agent/internal/models"
)

// HostReader reads system-wide OS counters.
type HostReader interface {
	CPU(ctx context.Context) (models.CPUUsage, error)
	Memory(ctx context.Context) (models.MemoryUsage, error)
	Disks(ctx context.Context) ([]models.DiskInfo, error)
	NetTotals(ctx context.Context) (NetTotals, error)
}

// IdentityReader reads host identity. It never fails; fields that cannot be
// determined are reported as models.Unknown.
type IdentityReader interface {
	Identity(ctx context.Context) models.SystemIdentity
}

// PsutilHost implements HostReader with gopsutil.
type PsutilHost struct {
	window time.Duration
	logger *zap.Logger
}

// NewPsutilHost creates a host reader. window is how long the overall CPU
// measurement blocks; zero compares against the previous call instead.
func NewPsutilHost(window time.Duration, logger *zap.Logger) *PsutilHost {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PsutilHost{window: window, logger: logger}
}

// SystemSampler produces the identity and metrics halves of a snapshot.
type SystemSampler struct {
	host     HostReader
	identity IdentityReader
	logger   *zap.Logger
	rates    rateTracker
	now      func() time.Time
}

// NewSystemSampler creates a sampler over the given readers.
func NewSystemSampler(host HostReader, identity IdentityReader, logger *zap.Logger) *SystemSampler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SystemSampler{
		host:     host,
		identity: identity,
		logger:   logger,
		now:      time.Now,
	}
}

// Sample reads identity and metrics concurrently.
//
// CPU and memory are mandatory: if either cannot be read the call fails with
// a *CollectionError instead of reporting zeros. Disk and network failures
// leave the respective field nil.
func (s *SystemSampler) Sample(ctx context.Context) (models.SystemIdentity, models.SystemMetrics, error) {
	var (
		identity models.SystemIdentity
		metrics  models.SystemMetrics
		net      *NetTotals
		mu       sync.Mutex
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		id := s.identity.Identity(gctx)
		mu.Lock()
		identity = id
		mu.Unlock()
		return nil
	})

	g.Go(func() error {
		usage, err := s.host.CPU(gctx)
		if err != nil {
			return &CollectionError{Op: "cpu", Err: err}
		}
		mu.Lock()
		metrics.CPU = usage
		mu.Unlock()
		return nil
	})

	g.Go(func() error {
		usage, err := s.host.Memory(gctx)
		if err != nil {
			return &CollectionError{Op: "memory", Err: err}
		}
		mu.Lock()
		metrics.Memory = usage
		mu.Unlock()
		return nil
	})

	g.Go(func() error {
		disks, err := s.host.Disks(gctx)
		if err != nil {
			s.logger.Warn("Disk metrics unavailable", zap.Error(err))
			return nil
		}
		mu.Lock()
		metrics.Disks = disks
		metrics.Disk = primaryDisk(disks)
		mu.Unlock()
		return nil
	})

	g.Go(func() error {
		totals, err := s.host.NetTotals(gctx)
		if err != nil {
			s.logger.Warn("Network counters unavailable", zap.Error(err))
			return nil
		}
		mu.Lock()
		net = &totals
		mu.Unlock()
		return nil
	})

	if err := g.Wait(); err != nil {
		return models.SystemIdentity{}, models.SystemMetrics{}, err
	}
	if err := ctx.Err(); err != nil {
		return models.SystemIdentity{}, models.SystemMetrics{}, err
	}

	// Rates are only derived from cycles that completed.
	if net != nil {
		metrics.Network = s.rates.observe(*net, s.now())
	}
	return identity, metrics, nil
}
