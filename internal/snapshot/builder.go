// Package snapshot composes sampler and evaluator output into immutable
// snapshots and encodes them for transmission.
package snapshot

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Guliveer/devtrack-agent/internal/models"
)

// DefaultTopN is the number of processes kept when none is configured.
const DefaultTopN = 10

// SystemSampler reads host identity and system-wide metrics.
type SystemSampler interface {
	Sample(ctx context.Context) (models.SystemIdentity, models.SystemMetrics, error)
}

// ProcessSampler reads the busiest processes.
type ProcessSampler interface {
	SampleTop(ctx context.Context, n int) ([]models.ProcessRecord, error)
}

// AlertEvaluator derives alerts from metrics.
type AlertEvaluator interface {
	Evaluate(m models.SystemMetrics) []models.Alert
}

// Options configures a Builder.
type Options struct {
	// TopN bounds the process list. Zero means DefaultTopN.
	TopN         int
	AgentVersion string
	Logger       *zap.Logger
}

// Builder builds snapshots. Builds are independent of each other; a Builder
// keeps no per-build state.
type Builder struct {
	system    SystemSampler
	processes ProcessSampler
	evaluator AlertEvaluator
	topN      int
	version   string
	logger    *zap.Logger
	now       func() time.Time
	newID     func() string
}

// NewBuilder creates a Builder over the given collaborators.
func NewBuilder(system SystemSampler, processes ProcessSampler, evaluator AlertEvaluator, opts Options) *Builder {
	if opts.TopN <= 0 {
		opts.TopN = DefaultTopN
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Builder{
		system:    system,
		processes: processes,
		evaluator: evaluator,
		topN:      opts.TopN,
		version:   opts.AgentVersion,
		logger:    opts.Logger,
		now:       time.Now,
		newID:     uuid.NewString,
	}
}

// Build samples the system and processes concurrently and evaluates alerts.
//
// It fails only when system-wide metrics cannot be read (a
// *collector.CollectionError from the system sampler) or ctx is done.
// A failed process enumeration leaves Processes nil.
func (b *Builder) Build(ctx context.Context) (models.Snapshot, error) {
	var (
		identity  models.SystemIdentity
		metrics   models.SystemMetrics
		processes []models.ProcessRecord
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		identity, metrics, err = b.system.Sample(gctx)
		return err
	})
	g.Go(func() error {
		procs, err := b.processes.SampleTop(gctx, b.topN)
		if err != nil {
			if gctx.Err() == nil {
				b.logger.Warn("Process sampling failed, snapshot will carry no process list", zap.Error(err))
			}
			return nil
		}
		processes = procs
		return nil
	})
	if err := g.Wait(); err != nil {
		return models.Snapshot{}, err
	}

	return models.Snapshot{
		ID:           b.newID(),
		AgentVersion: b.version,
		CapturedAt:   b.now().UTC().Round(0),
		Identity:     identity,
		Metrics:      metrics,
		Processes:    topByCPU(processes, b.topN),
		Alerts:       b.evaluator.Evaluate(metrics),
	}, nil
}

// topByCPU returns at most n records in descending CPU order, ties by PID.
// The input is not modified. A nil input stays nil.
func topByCPU(records []models.ProcessRecord, n int) []models.ProcessRecord {
	if records == nil {
		return nil
	}
	out := make([]models.ProcessRecord, len(records))
	copy(out, records)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CPU.Percent != out[j].CPU.Percent {
			return out[i].CPU.Percent > out[j].CPU.Percent
		}
		return out[i].PID < out[j].PID
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}
