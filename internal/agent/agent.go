// Package agent wires samplers, the alert evaluator, the snapshot builder and
// the transmitter into one periodic collect-evaluate-transmit cycle.
package agent

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Guliveer/devtrack-agent/internal/alert"
	"github.com/Guliveer/devtrack-agent/internal/buffer"
	"github.com/Guliveer/devtrack-agent/internal/collector"
	"github.com/Guliveer/devtrack-agent/internal/config"
	"github.com/Guliveer/devtrack-agent/internal/metrics"
	"github.com/Guliveer/devtrack-agent/internal/models"
	"github.com/Guliveer/devtrack-agent/internal/platform"
	"github.com/Guliveer/devtrack-agent/internal/scheduler"
	"github.com/Guliveer/devtrack-agent/internal/sender"
	"github.com/Guliveer/devtrack-agent/internal/snapshot"
)

const shutdownTimeout = 5 * time.Second

// Status texts before any cycle has completed.
const (
	StatusStarting = "starting"
	StatusStopped  = "stopped"
)

// Builder produces one snapshot per call.
type Builder interface {
	Build(ctx context.Context) (models.Snapshot, error)
}

// Transmitter delivers snapshots.
type Transmitter interface {
	Send(ctx context.Context, s models.Snapshot) (sender.Ack, error)
	FlushFallback(ctx context.Context) (bool, error)
	Close() error
}

// Agent runs the cycle on a scheduler and tracks the outcome of the last one.
type Agent struct {
	builder     Builder
	transmitter Transmitter
	sched       *scheduler.Scheduler
	reporter    *metrics.Reporter
	server      *metrics.Server
	logger      *zap.Logger

	mu     sync.RWMutex
	status string
}

// New builds an agent from configuration using the live OS samplers and a
// websocket transmitter.
func New(cfg *config.Config, version string, logger *zap.Logger) (*Agent, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	live := collector.NewLive(
		cfg.Collection.CPUSampleWindow.Duration,
		cfg.Collection.InventoryRefresh.Duration,
		platform.New(),
		logger.Named("collector"),
	)
	evaluator := alert.New(alert.Thresholds{
		CPUPercent:      cfg.Alerts.CPUPercent,
		MemoryPercent:   cfg.Alerts.MemoryPercent,
		DiskUsedPercent: cfg.Alerts.DiskUsedPercent,
	}, alert.WithNetworkPredicate(alert.RateAbove(cfg.Alerts.NetworkBytesPerSec)))
	builder := snapshot.NewBuilder(live.System, live.Processes, evaluator, snapshot.Options{
		TopN:         cfg.Collection.TopProcesses,
		AgentVersion: version,
		Logger:       logger.Named("snapshot"),
	})

	fallback, err := buffer.New(cfg.Transmit.FallbackPath, logger.Named("fallback"))
	if err != nil {
		return nil, fmt.Errorf("fallback store: %w", err)
	}
	tx, err := sender.New(sender.Options{
		URL:      sender.EndpointURL(cfg.Server.Host, cfg.Server.Secure, cfg.Server.Path),
		Timeout:  cfg.Transmit.Timeout.Duration,
		Fallback: fallback,
		Logger:   logger.Named("sender"),
	})
	if err != nil {
		return nil, fmt.Errorf("transmitter: %w", err)
	}

	reporter := metrics.New(version)
	a := newAgent(builder, tx, reporter, scheduler.Options{
		Interval:  cfg.Collection.Interval.Duration,
		StopGrace: cfg.Scheduler.StopGrace.Duration,
	}, logger)
	if cfg.Metrics.Listen != "" {
		a.server = metrics.NewServer(cfg.Metrics.Listen, reporter, a.Health, logger.Named("metrics"))
	}
	return a, nil
}

func newAgent(b Builder, tx Transmitter, reporter *metrics.Reporter, opts scheduler.Options, logger *zap.Logger) *Agent {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &Agent{
		builder:     b,
		transmitter: tx,
		reporter:    reporter,
		logger:      logger,
		status:      StatusStarting,
	}
	opts.Logger = logger.Named("scheduler")
	opts.Hooks = scheduler.Hooks{
		OnSkip:  reporter.TickSkipped,
		OnCycle: reporter.CycleDuration,
	}
	a.sched = scheduler.New(a, opts)
	return a
}

// Start re-sends a snapshot left over from a previous run, then starts the
// scheduler and the metrics endpoint. It returns once everything is running.
func (a *Agent) Start(ctx context.Context) error {
	if flushed, err := a.transmitter.FlushFallback(ctx); err != nil {
		a.logger.Warn("Could not flush fallback snapshot", zap.Error(err))
	} else if flushed {
		a.logger.Info("Delivered fallback snapshot from previous run")
	}

	if a.server != nil {
		if err := a.server.Start(); err != nil {
			return fmt.Errorf("metrics endpoint: %w", err)
		}
	}
	if err := a.sched.Start(ctx); err != nil {
		if a.server != nil {
			a.shutdownServer()
		}
		return err
	}
	a.logger.Info("Agent running")
	return nil
}

// Stop stops scheduling, waits for the in-flight cycle and closes the
// transmitter and metrics endpoint. Errors from each step are joined.
func (a *Agent) Stop() error {
	var errs []error
	if err := a.sched.Stop(); err != nil {
		errs = append(errs, err)
	}
	if err := a.transmitter.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close transmitter: %w", err))
	}
	if a.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := a.server.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("metrics shutdown: %w", err))
		}
	}
	a.setStatus(StatusStopped)
	return errors.Join(errs...)
}

// RunCycle builds one snapshot and transmits it. No outcome is fatal: the
// result is logged, counted and reflected in Status.
func (a *Agent) RunCycle(ctx context.Context) {
	snap, err := a.builder.Build(ctx)
	if err != nil {
		if collector.IsCollectionError(err) {
			a.logger.Error("Snapshot collection failed", zap.Error(err))
		} else {
			a.logger.Warn("Snapshot build interrupted", zap.Error(err))
		}
		a.reporter.CycleFinished(metrics.OutcomeCollectionError)
		a.setStatus("collection failed: " + err.Error())
		return
	}
	a.reporter.SnapshotBuilt(snap)
	for _, al := range snap.Alerts {
		a.logger.Info("Alert", zap.String("type", string(al.Type)), zap.String("message", al.Message))
	}

	ack, err := a.transmitter.Send(ctx, snap)
	switch {
	case err == nil:
		a.reporter.CycleFinished(metrics.OutcomeSuccess)
		a.reporter.SnapshotSent(ack.Bytes, ack.SentAt)
		a.logger.Debug("Snapshot sent",
			zap.String("snapshot", snap.ID),
			zap.Int("bytes", ack.Bytes),
			zap.Int("processes", len(snap.Processes)),
			zap.Int("alerts", len(snap.Alerts)))
		a.setStatus(fmt.Sprintf("snapshot sent at %s", ack.SentAt.UTC().Format(time.RFC3339)))
	case sender.IsPermanent(err):
		a.reporter.CycleFinished(metrics.OutcomePermanent)
		a.logger.Error("Snapshot dropped", zap.String("snapshot", snap.ID), zap.Error(err))
		a.setStatus("snapshot dropped: " + err.Error())
	default:
		a.reporter.CycleFinished(metrics.OutcomeTransient)
		saved := false
		var serr *sender.Error
		if errors.As(err, &serr) {
			saved = serr.FallbackSaved
		}
		if saved {
			a.reporter.FallbackSaved()
			a.setStatus("transmit failed, snapshot saved locally: " + err.Error())
		} else {
			a.setStatus("transmit failed: " + err.Error())
		}
		a.logger.Warn("Snapshot not delivered",
			zap.String("snapshot", snap.ID),
			zap.Bool("fallback_saved", saved),
			zap.Error(err))
	}
}

// Status returns a one-line description of the last cycle outcome.
func (a *Agent) Status() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.status
}

// State returns the scheduler state.
func (a *Agent) State() scheduler.State { return a.sched.State() }

// Health reports status and scheduler state for the health endpoint.
func (a *Agent) Health() (string, string) {
	return a.Status(), a.State().String()
}

func (a *Agent) shutdownServer() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := a.server.Shutdown(ctx); err != nil {
		a.logger.Warn("Metrics endpoint shutdown failed", zap.Error(err))
	}
}

func (a *Agent) setStatus(s string) {
	a.mu.Lock()
	a.status = s
	a.mu.Unlock()
}
