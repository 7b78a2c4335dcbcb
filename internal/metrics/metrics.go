// Package metrics exposes the agent's own health as Prometheus metrics.
// All methods are safe on a nil *Reporter, which records nothing.
package metrics

import (
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/Guliveer/devtrack-agent/internal/models"
)

const namespace = "devtrack"

// Cycle outcomes, used as the "outcome" label.
const (
	OutcomeSuccess         = "success"
	OutcomeCollectionError = "collection_error"
	OutcomeTransient       = "transmit_transient"
	OutcomePermanent       = "transmit_permanent"
)

// Reporter records agent self-metrics.
type Reporter struct {
	registry      *prometheus.Registry
	cycles        *prometheus.CounterVec
	skippedTicks  prometheus.Counter
	cycleDuration prometheus.Histogram
	snapshotBytes prometheus.Gauge
	processes     prometheus.Gauge
	activeAlerts  *prometheus.GaugeVec
	lastSuccess   prometheus.Gauge
	fallbackSaves prometheus.Counter
	buildInfo     prometheus.Gauge
}

// New creates a Reporter with its own registry, including Go runtime and
// process collectors.
func New(version string) *Reporter {
	r := &Reporter{
		registry: prometheus.NewRegistry(),
		cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cycles_total",
			Help:      "Completed collect-evaluate-transmit cycles by outcome",
		}, []string{"outcome"}),
		skippedTicks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ticks_skipped_total",
			Help:      "Scheduler ticks skipped because a cycle was still in flight",
		}),
		cycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cycle_duration_seconds",
			Help:      "Wall-clock duration of one cycle",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		}),
		snapshotBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "snapshot_bytes",
			Help:      "Encoded size of the last transmitted snapshot",
		}),
		processes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "snapshot_processes",
			Help:      "Process records in the last built snapshot",
		}),
		activeAlerts: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_alerts",
			Help:      "Alerts active in the last built snapshot, by type",
		}, []string{"type"}),
		lastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last successfully transmitted snapshot",
		}),
		fallbackSaves: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fallback_writes_total",
			Help:      "Snapshots written to the local fallback store",
		}),
		buildInfo: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "agent_build_info",
			Help:      "A metric with a constant '1' value labeled by version, goos and goarch.",
			ConstLabels: map[string]string{
				"version": version,
				"goos":    runtime.GOOS,
				"goarch":  runtime.GOARCH,
			},
		}),
	}

	r.registry.MustRegister(
		r.cycles,
		r.skippedTicks,
		r.cycleDuration,
		r.snapshotBytes,
		r.processes,
		r.activeAlerts,
		r.lastSuccess,
		r.fallbackSaves,
		r.buildInfo,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	r.buildInfo.Set(1)
	for _, outcome := range []string{OutcomeSuccess, OutcomeCollectionError, OutcomeTransient, OutcomePermanent} {
		r.cycles.WithLabelValues(outcome)
	}
	return r
}

// Registry returns the registry holding the agent metrics.
func (r *Reporter) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// CycleFinished counts a cycle with the given outcome.
func (r *Reporter) CycleFinished(outcome string) {
	if r == nil {
		return
	}
	r.cycles.WithLabelValues(outcome).Inc()
}

// CycleDuration records how long a cycle took.
func (r *Reporter) CycleDuration(d time.Duration) {
	if r == nil {
		return
	}
	r.cycleDuration.Observe(d.Seconds())
}

// TickSkipped counts a coalesced scheduler tick.
func (r *Reporter) TickSkipped() {
	if r == nil {
		return
	}
	r.skippedTicks.Inc()
}

// SnapshotBuilt records the shape of a freshly built snapshot.
func (r *Reporter) SnapshotBuilt(s models.Snapshot) {
	if r == nil {
		return
	}
	r.processes.Set(float64(len(s.Processes)))
	r.activeAlerts.Reset()
	for _, t := range []models.AlertType{
		models.AlertHighCPU, models.AlertHighMemory, models.AlertLowDisk, models.AlertNetworkAnomaly,
	} {
		r.activeAlerts.WithLabelValues(string(t)).Set(0)
	}
	for _, a := range s.Alerts {
		r.activeAlerts.WithLabelValues(string(a.Type)).Inc()
	}
}

// SnapshotSent records a delivered snapshot.
func (r *Reporter) SnapshotSent(bytes int, at time.Time) {
	if r == nil {
		return
	}
	r.snapshotBytes.Set(float64(bytes))
	r.lastSuccess.Set(float64(at.Unix()))
}

// FallbackSaved counts a snapshot persisted to the fallback store.
func (r *Reporter) FallbackSaved() {
	if r == nil {
		return
	}
	r.fallbackSaves.Inc()
}
