package agent

import (
	"context"
	"errors"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Guliveer/devtrack-agent/internal/collector"
	"github.com/Guliveer/devtrack-agent/internal/config"
	"github.com/Guliveer/devtrack-agent/internal/metrics"
	"github.com/Guliveer/devtrack-agent/internal/models"
	"github.com/Guliveer/devtrack-agent/internal/scheduler"
	"github.com/Guliveer/devtrack-agent/internal/sender"
)

type fakeBuilder struct {
	snap  models.Snapshot
	err   error
	calls atomic.Int32
}

func (b *fakeBuilder) Build(context.Context) (models.Snapshot, error) {
	b.calls.Add(1)
	return b.snap, b.err
}

type fakeTransmitter struct {
	mu       sync.Mutex
	sent     []models.Snapshot
	err      error
	flushed  bool
	flushErr error
	closed   bool
}

func (t *fakeTransmitter) Send(_ context.Context, s models.Snapshot) (sender.Ack, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.err != nil {
		return sender.Ack{}, t.err
	}
	t.sent = append(t.sent, s)
	return sender.Ack{Bytes: 512, SentAt: time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)}, nil
}

func (t *fakeTransmitter) FlushFallback(context.Context) (bool, error) {
	return t.flushed, t.flushErr
}

func (t *fakeTransmitter) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	return nil
}

func (t *fakeTransmitter) sentCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.sent)
}

func newTestAgent(b Builder, tx Transmitter) (*Agent, *metrics.Reporter) {
	r := metrics.New("test")
	return newAgent(b, tx, r, scheduler.Options{Interval: time.Hour, StopGrace: time.Second}, nil), r
}

// counter reads a counter from the reporter's registry. An empty label
// matches the unlabeled series.
func counter(t *testing.T, r *metrics.Reporter, name, outcome string) float64 {
	t.Helper()
	mfs, err := r.Registry().Gather()
	require.NoError(t, err)
	for _, mf := range mfs {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			if outcome == "" {
				return m.GetCounter().GetValue()
			}
			for _, l := range m.GetLabel() {
				if l.GetName() == "outcome" && l.GetValue() == outcome {
					return m.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}

func cycles(t *testing.T, r *metrics.Reporter, outcome string) float64 {
	t.Helper()
	return counter(t, r, "devtrack_cycles_total", outcome)
}

func TestRunCycleSuccess(t *testing.T) {
	snap := models.Snapshot{
		ID:        "snap-1",
		Processes: make([]models.ProcessRecord, 3),
		Alerts:    []models.Alert{models.NewAlert(models.AlertHighCPU, "CPU usage 97.5%")},
	}
	tx := &fakeTransmitter{}
	a, r := newTestAgent(&fakeBuilder{snap: snap}, tx)

	assert.Equal(t, StatusStarting, a.Status())
	a.RunCycle(context.Background())

	require.Equal(t, 1, tx.sentCount())
	assert.Equal(t, "snap-1", tx.sent[0].ID)
	assert.Equal(t, "snapshot sent at 2024-05-01T08:00:00Z", a.Status())
	assert.Equal(t, 1.0, cycles(t, r, metrics.OutcomeSuccess))
}

func TestRunCycleCollectionError(t *testing.T) {
	b := &fakeBuilder{err: &collector.CollectionError{Op: "cpu", Err: errors.New("no /proc/stat")}}
	tx := &fakeTransmitter{}
	a, r := newTestAgent(b, tx)

	a.RunCycle(context.Background())

	assert.Zero(t, tx.sentCount(), "no snapshot is sent for a failed cycle")
	assert.True(t, strings.HasPrefix(a.Status(), "collection failed"))
	assert.Equal(t, 1.0, cycles(t, r, metrics.OutcomeCollectionError))

	// The next cycle proceeds independently.
	b.err = nil
	a.RunCycle(context.Background())
	assert.Equal(t, 1, tx.sentCount())
}

func TestRunCycleInterruptedBuild(t *testing.T) {
	a, r := newTestAgent(&fakeBuilder{err: context.Canceled}, &fakeTransmitter{})

	a.RunCycle(context.Background())

	assert.Contains(t, a.Status(), context.Canceled.Error())
	assert.Equal(t, 1.0, cycles(t, r, metrics.OutcomeCollectionError))
}

func TestRunCycleTransientError(t *testing.T) {
	tx := &fakeTransmitter{err: &sender.Error{
		Class:         sender.Transient,
		Op:            "connect",
		Err:           context.DeadlineExceeded,
		FallbackSaved: true,
	}}
	a, r := newTestAgent(&fakeBuilder{}, tx)

	a.RunCycle(context.Background())

	assert.Contains(t, a.Status(), "saved locally")
	assert.Equal(t, 1.0, cycles(t, r, metrics.OutcomeTransient))
}

func TestRunCyclePermanentError(t *testing.T) {
	tx := &fakeTransmitter{err: &sender.Error{Class: sender.Permanent, Op: "encode", Err: errors.New("NaN")}}
	a, r := newTestAgent(&fakeBuilder{}, tx)

	a.RunCycle(context.Background())

	assert.True(t, strings.HasPrefix(a.Status(), "snapshot dropped"))
	assert.Equal(t, 1.0, cycles(t, r, metrics.OutcomePermanent))
}

func TestStartRunsFirstCycleAndStop(t *testing.T) {
	b := &fakeBuilder{}
	tx := &fakeTransmitter{flushed: true}
	a, _ := newTestAgent(b, tx)

	require.NoError(t, a.Start(context.Background()))
	require.Eventually(t, func() bool { return tx.sentCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, a.Stop())
	assert.True(t, tx.closed)
	assert.Equal(t, scheduler.Stopped, a.State())
	status, state := a.Health()
	assert.Equal(t, StatusStopped, status)
	assert.Equal(t, "stopped", state)
}

func TestStartToleratesFlushFailure(t *testing.T) {
	tx := &fakeTransmitter{flushErr: errors.New("collector unreachable")}
	a, _ := newTestAgent(&fakeBuilder{}, tx)

	require.NoError(t, a.Start(context.Background()))
	require.NoError(t, a.Stop())
}

func TestFailedStartReleasesMetricsListener(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	a, r := newTestAgent(&fakeBuilder{}, &fakeTransmitter{})
	a.server = metrics.NewServer(addr, r, a.Health, nil)
	require.NoError(t, a.sched.Start(context.Background()))
	defer a.sched.Stop()

	assert.ErrorIs(t, a.Start(context.Background()), scheduler.ErrAlreadyStarted)

	again, err := net.Listen("tcp", addr)
	require.NoError(t, err, "metrics listener must be closed after a failed start")
	again.Close()
}

func TestNewFromConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Transmit.FallbackPath = t.TempDir() + "/device_info.json"

	a, err := New(cfg, "1.0.0", nil)
	require.NoError(t, err)
	assert.Nil(t, a.server, "metrics endpoint is disabled by default")
	assert.Equal(t, StatusStarting, a.Status())
	assert.Equal(t, scheduler.Idle, a.State())
}

func TestNewRejectsBadEndpoint(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Transmit.FallbackPath = t.TempDir() + "/device_info.json"
	cfg.Server.Host = "bad host:%%"

	_, err := New(cfg, "1.0.0", nil)
	assert.Error(t, err)
}

func TestSkippedTicksAreCounted(t *testing.T) {
	r := metrics.New("test")
	release := make(chan struct{})
	b := &blockingBuilder{release: release}
	a := newAgent(b, &fakeTransmitter{}, r, scheduler.Options{Interval: 20 * time.Millisecond, StopGrace: time.Second}, nil)

	require.NoError(t, a.Start(context.Background()))
	time.Sleep(150 * time.Millisecond)
	close(release)
	require.NoError(t, a.Stop())

	assert.Equal(t, int32(1), b.calls.Load(), "overlapping ticks never start a second cycle")
	assert.Positive(t, counter(t, r, "devtrack_ticks_skipped_total", ""))
}

type blockingBuilder struct {
	release chan struct{}
	calls   atomic.Int32
}

func (b *blockingBuilder) Build(ctx context.Context) (models.Snapshot, error) {
	b.calls.Add(1)
	select {
	case <-b.release:
	case <-ctx.Done():
	}
	return models.Snapshot{}, nil
}
