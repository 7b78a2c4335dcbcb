// Package scheduler implements a tick-based periodic cycle scheduler.
// It triggers one cycle per interval on its own goroutine and never lets
// two cycles overlap: a tick that fires while a cycle is still in flight
// is skipped, not queued. The scheduler does NOT collect or send data
// itself; it invokes a Runner.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Default timings.
const (
	DefaultInterval  = 5 * time.Second
	DefaultStopGrace = 10 * time.Second
)

var (
	// ErrAlreadyStarted is returned by Start on a scheduler that was started before.
	ErrAlreadyStarted = errors.New("scheduler already started")
	// ErrStopTimeout is returned by Stop when the in-flight cycle did not
	// finish within the grace period and had to be aborted.
	ErrStopTimeout = errors.New("in-flight cycle did not finish within grace period")
)

// State is the scheduler lifecycle state.
type State int32

const (
	// Idle: no cycle in flight.
	Idle State = iota
	// Running: a cycle is in flight.
	Running
	// Stopped: Stop was called; no further cycles will start.
	Stopped
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Stopped:
		return "stopped"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Runner executes one cycle. RunCycle must return once ctx is done.
type Runner interface {
	RunCycle(ctx context.Context)
}

// RunnerFunc adapts a function to Runner.
type RunnerFunc func(ctx context.Context)

// RunCycle calls f(ctx).
func (f RunnerFunc) RunCycle(ctx context.Context) { f(ctx) }

// Hooks are optional callbacks for instrumentation. Nil hooks are ignored.
type Hooks struct {
	OnSkip  func()
	OnCycle func(elapsed time.Duration)
}

// Options configures a Scheduler.
type Options struct {
	Interval  time.Duration
	StopGrace time.Duration
	Logger    *zap.Logger
	Hooks     Hooks
}

// Stats counts cycles since Start.
type Stats struct {
	Cycles  uint64
	Skipped uint64
}

// Scheduler runs a Runner periodically.
type Scheduler struct {
	runner   Runner
	interval time.Duration
	grace    time.Duration
	logger   *zap.Logger
	hooks    Hooks

	inFlight atomic.Bool
	stopped  atomic.Bool
	cycles   atomic.Uint64
	skipped  atomic.Uint64

	mu          sync.Mutex
	started     bool
	cancelLoop  context.CancelFunc
	loopDone    chan struct{}
	cycleCtx    context.Context
	cancelCycle context.CancelFunc
	cyclesWG    sync.WaitGroup
}

// New creates a Scheduler. Zero durations take the package defaults.
func New(runner Runner, opts Options) *Scheduler {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.StopGrace <= 0 {
		opts.StopGrace = DefaultStopGrace
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Scheduler{
		runner:   runner,
		interval: opts.Interval,
		grace:    opts.StopGrace,
		logger:   opts.Logger,
		hooks:    opts.Hooks,
	}
}

// Start begins ticking and returns immediately. The first cycle starts
// right away. Cancelling ctx stops new ticks; in-flight cycles are only
// aborted by Stop.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return ErrAlreadyStarted
	}
	s.started = true

	loopCtx, cancel := context.WithCancel(ctx)
	s.cancelLoop = cancel
	s.cycleCtx, s.cancelCycle = context.WithCancel(context.WithoutCancel(ctx))
	s.loopDone = make(chan struct{})

	go s.loop(loopCtx)
	s.logger.Info("Scheduler started", zap.Duration("interval", s.interval))
	return nil
}

// Stop stops ticking and waits up to the grace period for an in-flight
// cycle. A cycle still running after that is cancelled, given one more
// grace period to return, and ErrStopTimeout is returned. Stop therefore
// returns within twice the grace period. Stop is idempotent.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started || s.stopped.Load() {
		s.stopped.Store(true)
		return nil
	}
	s.stopped.Store(true)
	s.cancelLoop()
	<-s.loopDone

	done := make(chan struct{})
	go func() {
		s.cyclesWG.Wait()
		close(done)
	}()

	timer := time.NewTimer(s.grace)
	defer timer.Stop()

	var err error
	select {
	case <-done:
	case <-timer.C:
		s.logger.Warn("Aborting in-flight cycle", zap.Duration("grace", s.grace))
		err = ErrStopTimeout
		s.cancelCycle()
		abort := time.NewTimer(s.grace)
		defer abort.Stop()
		select {
		case <-done:
		case <-abort.C:
			s.logger.Error("In-flight cycle ignored cancellation")
		}
	}
	s.cancelCycle()

	stats := s.Stats()
	s.logger.Info("Scheduler stopped",
		zap.Uint64("cycles", stats.Cycles),
		zap.Uint64("skipped", stats.Skipped))
	return err
}

// State reports the current lifecycle state.
func (s *Scheduler) State() State {
	switch {
	case s.stopped.Load():
		return Stopped
	case s.inFlight.Load():
		return Running
	default:
		return Idle
	}
}

// Stats returns cycle counters.
func (s *Scheduler) Stats() Stats {
	return Stats{Cycles: s.cycles.Load(), Skipped: s.skipped.Load()}
}

func (s *Scheduler) loop(ctx context.Context) {
	defer close(s.loopDone)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	// Run the first cycle immediately
	s.tick()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick()
		}
	}
}

// tick starts a cycle unless one is in flight. It never blocks.
func (s *Scheduler) tick() bool {
	if !s.inFlight.CompareAndSwap(false, true) {
		s.skipped.Add(1)
		s.logger.Debug("Cycle still in flight, skipping tick")
		if s.hooks.OnSkip != nil {
			s.hooks.OnSkip()
		}
		return false
	}

	s.cyclesWG.Add(1)
	go s.run()
	return true
}

func (s *Scheduler) run() {
	start := time.Now()
	defer s.cyclesWG.Done()
	defer s.inFlight.Store(false)
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Cycle panicked", zap.Any("panic", r), zap.Stack("stack"))
		}
		s.cycles.Add(1)
		if s.hooks.OnCycle != nil {
			s.hooks.OnCycle(time.Since(start))
		}
	}()

	s.runner.RunCycle(s.cycleCtx)
}
