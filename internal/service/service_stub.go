//go:build !windows

// Package service runs the agent in the foreground on macOS and Linux,
// where it is supervised by launchd or systemd.
package service

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
)

// StartFunc starts the agent and returns once it is running.
type StartFunc func(ctx context.Context) error

// StopFunc stops the agent and blocks until it has shut down.
type StopFunc func() error

// AgentService runs the agent until SIGINT or SIGTERM.
type AgentService struct {
	logger  *zap.Logger
	start   StartFunc
	stop    StopFunc
	signals []os.Signal
}

// New creates a foreground service wrapper.
func New(logger *zap.Logger, start StartFunc, stop StopFunc) *AgentService {
	return &AgentService{
		logger:  logger,
		start:   start,
		stop:    stop,
		signals: []os.Signal{syscall.SIGINT, syscall.SIGTERM},
	}
}

// IsWindowsService always returns false on non-Windows platforms.
func IsWindowsService() bool {
	return false
}

// Run starts the agent, blocks until a termination signal arrives, then
// stops it.
func (s *AgentService) Run() error {
	ctx, cancel := signal.NotifyContext(context.Background(), s.signals...)
	defer cancel()

	if err := s.start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	s.logger.Info("Received signal, shutting down")
	return s.stop()
}
