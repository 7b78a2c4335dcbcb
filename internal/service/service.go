//go:build windows

// Package service provides Windows Service integration.
// When running as a Windows service, the agent enters the SCM control loop.
// When running from a terminal, it runs in foreground until interrupted.
package service

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"go.uber.org/zap"
	"golang.org/x/sys/windows/svc"
)

const serviceName = "DevTrackAgent"

// AgentService implements the Windows service interface (svc.Handler).
type AgentService struct {
	logger *zap.Logger
	start  StartFunc
	stop   StopFunc
}

// StartFunc starts the agent and returns once it is running.
type StartFunc func(ctx context.Context) error

// StopFunc stops the agent and blocks until it has shut down.
type StopFunc func() error

// New creates a new Windows service wrapper.
func New(logger *zap.Logger, start StartFunc, stop StopFunc) *AgentService {
	return &AgentService{logger: logger, start: start, stop: stop}
}

// IsWindowsService checks if the process is running as a Windows service.
func IsWindowsService() bool {
	isService, err := svc.IsWindowsService()
	if err != nil {
		return false
	}
	return isService
}

// Run enters the SCM control loop when running as a service, otherwise it
// runs in the foreground until Ctrl+C.
func (s *AgentService) Run() error {
	if IsWindowsService() {
		return svc.Run(serviceName, s)
	}
	return s.runForeground()
}

func (s *AgentService) runForeground() error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := s.start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	s.logger.Info("Received interrupt, shutting down")
	return s.stop()
}

// Execute implements the svc.Handler interface for Windows SCM integration.
// It manages the service lifecycle: start, running, stop/shutdown.
func (s *AgentService) Execute(args []string, r <-chan svc.ChangeRequest, changes chan<- svc.Status) (ssec bool, errno uint32) {
	changes <- svc.Status{State: svc.StartPending}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := s.start(ctx); err != nil {
		s.logger.Error("Agent failed to start", zap.Error(err))
		return true, 1
	}

	changes <- svc.Status{
		State:   svc.Running,
		Accepts: svc.AcceptStop | svc.AcceptShutdown,
	}
	s.logger.Info("Windows service started")

	for c := range r {
		switch c.Cmd {
		case svc.Interrogate:
			changes <- c.CurrentStatus
		case svc.Stop, svc.Shutdown:
			s.logger.Info("Windows service stopping")
			changes <- svc.Status{State: svc.StopPending}
			cancel()
			if err := s.stop(); err != nil {
				s.logger.Warn("Agent stopped with error", zap.Error(err))
			}
			return false, 0
		default:
			s.logger.Warn("Unexpected service control request",
				zap.Uint32("cmd", uint32(c.Cmd)))
		}
	}
	return false, 0
}

// Install provides instructions for installing the service.
func Install(exePath string) error {
	return fmt.Errorf("use 'sc create %s binPath= \"%s\"' to install", serviceName, exePath)
}
