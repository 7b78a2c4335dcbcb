//go:build !windows

package service

import (
	"context"
	"errors"
	"os"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRunStopsOnSignal(t *testing.T) {
	started := make(chan struct{})
	stopped := false
	s := New(zap.NewNop(), func(context.Context) error {
		close(started)
		return nil
	}, func() error {
		stopped = true
		return nil
	})
	s.signals = []os.Signal{syscall.SIGUSR1}

	done := make(chan error, 1)
	go func() { done <- s.Run() }()

	<-started
	require.NoError(t, syscall.Kill(syscall.Getpid(), syscall.SIGUSR1))

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after signal")
	}
	assert.True(t, stopped)
}

func TestRunReturnsStartError(t *testing.T) {
	boom := errors.New("boom")
	s := New(zap.NewNop(), func(context.Context) error { return boom }, func() error {
		t.Fatal("stop must not be called when start fails")
		return nil
	})
	assert.ErrorIs(t, s.Run(), boom)
}
