package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSweeper struct {
	mu      sync.Mutex
	calls   int
	lastAge time.Duration
	err     error
}

func (f *fakeSweeper) SweepExpired(_ context.Context, olderThan time.Duration) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.lastAge = olderThan
	return 3, f.err
}

func (f *fakeSweeper) snapshot() (int, time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls, f.lastAge
}

func TestCleanupWorkerSweepsOnTick(t *testing.T) {
	sweeper := &fakeSweeper{}
	w := NewCleanupWorker(sweeper, 10*time.Millisecond, 30*24*time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		calls, _ := sweeper.snapshot()
		return calls >= 2
	}, time.Second, 5*time.Millisecond)

	cancel()
	<-done

	_, age := sweeper.snapshot()
	assert.Equal(t, 30*24*time.Hour, age)
}

func TestCleanupWorkerSurvivesSweepErrors(t *testing.T) {
	sweeper := &fakeSweeper{err: errors.New("store unavailable")}
	w := NewCleanupWorker(sweeper, 10*time.Millisecond, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		calls, _ := sweeper.snapshot()
		return calls >= 2
	}, time.Second, 5*time.Millisecond)

	cancel()
	<-done
}
