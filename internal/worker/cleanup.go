package worker

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// Sweeper is the slice of the notification store the cleanup worker needs.
type Sweeper interface {
	SweepExpired(ctx context.Context, olderThan time.Duration) (int64, error)
}

// CleanupWorker periodically deletes handled notifications past the age
// cutoff and records whose expiry has passed.
type CleanupWorker struct {
	store    Sweeper
	interval time.Duration
	maxAge   time.Duration
}

// NewCleanupWorker creates a worker sweeping every interval.
func NewCleanupWorker(store Sweeper, interval, maxAge time.Duration) *CleanupWorker {
	return &CleanupWorker{store: store, interval: interval, maxAge: maxAge}
}

// Run blocks until ctx is cancelled, sweeping on every tick. Intended to be
// launched in its own goroutine at startup.
func (w *CleanupWorker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.sweep(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (w *CleanupWorker) sweep(ctx context.Context) {
	sweepCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	deleted, err := w.store.SweepExpired(sweepCtx, w.maxAge)
	if err != nil {
		logrus.Errorf("notification cleanup sweep failed: %v", err)
		return
	}
	if deleted > 0 {
		logrus.Infof("notification cleanup sweep deleted %d records", deleted)
	}
}
