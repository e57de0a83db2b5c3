// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Artem Voronov

package workers

import (
	"context"
	"sync"
	"time"

	"github.com/avoronov/go-quiz-sync/internal/logger"
	"github.com/avoronov/go-quiz-sync/models"
)

// PeriodicSyncWorker requests a lightweight periodic sync pass on a ticker.
// The worker is idle until Start is called.
type PeriodicSyncWorker struct {
	syncer   Syncer
	interval time.Duration
	logger   *logger.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewPeriodicSyncWorker creates a worker that calls
// syncer.TriggerSync(periodic) every interval. If interval is zero or
// negative it defaults to 30 seconds.
func NewPeriodicSyncWorker(syncer Syncer, interval time.Duration, logger *logger.Logger) *PeriodicSyncWorker {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &PeriodicSyncWorker{syncer: syncer, interval: interval, logger: logger}
}

// Run implements Worker. It starts the ticker loop detached from any caller
// context; use Start directly when lifetime should follow a context.
func (w *PeriodicSyncWorker) Run() {
	w.Start(context.Background())
}

// Start stops any previously running loop, then launches a background
// goroutine that requests a periodic sync every interval. The goroutine exits
// when ctx is cancelled or Stop is called.
func (w *PeriodicSyncWorker) Start(ctx context.Context) {
	w.Stop()

	w.mu.Lock()
	loopCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.wg.Add(1)
	w.mu.Unlock()

	go func() {
		defer w.wg.Done()
		t := time.NewTicker(w.interval)
		defer t.Stop()

		for {
			select {
			case <-loopCtx.Done():
				return
			case <-t.C:
				result := w.syncer.TriggerSync(loopCtx, models.TriggerPeriodic, models.SyncOptions{})
				if !result.Success {
					w.logger.Debug().Str("error", result.Error).Msg("periodic sync pass failed")
				}
			}
		}
	}()
}

// Stop cancels the background goroutine and blocks until it has fully
// exited. Safe to call when the worker is not running.
func (w *PeriodicSyncWorker) Stop() {
	w.mu.Lock()
	cancel := w.cancel
	w.cancel = nil
	w.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	w.wg.Wait()
}
