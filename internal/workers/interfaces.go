// Package workers provides abstractions for managing and running
// background workers in the application.
// It defines the Worker interface and a Workers aggregate that allows
// running multiple workers in a unified way.
package workers

import (
	"context"

	"github.com/avoronov/go-quiz-sync/models"
)

// Worker is the interface that must be implemented by any background worker.
// It defines a single Run method that starts the worker's execution.
//
// Implementations are expected to block for the duration of their work
// or spawn goroutines internally.
type Worker interface {
	Run()
}

// Syncer is the sync engine surface a worker needs to request a sync pass.
type Syncer interface {
	TriggerSync(ctx context.Context, kind models.TriggerKind, opts models.SyncOptions) models.SyncResult
}
