package store

import (
	"context"
	"time"

	"github.com/avoronov/go-quiz-sync/models"
)

//go:generate mockgen -source=interfaces.go -destination=../mock/store_mock.go -package=mock

// AttemptRepository is the local repository for quiz attempt records.
type AttemptRepository interface {
	// SaveAttempt upserts the attempt by primary key.
	SaveAttempt(ctx context.Context, attempt models.Attempt) error
	// GetAttempt loads one attempt; returns ErrAttemptNotFound if absent.
	GetAttempt(ctx context.Context, id string) (models.Attempt, error)
	// GetUnsynced returns attempts with synced=false, optionally restricted
	// to submitted ones, ordered by updated_at, at most limit rows (0 = all).
	GetUnsynced(ctx context.Context, submittedOnly bool, limit int) ([]models.Attempt, error)
	// MarkSynced flips the synced flag after a successful push.
	MarkSynced(ctx context.Context, id string) error
	// CountUnsynced counts attempts with synced=false.
	CountUnsynced(ctx context.Context) (int, error)
	// RepairTimestamps fixes attempts whose updated_at predates started_at or
	// is unset, a corruption left by earlier releases. Returns rows repaired.
	RepairTimestamps(ctx context.Context) (int64, error)
}

// CatalogRepository is the local repository for remote-authoritative
// reference data (users, subjects, questions).
type CatalogRepository interface {
	// IsEmpty reports whether the local catalog holds no records at all.
	IsEmpty(ctx context.Context) (bool, error)
	// SaveCatalog upserts a full snapshot inside one transaction.
	SaveCatalog(ctx context.Context, snapshot models.CatalogSnapshot) error
}

// QueueRepository persists sync operations so the queue survives restarts.
type QueueRepository interface {
	// SaveOperation upserts an operation (insert on enqueue, update on retry).
	SaveOperation(ctx context.Context, op models.SyncOperation) error
	// DeleteOperation removes an operation after success or retry exhaustion.
	DeleteOperation(ctx context.Context, id string) error
	// LoadPending returns all persisted operations ordered by enqueue time.
	LoadPending(ctx context.Context) ([]models.SyncOperation, error)
	// DeleteAll clears the queue table.
	DeleteAll(ctx context.Context) error
}

// AuditRepository appends to the sync audit log. The log is append-only and
// best-effort: callers swallow its errors.
type AuditRepository interface {
	Append(ctx context.Context, entry models.AuditEntry) error
}

// MetaRepository stores small key/value sync state, e.g. the last successful
// full-sync timestamp.
type MetaRepository interface {
	LastSyncAt(ctx context.Context) (*time.Time, error)
	SetLastSyncAt(ctx context.Context, t time.Time) error
}
