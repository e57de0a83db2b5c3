// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Artem Voronov

package sync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	gosync "sync"
	"time"

	"github.com/avoronov/go-quiz-sync/internal/adapter"
	"github.com/avoronov/go-quiz-sync/internal/logger"
	"github.com/avoronov/go-quiz-sync/internal/store"
	"github.com/avoronov/go-quiz-sync/models"
	"github.com/google/uuid"
)

// OperationQueue is the durable, tiered work list of pending sync operations.
// Operations are persisted on every mutation so none is lost between enqueue
// and processing; on startup the persisted backlog is reloaded into in-memory
// tier buckets.
//
// Processing drains the tiers in strict priority order (critical, important,
// administrative) in per-tier batches. A queue instance allows only one
// Process call at a time; a concurrent call returns ErrProcessInProgress.
type OperationQueue struct {
	repo     store.QueueRepository
	attempts store.AttemptRepository
	catalog  store.CatalogRepository
	audit    store.AuditRepository
	resolver *Resolver

	logger *logger.Logger

	mu         gosync.Mutex
	processing bool
	buckets    map[models.SyncTier][]models.SyncOperation

	now func() time.Time
}

// NewOperationQueue builds an empty queue over the persistence collaborators.
// Call Initialize to reload the persisted backlog.
func NewOperationQueue(repo store.QueueRepository, attempts store.AttemptRepository, catalog store.CatalogRepository, audit store.AuditRepository, resolver *Resolver, logger *logger.Logger) *OperationQueue {
	return &OperationQueue{
		repo:     repo,
		attempts: attempts,
		catalog:  catalog,
		audit:    audit,
		resolver: resolver,
		logger:   logger,
		buckets:  make(map[models.SyncTier][]models.SyncOperation, len(tierOrder)),
		now:      time.Now,
	}
}

// Initialize loads all persisted, not-yet-exhausted operations into the tier
// buckets, preserving original enqueue order within each tier.
func (q *OperationQueue) Initialize(ctx context.Context) error {
	pending, err := q.repo.LoadPending(ctx)
	if err != nil {
		return fmt.Errorf("load pending operations: %w", err)
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	q.buckets = make(map[models.SyncTier][]models.SyncOperation, len(tierOrder))
	for _, op := range pending {
		tier := op.Tier
		if _, known := tierPolicies[tier]; !known {
			tier = models.TierAdministrative
			op.Tier = tier
		}
		q.buckets[tier] = append(q.buckets[tier], op)
	}

	q.logger.Info().Int("pending", len(pending)).Msg("operation queue initialized")
	return nil
}

// Add assigns defaults (id, tier, enqueue time), persists the operation, and
// appends it to its tier bucket. Persistence failure means the operation is
// not enqueued at all.
func (q *OperationQueue) Add(ctx context.Context, op models.SyncOperation) error {
	if op.ID == "" {
		op.ID = uuid.NewString()
	}
	if op.Tier == "" {
		op.Tier = ClassifyOperation(op.EntityType, op.Kind, submittedFromPayload(op.Payload))
	}
	if op.EnqueuedAt.IsZero() {
		op.EnqueuedAt = q.now()
	}

	if err := q.repo.SaveOperation(ctx, op); err != nil {
		return fmt.Errorf("persist operation %s: %w", op.ID, err)
	}

	q.mu.Lock()
	q.buckets[op.Tier] = append(q.buckets[op.Tier], op)
	q.mu.Unlock()

	return nil
}

// Process drains all tiers in priority order, dispatching each operation by
// its kind against the given remote client. Operations whose NextRetryAt is
// still in the future are skipped, not waited for. Returns the number of
// operations that succeeded and the number that failed this pass.
//
// Only one Process call may run per queue instance; a concurrent call
// returns ErrProcessInProgress immediately.
func (q *OperationQueue) Process(ctx context.Context, remote adapter.RemoteClient) (processed, failed int, err error) {
	q.mu.Lock()
	if q.processing {
		q.mu.Unlock()
		return 0, 0, ErrProcessInProgress
	}
	q.processing = true
	q.mu.Unlock()

	defer func() {
		q.mu.Lock()
		q.processing = false
		q.mu.Unlock()
	}()

	if remote == nil {
		return 0, 0, ErrNoRemoteClient
	}

	for _, tier := range tierOrder {
		tierProcessed, tierFailed := q.processTier(ctx, tier, remote)
		processed += tierProcessed
		failed += tierFailed
	}
	return processed, failed, nil
}

func (q *OperationQueue) processTier(ctx context.Context, tier models.SyncTier, remote adapter.RemoteClient) (processed, failed int) {
	policy := PolicyFor(tier)
	now := q.now()

	q.mu.Lock()
	batch := make([]models.SyncOperation, 0, len(q.buckets[tier]))
	for _, op := range q.buckets[tier] {
		if op.Due(now) {
			batch = append(batch, op)
		}
	}
	q.mu.Unlock()

	for start := 0; start < len(batch); start += policy.BatchSize {
		end := start + policy.BatchSize
		if end > len(batch) {
			end = len(batch)
		}
		for _, op := range batch[start:end] {
			if err := q.dispatch(ctx, op, remote); err != nil {
				q.handleFailure(ctx, op, policy, err)
				failed++
				continue
			}
			q.complete(ctx, op)
			processed++
		}
	}
	return processed, failed
}

// dispatch executes one operation against its collaborators.
func (q *OperationQueue) dispatch(ctx context.Context, op models.SyncOperation, remote adapter.RemoteClient) error {
	switch op.Kind {
	case models.OperationPush:
		return q.dispatchPush(ctx, op, remote)
	case models.OperationPull:
		return q.dispatchPull(ctx, remote)
	case models.OperationConflictResolution:
		return q.dispatchConflictResolution(ctx, op, remote)
	default:
		return fmt.Errorf("unknown operation kind %q", op.Kind)
	}
}

func (q *OperationQueue) dispatchPush(ctx context.Context, op models.SyncOperation, remote adapter.RemoteClient) error {
	if op.EntityType != models.EntityAttempt {
		return fmt.Errorf("push of entity type %q is not supported", op.EntityType)
	}

	attempt, err := q.resolveAttempt(ctx, op)
	if err != nil {
		return err
	}

	if err = remote.SyncAttempt(ctx, attempt); err != nil {
		if errors.Is(err, adapter.ErrConflict) {
			return q.dispatchConflictResolution(ctx, op, remote)
		}
		return fmt.Errorf("push attempt %s: %w", attempt.ID, err)
	}

	if err = q.attempts.MarkSynced(ctx, attempt.ID); err != nil {
		q.logger.Warn().Str("record_id", attempt.ID).Err(err).Msg("mark synced after queued push failed")
	}
	return nil
}

// dispatchPull refreshes the whole local catalog from the remote authority.
func (q *OperationQueue) dispatchPull(ctx context.Context, remote adapter.RemoteClient) error {
	snapshot, err := remote.PullCatalog(ctx)
	if err != nil {
		return fmt.Errorf("pull catalog: %w", err)
	}
	if err = q.catalog.SaveCatalog(ctx, snapshot); err != nil {
		return fmt.Errorf("save catalog: %w", err)
	}
	return nil
}

// dispatchConflictResolution re-detects the conflict against the current
// remote state; the two sides may have converged since the operation was
// enqueued.
func (q *OperationQueue) dispatchConflictResolution(ctx context.Context, op models.SyncOperation, remote adapter.RemoteClient) error {
	local, err := q.attempts.GetAttempt(ctx, op.RecordID)
	if err != nil {
		return fmt.Errorf("load local attempt %s: %w", op.RecordID, err)
	}

	remoteAttempt, err := remote.GetAttempt(ctx, op.RecordID)
	if err != nil {
		if errors.Is(err, adapter.ErrNotFound) {
			// remote never saw the record, a plain push settles it
			if pushErr := remote.SyncAttempt(ctx, local); pushErr != nil {
				return fmt.Errorf("push attempt %s: %w", local.ID, pushErr)
			}
			if markErr := q.attempts.MarkSynced(ctx, local.ID); markErr != nil {
				q.logger.Warn().Str("record_id", local.ID).Err(markErr).Msg("mark synced after conflict push failed")
			}
			return nil
		}
		return fmt.Errorf("load remote attempt %s: %w", op.RecordID, err)
	}

	conflict := q.resolver.DetectAttemptConflict(&local, remoteAttempt)
	if conflict == nil {
		return nil
	}

	outcome := q.resolver.ResolveConflict(ctx, *conflict, remote)
	if !outcome.Success {
		return fmt.Errorf("resolve conflict on %s: %s", op.RecordID, outcome.Error)
	}
	return nil
}

// resolveAttempt prefers the snapshot carried in the payload and falls back
// to the current local record.
func (q *OperationQueue) resolveAttempt(ctx context.Context, op models.SyncOperation) (models.Attempt, error) {
	if len(op.Payload) > 0 {
		var attempt models.Attempt
		if err := json.Unmarshal(op.Payload, &attempt); err == nil && attempt.ID != "" {
			return attempt, nil
		}
		q.logger.Warn().Str("operation_id", op.ID).Msg("undecodable push payload, loading current record")
	}

	attempt, err := q.attempts.GetAttempt(ctx, op.RecordID)
	if err != nil {
		return models.Attempt{}, fmt.Errorf("load attempt %s: %w", op.RecordID, err)
	}
	return attempt, nil
}

// complete removes a finished operation from memory and persistent storage.
func (q *OperationQueue) complete(ctx context.Context, op models.SyncOperation) {
	if err := q.repo.DeleteOperation(ctx, op.ID); err != nil && !errors.Is(err, store.ErrOperationNotFound) {
		q.logger.Warn().Str("operation_id", op.ID).Err(err).Msg("delete completed operation failed")
	}
	q.removeFromBucket(op)
}

// handleFailure increments the retry count and either drops the operation
// permanently (tier retry budget spent, terminal audit entry written) or
// schedules the next attempt from the tier's backoff schedule.
func (q *OperationQueue) handleFailure(ctx context.Context, op models.SyncOperation, policy models.TierPolicy, opErr error) {
	op.RetryCount++
	op.LastError = opErr.Error()

	if op.RetryCount >= policy.MaxRetries {
		q.logger.Error().
			Str("operation_id", op.ID).
			Str("tier", string(op.Tier)).
			Int("retries", op.RetryCount).
			Err(opErr).
			Msg("operation retry budget exhausted, dropping")

		if err := q.repo.DeleteOperation(ctx, op.ID); err != nil && !errors.Is(err, store.ErrOperationNotFound) {
			q.logger.Warn().Str("operation_id", op.ID).Err(err).Msg("delete exhausted operation failed")
		}
		q.removeFromBucket(op)
		q.appendTerminalAudit(ctx, op)
		return
	}

	next := q.now().Add(policy.RetryDelay(op.RetryCount))
	op.NextRetryAt = &next

	if err := q.repo.SaveOperation(ctx, op); err != nil {
		q.logger.Warn().Str("operation_id", op.ID).Err(err).Msg("re-persist failed operation failed")
	}
	q.replaceInBucket(op)
}

func (q *OperationQueue) appendTerminalAudit(ctx context.Context, op models.SyncOperation) {
	entry := models.AuditEntry{
		ID:         uuid.NewString(),
		Operation:  string(op.Kind),
		EntityType: op.EntityType,
		RecordID:   op.RecordID,
		Status:     "dropped",
		Error:      op.LastError,
		CreatedAt:  q.now(),
	}
	if err := q.audit.Append(ctx, entry); err != nil {
		q.logger.Warn().Str("operation_id", op.ID).Err(err).Msg("append terminal audit failed")
	}
}

func (q *OperationQueue) removeFromBucket(op models.SyncOperation) {
	q.mu.Lock()
	defer q.mu.Unlock()

	bucket := q.buckets[op.Tier]
	for i := range bucket {
		if bucket[i].ID == op.ID {
			q.buckets[op.Tier] = append(bucket[:i], bucket[i+1:]...)
			return
		}
	}
}

func (q *OperationQueue) replaceInBucket(op models.SyncOperation) {
	q.mu.Lock()
	defer q.mu.Unlock()

	bucket := q.buckets[op.Tier]
	for i := range bucket {
		if bucket[i].ID == op.ID {
			bucket[i] = op
			return
		}
	}
}

// PendingCount returns the number of buffered operations, restricted to the
// given tiers when any are named.
func (q *OperationQueue) PendingCount(tiers ...models.SyncTier) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(tiers) == 0 {
		tiers = tierOrder
	}
	count := 0
	for _, tier := range tiers {
		count += len(q.buckets[tier])
	}
	return count
}

// PendingOperations returns a copy of all buffered operations in drain order.
func (q *OperationQueue) PendingOperations() []models.SyncOperation {
	q.mu.Lock()
	defer q.mu.Unlock()

	var ops []models.SyncOperation
	for _, tier := range tierOrder {
		ops = append(ops, q.buckets[tier]...)
	}
	return ops
}

// Clear drops all operations from memory and persistent storage.
func (q *OperationQueue) Clear(ctx context.Context) error {
	if err := q.repo.DeleteAll(ctx); err != nil {
		return fmt.Errorf("clear queue: %w", err)
	}

	q.mu.Lock()
	q.buckets = make(map[models.SyncTier][]models.SyncOperation, len(tierOrder))
	q.mu.Unlock()
	return nil
}

// submittedFromPayload peeks at a push payload to classify its tier.
func submittedFromPayload(payload json.RawMessage) bool {
	if len(payload) == 0 {
		return false
	}
	var probe struct {
		Submitted bool `json:"submitted"`
	}
	if err := json.Unmarshal(payload, &probe); err != nil {
		return false
	}
	return probe.Submitted
}
