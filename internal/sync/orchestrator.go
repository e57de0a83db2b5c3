// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Artem Voronov

// Package sync implements the synchronization core: a tiered durable
// operation queue, a conflict resolver for quiz attempts, and the
// orchestrating engine that sequences push/pull work under external
// triggers while guaranteeing at most one sync pass in flight.
package sync

import (
	"context"
	"errors"
	"fmt"
	gosync "sync"
	"sync/atomic"
	"time"

	"github.com/avoronov/go-quiz-sync/internal/adapter"
	"github.com/avoronov/go-quiz-sync/internal/logger"
	"github.com/avoronov/go-quiz-sync/internal/store"
	"github.com/avoronov/go-quiz-sync/internal/workers"
	"github.com/avoronov/go-quiz-sync/models"
	"github.com/google/uuid"
)

type engineState int32

const (
	stateUninitialized engineState = iota
	stateInitializing
	stateIdle
	stateSyncing
)

// EngineOptions carries the collaborators the engine is wired from.
// Remote may be nil; the engine then works fully offline.
type EngineOptions struct {
	Storages *store.ClientStorages
	Remote   adapter.RemoteClient
	Monitor  ConnectivityMonitor
	Seeder   Seeder
	Logger   *logger.Logger

	// PeriodicInterval is the cadence of the lightweight background sync.
	PeriodicInterval time.Duration

	// Strategies overrides entries of the default conflict policy table.
	Strategies []models.ResolutionStrategy
}

// Engine is the sync orchestrator. It owns the connectivity monitor, the
// operation queue and the conflict resolver, exposes the trigger API and
// maintains the process-wide sync status.
//
// One Engine instance is constructed at process start and shared by all
// callers. All methods are safe for concurrent use.
type Engine struct {
	storages *store.ClientStorages
	remote   adapter.RemoteClient
	monitor  ConnectivityMonitor
	queue    *OperationQueue
	resolver *Resolver
	seeder   Seeder
	periodic *workers.PeriodicSyncWorker

	logger *logger.Logger

	state    atomic.Int32
	inFlight atomic.Bool
	syncing  atomic.Int32
	runMu    gosync.Mutex

	statusMu gosync.Mutex
	status   models.SyncStatus

	now func() time.Time
}

// NewEngine assembles an Engine from its collaborators. The engine is inert
// until Initialize is called.
func NewEngine(opts EngineOptions) *Engine {
	resolver := NewResolver(opts.Storages.Attempts, opts.Storages.Audit, opts.Logger, WithStrategies(opts.Strategies...))
	queue := NewOperationQueue(opts.Storages.Queue, opts.Storages.Attempts, opts.Storages.Catalog, opts.Storages.Audit, resolver, opts.Logger)

	e := &Engine{
		storages: opts.Storages,
		remote:   opts.Remote,
		monitor:  opts.Monitor,
		queue:    queue,
		resolver: resolver,
		seeder:   opts.Seeder,
		logger:   opts.Logger,
		now:      time.Now,
	}
	e.periodic = workers.NewPeriodicSyncWorker(e, opts.PeriodicInterval, opts.Logger)
	return e
}

// Initialize wires the monitor and queue, registers the reconnection
// callback, repairs locally corrupted timestamps, computes the initial
// status, starts the periodic worker when online and runs a one-time startup
// sync. It is not safe to call Initialize concurrently with itself.
func (e *Engine) Initialize(ctx context.Context) error {
	if !e.state.CompareAndSwap(int32(stateUninitialized), int32(stateInitializing)) {
		return nil
	}

	if err := e.monitor.Initialize(ctx); err != nil {
		e.state.Store(int32(stateUninitialized))
		return fmt.Errorf("initialize connectivity monitor: %w", err)
	}
	if err := e.queue.Initialize(ctx); err != nil {
		e.state.Store(int32(stateUninitialized))
		return fmt.Errorf("initialize operation queue: %w", err)
	}

	e.monitor.OnChange(func(online bool) {
		if !online {
			return
		}
		// detached: the monitor invokes listeners synchronously and a sync
		// pass must not block the connectivity loop
		go e.TriggerSync(context.Background(), models.TriggerNetworkReconnection, models.SyncOptions{})
	})

	if repaired, err := e.storages.Attempts.RepairTimestamps(ctx); err != nil {
		e.logger.Warn().Err(err).Msg("timestamp repair failed")
	} else if repaired > 0 {
		e.logger.Info().Int64("repaired", repaired).Msg("repaired attempt timestamps")
	}

	e.refreshStatus(ctx)
	e.state.Store(int32(stateIdle))

	online := e.monitor.IsOnline()
	if online {
		e.periodic.Start(ctx)
	}
	e.monitor.StartMonitoring(ctx)

	startup := e.TriggerSync(ctx, models.TriggerStartup, models.SyncOptions{})
	e.logger.Info().
		Bool("online", online).
		Bool("startup_sync_ok", startup.Success).
		Msg("sync engine initialized")

	return nil
}

// TriggerSync is the single public entry point for requesting a sync pass.
//
// It fails fast when the engine is not initialized and enforces at most one
// pass in flight: a concurrent call returns an "already in progress" result
// unless opts.Force is set, in which case the call serialises behind the
// running pass. All strategy failures are converted into the returned
// SyncResult; TriggerSync never panics and never lets an error escape.
func (e *Engine) TriggerSync(ctx context.Context, kind models.TriggerKind, opts models.SyncOptions) models.SyncResult {
	if engineState(e.state.Load()) == stateUninitialized {
		return models.SyncResult{Success: false, Error: ErrNotInitialized.Error()}
	}

	if !opts.Force {
		if !e.inFlight.CompareAndSwap(false, true) {
			return models.SyncResult{Success: false, Note: "already in progress", Error: ErrSyncInProgress.Error()}
		}
		defer e.inFlight.Store(false)
	}

	e.runMu.Lock()
	defer e.runMu.Unlock()

	e.syncing.Add(1)
	defer e.syncing.Add(-1)
	e.state.Store(int32(stateSyncing))
	defer e.state.Store(int32(stateIdle))

	result := e.runPass(ctx, kind)

	e.refreshStatus(ctx)
	return result
}

func (e *Engine) runPass(ctx context.Context, kind models.TriggerKind) models.SyncResult {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error().Interface("panic", r).Str("trigger", string(kind)).Msg("sync pass panicked")
		}
	}()

	online := e.monitor.Check(ctx)
	if !online {
		e.logger.Debug().Str("trigger", string(kind)).Msg("offline, local changes stay queued")
		return models.SyncResult{Success: true, Note: "offline, changes queued for later"}
	}
	if e.remote == nil {
		return models.SyncResult{Success: false, Error: ErrNoRemoteClient.Error()}
	}

	result := e.dispatch(ctx, kind)
	if result.Success {
		now := e.now()
		if err := e.storages.Meta.SetLastSyncAt(ctx, now); err != nil {
			e.logger.Warn().Err(err).Msg("persist last sync timestamp failed")
		}
	}

	e.logger.Info().
		Str("trigger", string(kind)).
		Bool("success", result.Success).
		Int("pushed", result.Pushed).
		Int("pulled", result.Pulled).
		Int("failed", result.Failed).
		Msg("sync pass finished")
	return result
}

// dispatch runs the per-trigger strategy.
func (e *Engine) dispatch(ctx context.Context, kind models.TriggerKind) models.SyncResult {
	switch kind {
	case models.TriggerStartup:
		return e.combine(
			e.pushTier(ctx, models.TierCritical),
			e.pullCatalog(ctx, true),
		)
	case models.TriggerQuizSubmission:
		if err := e.checkpoint(ctx); err != nil {
			return models.SyncResult{Success: false, Error: err.Error()}
		}
		return e.pushTier(ctx, models.TierCritical)
	case models.TriggerAnswerSave:
		return e.pushTier(ctx, models.TierImportant)
	case models.TriggerNetworkReconnection:
		return e.combine(
			e.drainQueue(ctx),
			e.pushTier(ctx, models.TierCritical),
			e.pushTier(ctx, models.TierImportant),
			e.pullCatalog(ctx, true),
		)
	case models.TriggerPeriodic:
		return e.pushTier(ctx, models.TierImportant)
	case models.TriggerManual:
		return e.combine(
			e.drainQueue(ctx),
			e.pushTier(ctx, models.TierCritical),
			e.pushTier(ctx, models.TierImportant),
			e.pullCatalog(ctx, false),
		)
	case models.TriggerAppClose:
		if err := e.checkpoint(ctx); err != nil {
			return models.SyncResult{Success: false, Error: err.Error()}
		}
		return e.pushTier(ctx, models.TierCritical)
	default:
		return models.SyncResult{Success: false, Error: fmt.Sprintf("%s: %q", ErrUnknownTrigger.Error(), kind)}
	}
}

// pushTier scans the local store for unsynced attempts matching the tier's
// predicate, forwards them to the remote store and marks them synced. A
// per-record failure enqueues a retry operation and is recorded; it never
// aborts the rest of the batch. A remote conflict is handed to the resolver
// inline.
func (e *Engine) pushTier(ctx context.Context, tier models.SyncTier) models.SyncResult {
	policy := PolicyFor(tier)
	submittedOnly := tier == models.TierCritical

	pending, err := e.storages.Attempts.GetUnsynced(ctx, submittedOnly, policy.BatchSize)
	if err != nil {
		return models.SyncResult{Success: false, Error: fmt.Sprintf("scan unsynced attempts: %s", err)}
	}

	result := models.SyncResult{Success: true}
	for _, attempt := range pending {
		if err := e.pushAttempt(ctx, attempt); err != nil {
			result.Failed++
			e.recordPushFailure(ctx, attempt, err)
			continue
		}
		result.Pushed++
	}
	return result
}

func (e *Engine) pushAttempt(ctx context.Context, attempt models.Attempt) error {
	err := e.remote.SyncAttempt(ctx, attempt)
	if err == nil {
		if markErr := e.storages.Attempts.MarkSynced(ctx, attempt.ID); markErr != nil {
			e.logger.Warn().Str("record_id", attempt.ID).Err(markErr).Msg("mark synced failed")
		}
		return nil
	}

	if !errors.Is(err, adapter.ErrConflict) {
		return err
	}

	remoteAttempt, getErr := e.remote.GetAttempt(ctx, attempt.ID)
	if getErr != nil {
		return fmt.Errorf("load remote attempt after conflict: %w", getErr)
	}

	conflict := e.resolver.DetectAttemptConflict(&attempt, remoteAttempt)
	if conflict == nil {
		// the two sides already agree, nothing left to push
		if markErr := e.storages.Attempts.MarkSynced(ctx, attempt.ID); markErr != nil {
			e.logger.Warn().Str("record_id", attempt.ID).Err(markErr).Msg("mark synced failed")
		}
		return nil
	}

	outcome := e.resolver.ResolveConflict(ctx, *conflict, e.remote)
	if !outcome.Success {
		return fmt.Errorf("resolve push conflict: %s", outcome.Error)
	}
	return nil
}

// recordPushFailure queues a retry operation for the attempt and appends an
// audit entry. Both are best-effort.
func (e *Engine) recordPushFailure(ctx context.Context, attempt models.Attempt, pushErr error) {
	e.logger.Warn().Str("record_id", attempt.ID).Err(pushErr).Msg("attempt push failed, queueing retry")

	op := models.SyncOperation{
		Kind:       models.OperationPush,
		EntityType: models.EntityAttempt,
		RecordID:   attempt.ID,
		Tier:       ClassifyOperation(models.EntityAttempt, models.OperationPush, attempt.Submitted),
		LastError:  pushErr.Error(),
	}
	if err := e.queue.Add(ctx, op); err != nil {
		e.logger.Error().Str("record_id", attempt.ID).Err(err).Msg("queue retry operation failed")
	}

	entry := models.AuditEntry{
		ID:         uuid.NewString(),
		Operation:  string(models.OperationPush),
		EntityType: models.EntityAttempt,
		RecordID:   attempt.ID,
		Status:     "failed",
		Error:      pushErr.Error(),
		CreatedAt:  e.now(),
	}
	if err := e.storages.Audit.Append(ctx, entry); err != nil {
		e.logger.Warn().Str("record_id", attempt.ID).Err(err).Msg("append push audit failed")
	}
}

// pullCatalog refreshes local reference data. With onlyIfEmpty the pull is a
// first-time bootstrap: a populated catalog short-circuits. When the remote
// pull fails on an empty catalog, the deterministic seed dataset is written
// instead so the application can run fully offline.
func (e *Engine) pullCatalog(ctx context.Context, onlyIfEmpty bool) models.SyncResult {
	if onlyIfEmpty {
		empty, err := e.storages.Catalog.IsEmpty(ctx)
		if err != nil {
			return models.SyncResult{Success: false, Error: fmt.Sprintf("inspect catalog: %s", err)}
		}
		if !empty {
			return models.SyncResult{Success: true}
		}
	}

	snapshot, err := e.remote.PullCatalog(ctx)
	if err != nil {
		e.logger.Warn().Err(err).Msg("catalog pull failed")
		return e.seedCatalog(ctx, onlyIfEmpty)
	}

	if err = e.storages.Catalog.SaveCatalog(ctx, snapshot); err != nil {
		return models.SyncResult{Success: false, Error: fmt.Sprintf("save catalog: %s", err)}
	}
	return models.SyncResult{Success: true, Pulled: snapshotSize(snapshot)}
}

func (e *Engine) seedCatalog(ctx context.Context, allowSeed bool) models.SyncResult {
	if !allowSeed || e.seeder == nil {
		return models.SyncResult{Success: false, Error: "catalog pull failed and seeding not applicable"}
	}

	empty, err := e.storages.Catalog.IsEmpty(ctx)
	if err != nil {
		return models.SyncResult{Success: false, Error: fmt.Sprintf("inspect catalog: %s", err)}
	}
	if !empty {
		return models.SyncResult{Success: true}
	}

	snapshot := e.seeder.Snapshot()
	if err = e.storages.Catalog.SaveCatalog(ctx, snapshot); err != nil {
		return models.SyncResult{Success: false, Error: fmt.Sprintf("save seed catalog: %s", err)}
	}

	e.logger.Info().Int("records", snapshotSize(snapshot)).Msg("catalog seeded with built-in dataset")
	return models.SyncResult{Success: true, Note: "catalog seeded offline", Pulled: snapshotSize(snapshot)}
}

func (e *Engine) drainQueue(ctx context.Context) models.SyncResult {
	processed, failed, err := e.queue.Process(ctx, e.remote)
	if err != nil {
		if errors.Is(err, ErrProcessInProgress) {
			return models.SyncResult{Success: true, Note: "queue drain already running"}
		}
		return models.SyncResult{Success: false, Error: err.Error()}
	}
	return models.SyncResult{Success: true, Pushed: processed, Failed: failed}
}

// checkpoint forces the local store to flush its write-ahead log so the
// on-disk state is consistent before critical data leaves the device.
func (e *Engine) checkpoint(ctx context.Context) error {
	if err := e.storages.Checkpoint(ctx); err != nil {
		return fmt.Errorf("consistency checkpoint: %w", err)
	}
	return nil
}

// combine merges sequential step results. The pass succeeds only when every
// step did; counters accumulate and the first error wins.
func (e *Engine) combine(results ...models.SyncResult) models.SyncResult {
	combined := models.SyncResult{Success: true}
	for _, r := range results {
		combined.Pushed += r.Pushed
		combined.Pulled += r.Pulled
		combined.Failed += r.Failed
		if r.Note != "" && combined.Note == "" {
			combined.Note = r.Note
		}
		if !r.Success {
			combined.Success = false
			if combined.Error == "" {
				combined.Error = r.Error
			}
		}
	}
	return combined
}

// GetSyncStatus returns the current process-wide sync state.
func (e *Engine) GetSyncStatus() models.SyncStatus {
	e.statusMu.Lock()
	defer e.statusMu.Unlock()

	status := e.status
	status.SyncInProgress = e.syncing.Load() > 0
	status.IsOnline = e.monitor.IsOnline()
	return status
}

// QueueOperation lets application code enqueue a durable sync operation
// directly, e.g. when a write happens while offline. Fails fast when the
// engine is not initialized.
func (e *Engine) QueueOperation(ctx context.Context, op models.SyncOperation) error {
	if engineState(e.state.Load()) == stateUninitialized {
		return ErrNotInitialized
	}
	return e.queue.Add(ctx, op)
}

// Cleanup stops the background workers and the monitor, attempts one final
// best-effort sync when online, closes the local store and returns the
// engine to the uninitialized state.
func (e *Engine) Cleanup(ctx context.Context) error {
	if engineState(e.state.Load()) == stateUninitialized {
		return nil
	}

	e.periodic.Stop()
	e.monitor.StopMonitoring()

	if e.monitor.IsOnline() {
		result := e.TriggerSync(ctx, models.TriggerAppClose, models.SyncOptions{})
		if !result.Success {
			e.logger.Warn().Str("error", result.Error).Msg("final sync on cleanup failed")
		}
	}

	e.state.Store(int32(stateUninitialized))

	if err := e.storages.Close(); err != nil {
		return fmt.Errorf("close local store: %w", err)
	}
	return nil
}

func (e *Engine) refreshStatus(ctx context.Context) {
	pending, err := e.storages.Attempts.CountUnsynced(ctx)
	if err != nil {
		e.logger.Warn().Err(err).Msg("count unsynced attempts failed")
		pending = -1
	}
	lastSyncAt, err := e.storages.Meta.LastSyncAt(ctx)
	if err != nil {
		e.logger.Warn().Err(err).Msg("load last sync timestamp failed")
	}

	e.statusMu.Lock()
	e.status.PendingLocalCount = pending + e.queue.PendingCount()
	if pending < 0 {
		e.status.PendingLocalCount = e.queue.PendingCount()
	}
	e.status.LastSyncAt = lastSyncAt
	e.status.IsOnline = e.monitor.IsOnline()
	e.statusMu.Unlock()
}

func snapshotSize(s models.CatalogSnapshot) int {
	return len(s.Users) + len(s.Subjects) + len(s.Questions)
}
