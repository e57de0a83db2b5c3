// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Artem Voronov

package sync

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/avoronov/go-quiz-sync/internal/adapter"
	"github.com/avoronov/go-quiz-sync/internal/connectivity"
	"github.com/avoronov/go-quiz-sync/internal/logger"
	"github.com/avoronov/go-quiz-sync/internal/mock"
	"github.com/avoronov/go-quiz-sync/internal/seed"
	"github.com/avoronov/go-quiz-sync/internal/store"
	"github.com/avoronov/go-quiz-sync/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type engineMocks struct {
	attempts *mock.MockAttemptRepository
	catalog  *mock.MockCatalogRepository
	queue    *mock.MockQueueRepository
	audit    *mock.MockAuditRepository
	meta     *mock.MockMetaRepository
	remote   *mock.MockRemoteClient
	monitor  *mock.MockConnectivityMonitor
}

// expectStatusRefresh satisfies the status recomputation every pass performs.
func (m engineMocks) expectStatusRefresh() {
	m.attempts.EXPECT().CountUnsynced(gomock.Any()).Return(0, nil).AnyTimes()
	m.meta.EXPECT().LastSyncAt(gomock.Any()).Return(nil, nil).AnyTimes()
	m.monitor.EXPECT().IsOnline().Return(true).AnyTimes()
}

func newTestEngine(t *testing.T, withRemote bool) (*Engine, engineMocks) {
	t.Helper()
	ctrl := gomock.NewController(t)
	m := engineMocks{
		attempts: mock.NewMockAttemptRepository(ctrl),
		catalog:  mock.NewMockCatalogRepository(ctrl),
		queue:    mock.NewMockQueueRepository(ctrl),
		audit:    mock.NewMockAuditRepository(ctrl),
		meta:     mock.NewMockMetaRepository(ctrl),
		remote:   mock.NewMockRemoteClient(ctrl),
		monitor:  mock.NewMockConnectivityMonitor(ctrl),
	}

	storages := &store.ClientStorages{
		Attempts: m.attempts,
		Catalog:  m.catalog,
		Queue:    m.queue,
		Audit:    m.audit,
		Meta:     m.meta,
	}

	opts := EngineOptions{
		Storages:         storages,
		Monitor:          m.monitor,
		Seeder:           seed.New(),
		Logger:           logger.Nop(),
		PeriodicInterval: time.Hour,
	}
	if withRemote {
		opts.Remote = m.remote
	}

	e := NewEngine(opts)
	// most tests exercise the trigger API of an initialized engine
	e.state.Store(int32(stateIdle))
	return e, m
}

func TestTriggerSync_FailsFastWhenUninitialized(t *testing.T) {
	e, _ := newTestEngine(t, true)
	e.state.Store(int32(stateUninitialized))

	result := e.TriggerSync(context.Background(), models.TriggerManual, models.SyncOptions{})

	require.False(t, result.Success)
	assert.Equal(t, ErrNotInitialized.Error(), result.Error)
}

func TestTriggerSync_OfflineQueuesForLater(t *testing.T) {
	e, m := newTestEngine(t, true)
	m.monitor.EXPECT().Check(gomock.Any()).Return(false)
	m.expectStatusRefresh()

	result := e.TriggerSync(context.Background(), models.TriggerManual, models.SyncOptions{})

	require.True(t, result.Success)
	assert.Contains(t, result.Note, "queued for later")
	assert.Zero(t, result.Pushed)
}

func TestTriggerSync_OnlineWithoutRemoteClient(t *testing.T) {
	e, m := newTestEngine(t, false)
	m.monitor.EXPECT().Check(gomock.Any()).Return(true)
	m.expectStatusRefresh()

	result := e.TriggerSync(context.Background(), models.TriggerStartup, models.SyncOptions{})

	require.False(t, result.Success)
	assert.Equal(t, ErrNoRemoteClient.Error(), result.Error)
}

func TestTriggerSync_UnknownTrigger(t *testing.T) {
	e, m := newTestEngine(t, true)
	m.monitor.EXPECT().Check(gomock.Any()).Return(true)
	m.expectStatusRefresh()

	result := e.TriggerSync(context.Background(), models.TriggerKind("reboot"), models.SyncOptions{})

	require.False(t, result.Success)
	assert.Contains(t, result.Error, "unknown sync trigger")
}

func TestTriggerSync_SingleFlight(t *testing.T) {
	e, m := newTestEngine(t, true)
	m.expectStatusRefresh()

	entered := make(chan struct{})
	release := make(chan struct{})
	m.monitor.EXPECT().Check(gomock.Any()).DoAndReturn(func(context.Context) bool {
		close(entered)
		<-release
		return false
	})

	var wg sync.WaitGroup
	wg.Add(1)
	var first models.SyncResult
	go func() {
		defer wg.Done()
		first = e.TriggerSync(context.Background(), models.TriggerManual, models.SyncOptions{})
	}()

	<-entered
	second := e.TriggerSync(context.Background(), models.TriggerManual, models.SyncOptions{})
	close(release)
	wg.Wait()

	require.True(t, first.Success)
	require.False(t, second.Success)
	assert.Equal(t, "already in progress", second.Note)
	assert.Equal(t, ErrSyncInProgress.Error(), second.Error)
}

func TestTriggerSync_ForceSerialisesBehindRunningPass(t *testing.T) {
	e, m := newTestEngine(t, true)
	m.expectStatusRefresh()

	entered := make(chan struct{})
	release := make(chan struct{})
	first := m.monitor.EXPECT().Check(gomock.Any()).DoAndReturn(func(context.Context) bool {
		close(entered)
		<-release
		return false
	})
	m.monitor.EXPECT().Check(gomock.Any()).Return(false).After(first)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		e.TriggerSync(context.Background(), models.TriggerManual, models.SyncOptions{})
	}()

	<-entered
	var forced models.SyncResult
	go func() {
		defer wg.Done()
		forced = e.TriggerSync(context.Background(), models.TriggerManual, models.SyncOptions{Force: true})
	}()

	// the forced pass must be blocked on the running one
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	require.True(t, forced.Success)
}

func TestTriggerSync_QuizSubmissionEndToEnd(t *testing.T) {
	e, m := newTestEngine(t, true)
	m.monitor.EXPECT().Check(gomock.Any()).Return(true)
	m.monitor.EXPECT().IsOnline().Return(true).AnyTimes()
	m.attempts.EXPECT().CountUnsynced(gomock.Any()).Return(0, nil)

	submitted := makeAttempt("a1", true, models.AnswerMap{"q1": "A", "q2": "B"})
	before := time.Now()

	m.attempts.EXPECT().GetUnsynced(gomock.Any(), true, 10).Return([]models.Attempt{submitted}, nil)
	m.remote.EXPECT().SyncAttempt(gomock.Any(), submitted).Return(nil)
	m.attempts.EXPECT().MarkSynced(gomock.Any(), "a1").Return(nil)

	var persistedAt time.Time
	m.meta.EXPECT().SetLastSyncAt(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, at time.Time) error {
			persistedAt = at
			return nil
		})
	m.meta.EXPECT().LastSyncAt(gomock.Any()).DoAndReturn(
		func(context.Context) (*time.Time, error) {
			return &persistedAt, nil
		})

	result := e.TriggerSync(context.Background(), models.TriggerQuizSubmission, models.SyncOptions{})

	require.True(t, result.Success)
	assert.Equal(t, 1, result.Pushed)
	assert.Zero(t, result.Failed)
	assert.False(t, persistedAt.Before(before))

	status := e.GetSyncStatus()
	require.NotNil(t, status.LastSyncAt)
	assert.False(t, status.LastSyncAt.Before(before))
	assert.False(t, status.SyncInProgress)
	assert.Zero(t, status.PendingLocalCount)
}

func TestTriggerSync_PushFailureQueuesRetry(t *testing.T) {
	e, m := newTestEngine(t, true)
	m.monitor.EXPECT().Check(gomock.Any()).Return(true)
	m.expectStatusRefresh()

	inProgress := makeAttempt("a2", false, models.AnswerMap{"q1": "A"})
	m.attempts.EXPECT().GetUnsynced(gomock.Any(), false, 25).Return([]models.Attempt{inProgress}, nil)
	m.remote.EXPECT().SyncAttempt(gomock.Any(), inProgress).Return(errors.New("remote rejected"))

	var queued models.SyncOperation
	m.queue.EXPECT().SaveOperation(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, op models.SyncOperation) error {
			queued = op
			return nil
		})
	m.audit.EXPECT().Append(gomock.Any(), gomock.Any()).Return(nil)
	m.meta.EXPECT().SetLastSyncAt(gomock.Any(), gomock.Any()).Return(nil)

	result := e.TriggerSync(context.Background(), models.TriggerAnswerSave, models.SyncOptions{})

	// per-record failures do not fail the pass
	require.True(t, result.Success)
	assert.Equal(t, 1, result.Failed)
	assert.Zero(t, result.Pushed)
	assert.Equal(t, models.OperationPush, queued.Kind)
	assert.Equal(t, "a2", queued.RecordID)
	assert.Equal(t, models.TierImportant, queued.Tier)
	assert.Equal(t, 1, e.queue.PendingCount())
}

func TestTriggerSync_PushConflictResolvedInline(t *testing.T) {
	e, m := newTestEngine(t, true)
	m.monitor.EXPECT().Check(gomock.Any()).Return(true)
	m.expectStatusRefresh()
	m.meta.EXPECT().SetLastSyncAt(gomock.Any(), gomock.Any()).Return(nil)

	local := makeAttempt("a3", false, models.AnswerMap{"q1": "A"})
	remote := makeAttempt("a3", false, models.AnswerMap{"q1": "B", "q2": "C"})

	m.attempts.EXPECT().GetUnsynced(gomock.Any(), false, 25).Return([]models.Attempt{local}, nil)

	pushes := 0
	m.remote.EXPECT().SyncAttempt(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, attempt models.Attempt) error {
			pushes++
			if pushes == 1 {
				return fmt.Errorf("attempt diverged: %w", adapter.ErrConflict)
			}
			// the merged record carries local precedence
			assert.Equal(t, models.AnswerMap{"q1": "A", "q2": "C"}, attempt.Answers)
			return nil
		}).Times(2)
	m.remote.EXPECT().GetAttempt(gomock.Any(), "a3").Return(&remote, nil)
	m.attempts.EXPECT().SaveAttempt(gomock.Any(), gomock.Any()).Return(nil)
	m.attempts.EXPECT().MarkSynced(gomock.Any(), "a3").Return(nil)
	m.audit.EXPECT().Append(gomock.Any(), gomock.Any()).Return(nil)

	result := e.TriggerSync(context.Background(), models.TriggerAnswerSave, models.SyncOptions{})

	require.True(t, result.Success)
	assert.Equal(t, 1, result.Pushed)
	assert.Zero(t, result.Failed)
}

func TestTriggerSync_StartupSeedsOfflineCatalog(t *testing.T) {
	e, m := newTestEngine(t, true)
	m.monitor.EXPECT().Check(gomock.Any()).Return(true)
	m.expectStatusRefresh()
	m.meta.EXPECT().SetLastSyncAt(gomock.Any(), gomock.Any()).Return(nil)

	m.attempts.EXPECT().GetUnsynced(gomock.Any(), true, 10).Return(nil, nil)
	m.catalog.EXPECT().IsEmpty(gomock.Any()).Return(true, nil).Times(2)
	m.remote.EXPECT().PullCatalog(gomock.Any()).Return(models.CatalogSnapshot{}, errors.New("connection refused"))

	want := seed.New().Snapshot()
	var saved models.CatalogSnapshot
	m.catalog.EXPECT().SaveCatalog(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, snapshot models.CatalogSnapshot) error {
			saved = snapshot
			return nil
		})

	result := e.TriggerSync(context.Background(), models.TriggerStartup, models.SyncOptions{})

	require.True(t, result.Success)
	assert.Equal(t, want, saved)
	assert.Equal(t, len(want.Users)+len(want.Subjects)+len(want.Questions), result.Pulled)
	assert.Contains(t, result.Note, "seeded")
}

func TestTriggerSync_StartupPopulatedCatalogIsNoOp(t *testing.T) {
	e, m := newTestEngine(t, true)
	m.monitor.EXPECT().Check(gomock.Any()).Return(true)
	m.expectStatusRefresh()
	m.meta.EXPECT().SetLastSyncAt(gomock.Any(), gomock.Any()).Return(nil)

	m.attempts.EXPECT().GetUnsynced(gomock.Any(), true, 10).Return(nil, nil)
	m.catalog.EXPECT().IsEmpty(gomock.Any()).Return(false, nil)

	result := e.TriggerSync(context.Background(), models.TriggerStartup, models.SyncOptions{})

	require.True(t, result.Success)
	assert.Zero(t, result.Pulled)
}

func TestTriggerSync_ManualPullsUnconditionally(t *testing.T) {
	e, m := newTestEngine(t, true)
	m.monitor.EXPECT().Check(gomock.Any()).Return(true)
	m.expectStatusRefresh()
	m.meta.EXPECT().SetLastSyncAt(gomock.Any(), gomock.Any()).Return(nil)

	m.attempts.EXPECT().GetUnsynced(gomock.Any(), true, 10).Return(nil, nil)
	m.attempts.EXPECT().GetUnsynced(gomock.Any(), false, 25).Return(nil, nil)

	snapshot := models.CatalogSnapshot{Subjects: []models.Subject{{ID: "s-1", Title: "Math"}}}
	m.remote.EXPECT().PullCatalog(gomock.Any()).Return(snapshot, nil)
	m.catalog.EXPECT().SaveCatalog(gomock.Any(), snapshot).Return(nil)

	result := e.TriggerSync(context.Background(), models.TriggerManual, models.SyncOptions{})

	require.True(t, result.Success)
	assert.Equal(t, 1, result.Pulled)
}

func TestQueueOperation_FailsWhenUninitialized(t *testing.T) {
	e, _ := newTestEngine(t, true)
	e.state.Store(int32(stateUninitialized))

	err := e.QueueOperation(context.Background(), models.SyncOperation{
		Kind: models.OperationPush, EntityType: models.EntityAttempt, RecordID: "a-1",
	})

	assert.ErrorIs(t, err, ErrNotInitialized)
}

func TestInitialize_WiresCollaboratorsAndRunsStartupSync(t *testing.T) {
	e, m := newTestEngine(t, true)
	e.state.Store(int32(stateUninitialized))

	var listener connectivity.Listener
	m.monitor.EXPECT().Initialize(gomock.Any()).Return(nil)
	m.monitor.EXPECT().OnChange(gomock.Any()).Do(func(fn connectivity.Listener) { listener = fn })
	m.monitor.EXPECT().IsOnline().Return(true).AnyTimes()
	m.monitor.EXPECT().StartMonitoring(gomock.Any())
	m.monitor.EXPECT().Check(gomock.Any()).Return(true)

	m.queue.EXPECT().LoadPending(gomock.Any()).Return(nil, nil)
	m.attempts.EXPECT().RepairTimestamps(gomock.Any()).Return(int64(2), nil)
	m.attempts.EXPECT().CountUnsynced(gomock.Any()).Return(0, nil).AnyTimes()
	m.meta.EXPECT().LastSyncAt(gomock.Any()).Return(nil, nil).AnyTimes()

	// startup sync
	m.attempts.EXPECT().GetUnsynced(gomock.Any(), true, 10).Return(nil, nil)
	m.catalog.EXPECT().IsEmpty(gomock.Any()).Return(false, nil)
	m.meta.EXPECT().SetLastSyncAt(gomock.Any(), gomock.Any()).Return(nil)

	require.NoError(t, e.Initialize(context.Background()))
	require.NotNil(t, listener)
	assert.Equal(t, stateIdle, engineState(e.state.Load()))

	e.periodic.Stop()
}

func TestInitialize_MonitorFailureRevertsState(t *testing.T) {
	e, m := newTestEngine(t, true)
	e.state.Store(int32(stateUninitialized))

	m.monitor.EXPECT().Initialize(gomock.Any()).Return(errors.New("no probe endpoints"))

	err := e.Initialize(context.Background())

	require.Error(t, err)
	assert.Equal(t, stateUninitialized, engineState(e.state.Load()))
}

func TestCleanup_StopsEverything(t *testing.T) {
	e, m := newTestEngine(t, true)

	m.monitor.EXPECT().StopMonitoring()
	m.monitor.EXPECT().IsOnline().Return(false)

	require.NoError(t, e.Cleanup(context.Background()))
	assert.Equal(t, stateUninitialized, engineState(e.state.Load()))

	// a second cleanup is a no-op
	require.NoError(t, e.Cleanup(context.Background()))
}

func TestGetSyncStatus_ReflectsMonitorState(t *testing.T) {
	e, m := newTestEngine(t, true)
	m.monitor.EXPECT().IsOnline().Return(false)

	status := e.GetSyncStatus()

	assert.False(t, status.IsOnline)
	assert.False(t, status.SyncInProgress)
}
