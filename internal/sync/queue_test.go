// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Artem Voronov

package sync

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/avoronov/go-quiz-sync/internal/logger"
	"github.com/avoronov/go-quiz-sync/internal/mock"
	"github.com/avoronov/go-quiz-sync/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type queueMocks struct {
	repo     *mock.MockQueueRepository
	attempts *mock.MockAttemptRepository
	catalog  *mock.MockCatalogRepository
	audit    *mock.MockAuditRepository
	remote   *mock.MockRemoteClient
}

func newTestQueue(t *testing.T) (*OperationQueue, queueMocks) {
	t.Helper()
	ctrl := gomock.NewController(t)
	m := queueMocks{
		repo:     mock.NewMockQueueRepository(ctrl),
		attempts: mock.NewMockAttemptRepository(ctrl),
		catalog:  mock.NewMockCatalogRepository(ctrl),
		audit:    mock.NewMockAuditRepository(ctrl),
		remote:   mock.NewMockRemoteClient(ctrl),
	}
	resolver := NewResolver(m.attempts, m.audit, logger.Nop())
	q := NewOperationQueue(m.repo, m.attempts, m.catalog, m.audit, resolver, logger.Nop())
	return q, m
}

func attemptPayload(t *testing.T, attempt models.Attempt) json.RawMessage {
	t.Helper()
	data, err := json.Marshal(attempt)
	require.NoError(t, err)
	return data
}

func TestQueueAdd_AssignsDefaultsAndPersists(t *testing.T) {
	q, m := newTestQueue(t)

	var saved models.SyncOperation
	m.repo.EXPECT().SaveOperation(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, op models.SyncOperation) error {
			saved = op
			return nil
		})

	submitted := makeAttempt("a-1", true, models.AnswerMap{"q1": "A"})
	err := q.Add(context.Background(), models.SyncOperation{
		Kind:       models.OperationPush,
		EntityType: models.EntityAttempt,
		RecordID:   "a-1",
		Payload:    attemptPayload(t, submitted),
	})

	require.NoError(t, err)
	assert.NotEmpty(t, saved.ID)
	assert.Equal(t, models.TierCritical, saved.Tier)
	assert.False(t, saved.EnqueuedAt.IsZero())
	assert.Equal(t, 1, q.PendingCount())
	assert.Equal(t, 1, q.PendingCount(models.TierCritical))
	assert.Equal(t, 0, q.PendingCount(models.TierImportant))
}

func TestQueueAdd_PersistFailureNotEnqueued(t *testing.T) {
	q, m := newTestQueue(t)

	m.repo.EXPECT().SaveOperation(gomock.Any(), gomock.Any()).Return(errors.New("disk full"))

	err := q.Add(context.Background(), models.SyncOperation{
		Kind:       models.OperationPush,
		EntityType: models.EntityAttempt,
		RecordID:   "a-1",
	})

	require.Error(t, err)
	assert.Equal(t, 0, q.PendingCount())
}

func TestQueueInitialize_ReloadsPersistedBacklog(t *testing.T) {
	q, m := newTestQueue(t)

	m.repo.EXPECT().LoadPending(gomock.Any()).Return([]models.SyncOperation{
		{ID: "op-1", Kind: models.OperationPull, EntityType: models.EntityQuestion, Tier: models.TierAdministrative},
		{ID: "op-2", Kind: models.OperationPush, EntityType: models.EntityAttempt, RecordID: "a-1", Tier: models.TierCritical},
		{ID: "op-3", Kind: models.OperationPush, EntityType: models.EntityAttempt, RecordID: "a-2", Tier: models.TierImportant},
	}, nil)

	require.NoError(t, q.Initialize(context.Background()))

	assert.Equal(t, 3, q.PendingCount())
	assert.Equal(t, 1, q.PendingCount(models.TierCritical))

	ops := q.PendingOperations()
	require.Len(t, ops, 3)
	// drain order, not insertion order
	assert.Equal(t, "op-2", ops[0].ID)
	assert.Equal(t, "op-3", ops[1].ID)
	assert.Equal(t, "op-1", ops[2].ID)
}

func TestQueueProcess_TierOrdering(t *testing.T) {
	q, m := newTestQueue(t)
	m.repo.EXPECT().SaveOperation(gomock.Any(), gomock.Any()).Return(nil).Times(3)
	m.repo.EXPECT().DeleteOperation(gomock.Any(), gomock.Any()).Return(nil).Times(3)

	// insertion order: administrative, critical, important
	require.NoError(t, q.Add(context.Background(), models.SyncOperation{
		ID: "op-admin", Kind: models.OperationPull, EntityType: models.EntityQuestion,
	}))
	require.NoError(t, q.Add(context.Background(), models.SyncOperation{
		ID: "op-crit", Kind: models.OperationPush, EntityType: models.EntityAttempt, RecordID: "a-crit",
		Payload: attemptPayload(t, makeAttempt("a-crit", true, models.AnswerMap{"q1": "A"})),
	}))
	require.NoError(t, q.Add(context.Background(), models.SyncOperation{
		ID: "op-imp", Kind: models.OperationPush, EntityType: models.EntityAttempt, RecordID: "a-imp",
		Payload: attemptPayload(t, makeAttempt("a-imp", false, models.AnswerMap{"q1": "A"})),
	}))

	var order []string
	m.remote.EXPECT().SyncAttempt(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, attempt models.Attempt) error {
			order = append(order, attempt.ID)
			return nil
		}).Times(2)
	m.remote.EXPECT().PullCatalog(gomock.Any()).DoAndReturn(
		func(context.Context) (models.CatalogSnapshot, error) {
			order = append(order, "catalog")
			return models.CatalogSnapshot{}, nil
		})
	m.catalog.EXPECT().SaveCatalog(gomock.Any(), gomock.Any()).Return(nil)
	m.attempts.EXPECT().MarkSynced(gomock.Any(), gomock.Any()).Return(nil).Times(2)

	processed, failed, err := q.Process(context.Background(), m.remote)

	require.NoError(t, err)
	assert.Equal(t, 3, processed)
	assert.Equal(t, 0, failed)
	assert.Equal(t, []string{"a-crit", "a-imp", "catalog"}, order)
	assert.Equal(t, 0, q.PendingCount())
}

func TestQueueProcess_RetryBackoffAndDrop(t *testing.T) {
	q, m := newTestQueue(t)

	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	q.now = func() time.Time { return now }

	m.repo.EXPECT().SaveOperation(gomock.Any(), gomock.Any()).Return(nil).AnyTimes()
	m.remote.EXPECT().PullCatalog(gomock.Any()).Return(models.CatalogSnapshot{}, errors.New("remote down")).Times(3)

	require.NoError(t, q.Add(context.Background(), models.SyncOperation{
		ID: "op-1", Kind: models.OperationPull, EntityType: models.EntityQuestion,
	}))

	policy := PolicyFor(models.TierAdministrative)
	var lastRetryAt time.Time
	for attempt := 1; attempt < policy.MaxRetries; attempt++ {
		_, failed, err := q.Process(context.Background(), m.remote)
		require.NoError(t, err)
		assert.Equal(t, 1, failed)

		ops := q.PendingOperations()
		require.Len(t, ops, 1)
		assert.Equal(t, attempt, ops[0].RetryCount)
		require.NotNil(t, ops[0].NextRetryAt)
		assert.False(t, ops[0].NextRetryAt.Before(lastRetryAt), "backoff must not shrink")
		lastRetryAt = *ops[0].NextRetryAt

		// advance past the scheduled retry
		now = ops[0].NextRetryAt.Add(time.Second)
	}

	// final attempt exhausts the administrative budget of 3
	m.repo.EXPECT().DeleteOperation(gomock.Any(), "op-1").Return(nil)
	m.audit.EXPECT().Append(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, entry models.AuditEntry) error {
			assert.Equal(t, "dropped", entry.Status)
			assert.Contains(t, entry.Error, "remote down")
			return nil
		})

	_, failed, err := q.Process(context.Background(), m.remote)
	require.NoError(t, err)
	assert.Equal(t, 1, failed)
	assert.Equal(t, 0, q.PendingCount())
}

func TestQueueProcess_SkipsOperationsNotYetDue(t *testing.T) {
	q, m := newTestQueue(t)

	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	q.now = func() time.Time { return now }
	future := now.Add(time.Minute)

	m.repo.EXPECT().SaveOperation(gomock.Any(), gomock.Any()).Return(nil)
	require.NoError(t, q.Add(context.Background(), models.SyncOperation{
		ID: "op-1", Kind: models.OperationPull, EntityType: models.EntityQuestion,
		NextRetryAt: &future,
	}))

	processed, failed, err := q.Process(context.Background(), m.remote)

	require.NoError(t, err)
	assert.Zero(t, processed)
	assert.Zero(t, failed)
	assert.Equal(t, 1, q.PendingCount())
}

func TestQueueProcess_ConcurrentCallRejected(t *testing.T) {
	q, m := newTestQueue(t)

	q.mu.Lock()
	q.processing = true
	q.mu.Unlock()

	_, _, err := q.Process(context.Background(), m.remote)
	assert.ErrorIs(t, err, ErrProcessInProgress)
}

func TestQueueProcess_NilRemote(t *testing.T) {
	q, _ := newTestQueue(t)

	_, _, err := q.Process(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNoRemoteClient)
}

func TestQueueProcess_ConflictResolutionReDetects(t *testing.T) {
	q, m := newTestQueue(t)

	local := makeAttempt("a-1", false, models.AnswerMap{"q1": "A"})
	remote := makeAttempt("a-1", false, models.AnswerMap{"q1": "B", "q2": "C"})

	m.repo.EXPECT().SaveOperation(gomock.Any(), gomock.Any()).Return(nil)
	require.NoError(t, q.Add(context.Background(), models.SyncOperation{
		ID: "op-1", Kind: models.OperationConflictResolution, EntityType: models.EntityAttempt, RecordID: "a-1",
		Tier: models.TierImportant,
	}))

	m.attempts.EXPECT().GetAttempt(gomock.Any(), "a-1").Return(local, nil)
	m.remote.EXPECT().GetAttempt(gomock.Any(), "a-1").Return(&remote, nil)

	var saved models.Attempt
	m.attempts.EXPECT().SaveAttempt(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, a models.Attempt) error {
			saved = a
			return nil
		})
	m.remote.EXPECT().SyncAttempt(gomock.Any(), gomock.Any()).Return(nil)
	m.attempts.EXPECT().MarkSynced(gomock.Any(), "a-1").Return(nil)
	m.audit.EXPECT().Append(gomock.Any(), gomock.Any()).Return(nil)
	m.repo.EXPECT().DeleteOperation(gomock.Any(), "op-1").Return(nil)

	processed, failed, err := q.Process(context.Background(), m.remote)

	require.NoError(t, err)
	assert.Equal(t, 1, processed)
	assert.Zero(t, failed)
	assert.Equal(t, models.AnswerMap{"q1": "A", "q2": "C"}, saved.Answers)
}

func TestQueueProcess_ConflictResolutionConverged(t *testing.T) {
	q, m := newTestQueue(t)

	local := makeAttempt("a-1", false, models.AnswerMap{"q1": "A"})
	remote := local

	m.repo.EXPECT().SaveOperation(gomock.Any(), gomock.Any()).Return(nil)
	require.NoError(t, q.Add(context.Background(), models.SyncOperation{
		ID: "op-1", Kind: models.OperationConflictResolution, EntityType: models.EntityAttempt, RecordID: "a-1",
		Tier: models.TierImportant,
	}))

	m.attempts.EXPECT().GetAttempt(gomock.Any(), "a-1").Return(local, nil)
	m.remote.EXPECT().GetAttempt(gomock.Any(), "a-1").Return(&remote, nil)
	m.repo.EXPECT().DeleteOperation(gomock.Any(), "op-1").Return(nil)

	processed, failed, err := q.Process(context.Background(), m.remote)

	require.NoError(t, err)
	assert.Equal(t, 1, processed)
	assert.Zero(t, failed)
}

func TestQueueClear(t *testing.T) {
	q, m := newTestQueue(t)

	m.repo.EXPECT().SaveOperation(gomock.Any(), gomock.Any()).Return(nil)
	require.NoError(t, q.Add(context.Background(), models.SyncOperation{
		ID: "op-1", Kind: models.OperationPull, EntityType: models.EntityQuestion,
	}))

	m.repo.EXPECT().DeleteAll(gomock.Any()).Return(nil)
	require.NoError(t, q.Clear(context.Background()))
	assert.Equal(t, 0, q.PendingCount())
}
