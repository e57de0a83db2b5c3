package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTierPolicyRetryDelay(t *testing.T) {
	policy := TierPolicy{Backoff: []time.Duration{time.Second, 5 * time.Second, 15 * time.Second}}

	assert.Equal(t, time.Second, policy.RetryDelay(0))
	assert.Equal(t, time.Second, policy.RetryDelay(1))
	assert.Equal(t, 5*time.Second, policy.RetryDelay(2))
	assert.Equal(t, 15*time.Second, policy.RetryDelay(3))
	// the last entry repeats past the schedule
	assert.Equal(t, 15*time.Second, policy.RetryDelay(10))

	empty := TierPolicy{}
	assert.Equal(t, time.Duration(0), empty.RetryDelay(1))
}

func TestSyncOperationDue(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	var op SyncOperation
	assert.True(t, op.Due(now), "no retry schedule means immediately due")

	past := now.Add(-time.Minute)
	op.NextRetryAt = &past
	assert.True(t, op.Due(now))

	op.NextRetryAt = &now
	assert.True(t, op.Due(now))

	future := now.Add(time.Minute)
	op.NextRetryAt = &future
	assert.False(t, op.Due(now))
}
