// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Artem Voronov

package sync

import (
	"time"

	"github.com/avoronov/go-quiz-sync/models"
)

// Fixed per-tier processing policies. The final backoff entry repeats for
// retries beyond the schedule's length.
var tierPolicies = map[models.SyncTier]models.TierPolicy{
	models.TierCritical: {
		BatchSize:  10,
		MaxRetries: 5,
		Backoff:    []time.Duration{1 * time.Second, 5 * time.Second, 15 * time.Second, 30 * time.Second, 60 * time.Second},
	},
	models.TierImportant: {
		BatchSize:  25,
		MaxRetries: 4,
		Backoff:    []time.Duration{2 * time.Second, 10 * time.Second, 30 * time.Second, 60 * time.Second},
	},
	models.TierAdministrative: {
		BatchSize:  50,
		MaxRetries: 3,
		Backoff:    []time.Duration{5 * time.Second, 30 * time.Second, 120 * time.Second},
	},
}

// tierOrder is the strict drain priority of the queue.
var tierOrder = []models.SyncTier{
	models.TierCritical,
	models.TierImportant,
	models.TierAdministrative,
}

// PolicyFor returns the processing policy of the given tier. An unknown tier
// falls back to the administrative policy.
func PolicyFor(tier models.SyncTier) models.TierPolicy {
	if policy, ok := tierPolicies[tier]; ok {
		return policy
	}
	return tierPolicies[models.TierAdministrative]
}

// ClassifyOperation assigns a tier to an operation as a pure function of the
// entity type, operation kind and (for attempts) the submitted flag.
// A submitted attempt carries a user's final result and is critical; any
// other attempt work is important; catalog maintenance is administrative.
func ClassifyOperation(entityType models.EntityType, kind models.OperationKind, submitted bool) models.SyncTier {
	if entityType != models.EntityAttempt {
		return models.TierAdministrative
	}

	switch kind {
	case models.OperationPush, models.OperationConflictResolution:
		if submitted {
			return models.TierCritical
		}
		return models.TierImportant
	default:
		return models.TierAdministrative
	}
}
