// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Artem Voronov

package models

import (
	"encoding/json"
	"time"
)

// EntityType identifies the record class a sync operation or conflict refers to.
type EntityType string

const (
	EntityAttempt  EntityType = "attempt"
	EntityUser     EntityType = "user"
	EntitySubject  EntityType = "subject"
	EntityQuestion EntityType = "question"
)

// OperationKind is the work type of a queued sync operation.
type OperationKind string

const (
	OperationPush               OperationKind = "push"
	OperationPull               OperationKind = "pull"
	OperationConflictResolution OperationKind = "conflict_resolution"
)

// SyncTier is the priority class of a sync operation. Tiers control batch
// size, retry budget and the backoff schedule.
type SyncTier string

const (
	TierCritical       SyncTier = "critical"
	TierImportant      SyncTier = "important"
	TierAdministrative SyncTier = "administrative"
)

// TierPolicy describes how operations of one tier are processed. The last
// Backoff entry repeats for retries beyond the schedule's length.
type TierPolicy struct {
	BatchSize  int
	MaxRetries int
	Backoff    []time.Duration
}

// RetryDelay returns the backoff delay to apply after the given (1-based)
// failed attempt.
func (p TierPolicy) RetryDelay(retryCount int) time.Duration {
	if len(p.Backoff) == 0 {
		return 0
	}
	idx := retryCount - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(p.Backoff) {
		idx = len(p.Backoff) - 1
	}
	return p.Backoff[idx]
}

// SyncOperation is one unit of pending sync work. It is persisted on every
// mutation so no operation is lost between enqueue and processing.
type SyncOperation struct {
	ID          string          `json:"id"`
	Kind        OperationKind   `json:"kind"`
	EntityType  EntityType      `json:"entity_type"`
	RecordID    string          `json:"record_id"`
	Payload     json.RawMessage `json:"payload,omitempty"`
	Tier        SyncTier        `json:"tier"`
	RetryCount  int             `json:"retry_count"`
	NextRetryAt *time.Time      `json:"next_retry_at,omitempty"`
	LastError   string          `json:"last_error,omitempty"`
	EnqueuedAt  time.Time       `json:"enqueued_at"`
}

// Due reports whether the operation may be attempted at the given instant.
// Operations with a future NextRetryAt are skipped, not waited for.
func (op SyncOperation) Due(now time.Time) bool {
	return op.NextRetryAt == nil || !op.NextRetryAt.After(now)
}

// ConflictKind classifies why a conflict was raised.
type ConflictKind string

const (
	ConflictTimestampDivergence  ConflictKind = "timestamp_divergence"
	ConflictSubmitTimeDivergence ConflictKind = "submit_time_divergence"
	ConflictAnswerDivergence     ConflictKind = "answer_divergence"
)

// ConflictRecord captures a detected divergence between the local and remote
// versions of one record. It is ephemeral: built during detection, consumed
// by resolution, persisted only as an audit entry.
type ConflictRecord struct {
	ID         string       `json:"id"`
	EntityType EntityType   `json:"entity_type"`
	RecordID   string       `json:"record_id"`
	Kind       ConflictKind `json:"kind"`
	DetectedAt time.Time    `json:"detected_at"`

	// Attempt versions are carried whole because merge needs the full record.
	LocalAttempt  *Attempt `json:"local_attempt,omitempty"`
	RemoteAttempt *Attempt `json:"remote_attempt,omitempty"`

	// Update timestamps of both sides, set for every entity type.
	LocalUpdatedAt  time.Time `json:"local_updated_at"`
	RemoteUpdatedAt time.Time `json:"remote_updated_at"`
}

// ResolutionRule names the strategy applied to a conflict.
type ResolutionRule string

const (
	RuleLocalWins     ResolutionRule = "local_wins"
	RuleRemoteWins    ResolutionRule = "remote_wins"
	RuleTimestampWins ResolutionRule = "timestamp_wins"
	RuleMergeData     ResolutionRule = "merge_data"
)

// ResolutionStrategy is the per-entity-type conflict policy. The table is
// fixed in normal operation and only overridden for tests.
type ResolutionStrategy struct {
	EntityType       EntityType
	Rule             ResolutionRule
	PreserveUserData bool
}

// ResolutionOutcome reports what a resolution attempt did.
type ResolutionOutcome struct {
	Applied ResolutionRule `json:"applied"`
	Success bool           `json:"success"`
	// Merged carries the merged attempt when Applied is merge_data.
	Merged *Attempt `json:"merged,omitempty"`
	Error  string   `json:"error,omitempty"`
}

// TriggerKind names the external event that requested a sync pass.
type TriggerKind string

const (
	TriggerStartup             TriggerKind = "startup"
	TriggerQuizSubmission      TriggerKind = "quiz_submission"
	TriggerAnswerSave          TriggerKind = "answer_save"
	TriggerNetworkReconnection TriggerKind = "network_reconnection"
	TriggerPeriodic            TriggerKind = "periodic"
	TriggerManual              TriggerKind = "manual"
	TriggerAppClose            TriggerKind = "app_close"
)

// SyncOptions tunes a single TriggerSync call.
type SyncOptions struct {
	// Force lets the call proceed even when another sync pass is in flight.
	// The forced pass still serialises behind the running one.
	Force bool
}

// SyncResult is the structured outcome of one sync pass. Failures are
// reported here rather than raised: the engine never lets a sync error
// escape to the host process.
type SyncResult struct {
	Success bool   `json:"success"`
	Note    string `json:"note,omitempty"`
	Pushed  int    `json:"pushed"`
	Pulled  int    `json:"pulled"`
	Failed  int    `json:"failed"`
	Error   string `json:"error,omitempty"`
}

// SyncStatus is the process-wide observable sync state. It is owned by the
// orchestrator and written only under its single-flight guard.
type SyncStatus struct {
	LastSyncAt        *time.Time `json:"last_sync_at,omitempty"`
	IsOnline          bool       `json:"is_online"`
	PendingLocalCount int        `json:"pending_local_count"`
	SyncInProgress    bool       `json:"sync_in_progress"`
}

// AuditEntry is one line of the append-only sync audit log.
type AuditEntry struct {
	ID         string     `json:"id"`
	Operation  string     `json:"operation"`
	EntityType EntityType `json:"entity_type"`
	RecordID   string     `json:"record_id"`
	Status     string     `json:"status"`
	Error      string     `json:"error,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}
