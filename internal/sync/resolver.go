// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Artem Voronov

package sync

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/avoronov/go-quiz-sync/internal/adapter"
	"github.com/avoronov/go-quiz-sync/internal/logger"
	"github.com/avoronov/go-quiz-sync/internal/store"
	"github.com/avoronov/go-quiz-sync/models"
	"github.com/google/uuid"
)

// timestampTolerance absorbs clock and serialisation skew when comparing the
// two sides of a record.
const timestampTolerance = time.Second

// defaultStrategies is the fixed conflict policy table. Attempts are the only
// user-generated entity and get the rich merge; catalog entities are owned by
// the remote authority.
var defaultStrategies = map[models.EntityType]models.ResolutionStrategy{
	models.EntityAttempt:  {EntityType: models.EntityAttempt, Rule: models.RuleMergeData, PreserveUserData: true},
	models.EntityUser:     {EntityType: models.EntityUser, Rule: models.RuleRemoteWins},
	models.EntitySubject:  {EntityType: models.EntitySubject, Rule: models.RuleRemoteWins},
	models.EntityQuestion: {EntityType: models.EntityQuestion, Rule: models.RuleRemoteWins},
}

// Resolver detects divergence between the local and remote versions of a
// record and reconciles it according to the per-entity strategy table.
type Resolver struct {
	attempts store.AttemptRepository
	audit    store.AuditRepository

	strategies map[models.EntityType]models.ResolutionStrategy
	tolerance  time.Duration

	logger *logger.Logger

	now func() time.Time
}

// ResolverOption customises a Resolver. Used by tests to override the
// strategy table.
type ResolverOption func(*Resolver)

// WithStrategies replaces the rule for the listed entity types, leaving the
// defaults in place for the rest.
func WithStrategies(strategies ...models.ResolutionStrategy) ResolverOption {
	return func(r *Resolver) {
		for _, s := range strategies {
			r.strategies[s.EntityType] = s
		}
	}
}

// NewResolver builds a Resolver over the local attempt repository and the
// audit log.
func NewResolver(attempts store.AttemptRepository, audit store.AuditRepository, logger *logger.Logger, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		attempts:   attempts,
		audit:      audit,
		strategies: make(map[models.EntityType]models.ResolutionStrategy, len(defaultStrategies)),
		tolerance:  timestampTolerance,
		logger:     logger,
		now:        time.Now,
	}
	for entityType, strategy := range defaultStrategies {
		r.strategies[entityType] = strategy
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// DetectAttemptConflict compares the local and remote versions of one attempt.
// A nil return means the records need no reconciliation.
//
// Rules, in order: absent side means no conflict; records equivalent on the
// fields that matter for sync mean no conflict; a submitted local silently
// supersedes an unsubmitted remote; two submitted records conflict only when
// their submission timestamps diverge beyond the tolerance; two unsubmitted
// records conflict only when the same question key holds different answers
// (a superset of non-overlapping keys is not a conflict).
func (r *Resolver) DetectAttemptConflict(local, remote *models.Attempt) *models.ConflictRecord {
	if local == nil || remote == nil {
		return nil
	}
	if local.EquivalentForSync(*remote, r.tolerance) {
		return nil
	}

	if local.Submitted && !remote.Submitted {
		return nil
	}

	if local.Submitted && remote.Submitted {
		if timestampPtrsWithin(local.SubmittedAt, remote.SubmittedAt, r.tolerance) {
			return nil
		}
		return r.newConflict(models.EntityAttempt, local, remote, models.ConflictSubmitTimeDivergence)
	}

	if !local.Submitted && !remote.Submitted {
		if _, conflicting := MergeAnswers(local.Answers, remote.Answers); len(conflicting) > 0 {
			return r.newConflict(models.EntityAttempt, local, remote, models.ConflictAnswerDivergence)
		}
		return nil
	}

	// remote submitted, local not: the records disagree on the submitted
	// flag, which resolution must reconcile
	return r.newConflict(models.EntityAttempt, local, remote, models.ConflictTimestampDivergence)
}

// DetectCatalogConflict applies the generic path for remote-authoritative
// entities: a conflict exists whenever the two update timestamps differ by
// more than the tolerance.
func (r *Resolver) DetectCatalogConflict(entityType models.EntityType, recordID string, localUpdatedAt, remoteUpdatedAt time.Time) *models.ConflictRecord {
	if timestampsWithin(localUpdatedAt, remoteUpdatedAt, r.tolerance) {
		return nil
	}
	return &models.ConflictRecord{
		ID:              uuid.NewString(),
		EntityType:      entityType,
		RecordID:        recordID,
		Kind:            models.ConflictTimestampDivergence,
		DetectedAt:      r.now(),
		LocalUpdatedAt:  localUpdatedAt,
		RemoteUpdatedAt: remoteUpdatedAt,
	}
}

// ResolveConflict applies the entity type's strategy to the conflict and
// reports the outcome. Original records are left untouched when a strategy
// cannot be applied. Every resolution, successful or not, is appended to the
// audit log; audit failures are swallowed.
func (r *Resolver) ResolveConflict(ctx context.Context, conflict models.ConflictRecord, remote adapter.RemoteClient) models.ResolutionOutcome {
	strategy, ok := r.strategies[conflict.EntityType]
	if !ok {
		outcome := failedOutcome("", fmt.Errorf("no resolution strategy for entity type %q", conflict.EntityType))
		r.appendAudit(ctx, conflict, outcome)
		return outcome
	}

	outcome := r.applyRule(ctx, strategy.Rule, conflict, remote)
	r.appendAudit(ctx, conflict, outcome)
	return outcome
}

func (r *Resolver) applyRule(ctx context.Context, rule models.ResolutionRule, conflict models.ConflictRecord, remote adapter.RemoteClient) models.ResolutionOutcome {
	switch rule {
	case models.RuleLocalWins:
		return r.resolveLocalWins(ctx, conflict, remote)
	case models.RuleRemoteWins:
		return r.resolveRemoteWins(ctx, conflict)
	case models.RuleTimestampWins:
		if conflict.LocalUpdatedAt.After(conflict.RemoteUpdatedAt) {
			outcome := r.resolveLocalWins(ctx, conflict, remote)
			outcome.Applied = models.RuleTimestampWins
			return outcome
		}
		outcome := r.resolveRemoteWins(ctx, conflict)
		outcome.Applied = models.RuleTimestampWins
		return outcome
	case models.RuleMergeData:
		return r.resolveMergeData(ctx, conflict, remote)
	default:
		return failedOutcome(rule, fmt.Errorf("%w: %q", ErrUnsupportedRule, rule))
	}
}

// resolveLocalWins pushes the local record to the remote store as-is.
func (r *Resolver) resolveLocalWins(ctx context.Context, conflict models.ConflictRecord, remote adapter.RemoteClient) models.ResolutionOutcome {
	if conflict.LocalAttempt == nil {
		return failedOutcome(models.RuleLocalWins, fmt.Errorf("%w: local_wins needs an attempt record", ErrUnsupportedRule))
	}
	if err := remote.SyncAttempt(ctx, *conflict.LocalAttempt); err != nil {
		return failedOutcome(models.RuleLocalWins, fmt.Errorf("push local attempt: %w", err))
	}
	if err := r.attempts.MarkSynced(ctx, conflict.LocalAttempt.ID); err != nil {
		r.logger.Warn().Str("record_id", conflict.LocalAttempt.ID).Err(err).Msg("mark synced after local_wins failed")
	}
	return models.ResolutionOutcome{Applied: models.RuleLocalWins, Success: true}
}

// resolveRemoteWins overwrites the local record from the remote version. For
// catalog entities there is nothing to write here: the next catalog pull
// refreshes the whole table, so the outcome just reports success.
func (r *Resolver) resolveRemoteWins(ctx context.Context, conflict models.ConflictRecord) models.ResolutionOutcome {
	if conflict.EntityType != models.EntityAttempt {
		return models.ResolutionOutcome{Applied: models.RuleRemoteWins, Success: true}
	}
	if conflict.RemoteAttempt == nil {
		return failedOutcome(models.RuleRemoteWins, fmt.Errorf("%w: remote_wins needs the remote attempt", ErrUnsupportedRule))
	}

	accepted := *conflict.RemoteAttempt
	accepted.Synced = true
	if err := r.attempts.SaveAttempt(ctx, accepted); err != nil {
		return failedOutcome(models.RuleRemoteWins, fmt.Errorf("save remote attempt: %w", err))
	}
	return models.ResolutionOutcome{Applied: models.RuleRemoteWins, Success: true}
}

// resolveMergeData reconciles two attempt versions. A submitted side wins
// unconditionally over an unsubmitted one; two submitted versions keep the
// local record because a submitted attempt is immutable truth on the device
// that produced it. Two unsubmitted versions get their answer maps merged
// with local precedence, written locally, then pushed remote.
func (r *Resolver) resolveMergeData(ctx context.Context, conflict models.ConflictRecord, remote adapter.RemoteClient) models.ResolutionOutcome {
	local, remoteAttempt := conflict.LocalAttempt, conflict.RemoteAttempt
	if local == nil || remoteAttempt == nil {
		return failedOutcome(models.RuleMergeData, fmt.Errorf("%w: merge_data needs both attempt versions", ErrUnsupportedRule))
	}

	switch {
	case local.Submitted && !remoteAttempt.Submitted:
		outcome := r.resolveLocalWins(ctx, conflict, remote)
		outcome.Applied = models.RuleMergeData
		return outcome
	case remoteAttempt.Submitted && !local.Submitted:
		outcome := r.resolveRemoteWins(ctx, conflict)
		outcome.Applied = models.RuleMergeData
		return outcome
	case local.Submitted && remoteAttempt.Submitted:
		outcome := r.resolveLocalWins(ctx, conflict, remote)
		outcome.Applied = models.RuleMergeData
		return outcome
	}

	merged, _ := MergeAnswers(local.Answers, remoteAttempt.Answers)

	mergedAttempt := *local
	mergedAttempt.Answers = merged
	mergedAttempt.Synced = false
	if remoteAttempt.UpdatedAt.After(mergedAttempt.UpdatedAt) {
		mergedAttempt.UpdatedAt = remoteAttempt.UpdatedAt
	}

	if err := r.attempts.SaveAttempt(ctx, mergedAttempt); err != nil {
		return failedOutcome(models.RuleMergeData, fmt.Errorf("save merged attempt: %w", err))
	}
	if err := remote.SyncAttempt(ctx, mergedAttempt); err != nil {
		return failedOutcome(models.RuleMergeData, fmt.Errorf("push merged attempt: %w", err))
	}
	if err := r.attempts.MarkSynced(ctx, mergedAttempt.ID); err != nil {
		r.logger.Warn().Str("record_id", mergedAttempt.ID).Err(err).Msg("mark synced after merge failed")
	} else {
		mergedAttempt.Synced = true
	}

	return models.ResolutionOutcome{Applied: models.RuleMergeData, Success: true, Merged: &mergedAttempt}
}

func (r *Resolver) appendAudit(ctx context.Context, conflict models.ConflictRecord, outcome models.ResolutionOutcome) {
	status := "resolved"
	if !outcome.Success {
		status = "failed"
	}
	entry := models.AuditEntry{
		ID:         uuid.NewString(),
		Operation:  string(models.OperationConflictResolution) + ":" + string(outcome.Applied),
		EntityType: conflict.EntityType,
		RecordID:   conflict.RecordID,
		Status:     status,
		Error:      outcome.Error,
		CreatedAt:  r.now(),
	}
	if err := r.audit.Append(ctx, entry); err != nil {
		r.logger.Warn().Str("record_id", conflict.RecordID).Err(err).Msg("append resolution audit failed")
	}
}

func (r *Resolver) newConflict(entityType models.EntityType, local, remote *models.Attempt, kind models.ConflictKind) *models.ConflictRecord {
	return &models.ConflictRecord{
		ID:              uuid.NewString(),
		EntityType:      entityType,
		RecordID:        local.ID,
		Kind:            kind,
		DetectedAt:      r.now(),
		LocalAttempt:    local,
		RemoteAttempt:   remote,
		LocalUpdatedAt:  local.UpdatedAt,
		RemoteUpdatedAt: remote.UpdatedAt,
	}
}

// MergeAnswers unions two answer maps with local precedence on overlapping
// keys. The second return value lists the keys, sorted, where the two maps
// hold different answers.
func MergeAnswers(local, remote models.AnswerMap) (models.AnswerMap, []string) {
	merged := remote.Clone()
	if merged == nil {
		merged = models.AnswerMap{}
	}

	var conflicting []string
	for key, localValue := range local {
		if remoteValue, ok := merged[key]; ok && remoteValue != localValue {
			conflicting = append(conflicting, key)
		}
		merged[key] = localValue
	}
	sort.Strings(conflicting)
	return merged, conflicting
}

func failedOutcome(rule models.ResolutionRule, err error) models.ResolutionOutcome {
	return models.ResolutionOutcome{Applied: rule, Success: false, Error: err.Error()}
}

func timestampsWithin(a, b time.Time, tolerance time.Duration) bool {
	diff := a.Sub(b)
	if diff < 0 {
		diff = -diff
	}
	return diff <= tolerance
}

func timestampPtrsWithin(a, b *time.Time, tolerance time.Duration) bool {
	if a == nil || b == nil {
		return a == b
	}
	return timestampsWithin(*a, *b, tolerance)
}
