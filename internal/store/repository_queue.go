package store

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/avoronov/go-quiz-sync/internal/logger"
	"github.com/avoronov/go-quiz-sync/models"
)

type queueRepository struct {
	*DB
	logger *logger.Logger
}

func NewQueueRepository(db *DB, logger *logger.Logger) QueueRepository {
	return &queueRepository{
		DB:     db,
		logger: logger,
	}
}

func (r *queueRepository) SaveOperation(ctx context.Context, op models.SyncOperation) error {
	log := logger.FromContext(ctx)

	var payload any
	if len(op.Payload) > 0 {
		payload = string(op.Payload)
	}

	_, err := r.DB.ExecContext(ctx, saveOperation,
		op.ID,
		op.Kind,
		op.EntityType,
		op.RecordID,
		payload,
		op.Tier,
		op.RetryCount,
		op.NextRetryAt,
		op.LastError,
		op.EnqueuedAt,
	)
	if err != nil {
		log.Err(err).
			Str("func", "queueRepository.SaveOperation").
			Str("operation_id", op.ID).
			Str("tier", string(op.Tier)).
			Msg("failed to persist sync operation")
		return fmt.Errorf("failed to save sync operation (id=%s): %w", op.ID, err)
	}

	return nil
}

func (r *queueRepository) DeleteOperation(ctx context.Context, id string) error {
	log := logger.FromContext(ctx)

	res, err := r.DB.ExecContext(ctx, deleteOperation, id)
	if err != nil {
		log.Err(err).
			Str("func", "queueRepository.DeleteOperation").
			Str("operation_id", id).
			Msg("failed to delete sync operation")
		return fmt.Errorf("failed to delete sync operation (id=%s): %w", id, err)
	}

	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return ErrOperationNotFound
	}

	return nil
}

func (r *queueRepository) LoadPending(ctx context.Context) ([]models.SyncOperation, error) {
	log := logger.FromContext(ctx)

	query, args, err := sq.Select(
		"id", "kind", "entity_type", "record_id", "payload",
		"tier", "retry_count", "next_retry_at", "last_error", "enqueued_at",
	).
		From("sync_queue").
		OrderBy("enqueued_at ASC").
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBuildingSQLQuery, err)
	}

	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		log.Err(err).
			Str("func", "queueRepository.LoadPending").
			Msg("failed to query pending operations")
		return nil, fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}
	defer rows.Close()

	var ops []models.SyncOperation
	for rows.Next() {
		var op models.SyncOperation
		var payload *string
		if err = rows.Scan(
			&op.ID,
			&op.Kind,
			&op.EntityType,
			&op.RecordID,
			&payload,
			&op.Tier,
			&op.RetryCount,
			&op.NextRetryAt,
			&op.LastError,
			&op.EnqueuedAt,
		); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrScanningRows, err)
		}
		if payload != nil {
			op.Payload = []byte(*payload)
		}
		ops = append(ops, op)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrScanningRows, err)
	}

	return ops, nil
}

func (r *queueRepository) DeleteAll(ctx context.Context) error {
	if _, err := r.DB.ExecContext(ctx, deleteAllOperations); err != nil {
		return fmt.Errorf("failed to clear sync queue: %w", err)
	}
	return nil
}
