package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/avoronov/go-quiz-sync/internal/logger"
	"github.com/avoronov/go-quiz-sync/models"
)

type attemptRepository struct {
	*DB
	logger *logger.Logger
}

func NewAttemptRepository(db *DB, logger *logger.Logger) AttemptRepository {
	return &attemptRepository{
		DB:     db,
		logger: logger,
	}
}

func (r *attemptRepository) SaveAttempt(ctx context.Context, attempt models.Attempt) error {
	log := logger.FromContext(ctx)

	_, err := r.DB.ExecContext(ctx, saveAttempt,
		attempt.ID,
		attempt.UserID,
		attempt.SubjectID,
		attempt.Answers,
		attempt.Submitted,
		attempt.Score,
		attempt.StartedAt,
		attempt.SubmittedAt,
		attempt.UpdatedAt,
		attempt.Synced,
	)
	if err != nil {
		log.Err(err).
			Str("func", "attemptRepository.SaveAttempt").
			Str("attempt_id", attempt.ID).
			Msg("failed to execute upsert for attempt")
		return fmt.Errorf("failed to save attempt (id=%s): %w", attempt.ID, err)
	}

	return nil
}

func (r *attemptRepository) GetAttempt(ctx context.Context, id string) (models.Attempt, error) {
	log := logger.FromContext(ctx)

	row := r.DB.QueryRowContext(ctx, getAttempt, id)

	attempt, err := scanAttempt(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Attempt{}, ErrAttemptNotFound
		}
		log.Err(err).
			Str("func", "attemptRepository.GetAttempt").
			Str("attempt_id", id).
			Msg("failed to scan attempt row")
		return models.Attempt{}, fmt.Errorf("%w: %w", ErrScanningRow, err)
	}

	return attempt, nil
}

func (r *attemptRepository) GetUnsynced(ctx context.Context, submittedOnly bool, limit int) ([]models.Attempt, error) {
	log := logger.FromContext(ctx)

	// The filter varies per sync tier, so the query is built dynamically.
	builder := sq.Select(
		"id", "user_id", "subject_id", "answers", "submitted", "score",
		"started_at", "submitted_at", "updated_at", "synced",
	).
		From("attempts").
		Where(sq.Eq{"synced": false}).
		OrderBy("updated_at ASC").
		PlaceholderFormat(sq.Dollar)

	if submittedOnly {
		builder = builder.Where(sq.Eq{"submitted": true})
	}
	if limit > 0 {
		builder = builder.Limit(uint64(limit))
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBuildingSQLQuery, err)
	}

	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		log.Err(err).
			Str("func", "attemptRepository.GetUnsynced").
			Bool("submitted_only", submittedOnly).
			Msg("failed to query unsynced attempts")
		return nil, fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}
	defer rows.Close()

	var attempts []models.Attempt
	for rows.Next() {
		attempt, err := scanAttempt(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrScanningRows, err)
		}
		attempts = append(attempts, attempt)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrScanningRows, err)
	}

	return attempts, nil
}

func (r *attemptRepository) MarkSynced(ctx context.Context, id string) error {
	log := logger.FromContext(ctx)

	res, err := r.DB.ExecContext(ctx, markAttemptSynced, id)
	if err != nil {
		log.Err(err).
			Str("func", "attemptRepository.MarkSynced").
			Str("attempt_id", id).
			Msg("failed to mark attempt synced")
		return fmt.Errorf("failed to mark attempt synced (id=%s): %w", id, err)
	}

	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return ErrAttemptNotFound
	}

	return nil
}

func (r *attemptRepository) CountUnsynced(ctx context.Context) (int, error) {
	var count int
	if err := r.DB.QueryRowContext(ctx, countUnsyncedAttempts).Scan(&count); err != nil {
		return 0, fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}
	return count, nil
}

func (r *attemptRepository) RepairTimestamps(ctx context.Context) (int64, error) {
	log := logger.FromContext(ctx)

	res, err := r.DB.ExecContext(ctx, repairAttemptTimestamps)
	if err != nil {
		log.Err(err).
			Str("func", "attemptRepository.RepairTimestamps").
			Msg("failed to repair attempt timestamps")
		return 0, fmt.Errorf("failed to repair attempt timestamps: %w", err)
	}

	repaired, err := res.RowsAffected()
	if err != nil {
		return 0, nil
	}
	if repaired > 0 {
		log.Warn().
			Str("func", "attemptRepository.RepairTimestamps").
			Int64("repaired", repaired).
			Msg("repaired corrupted attempt timestamps")
	}

	return repaired, nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanAttempt(row rowScanner) (models.Attempt, error) {
	var attempt models.Attempt
	err := row.Scan(
		&attempt.ID,
		&attempt.UserID,
		&attempt.SubjectID,
		&attempt.Answers,
		&attempt.Submitted,
		&attempt.Score,
		&attempt.StartedAt,
		&attempt.SubmittedAt,
		&attempt.UpdatedAt,
		&attempt.Synced,
	)
	return attempt, err
}
