package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/avoronov/go-quiz-sync/internal/logger"
)

const lastSyncKey = "last_sync_at"

type metaRepository struct {
	*DB
	logger *logger.Logger
}

func NewMetaRepository(db *DB, logger *logger.Logger) MetaRepository {
	return &metaRepository{
		DB:     db,
		logger: logger,
	}
}

func (r *metaRepository) LastSyncAt(ctx context.Context) (*time.Time, error) {
	var raw string
	err := r.DB.QueryRowContext(ctx, getMetaValue, lastSyncKey).Scan(&raw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}

	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		// Corrupted value from a prior bug: treat as never-synced and let the
		// next successful pass overwrite it.
		logger.FromContext(ctx).Warn().
			Str("func", "metaRepository.LastSyncAt").
			Str("value", raw).
			Msg("discarding unparsable last sync timestamp")
		return nil, nil
	}

	return &t, nil
}

func (r *metaRepository) SetLastSyncAt(ctx context.Context, t time.Time) error {
	_, err := r.DB.ExecContext(ctx, setMetaValue, lastSyncKey, t.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("failed to store last sync timestamp: %w", err)
	}
	return nil
}
