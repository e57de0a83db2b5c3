package store

import (
	"context"
	"fmt"

	"github.com/avoronov/go-quiz-sync/internal/logger"
	"github.com/avoronov/go-quiz-sync/models"
)

type auditRepository struct {
	*DB
	logger *logger.Logger
}

func NewAuditRepository(db *DB, logger *logger.Logger) AuditRepository {
	return &auditRepository{
		DB:     db,
		logger: logger,
	}
}

func (r *auditRepository) Append(ctx context.Context, entry models.AuditEntry) error {
	_, err := r.DB.ExecContext(ctx, appendAuditEntry,
		entry.ID,
		entry.Operation,
		entry.EntityType,
		entry.RecordID,
		entry.Status,
		entry.Error,
		entry.CreatedAt,
	)
	if err != nil {
		// Audit is best-effort: log loudly, but the caller will swallow this.
		logger.FromContext(ctx).Err(err).
			Str("func", "auditRepository.Append").
			Str("record_id", entry.RecordID).
			Msg("failed to append sync audit entry")
		return fmt.Errorf("failed to append audit entry: %w", err)
	}

	return nil
}
