package store

import (
	"context"
	"fmt"

	"github.com/avoronov/go-quiz-sync/internal/logger"
	"github.com/avoronov/go-quiz-sync/models"
)

type catalogRepository struct {
	*DB
	logger *logger.Logger
}

func NewCatalogRepository(db *DB, logger *logger.Logger) CatalogRepository {
	return &catalogRepository{
		DB:     db,
		logger: logger,
	}
}

func (r *catalogRepository) IsEmpty(ctx context.Context) (bool, error) {
	var total int
	if err := r.DB.QueryRowContext(ctx, countCatalogRecords).Scan(&total); err != nil {
		return false, fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}
	return total == 0, nil
}

// SaveCatalog upserts the whole snapshot in one transaction so the local
// catalog is never observed half-replaced.
func (r *catalogRepository) SaveCatalog(ctx context.Context, snapshot models.CatalogSnapshot) error {
	log := logger.FromContext(ctx)

	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		log.Err(err).
			Str("func", "catalogRepository.SaveCatalog").
			Msg("failed to begin catalog transaction")
		return fmt.Errorf("%w: %w", ErrBeginningTransaction, err)
	}
	defer tx.Rollback()

	for _, user := range snapshot.Users {
		if _, err = tx.ExecContext(ctx, upsertUser,
			user.ID, user.Login, user.Name, user.Role, user.Active, user.UpdatedAt,
		); err != nil {
			return fmt.Errorf("failed to upsert user (id=%s): %w", user.ID, err)
		}
	}

	for _, subject := range snapshot.Subjects {
		if _, err = tx.ExecContext(ctx, upsertSubject,
			subject.ID, subject.Title, subject.Active, subject.UpdatedAt,
		); err != nil {
			return fmt.Errorf("failed to upsert subject (id=%s): %w", subject.ID, err)
		}
	}

	for _, question := range snapshot.Questions {
		if _, err = tx.ExecContext(ctx, upsertQuestion,
			question.ID, question.SubjectID, question.Text,
			question.Options, question.CorrectOption, question.UpdatedAt,
		); err != nil {
			return fmt.Errorf("failed to upsert question (id=%s): %w", question.ID, err)
		}
	}

	if err = tx.Commit(); err != nil {
		log.Err(err).
			Str("func", "catalogRepository.SaveCatalog").
			Msg("failed to commit catalog transaction")
		return fmt.Errorf("%w: %w", ErrCommitingTransaction, err)
	}

	log.Debug().
		Str("func", "catalogRepository.SaveCatalog").
		Int("users", len(snapshot.Users)).
		Int("subjects", len(snapshot.Subjects)).
		Int("questions", len(snapshot.Questions)).
		Msg("catalog snapshot saved")

	return nil
}
