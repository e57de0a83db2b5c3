package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/avoronov/go-quiz-sync/internal/logger"
	"github.com/avoronov/go-quiz-sync/migrations"
)

type DB struct {
	*sql.DB
	logger *logger.Logger
}

func (db *DB) Migrate() error {
	return migrations.Migrate(db.DB)
}

// Checkpoint forces a WAL checkpoint so all committed local writes are in the
// main database file before a critical sync pass (quiz submission, app close).
func (db *DB) Checkpoint(ctx context.Context) error {
	if _, err := db.ExecContext(ctx, `PRAGMA wal_checkpoint(TRUNCATE);`); err != nil {
		return fmt.Errorf("wal checkpoint: %w", err)
	}
	return nil
}
