package store

import (
	"context"
	"fmt"

	"github.com/avoronov/go-quiz-sync/internal/config"
	"github.com/avoronov/go-quiz-sync/internal/logger"
)

// ClientStorages groups all client-side storage repositories into a single
// value that can be passed around the sync engine.
type ClientStorages struct {
	// Attempts is the SQLite-backed repository for quiz attempt records.
	Attempts AttemptRepository
	// Catalog is the repository for remote-authoritative reference data.
	Catalog CatalogRepository
	// Queue persists pending sync operations across restarts.
	Queue QueueRepository
	// Audit appends to the sync audit log.
	Audit AuditRepository
	// Meta stores small key/value sync state.
	Meta MetaRepository

	db *DB
}

// NewClientStorages initialises the client storage layer using the supplied
// configuration and logger. It performs the following steps:
//  1. Opens an SQLite connection to the file path specified in cfg.DB.DSN,
//     creating the database file if it does not yet exist.
//  2. Runs pending schema migrations via [DB.Migrate].
//  3. Constructs and returns a [ClientStorages] value wired to fresh
//     repositories sharing the connection.
//
// Returns an error if the database connection cannot be established or if
// migration fails.
func NewClientStorages(cfg config.ClientStorage, logger *logger.Logger) (*ClientStorages, error) {
	logger.Info().Msg("creating new storages...")

	db, err := NewConnectSQLite(context.Background(), cfg.DB, logger)
	if err != nil {
		return nil, fmt.Errorf("sqlite connection error: %w", err)
	}

	if err := db.Migrate(); err != nil {
		return nil, fmt.Errorf("migration failed: %w", err)
	}

	return NewClientStoragesFromDB(db, logger), nil
}

// NewClientStoragesFromDB wires repositories around an already-open database.
// Used by tests that supply an in-memory or mocked connection.
func NewClientStoragesFromDB(db *DB, logger *logger.Logger) *ClientStorages {
	return &ClientStorages{
		Attempts: NewAttemptRepository(db, logger),
		Catalog:  NewCatalogRepository(db, logger),
		Queue:    NewQueueRepository(db, logger),
		Audit:    NewAuditRepository(db, logger),
		Meta:     NewMetaRepository(db, logger),
		db:       db,
	}
}

// Checkpoint forces a WAL checkpoint on the underlying database. A storages
// value assembled without a live connection (unit tests with mocked
// repositories) treats this as a no-op.
func (s *ClientStorages) Checkpoint(ctx context.Context) error {
	if s.db == nil {
		return nil
	}
	return s.db.Checkpoint(ctx)
}

// Close closes the underlying database connection.
func (s *ClientStorages) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}
