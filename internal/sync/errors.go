package sync

import "errors"

var (
	// ErrNotInitialized is returned when the engine API is used before
	// Initialize has completed.
	ErrNotInitialized = errors.New("sync engine not initialized")
	// ErrSyncInProgress reports that another sync pass is already running.
	ErrSyncInProgress = errors.New("sync already in progress")
	// ErrProcessInProgress reports that a queue drain is already running.
	ErrProcessInProgress = errors.New("queue processing already in progress")
	// ErrNoRemoteClient is returned when online work is requested but no
	// remote client was configured.
	ErrNoRemoteClient = errors.New("no remote client configured")
	// ErrUnknownTrigger is returned for a trigger kind outside the known set.
	ErrUnknownTrigger = errors.New("unknown sync trigger")
	// ErrUnsupportedRule is returned when a resolution rule cannot be applied
	// to the conflict's entity type.
	ErrUnsupportedRule = errors.New("unsupported resolution rule for entity type")
)
