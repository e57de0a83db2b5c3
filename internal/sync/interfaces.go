package sync

import (
	"context"

	"github.com/avoronov/go-quiz-sync/internal/connectivity"
	"github.com/avoronov/go-quiz-sync/models"
)

//go:generate mockgen -source=interfaces.go -destination=../mock/sync_mock.go -package=mock

// ConnectivityMonitor is the connectivity surface the engine depends on.
// *connectivity.Monitor satisfies it.
type ConnectivityMonitor interface {
	Initialize(ctx context.Context) error
	Check(ctx context.Context) bool
	ForceCheck(ctx context.Context) bool
	IsOnline() bool
	OnChange(fn connectivity.Listener)
	StartMonitoring(ctx context.Context)
	StopMonitoring()
}

// Seeder supplies the deterministic built-in catalog used when the local
// store is empty and the remote authority is unreachable.
type Seeder interface {
	Snapshot() models.CatalogSnapshot
}
