package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/avoronov/go-quiz-sync/internal/adapter"
	"github.com/avoronov/go-quiz-sync/internal/config"
	"github.com/avoronov/go-quiz-sync/internal/connectivity"
	"github.com/avoronov/go-quiz-sync/internal/logger"
	"github.com/avoronov/go-quiz-sync/internal/seed"
	"github.com/avoronov/go-quiz-sync/internal/store"
	"github.com/avoronov/go-quiz-sync/internal/sync"
)

var (
	buildVersion string
	buildDate    string
	buildCommit  string
)

func main() {
	printBuildInfo()

	log := logger.NewClientLogger("quiz-sync-client")
	cfg, err := config.GetClientConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("error getting configs")
	}

	storages, err := store.NewClientStorages(cfg.Storage, log)
	if err != nil {
		log.Fatal().Err(err).Msg("create local storage")
	}

	// without a remote address the engine runs fully offline against the
	// local replica
	var remote adapter.RemoteClient
	if cfg.Adapter.HTTPAddress != "" {
		remote, err = adapter.NewHTTPRemoteClient(cfg.Adapter, log)
		if err != nil {
			log.Fatal().Err(err).Msg("create remote client")
		}
	}

	engine := sync.NewEngine(sync.EngineOptions{
		Storages:         storages,
		Remote:           remote,
		Monitor:          connectivity.NewMonitor(cfg.Sync, log),
		Seeder:           seed.New(),
		Logger:           log,
		PeriodicInterval: cfg.Sync.PeriodicInterval,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err = engine.Initialize(ctx); err != nil {
		log.Fatal().Err(err).Msg("init sync engine error")
	}

	<-ctx.Done()
	log.Info().Msg("shutdown signal received")

	if err = engine.Cleanup(context.Background()); err != nil {
		log.Error().Err(err).Msg("sync engine cleanup error")
	}
}

func printBuildInfo() {
	if buildVersion == "" {
		buildVersion = "N/A"
	}
	if buildDate == "" {
		buildDate = "N/A"
	}
	if buildCommit == "" {
		buildCommit = "N/A"
	}

	fmt.Printf("Build version: %s\n", buildVersion)
	fmt.Printf("Build date: %s\n", buildDate)
	fmt.Printf("Build commit: %s\n", buildCommit)
}
