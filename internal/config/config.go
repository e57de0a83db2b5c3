// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Artem Voronov

package config

import (
	"time"
)

// StructuredConfig is the top-level configuration container for go-quiz-sync.
// It aggregates all sub-configurations and is populated by merging values
// from environment variables, command-line flags, and an optional JSON file.
//
// Struct tags:
//   - envPrefix: prefix applied to all nested env tag lookups (caarlos0/env).
//   - env: direct environment variable name for scalar fields.
type StructuredConfig struct {
	// Storage holds configuration for the local persistence backend.
	Storage Storage `envPrefix:"STORAGE_"`

	// Adapter holds configuration for the remote-server transport.
	Adapter Adapter `envPrefix:"ADAPTER_"`

	// Sync holds connectivity-monitor and sync-scheduling settings.
	Sync Sync `envPrefix:"SYNC_"`

	// JSONFilePath is the optional path to a JSON configuration file.
	// When non-empty, the file is parsed and merged on top of the values
	// already loaded from environment variables and flags.
	// Populated via the CONFIG environment variable or the -c / -config flag.
	JSONFilePath string `env:"CONFIG"`
}

// Storage groups the configuration for the local store.
type Storage struct {
	// DB holds the local database connection settings.
	DB DB `envPrefix:"DB_"`
}

// DB holds connection settings for the local SQLite database.
type DB struct {
	// DSN is the SQLite file path (or DSN) the client opens for its local
	// replica (e.g. "./quizsync.db").
	// Env: STORAGE_DB_DATABASE_URI
	DSN string `env:"DATABASE_URI"`
}

// Adapter holds network settings for the remote authoritative store.
type Adapter struct {
	// HTTPAddress is the base address of the remote sync server,
	// in "host:port" or full URL form.
	// Env: ADAPTER_ADDRESS
	HTTPAddress string `env:"ADDRESS"`

	// RequestTimeout is the maximum duration allowed for a single outbound
	// request before the client cancels it (e.g. "15s", "1m").
	// Env: ADAPTER_REQUEST_TIMEOUT
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT"`

	// Token is the opaque bearer token attached to authenticated requests.
	// Token issuance itself happens outside this application.
	// Env: ADAPTER_TOKEN
	Token string `env:"TOKEN"`
}

// Sync holds connectivity-monitor and scheduling settings for the sync engine.
type Sync struct {
	// PeriodicInterval defines how often the lightweight periodic sync runs
	// while the client is online.
	// Env: SYNC_PERIODIC_INTERVAL
	PeriodicInterval time.Duration `env:"PERIODIC_INTERVAL"`

	// MonitorInterval defines how often the connectivity monitor re-checks
	// network state in the background.
	// Env: SYNC_MONITOR_INTERVAL
	MonitorInterval time.Duration `env:"MONITOR_INTERVAL"`

	// CheckCooldown is the window during which repeated connectivity checks
	// return the cached result instead of re-probing.
	// Env: SYNC_CHECK_COOLDOWN
	CheckCooldown time.Duration `env:"CHECK_COOLDOWN"`

	// ProbeTimeout bounds each individual connectivity probe request.
	// Env: SYNC_PROBE_TIMEOUT
	ProbeTimeout time.Duration `env:"PROBE_TIMEOUT"`

	// ProbeEndpoints are the external URLs probed to confirm connectivity.
	// Any successful probe counts as online.
	// Env: SYNC_PROBE_ENDPOINTS (comma-separated)
	ProbeEndpoints []string `env:"PROBE_ENDPOINTS"`
}

// GetStructuredConfig loads, merges, and validates the application
// configuration from all available sources in the following priority order
// (last source wins for non-zero fields):
//  1. Environment variables
//  2. Command-line flags
//  3. JSON file (path resolved from sources 1 and 2)
//
// Returns a fully populated *StructuredConfig or an error if any source
// fails to load or the final config fails validation.
func GetStructuredConfig() (*StructuredConfig, error) {
	return newConfigBuilder().
		withEnv().
		withFlags().
		withJSON().
		build()
}
