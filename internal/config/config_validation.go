// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Artem Voronov

package config

// validate checks that the final merged [StructuredConfig] satisfies all
// application invariants before it is used at startup.
//
// Currently a no-op placeholder; cross-source rules live on the client view,
// which is what the runtime actually consumes.
//
// Returns nil if the configuration is valid, or a descriptive error otherwise.
func (cfg *StructuredConfig) validate() error {
	return nil
}

func (cfg *ClientConfig) validate() error {
	if cfg.Storage.DB.DSN == "" {
		return ErrInvalidStorageConfigs
	}

	// An adapter address is optional: the engine degrades to offline-only
	// operation without one. A configured address must carry a timeout.
	if cfg.Adapter.HTTPAddress != "" && cfg.Adapter.RequestTimeout == 0 {
		return ErrInvalidAdapterConfigs
	}

	if cfg.Sync.PeriodicInterval <= 0 || cfg.Sync.CheckCooldown <= 0 ||
		cfg.Sync.ProbeTimeout <= 0 || len(cfg.Sync.ProbeEndpoints) == 0 {
		return ErrInvalidSyncConfigs
	}

	return nil
}
