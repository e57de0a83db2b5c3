// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Artem Voronov

package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setEnvVars(t *testing.T, envVars map[string]string) {
	t.Helper()
	for k, v := range envVars {
		t.Setenv(k, v)
	}
}

func TestParseEnv_AllFields(t *testing.T) {
	// Arrange
	envVars := map[string]string{
		"CONFIG": "/path/to/config.json",

		"STORAGE_DB_DATABASE_URI": "./quizsync.db",

		"ADAPTER_ADDRESS":         "localhost:8080",
		"ADAPTER_REQUEST_TIMEOUT": "15s",
		"ADAPTER_TOKEN":           "opaque-token",

		"SYNC_PERIODIC_INTERVAL": "30s",
		"SYNC_MONITOR_INTERVAL":  "1m",
		"SYNC_CHECK_COOLDOWN":    "5s",
		"SYNC_PROBE_TIMEOUT":     "3s",
		"SYNC_PROBE_ENDPOINTS":   "https://probe-a.example/ping,https://probe-b.example/ping",
	}
	setEnvVars(t, envVars)

	// Act
	cfg := &StructuredConfig{}
	err := parseEnv(cfg)

	// Assert
	require.NoError(t, err)

	assert.Equal(t, "/path/to/config.json", cfg.JSONFilePath)

	assert.Equal(t, "./quizsync.db", cfg.Storage.DB.DSN)

	assert.Equal(t, "localhost:8080", cfg.Adapter.HTTPAddress)
	assert.Equal(t, 15*time.Second, cfg.Adapter.RequestTimeout)
	assert.Equal(t, "opaque-token", cfg.Adapter.Token)

	assert.Equal(t, 30*time.Second, cfg.Sync.PeriodicInterval)
	assert.Equal(t, time.Minute, cfg.Sync.MonitorInterval)
	assert.Equal(t, 5*time.Second, cfg.Sync.CheckCooldown)
	assert.Equal(t, 3*time.Second, cfg.Sync.ProbeTimeout)
	assert.Equal(t,
		[]string{"https://probe-a.example/ping", "https://probe-b.example/ping"},
		cfg.Sync.ProbeEndpoints)
}

func TestParseEnv_PartialFields(t *testing.T) {
	// Arrange
	envVars := map[string]string{
		"ADAPTER_ADDRESS":         "localhost:8080",
		"STORAGE_DB_DATABASE_URI": "./quizsync.db",
	}
	setEnvVars(t, envVars)

	// Act
	cfg := &StructuredConfig{}
	err := parseEnv(cfg)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, "localhost:8080", cfg.Adapter.HTTPAddress)
	assert.Equal(t, "./quizsync.db", cfg.Storage.DB.DSN)
	assert.Zero(t, cfg.Adapter.RequestTimeout)
	assert.Empty(t, cfg.Sync.ProbeEndpoints)
}

func TestParseEnv_InvalidDuration(t *testing.T) {
	setEnvVars(t, map[string]string{"SYNC_PERIODIC_INTERVAL": "not-a-duration"})

	cfg := &StructuredConfig{}
	err := parseEnv(cfg)

	require.Error(t, err)
}
