package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validClientConfig() *ClientConfig {
	cfg := &ClientConfig{
		Adapter: ClientAdapter{HTTPAddress: "localhost:8080"},
		Storage: ClientStorage{DB: ClientDB{DSN: "./quizsync.db"}},
	}
	cfg.applyDefaults()
	return cfg
}

func TestClientConfigValidate_OK(t *testing.T) {
	require.NoError(t, validClientConfig().validate())
}

func TestClientConfigValidate_NoAdapterAddressIsAllowed(t *testing.T) {
	// Offline-only operation: the engine runs without a remote server.
	cfg := validClientConfig()
	cfg.Adapter.HTTPAddress = ""
	require.NoError(t, cfg.validate())
}

func TestClientConfigValidate_EmptyDSN(t *testing.T) {
	cfg := validClientConfig()
	cfg.Storage.DB.DSN = ""
	assert.ErrorIs(t, cfg.validate(), ErrInvalidStorageConfigs)
}

func TestClientConfigValidate_AdapterWithoutTimeout(t *testing.T) {
	cfg := validClientConfig()
	cfg.Adapter.RequestTimeout = 0
	assert.ErrorIs(t, cfg.validate(), ErrInvalidAdapterConfigs)
}

func TestClientConfigValidate_BadSyncSettings(t *testing.T) {
	cfg := validClientConfig()
	cfg.Sync.ProbeEndpoints = nil
	assert.ErrorIs(t, cfg.validate(), ErrInvalidSyncConfigs)
}

func TestApplyDefaults(t *testing.T) {
	cfg := &ClientConfig{}
	cfg.applyDefaults()

	assert.Equal(t, 30*time.Second, cfg.Sync.PeriodicInterval)
	assert.Equal(t, 5*time.Second, cfg.Sync.CheckCooldown)
	assert.Equal(t, 3*time.Second, cfg.Sync.ProbeTimeout)
	assert.Equal(t, time.Minute, cfg.Sync.MonitorInterval)
	assert.Equal(t, 15*time.Second, cfg.Adapter.RequestTimeout)
	assert.NotEmpty(t, cfg.Sync.ProbeEndpoints)
}
