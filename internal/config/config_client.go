package config

import (
	"fmt"
	"time"
)

// ClientAdapter holds network settings used by the client transport layer.
type ClientAdapter struct {
	// HTTPAddress is the HTTP endpoint address of the remote server.
	HTTPAddress string
	// RequestTimeout is the default timeout for outbound client requests.
	RequestTimeout time.Duration
	// Token is the opaque bearer token for authenticated requests.
	Token string
}

// ClientDB contains local database connection settings for the client.
type ClientDB struct {
	// DSN is the SQLite connection string used by the client.
	DSN string
}

// ClientStorage groups client storage backend settings.
type ClientStorage struct {
	// DB holds local database settings.
	DB ClientDB
}

// ClientSync contains sync-engine scheduling and connectivity settings.
type ClientSync struct {
	// PeriodicInterval defines how often the periodic sync trigger fires.
	PeriodicInterval time.Duration
	// MonitorInterval defines how often connectivity is re-checked.
	MonitorInterval time.Duration
	// CheckCooldown caches connectivity results for this window.
	CheckCooldown time.Duration
	// ProbeTimeout bounds each connectivity probe request.
	ProbeTimeout time.Duration
	// ProbeEndpoints are the external URLs used to confirm connectivity.
	ProbeEndpoints []string
}

// ClientConfig is the top-level client configuration assembled from
// [StructuredConfig].
type ClientConfig struct {
	// Adapter contains remote transport address, token, and timeouts.
	Adapter ClientAdapter
	// Storage contains local storage settings.
	Storage ClientStorage
	// Sync contains sync scheduling and connectivity settings.
	Sync ClientSync
}

// Defaults applied by GetClientConfig for fields left unset by all sources.
const (
	defaultRequestTimeout   = 15 * time.Second
	defaultPeriodicInterval = 30 * time.Second
	defaultMonitorInterval  = time.Minute
	defaultCheckCooldown    = 5 * time.Second
	defaultProbeTimeout     = 3 * time.Second
)

var defaultProbeEndpoints = []string{
	"https://clients3.google.com/generate_204",
	"https://www.cloudflare.com/cdn-cgi/trace",
}

// GetClientConfig builds and validates a client-specific config view from the
// merged structured configuration.
//
// It loads the base config via [GetStructuredConfig], maps only the fields
// relevant to the client runtime, fills in defaults for unset scheduling
// values, and validates the resulting [ClientConfig].
func GetClientConfig() (*ClientConfig, error) {
	cfg, err := GetStructuredConfig()
	if err != nil {
		return nil, fmt.Errorf("error get structured config: %w", err)
	}

	clientCfg := &ClientConfig{
		Adapter: ClientAdapter{
			HTTPAddress:    cfg.Adapter.HTTPAddress,
			RequestTimeout: cfg.Adapter.RequestTimeout,
			Token:          cfg.Adapter.Token,
		},
		Storage: ClientStorage{
			DB: ClientDB{
				DSN: cfg.Storage.DB.DSN,
			},
		},
		Sync: ClientSync{
			PeriodicInterval: cfg.Sync.PeriodicInterval,
			MonitorInterval:  cfg.Sync.MonitorInterval,
			CheckCooldown:    cfg.Sync.CheckCooldown,
			ProbeTimeout:     cfg.Sync.ProbeTimeout,
			ProbeEndpoints:   cfg.Sync.ProbeEndpoints,
		},
	}
	clientCfg.applyDefaults()

	return clientCfg, clientCfg.validate()
}

func (cfg *ClientConfig) applyDefaults() {
	if cfg.Adapter.RequestTimeout == 0 {
		cfg.Adapter.RequestTimeout = defaultRequestTimeout
	}
	if cfg.Sync.PeriodicInterval == 0 {
		cfg.Sync.PeriodicInterval = defaultPeriodicInterval
	}
	if cfg.Sync.MonitorInterval == 0 {
		cfg.Sync.MonitorInterval = defaultMonitorInterval
	}
	if cfg.Sync.CheckCooldown == 0 {
		cfg.Sync.CheckCooldown = defaultCheckCooldown
	}
	if cfg.Sync.ProbeTimeout == 0 {
		cfg.Sync.ProbeTimeout = defaultProbeTimeout
	}
	if len(cfg.Sync.ProbeEndpoints) == 0 {
		cfg.Sync.ProbeEndpoints = append([]string(nil), defaultProbeEndpoints...)
	}
}
