package config

import (
	"flag"
	"strings"
	"time"
)

// ParseFlags parses all configuration flags.
//
// Flags:
//
//	-a remote server address in format [host]:[port] or full URL
//	-d local database DSN (SQLite file path)
//	-t bearer token for the remote server
//	-c/-config json file path with configs
//	-request-timeout request timeout (e.g., "15s", "1m")
//	-periodic-interval periodic sync interval (e.g., "30s")
//	-monitor-interval connectivity monitor interval (e.g., "1m")
//	-check-cooldown connectivity check cooldown (e.g., "5s")
//	-probe-timeout per-probe timeout (e.g., "3s")
//	-probe-endpoints comma-separated connectivity probe URLs
func ParseFlags() *StructuredConfig {
	var serverAddress string
	var databaseDSN string
	var token string
	var jsonConfigPath string
	var requestTimeout time.Duration
	var periodicInterval time.Duration
	var monitorInterval time.Duration
	var checkCooldown time.Duration
	var probeTimeout time.Duration
	var probeEndpoints string

	flag.StringVar(&serverAddress, "a", "", "Remote server address host:port or URL")
	flag.StringVar(&databaseDSN, "d", "", "Local database DSN")
	flag.StringVar(&token, "t", "", "Remote server bearer token")
	flag.StringVar(&jsonConfigPath, "c", "", "JSON config file path")
	flag.StringVar(&jsonConfigPath, "config", "", "JSON config file path (alias)")
	flag.DurationVar(&requestTimeout, "request-timeout", 0, "Request timeout (e.g., 15s, 1m)")
	flag.DurationVar(&periodicInterval, "periodic-interval", 0, "Periodic sync interval (e.g., 30s)")
	flag.DurationVar(&monitorInterval, "monitor-interval", 0, "Connectivity monitor interval (e.g., 1m)")
	flag.DurationVar(&checkCooldown, "check-cooldown", 0, "Connectivity check cooldown (e.g., 5s)")
	flag.DurationVar(&probeTimeout, "probe-timeout", 0, "Per-probe timeout (e.g., 3s)")
	flag.StringVar(&probeEndpoints, "probe-endpoints", "", "Comma-separated connectivity probe URLs")

	flag.Parse()

	return &StructuredConfig{
		Storage: Storage{
			DB: DB{
				DSN: databaseDSN,
			},
		},
		Adapter: Adapter{
			HTTPAddress:    serverAddress,
			RequestTimeout: requestTimeout,
			Token:          token,
		},
		Sync: Sync{
			PeriodicInterval: periodicInterval,
			MonitorInterval:  monitorInterval,
			CheckCooldown:    checkCooldown,
			ProbeTimeout:     probeTimeout,
			ProbeEndpoints:   splitEndpoints(probeEndpoints),
		},
		JSONFilePath: jsonConfigPath,
	}
}

func splitEndpoints(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	endpoints := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			endpoints = append(endpoints, p)
		}
	}
	return endpoints
}
