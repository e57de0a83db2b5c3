// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Artem Voronov

// Package connectivity tracks whether the remote quiz server is reachable.
//
// The [Monitor] combines a cheap local link check (net.Interfaces) with real
// HTTP probes against configurable endpoints. Probe failures are treated as
// data (offline), never as errors; only Initialize can fail. Registered
// listeners are notified synchronously on genuine online/offline transitions.
package connectivity

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/avoronov/go-quiz-sync/internal/config"
	"github.com/avoronov/go-quiz-sync/internal/logger"
	"github.com/go-resty/resty/v2"
)

// Listener receives the new connectivity state after a genuine transition.
type Listener func(online bool)

// Monitor polls connectivity state and fans transitions out to listeners.
// All methods are safe for concurrent use.
type Monitor struct {
	probeClient  *resty.Client
	endpoints    []string
	probeTimeout time.Duration
	cooldown     time.Duration
	interval     time.Duration

	logger *logger.Logger

	// linkUp reports whether any non-loopback interface is up.
	// Overridable in tests.
	linkUp func() bool

	mu          sync.Mutex
	initialized bool
	online      bool
	lastCheckAt time.Time
	listeners   []Listener

	cancel context.CancelFunc
	done   chan struct{}
}

// NewMonitor builds a Monitor from the sync section of the client config.
// The monitor starts uninitialized and offline; call Initialize before use.
func NewMonitor(syncCfg config.ClientSync, logger *logger.Logger) *Monitor {
	return &Monitor{
		probeClient:  resty.New().SetTimeout(syncCfg.ProbeTimeout),
		endpoints:    append([]string(nil), syncCfg.ProbeEndpoints...),
		probeTimeout: syncCfg.ProbeTimeout,
		cooldown:     syncCfg.CheckCooldown,
		interval:     syncCfg.MonitorInterval,
		logger:       logger,
		linkUp:       anyLinkUp,
	}
}

// Initialize validates the probe configuration and performs the first
// connectivity check, establishing the initial state. It must be called once
// before Check, ForceCheck or StartMonitoring.
func (m *Monitor) Initialize(ctx context.Context) error {
	m.mu.Lock()
	if m.initialized {
		m.mu.Unlock()
		return nil
	}
	if len(m.endpoints) == 0 {
		m.mu.Unlock()
		return fmt.Errorf("connectivity monitor: no probe endpoints configured")
	}
	m.initialized = true
	m.mu.Unlock()

	m.ForceCheck(ctx)
	return nil
}

// Check returns the current connectivity state. Results are cached for the
// configured cooldown window so that bursty callers do not trigger a probe
// storm. Returns false if the monitor is not initialized.
func (m *Monitor) Check(ctx context.Context) bool {
	m.mu.Lock()
	if !m.initialized {
		m.mu.Unlock()
		return false
	}
	if time.Since(m.lastCheckAt) < m.cooldown {
		online := m.online
		m.mu.Unlock()
		return online
	}
	m.mu.Unlock()

	return m.ForceCheck(ctx)
}

// ForceCheck performs a real probe regardless of the cooldown cache, updates
// the stored state, and notifies listeners if the state changed. Returns
// false if the monitor is not initialized.
func (m *Monitor) ForceCheck(ctx context.Context) bool {
	m.mu.Lock()
	if !m.initialized {
		m.mu.Unlock()
		return false
	}
	m.mu.Unlock()

	online := m.probe(ctx)
	m.setOnline(online)
	return online
}

// IsOnline returns the last known state without probing.
func (m *Monitor) IsOnline() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// OnChange registers fn to be called synchronously whenever the connectivity
// state genuinely flips. A panicking listener is recovered and logged; it
// never takes the monitor down.
func (m *Monitor) OnChange(fn Listener) {
	if fn == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, fn)
}

// StartMonitoring launches the background re-check loop. Calling it again
// while a loop is running is a no-op.
func (m *Monitor) StartMonitoring(ctx context.Context) {
	m.mu.Lock()
	if !m.initialized || m.cancel != nil {
		m.mu.Unlock()
		return
	}
	loopCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.done = make(chan struct{})
	done := m.done
	m.mu.Unlock()

	go m.loop(loopCtx, done)
}

// StopMonitoring stops the background loop and waits for it to exit.
// Safe to call when no loop is running.
func (m *Monitor) StopMonitoring() {
	m.mu.Lock()
	cancel := m.cancel
	done := m.done
	m.cancel = nil
	m.done = nil
	m.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (m *Monitor) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.ForceCheck(ctx)
		}
	}
}

// probe determines reachability: a down link short-circuits to offline,
// otherwise any probe endpoint answering with a non-5xx status counts as
// online.
func (m *Monitor) probe(ctx context.Context) bool {
	if m.linkUp != nil && !m.linkUp() {
		return false
	}

	for _, endpoint := range m.endpoints {
		resp, err := m.probeClient.R().SetContext(ctx).Get(endpoint)
		if err != nil {
			m.logger.Debug().Str("endpoint", endpoint).Err(err).Msg("connectivity probe failed")
			continue
		}
		if resp.StatusCode() < http.StatusInternalServerError {
			return true
		}
	}
	return false
}

func (m *Monitor) setOnline(online bool) {
	m.mu.Lock()
	m.lastCheckAt = time.Now()
	changed := m.online != online
	m.online = online
	listeners := append([]Listener(nil), m.listeners...)
	m.mu.Unlock()

	if !changed {
		return
	}

	m.logger.Info().Bool("online", online).Msg("connectivity state changed")
	for _, fn := range listeners {
		m.notify(fn, online)
	}
}

func (m *Monitor) notify(fn Listener, online bool) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error().Interface("panic", r).Msg("connectivity listener panicked")
		}
	}()
	fn(online)
}

func anyLinkUp() bool {
	ifaces, err := net.Interfaces()
	if err != nil {
		// cannot tell locally, let the probes decide
		return true
	}
	for _, iface := range ifaces {
		if iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		if iface.Flags&net.FlagUp != 0 {
			return true
		}
	}
	return false
}
