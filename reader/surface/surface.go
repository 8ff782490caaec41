// Package surface hosts the sandboxed rendering side of a document
// session.
//
// A surface is a browser page loaded with one of the embedded renderer
// documents (PDF, EPUB or CBZ). The host drives it exclusively through
// script injection and hears back exclusively through JSON messages;
// Channel wraps that pair as a transport.Channel. Manager owns the
// headless browser process underneath: launch, reuse, recycle after a
// lifetime limit, shutdown.
package surface

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
)

// Config configures the browser Manager.
type Config struct {
	// RemoteURL is the WebSocket URL of an external browser instance.
	// Empty launches a local headless one.
	RemoteURL string

	// RecycleInterval is the maximum lifetime of a browser process
	// before it is replaced. Default: 4h.
	RecycleInterval time.Duration

	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.RecycleInterval <= 0 {
		c.RecycleInterval = 4 * time.Hour
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Manager owns the browser process behind all surfaces.
type Manager struct {
	cfg Config

	mu      sync.RWMutex
	browser *rod.Browser
	lnch    *launcher.Launcher
	startAt time.Time
	closed  bool
}

// NewManager creates a Manager. Call Start to launch the browser.
func NewManager(cfg Config) *Manager {
	cfg.defaults()
	return &Manager{cfg: cfg}
}

// Start launches the browser (or connects to a remote one) and starts
// the lifetime monitor.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return fmt.Errorf("surface: manager is closed")
	}
	if err := m.launchLocked(); err != nil {
		return err
	}
	go m.monitorLoop(ctx)
	return nil
}

// Browser returns the current browser handle, or nil before Start.
func (m *Manager) Browser() *rod.Browser {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.browser
}

// Close shuts the browser down. Open channels fail on their next Send.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.cleanupLocked()
	return nil
}

func (m *Manager) launchLocked() error {
	log := m.cfg.Logger

	wsURL := m.cfg.RemoteURL
	if wsURL == "" {
		l := launcher.New().Headless(true)
		u, err := l.Launch()
		if err != nil {
			return fmt.Errorf("surface: launch: %w", err)
		}
		wsURL = u
		m.lnch = l
		log.Info("surface: launched local browser", "url", wsURL)
	} else {
		log.Info("surface: connecting to remote browser", "url", wsURL)
	}

	b := rod.New().ControlURL(wsURL)
	if err := b.Connect(); err != nil {
		return fmt.Errorf("surface: connect: %w", err)
	}
	m.browser = b
	m.startAt = time.Now()
	return nil
}

func (m *Manager) cleanupLocked() {
	if m.browser != nil {
		m.browser.Close()
		m.browser = nil
	}
	if m.lnch != nil {
		m.lnch.Cleanup()
		m.lnch = nil
	}
}

func (m *Manager) monitorLoop(ctx context.Context) {
	log := m.cfg.Logger
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.mu.Lock()
			if m.closed {
				m.mu.Unlock()
				return
			}
			if time.Since(m.startAt) > m.cfg.RecycleInterval {
				log.Info("surface: recycling browser", "uptime", time.Since(m.startAt))
				m.cleanupLocked()
				if err := m.launchLocked(); err != nil {
					log.Error("surface: relaunch failed", "error", err)
				}
			}
			m.mu.Unlock()
		}
	}
}
