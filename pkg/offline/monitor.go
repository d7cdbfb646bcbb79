// Package offline tracks connectivity and content-load failures for a
// surface and drives the blocking retry overlay.
package offline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

const logPrefix = "offline:monitor"

// Connectivity re-checks network reachability on demand. The monitor uses it
// for the background poll and for manual retry, independent of OS events.
type Connectivity interface {
	Fetch(ctx context.Context) (online bool, err error)
}

// Config tunes the monitor. Zero values fall back to defaults.
type Config struct {
	PollInterval time.Duration
	GateWindow   time.Duration
}

func (c Config) withDefaults() Config {
	if c.PollInterval <= 0 {
		c.PollInterval = 5 * time.Second
	}
	if c.GateWindow <= 0 {
		c.GateWindow = 1500 * time.Millisecond
	}
	return c
}

// Monitor holds the two failure flags and recomputes overlay visibility on
// every change. Reload fires exactly once per offline-to-online transition.
type Monitor struct {
	conn    Connectivity
	reload  func()
	overlay func(visible bool)
	cfg     Config

	mu           sync.Mutex
	isOffline    bool
	hadLoadError bool
	gateUntil    time.Time
	shown        bool
	pollCancel   context.CancelFunc
}

// NewMonitor wires a monitor. reload reloads the content surface; overlay is
// notified on every visibility change. Both may be nil.
func NewMonitor(conn Connectivity, reload func(), overlay func(bool), cfg Config) *Monitor {
	return &Monitor{conn: conn, reload: reload, overlay: overlay, cfg: cfg.withDefaults()}
}

// SetOffline feeds an OS connectivity-state event into the monitor.
func (m *Monitor) SetOffline(offline bool) {
	m.mu.Lock()
	wasOffline := m.isOffline
	m.isOffline = offline
	reloadNow := !offline && wasOffline && m.hadLoadError
	if reloadNow {
		m.hadLoadError = false
	}
	m.syncLocked()
	m.mu.Unlock()

	if reloadNow {
		slog.Info(fmt.Sprintf("%s - back online with load error, reloading surface", logPrefix))
		if m.reload != nil {
			m.reload()
		}
	}
}

// NoteLoadError records a content-load failure.
func (m *Monitor) NoteLoadError() {
	m.mu.Lock()
	m.hadLoadError = true
	m.syncLocked()
	m.mu.Unlock()
}

// NoteLoaded records a successful content load, clearing the error flag.
func (m *Monitor) NoteLoaded() {
	m.mu.Lock()
	m.hadLoadError = false
	m.syncLocked()
	m.mu.Unlock()
}

// SuppressOverlay opens the gate window that hides the overlay briefly after
// a deep-link-driven in-place navigation, so a transient load blip does not
// flash the retry screen.
func (m *Monitor) SuppressOverlay() {
	m.mu.Lock()
	m.gateUntil = time.Now().Add(m.cfg.GateWindow)
	m.syncLocked()
	m.mu.Unlock()

	timer := time.AfterFunc(m.cfg.GateWindow, func() {
		m.mu.Lock()
		m.syncLocked()
		m.mu.Unlock()
	})
	_ = timer
}

// NoteDeeplink clears both failure flags and opens the gate window. A
// deep-link delivery is about to navigate the surface in place, so stale
// failures must not block it and a transient load blip during the
// navigation must not flash the retry screen.
func (m *Monitor) NoteDeeplink() {
	m.mu.Lock()
	m.isOffline = false
	m.hadLoadError = false
	m.mu.Unlock()
	m.SuppressOverlay()
}

// Retry is the user-triggered recovery path: re-check connectivity and, when
// online, clear both flags and reload the surface.
func (m *Monitor) Retry(ctx context.Context) {
	online := true
	if m.conn != nil {
		var err error
		if online, err = m.conn.Fetch(ctx); err != nil {
			slog.Warn(fmt.Sprintf("%s - connectivity fetch on retry: %v", logPrefix, err))
			online = false
		}
	}
	m.mu.Lock()
	if online {
		m.isOffline = false
		m.hadLoadError = false
	} else {
		m.isOffline = true
	}
	m.syncLocked()
	m.mu.Unlock()

	if online && m.reload != nil {
		m.reload()
	}
}

// OverlayVisible reports whether the retry overlay is currently shown.
func (m *Monitor) OverlayVisible() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.visibleLocked()
}

// Close stops the background poll.
func (m *Monitor) Close() {
	m.mu.Lock()
	if m.pollCancel != nil {
		m.pollCancel()
		m.pollCancel = nil
	}
	m.mu.Unlock()
}

func (m *Monitor) visibleLocked() bool {
	if !m.isOffline && !m.hadLoadError {
		return false
	}
	return time.Now().After(m.gateUntil)
}

// syncLocked recomputes overlay visibility and manages the background poll.
// Callers hold mu.
func (m *Monitor) syncLocked() {
	visible := m.visibleLocked()
	if visible != m.shown {
		m.shown = visible
		if m.overlay != nil {
			go m.overlay(visible)
		}
	}

	flagged := m.isOffline || m.hadLoadError
	switch {
	case flagged && m.pollCancel == nil && m.conn != nil:
		ctx, cancel := context.WithCancel(context.Background())
		m.pollCancel = cancel
		go m.poll(ctx)
	case !flagged && m.pollCancel != nil:
		m.pollCancel()
		m.pollCancel = nil
	}
}

// poll re-checks connectivity while either flag is set, recovering even when
// no OS connectivity event arrives.
func (m *Monitor) poll(ctx context.Context) {
	ticker := time.NewTicker(m.cfg.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			online, err := m.conn.Fetch(ctx)
			if err != nil {
				slog.Debug(fmt.Sprintf("%s - poll fetch: %v", logPrefix, err))
				continue
			}
			if online {
				m.SetOffline(false)
			}
		}
	}
}
