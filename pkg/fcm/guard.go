// Package fcm serializes push-token acquisition around the platform
// registration calls, which are not safe to invoke concurrently.
package fcm

import "sync"

// Guard is the non-reentrant in-flight flag serializing token requests. It is
// not a queue: a waiting caller polls until the guard clears, then proceeds.
type Guard struct {
	mu   sync.Mutex
	held bool
}

// TryAcquire takes the guard if free. It never blocks.
func (g *Guard) TryAcquire() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.held {
		return false
	}
	g.held = true
	return true
}

// ForceAcquire takes the guard unconditionally. Used after the bounded poll
// window expires so a stuck holder cannot starve token requests forever.
func (g *Guard) ForceAcquire() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.held = true
}

// Release clears the guard. Safe to call when not held.
func (g *Guard) Release() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.held = false
}

// Held reports the current state.
func (g *Guard) Held() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.held
}
