// Package eventbus is a process-wide synchronous publish/subscribe relay keyed
// by event name. It moves results from capability screens (barcode scanner,
// contact picker) and OS-level push delivery back into the bridge. There is no
// replay: a listener added after Emit misses that emission — callers needing
// delivery-after-the-fact use the readiness-gated delivery queue instead.
package eventbus

import (
	"fmt"
	"log/slog"
	"sync"
)

const logPrefix = "eventbus:eventbus"

// Event names carried over the bus.
const (
	EventScanResult        = "SCAN_RESULT"
	EventContactPicked     = "CONTACT_PICKED"
	EventPushClicked       = "PUSH_CLICKED"
	EventDeeplinkWeb       = "DEEPLINK_WEB"
	EventWindowChildClosed = "WINDOW_CHILD_CLOSED"
)

// ScanResult is the payload of EventScanResult.
type ScanResult struct {
	ID   string
	Code string
}

// ContactPicked is the payload of EventContactPicked.
type ContactPicked struct {
	ID     string
	Name   string
	Number string
}

// Bus fans out each emission synchronously, in subscription order. A
// panicking listener is recovered and logged so one bad listener cannot break
// delivery to the rest.
type Bus struct {
	mu        sync.Mutex
	listeners map[string][]*subscription
	nextSeq   uint64
}

type subscription struct {
	seq uint64
	fn  func(payload any)
}

// New creates an empty Bus.
func New() *Bus {
	return &Bus{listeners: make(map[string][]*subscription)}
}

// On registers a listener for event and returns its unsubscribe func. The
// unsubscribe func is idempotent.
func (b *Bus) On(event string, fn func(payload any)) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub := &subscription{seq: b.nextSeq, fn: fn}
	b.nextSeq++
	b.listeners[event] = append(b.listeners[event], sub)

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		arr := b.listeners[event]
		for i, s := range arr {
			if s == sub {
				b.listeners[event] = append(arr[:i:i], arr[i+1:]...)
				return
			}
		}
	}
}

// Emit delivers payload to every listener registered for event at call time.
// Delivery iterates over a snapshot, so listeners may subscribe or
// unsubscribe (including themselves) during fan-out without skipping peers.
func (b *Bus) Emit(event string, payload any) {
	b.mu.Lock()
	snapshot := make([]*subscription, len(b.listeners[event]))
	copy(snapshot, b.listeners[event])
	b.mu.Unlock()

	for _, sub := range snapshot {
		func() {
			defer func() {
				if r := recover(); r != nil {
					slog.Error(fmt.Sprintf("%s - listener for %s panicked: %v", logPrefix, event, r))
				}
			}()
			sub.fn(payload)
		}()
	}
}
