// Package delivery implements the readiness-gated buffer that holds incoming
// push-click and deep-link payloads until a content surface signals it is
// loaded and ready to receive them.
package delivery

import (
	"encoding/json"
	"sync"
)

// Kind distinguishes the two payload families carried by the queue.
type Kind string

const (
	KindPush     Kind = "push"
	KindDeeplink Kind = "deeplink"
)

// Payload is one push-click or deep-link payload destined for the content
// surface. Owned by the queue until handed to the deliver func; consumed
// exactly once. Duplicate payloads are delivered twice — the queue does not
// deduplicate.
type Payload struct {
	Kind     Kind
	Push     json.RawMessage
	Deeplink string
}

// PushPayload wraps an opaque push-click payload.
func PushPayload(raw json.RawMessage) Payload {
	return Payload{Kind: KindPush, Push: raw}
}

// DeeplinkPayload wraps a deep-link payload string.
func DeeplinkPayload(s string) Payload {
	return Payload{Kind: KindDeeplink, Deeplink: s}
}

// BufferedForm renders the payload the way buffered entries have always been
// journaled: push payloads verbatim, deep-links wrapped in a __DL__ object.
func (p Payload) BufferedForm() json.RawMessage {
	if p.Kind == KindPush {
		return p.Push
	}
	data, _ := json.Marshal(map[string]string{"__DL__": p.Deeplink})
	return data
}

// DeliverFunc injects one payload into the content surface.
type DeliverFunc func(Payload)

// Queue is the per-surface two-state machine: Buffering while the surface's
// readiness flag is false, Draining forever after. The transition happens
// exactly once per surface instance, at the load-complete signal.
type Queue struct {
	mu       sync.Mutex
	ready    bool
	draining bool
	buf      []Payload
	deliver  DeliverFunc
}

// NewQueue creates a Buffering queue that hands payloads to deliver once the
// surface is ready.
func NewQueue(deliver DeliverFunc) *Queue {
	return &Queue{deliver: deliver}
}

// Enqueue accepts one payload: buffered in arrival order while Buffering (or
// while a drain is in progress, to preserve ordering), delivered immediately
// once Draining.
func (q *Queue) Enqueue(p Payload) {
	q.mu.Lock()
	if !q.ready || q.draining {
		q.buf = append(q.buf, p)
		q.mu.Unlock()
		return
	}
	q.mu.Unlock()
	q.deliver(p)
}

// MarkReady performs the one-time Buffering→Draining transition: every
// buffered payload is delivered in arrival order, then the buffer is cleared.
// Subsequent calls are no-ops.
func (q *Queue) MarkReady() {
	q.mu.Lock()
	if q.ready {
		q.mu.Unlock()
		return
	}
	q.ready = true
	q.draining = true
	q.mu.Unlock()

	for {
		q.mu.Lock()
		if len(q.buf) == 0 {
			q.draining = false
			q.mu.Unlock()
			return
		}
		p := q.buf[0]
		q.buf = q.buf[1:]
		q.mu.Unlock()
		q.deliver(p)
	}
}

// Ready reports whether the transition has happened.
func (q *Queue) Ready() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.ready
}

// Buffered returns the current buffer length.
func (q *Queue) Buffered() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.buf)
}
