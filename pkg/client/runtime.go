// Package client is the content-side half of the bridge: it issues
// capability requests over the messaging channel, keeps the pending-request
// table keyed by correlation id, and resolves each entry at most once.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sulbing/appshell/pkg/bridge"
)

const logPrefix = "client:runtime"

// ErrTimeout rejects a call whose native response never arrived within the
// capability's deadline. The native call may still complete afterward; its
// late result finds no pending entry and is dropped.
var ErrTimeout = errors.New("bridge request timed out")

// CallError carries a structured error returned through the response channel.
type CallError struct {
	Detail bridge.ErrorDetail
}

func (e *CallError) Error() string {
	return fmt.Sprintf("bridge call failed: code=%d %s", e.Detail.Code, e.Detail.Message)
}

// Result is one resolved pending entry: the raw response payload or an error.
type Result struct {
	Payload json.RawMessage
	Err     error
}

// Config tunes per-capability deadlines. Zero values use the defaults the
// injected runtime has always shipped with.
type Config struct {
	DefaultTimeout time.Duration
	FcmTimeout     time.Duration
}

func (c Config) withDefaults() Config {
	if c.DefaultTimeout <= 0 {
		c.DefaultTimeout = 10 * time.Second
	}
	if c.FcmTimeout <= 0 {
		c.FcmTimeout = 15 * time.Second
	}
	return c
}

type pendingEntry struct {
	ch    chan Result
	timer *time.Timer
}

// Runtime owns the pending table for one content surface.
type Runtime struct {
	post func([]byte) error
	cfg  Config
	gate *PushScriptGate

	mu    sync.Mutex
	table map[string]*pendingEntry
}

// New builds a runtime posting serialized messages through post.
func New(post func([]byte) error, cfg Config) *Runtime {
	return &Runtime{
		post:  post,
		cfg:   cfg.withDefaults(),
		gate:  &PushScriptGate{},
		table: make(map[string]*pendingEntry),
	}
}

// Gate exposes the push-script suppression gate.
func (r *Runtime) Gate() *PushScriptGate {
	return r.gate
}

// Pending reports the number of outstanding requests, for tests and status.
func (r *Runtime) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.table)
}

// call registers a pending entry, posts the message built for the fresh id,
// and arms the timeout. The returned channel yields exactly one Result.
func (r *Runtime) call(build func(id string) any, timeout time.Duration) <-chan Result {
	id := bridge.NewRequestID()
	entry := &pendingEntry{ch: make(chan Result, 1)}

	r.mu.Lock()
	r.table[id] = entry
	r.mu.Unlock()

	data, err := json.Marshal(build(id))
	if err != nil {
		r.resolve(id, Result{Err: fmt.Errorf("%s - marshal request: %w", logPrefix, err)})
		return entry.ch
	}
	if err := r.post(data); err != nil {
		r.resolve(id, Result{Err: fmt.Errorf("%s - post request: %w", logPrefix, err)})
		return entry.ch
	}

	entry.timer = time.AfterFunc(timeout, func() {
		r.resolve(id, Result{Err: ErrTimeout})
	})
	return entry.ch
}

// resolve completes a pending entry. The entry is removed before the result
// is delivered, so a second writer for the same id is a no-op.
func (r *Runtime) resolve(id string, res Result) {
	r.mu.Lock()
	entry, ok := r.table[id]
	if ok {
		delete(r.table, id)
	}
	r.mu.Unlock()
	if !ok {
		slog.Debug(fmt.Sprintf("%s - dropping response for unknown id %s", logPrefix, id))
		return
	}
	if entry.timer != nil {
		entry.timer.Stop()
	}
	entry.ch <- res
}

// responseEnvelope is the id/error pair every response payload carries.
type responseEnvelope struct {
	ID    string              `json:"id"`
	Error *bridge.ErrorDetail `json:"error,omitempty"`
}

// HandleNative is the native-to-content delivery entry: a response global
// invocation arriving with a payload object. Payloads without a matching
// pending id are silently dropped.
func (r *Runtime) HandleNative(payload []byte) {
	var env responseEnvelope
	if err := json.Unmarshal(payload, &env); err != nil || env.ID == "" {
		slog.Debug(fmt.Sprintf("%s - ignoring unaddressed native payload", logPrefix))
		return
	}
	if env.Error != nil {
		r.resolve(env.ID, Result{Err: &CallError{Detail: *env.Error}})
		return
	}
	r.resolve(env.ID, Result{Payload: append(json.RawMessage(nil), payload...)})
}

// await blocks on a call result or context cancellation.
func await(ctx context.Context, ch <-chan Result) (json.RawMessage, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		return res.Payload, res.Err
	}
}
