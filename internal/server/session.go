package server

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sulbing/appshell/pkg/delivery"
	"github.com/sulbing/appshell/pkg/events"
	"github.com/sulbing/appshell/pkg/journal"
	"github.com/sulbing/appshell/pkg/offline"
	"github.com/sulbing/appshell/pkg/router"
	"github.com/sulbing/appshell/pkg/surface"
)

const sessionLogPrefix = "server:session"

// session ties one surface connection to its delivery queue, offline monitor,
// and the shared router. It is the surface.Handler for the connection's read
// loop.
type session struct {
	ctx      context.Context
	inst     *surface.Instance
	ch       *surface.Channel
	queue    *delivery.Queue
	monitor  *offline.Monitor
	rt       *router.Router
	recorder journal.Recorder
	pub      events.EventPublisher

	// enqMu serializes enqueue so the token FIFO matches delivery order;
	// mu alone guards the token slice (deliver runs inside Enqueue once
	// the queue is draining, so it cannot share enqueue's lock).
	enqMu  sync.Mutex
	mu     sync.Mutex
	tokens []string
}

// newSession wires a session around an upgraded connection. conn is the
// connectivity probe for the offline monitor; overlay pushes overlay
// visibility to the host screen layer.
func newSession(ctx context.Context, ch *surface.Channel, rawURL string, rt *router.Router,
	conn offline.Connectivity, overlay func(surfaceID string, visible bool),
	recorder journal.Recorder, pub events.EventPublisher, pollInterval time.Duration) *session {

	s := &session{
		ctx:      ctx,
		ch:       ch,
		rt:       rt,
		recorder: recorder,
		pub:      pub,
	}
	s.inst = surface.NewInstance(rawURL, ch)
	s.queue = delivery.NewQueue(s.deliver)
	s.monitor = offline.NewMonitor(conn,
		func() {
			if err := s.inst.Reload(); err != nil {
				slog.Warn(fmt.Sprintf("%s - reload: %v", sessionLogPrefix, err))
			}
		},
		func(visible bool) { overlay(s.inst.ID(), visible) },
		offline.Config{PollInterval: pollInterval})
	return s
}

// enqueue journals and queues one payload for this surface.
func (s *session) enqueue(p delivery.Payload) {
	s.enqMu.Lock()
	defer s.enqMu.Unlock()
	token := s.recorder.Buffered(s.inst.ID(), string(p.Kind), p.BufferedForm())
	s.mu.Lock()
	s.tokens = append(s.tokens, token)
	s.mu.Unlock()
	s.queue.Enqueue(p)
}

// deliver injects one payload into the surface and settles its journal entry.
func (s *session) deliver(p delivery.Payload) {
	var script string
	switch p.Kind {
	case delivery.KindPush:
		script = surface.PushHandlerScript(p.Push)
	case delivery.KindDeeplink:
		script = surface.DeeplinkScript(p.Deeplink)
	default:
		return
	}
	if err := s.inst.Eval(script); err != nil {
		slog.Warn(fmt.Sprintf("%s - deliver %s: %v", sessionLogPrefix, p.Kind, err))
	}

	var token string
	s.mu.Lock()
	if len(s.tokens) > 0 {
		token = s.tokens[0]
		s.tokens = s.tokens[1:]
	}
	s.mu.Unlock()
	s.recorder.Delivered(token)
}

// close tears the session down after its read loop exits.
func (s *session) close() {
	s.monitor.Close()
}

// OnLoaded runs the one-time ready transition: bootstrap injection, queue
// drain, ready event. Every load completion clears the offline monitor and
// re-installs the fallback handleDeeplink, since an in-page navigation wipes
// whatever the previous document defined.
func (s *session) OnLoaded() {
	s.monitor.NoteLoaded()
	if err := s.inst.Eval(surface.DeeplinkFallbackScript()); err != nil {
		slog.Debug(fmt.Sprintf("%s - deeplink fallback inject: %v", sessionLogPrefix, err))
	}
	if !s.inst.MarkReady() {
		return
	}
	if err := s.inst.Eval(surface.BootstrapScript()); err != nil {
		slog.Warn(fmt.Sprintf("%s - bootstrap inject: %v", sessionLogPrefix, err))
	}
	s.queue.MarkReady()
	if err := s.pub.PublishEvent(s.ctx, &events.BridgeEvent{
		SurfaceID: s.inst.ID(),
		Type:      events.TypeSurfaceReady,
		Detail:    map[string]string{"url": s.inst.URL()},
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}); err != nil {
		slog.Warn(fmt.Sprintf("%s - publish ready event: %v", sessionLogPrefix, err))
	}
}

func (s *session) OnLoadError() {
	s.monitor.NoteLoadError()
}

func (s *session) OnNavState(canGoBack bool) {
	s.inst.SetCanGoBack(canGoBack)
}

func (s *session) OnTitle(title string) {
	s.inst.SetTitle(title)
}

func (s *session) OnMessage(raw []byte) {
	s.rt.HandleMessage(s.ctx, s.inst, raw)
}

// sessions is the stack of live surface connections, most recent last.
// Inbound OS traffic (push clicks, deep links, back presses) targets the top.
type sessions struct {
	mu    sync.Mutex
	stack []*session
}

func (ss *sessions) push(s *session) {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	ss.stack = append(ss.stack, s)
}

func (ss *sessions) remove(s *session) {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	for i, cur := range ss.stack {
		if cur == s {
			ss.stack = append(ss.stack[:i], ss.stack[i+1:]...)
			return
		}
	}
}

// top returns the most recent live session, or nil.
func (ss *sessions) top() *session {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	if len(ss.stack) == 0 {
		return nil
	}
	return ss.stack[len(ss.stack)-1]
}

func (ss *sessions) all() []*session {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	out := make([]*session, len(ss.stack))
	copy(out, ss.stack)
	return out
}

// surfaceStatus is one row on the status page.
type surfaceStatus struct {
	ID        string `json:"id"`
	URL       string `json:"url"`
	Title     string `json:"title"`
	Ready     bool   `json:"ready"`
	CanGoBack bool   `json:"canGoBack"`
	NoHeader  bool   `json:"noHeader"`
	Buffered  int    `json:"buffered"`
	Offline   bool   `json:"offline"`
}

func (ss *sessions) statuses() []surfaceStatus {
	live := ss.all()
	out := make([]surfaceStatus, 0, len(live))
	for _, s := range live {
		out = append(out, surfaceStatus{
			ID:        s.inst.ID(),
			URL:       s.inst.URL(),
			Title:     s.inst.Title(),
			Ready:     s.inst.Ready(),
			CanGoBack: s.inst.CanGoBack(),
			NoHeader:  s.inst.NoHeader(),
			Buffered:  s.queue.Buffered(),
			Offline:   s.monitor.OverlayVisible(),
		})
	}
	return out
}
