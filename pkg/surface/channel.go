package surface

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/gorilla/websocket"
)

const logPrefix = "surface:channel"

// Frame kinds on the surface messaging channel. Native writes eval, reload
// and navigate; the surface writes event and message.
const (
	FrameEval     = "eval"
	FrameReload   = "reload"
	FrameNavigate = "navigate"
	FrameEvent    = "event"
	FrameMessage  = "message"
)

// Surface lifecycle events carried in event frames.
const (
	EventLoaded    = "loaded"
	EventLoadError = "loadError"
	EventNavState  = "navState"
	EventTitle     = "title"
)

// Frame is one JSON frame on the channel.
type Frame struct {
	Kind      string          `json:"kind"`
	Script    string          `json:"script,omitempty"`
	URL       string          `json:"url,omitempty"`
	Event     string          `json:"event,omitempty"`
	CanGoBack bool            `json:"canGoBack,omitempty"`
	Title     string          `json:"title,omitempty"`
	Body      json.RawMessage `json:"body,omitempty"`
}

// Handler receives the surface's inbound traffic. OnMessage gets raw bridge
// message JSON for the router; the rest are lifecycle signals.
type Handler interface {
	OnLoaded()
	OnLoadError()
	OnNavState(canGoBack bool)
	OnTitle(title string)
	OnMessage(raw []byte)
}

// Channel is the websocket-backed Sender for one surface connection. Writes
// are serialized by a mutex since gorilla allows one concurrent writer.
type Channel struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

// NewChannel wraps an upgraded connection.
func NewChannel(conn *websocket.Conn) *Channel {
	return &Channel{conn: conn}
}

func (c *Channel) write(f Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(f)
}

// Eval sends a script for the surface to execute. Fire-and-forget.
func (c *Channel) Eval(script string) error {
	return c.write(Frame{Kind: FrameEval, Script: script})
}

// Reload asks the surface to reload its content.
func (c *Channel) Reload() error {
	return c.write(Frame{Kind: FrameReload})
}

// Navigate points the surface at a new URL in place.
func (c *Channel) Navigate(target string) error {
	return c.write(Frame{Kind: FrameNavigate, URL: target})
}

// Close tears the connection down.
func (c *Channel) Close() error {
	return c.conn.Close()
}

// ReadLoop pumps inbound frames until the connection or ctx ends. Malformed
// frames are dropped with a debug log, never surfaced.
func (c *Channel) ReadLoop(ctx context.Context, h Handler) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("%s - read: %w", logPrefix, err)
		}
		var f Frame
		if err := json.Unmarshal(data, &f); err != nil {
			slog.Debug(fmt.Sprintf("%s - dropping malformed frame: %v", logPrefix, err))
			continue
		}
		switch f.Kind {
		case FrameEvent:
			switch f.Event {
			case EventLoaded:
				h.OnLoaded()
			case EventLoadError:
				h.OnLoadError()
			case EventNavState:
				h.OnNavState(f.CanGoBack)
			case EventTitle:
				h.OnTitle(f.Title)
			default:
				slog.Debug(fmt.Sprintf("%s - unknown event %q", logPrefix, f.Event))
			}
		case FrameMessage:
			h.OnMessage(f.Body)
		default:
			slog.Debug(fmt.Sprintf("%s - unknown frame kind %q", logPrefix, f.Kind))
		}
	}
}
