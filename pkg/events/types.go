// Package events defines event types and publisher interfaces for bridge
// lifecycle events.
package events

// Bridge event types.
const (
	TypeSurfaceReady = "SURFACE_READY"
	TypeChildClosed  = "CHILD_CLOSED"
	TypeTokenIssued  = "TOKEN_ISSUED"
)

// BridgeEvent is emitted when a surface crosses a lifecycle boundary: load
// complete, child window closed, push token issued.
type BridgeEvent struct {
	SurfaceID string `json:"surfaceId"`
	Type      string `json:"type"`
	Detail    any    `json:"detail,omitempty"`
	Timestamp string `json:"timestamp"`
}
