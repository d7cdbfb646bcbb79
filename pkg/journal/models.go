package journal

import (
	"encoding/json"
	"time"
)

// Delivery states.
const (
	StateBuffered  = "buffered"
	StateDelivered = "delivered"
)

// Delivery is a row in the bridge_deliveries table: one push-click or
// deep-link payload and what the shell did with it.
type Delivery struct {
	ID          string          `json:"id"`
	SurfaceID   string          `json:"surface_id"`
	Kind        string          `json:"kind"`
	Payload     json.RawMessage `json:"payload"`
	State       string          `json:"state"`
	Created     time.Time       `json:"created"`
	DeliveredAt *time.Time      `json:"delivered_at,omitempty"`
}
