package events

import (
	"context"
	"testing"
)

func TestNoOpPublisher(t *testing.T) {
	pub := &NoOpPublisher{}
	err := pub.PublishEvent(context.Background(), &BridgeEvent{
		SurfaceID: "surface-1",
		Type:      TypeSurfaceReady,
	})
	if err != nil {
		t.Errorf("expected no error, got %v", err)
	}
}

func TestCallbackPublisher(t *testing.T) {
	var captured *BridgeEvent

	pub := NewCallbackPublisher(func(_ context.Context, event *BridgeEvent) error {
		captured = event
		return nil
	})

	event := &BridgeEvent{
		SurfaceID: "surface-1",
		Type:      TypeTokenIssued,
		Detail:    map[string]string{"osTypeCd": "ANDROID"},
		Timestamp: "2025-01-01T00:00:00Z",
	}

	err := pub.PublishEvent(context.Background(), event)
	if err != nil {
		t.Errorf("expected no error, got %v", err)
	}

	if captured == nil {
		t.Fatal("expected callback to be called")
	}
	if captured.SurfaceID != "surface-1" {
		t.Errorf("expected surface-1, got %s", captured.SurfaceID)
	}
	if captured.Type != TypeTokenIssued {
		t.Errorf("expected %s, got %s", TypeTokenIssued, captured.Type)
	}
}
