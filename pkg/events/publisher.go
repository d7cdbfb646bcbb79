package events

import "context"

// EventPublisher is the interface for publishing bridge lifecycle events.
type EventPublisher interface {
	PublishEvent(ctx context.Context, event *BridgeEvent) error
}

// NoOpPublisher is an EventPublisher that does nothing (for in-process usage without events).
type NoOpPublisher struct{}

// PublishEvent is a no-op.
func (p *NoOpPublisher) PublishEvent(_ context.Context, _ *BridgeEvent) error {
	return nil
}

// CallbackPublisher is an EventPublisher that calls a callback function (for testing).
type CallbackPublisher struct {
	callback func(ctx context.Context, event *BridgeEvent) error
}

// NewCallbackPublisher creates a new CallbackPublisher.
func NewCallbackPublisher(cb func(ctx context.Context, event *BridgeEvent) error) *CallbackPublisher {
	return &CallbackPublisher{callback: cb}
}

// PublishEvent calls the callback.
func (p *CallbackPublisher) PublishEvent(ctx context.Context, event *BridgeEvent) error {
	return p.callback(ctx, event)
}
