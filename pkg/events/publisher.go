package events

import "context"

// EventPublisher is the interface for publishing dispatch completion events.
type EventPublisher interface {
	PublishCompleted(ctx context.Context, event *DispatchCompletedEvent) error
}

// NoOpPublisher is an EventPublisher that does nothing (for in-process usage
// without events).
type NoOpPublisher struct{}

// PublishCompleted is a no-op.
func (p *NoOpPublisher) PublishCompleted(_ context.Context, _ *DispatchCompletedEvent) error {
	return nil
}

// CallbackPublisher is an EventPublisher that calls a callback function
// (for testing).
type CallbackPublisher struct {
	callback func(ctx context.Context, event *DispatchCompletedEvent) error
}

// NewCallbackPublisher creates a new CallbackPublisher.
func NewCallbackPublisher(cb func(ctx context.Context, event *DispatchCompletedEvent) error) *CallbackPublisher {
	return &CallbackPublisher{callback: cb}
}

// PublishCompleted calls the callback.
func (p *CallbackPublisher) PublishCompleted(ctx context.Context, event *DispatchCompletedEvent) error {
	return p.callback(ctx, event)
}
