package events

import (
	"context"
	"testing"
)

func TestNoOpPublisher(t *testing.T) {
	pub := &NoOpPublisher{}
	err := pub.PublishCompleted(context.Background(), &DispatchCompletedEvent{
		ID:      "e1",
		Path:    "/stocks/load",
		Success: true,
	})
	if err != nil {
		t.Errorf("expected no error, got %v", err)
	}
}

func TestCallbackPublisher(t *testing.T) {
	var captured *DispatchCompletedEvent

	pub := NewCallbackPublisher(func(_ context.Context, event *DispatchCompletedEvent) error {
		captured = event
		return nil
	})

	event := &DispatchCompletedEvent{
		ID:         "e1",
		Path:       "/stocks/load",
		Provider:   "fmp",
		Success:    false,
		ErrorCode:  "TIMEOUT",
		Warnings:   1,
		DurationMs: 2000,
		Timestamp:  "2026-01-01T00:00:00Z",
	}

	err := pub.PublishCompleted(context.Background(), event)
	if err != nil {
		t.Errorf("expected no error, got %v", err)
	}

	if captured == nil {
		t.Fatal("expected callback to be called")
	}
	if captured.Path != "/stocks/load" {
		t.Errorf("expected path /stocks/load, got %s", captured.Path)
	}
	if captured.ErrorCode != "TIMEOUT" {
		t.Errorf("expected error code TIMEOUT, got %s", captured.ErrorCode)
	}
}
