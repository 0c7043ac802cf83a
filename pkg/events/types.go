// Package events defines the invocation event types and publisher interfaces.
// Each completed dispatch emits one DispatchCompletedEvent so external
// observers can follow the invocation journal without polling it.
package events

// DispatchCompletedEvent is emitted once per completed dispatch.
type DispatchCompletedEvent struct {
	ID         string `json:"id"`
	Path       string `json:"path"`
	Provider   string `json:"provider,omitempty"`
	Success    bool   `json:"success"`
	ErrorCode  string `json:"errorCode,omitempty"`
	Warnings   int    `json:"warnings,omitempty"`
	DurationMs int64  `json:"durationMs"`
	Timestamp  string `json:"timestamp"`
}
