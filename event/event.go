package event

import (
	"time"

	"github.com/conductorhq/conductor/id"
)

// Lifecycle topics published by the orchestrator.
const (
	TopicEnqueued   = "enqueued"
	TopicStarted    = "started"
	TopicCompleted  = "completed"
	TopicFailed     = "failed"
	TopicRetry      = "retry"
	TopicDeadLetter = "dead-letter"
	TopicCancelled  = "cancelled"
	TopicPaused     = "paused"
	TopicResumed    = "resumed"
	TopicDraining   = "draining"
)

// Event is a persisted telemetry record. Publishing is fire-and-forget:
// a failed publish is logged and dropped, never allowed to affect queue
// correctness.
type Event struct {
	ID        id.EventID `json:"id"`
	Topic     string     `json:"topic"`
	Payload   []byte     `json:"payload,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}
