package hook

import (
	"context"
	"time"

	"github.com/conductorhq/conductor/entry"
	"github.com/conductorhq/conductor/event"
)

// Compile-time interface checks.
var (
	_ Extension         = (*PublisherHook)(nil)
	_ EntryEnqueued     = (*PublisherHook)(nil)
	_ EntryStarted      = (*PublisherHook)(nil)
	_ EntryCompleted    = (*PublisherHook)(nil)
	_ EntryFailed       = (*PublisherHook)(nil)
	_ EntryRetrying     = (*PublisherHook)(nil)
	_ EntryDeadLettered = (*PublisherHook)(nil)
	_ EntryCancelled    = (*PublisherHook)(nil)
	_ ModeChanged       = (*PublisherHook)(nil)
)

// PublisherHook forwards lifecycle events to an event.Publisher using
// the canonical topic names. Publishing is fire-and-forget, so this
// extension never returns an error.
type PublisherHook struct {
	pub event.Publisher
}

// NewPublisherHook creates a hook extension over the given publisher.
func NewPublisherHook(pub event.Publisher) *PublisherHook {
	return &PublisherHook{pub: pub}
}

// Name implements Extension.
func (p *PublisherHook) Name() string { return "event-publisher" }

// entryPayload is the common wire shape for entry lifecycle events.
type entryPayload struct {
	EntryID  string `json:"entry_id"`
	JobID    string `json:"job_id"`
	JobName  string `json:"job_name"`
	Status   string `json:"status"`
	Priority string `json:"priority"`
	Attempt  int    `json:"attempt"`
	Error    string `json:"error,omitempty"`
}

func payloadFor(e *entry.Entry) entryPayload {
	return entryPayload{
		EntryID:  e.ID.String(),
		JobID:    e.JobID,
		JobName:  e.JobName,
		Status:   string(e.Status),
		Priority: string(e.Priority),
		Attempt:  e.Attempt,
		Error:    e.Error,
	}
}

// OnEntryEnqueued implements EntryEnqueued.
func (p *PublisherHook) OnEntryEnqueued(ctx context.Context, e *entry.Entry) error {
	p.pub.Publish(ctx, event.TopicEnqueued, payloadFor(e))
	return nil
}

// OnEntryStarted implements EntryStarted.
func (p *PublisherHook) OnEntryStarted(ctx context.Context, e *entry.Entry) error {
	p.pub.Publish(ctx, event.TopicStarted, payloadFor(e))
	return nil
}

// OnEntryCompleted implements EntryCompleted.
func (p *PublisherHook) OnEntryCompleted(ctx context.Context, e *entry.Entry, _ time.Duration) error {
	p.pub.Publish(ctx, event.TopicCompleted, payloadFor(e))
	return nil
}

// OnEntryFailed implements EntryFailed.
func (p *PublisherHook) OnEntryFailed(ctx context.Context, e *entry.Entry, _ error) error {
	p.pub.Publish(ctx, event.TopicFailed, payloadFor(e))
	return nil
}

// OnEntryRetrying implements EntryRetrying.
func (p *PublisherHook) OnEntryRetrying(ctx context.Context, e *entry.Entry, _ int, _ time.Time) error {
	p.pub.Publish(ctx, event.TopicRetry, payloadFor(e))
	return nil
}

// OnEntryDeadLettered implements EntryDeadLettered.
func (p *PublisherHook) OnEntryDeadLettered(ctx context.Context, e *entry.Entry, _ error) error {
	p.pub.Publish(ctx, event.TopicDeadLetter, payloadFor(e))
	return nil
}

// OnEntryCancelled implements EntryCancelled.
func (p *PublisherHook) OnEntryCancelled(ctx context.Context, e *entry.Entry) error {
	p.pub.Publish(ctx, event.TopicCancelled, payloadFor(e))
	return nil
}

// OnModeChanged implements ModeChanged. The mode string doubles as the
// topic: paused, resumed (active), draining.
func (p *PublisherHook) OnModeChanged(ctx context.Context, mode string) error {
	topic := mode
	if mode == "active" {
		topic = event.TopicResumed
	}
	p.pub.Publish(ctx, topic, map[string]string{"mode": mode})
	return nil
}
