// Package event defines the fire-and-forget telemetry sink: lifecycle
// topics, the Event record, and a store-backed Bus. Publish failures are
// logged and swallowed — observability is best-effort by contract and
// must never roll back or block a status transition.
package event

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/conductorhq/conductor/id"
)

// Publisher is the interface the orchestrator publishes through.
// Implementations must be safe for concurrent use and must not return
// errors to the caller — hence no error in the signature.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any)
}

// Bus is a Publisher that persists events to a Store for later audit.
type Bus struct {
	store  Store
	logger *slog.Logger
}

// NewBus creates a store-backed event bus.
func NewBus(store Store, logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{store: store, logger: logger}
}

// Publish serializes the payload and appends the event. Failures are
// logged at Warn and dropped.
func (b *Bus) Publish(ctx context.Context, topic string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		b.logger.Warn("event payload marshal failed",
			slog.String("topic", topic),
			slog.String("error", err.Error()),
		)
		return
	}

	evt := &Event{
		ID:        id.NewEventID(),
		Topic:     topic,
		Payload:   data,
		CreatedAt: time.Now().UTC(),
	}
	if err := b.store.AppendEvent(ctx, evt); err != nil {
		b.logger.Warn("event publish failed",
			slog.String("topic", topic),
			slog.String("error", err.Error()),
		)
	}
}

// Store returns the underlying event store.
func (b *Bus) Store() Store { return b.store }

// Nop is a Publisher that discards everything.
type Nop struct{}

// Publish implements Publisher.
func (Nop) Publish(context.Context, string, any) {}
