package event

import "context"

// ListOpts controls pagination and filtering for event queries.
type ListOpts struct {
	// Limit is the maximum number of events to return. Zero means no limit.
	Limit int
	// Topic filters by topic. Empty means all topics.
	Topic string
}

// Store defines the persistence contract for events.
type Store interface {
	// AppendEvent persists a new event.
	AppendEvent(ctx context.Context, evt *Event) error

	// ListEvents returns events matching the options, newest first.
	ListEvents(ctx context.Context, opts ListOpts) ([]*Event, error)
}
