package bunstore

import (
	"context"
	"fmt"

	"github.com/conductorhq/conductor/event"
)

// AppendEvent persists a new event.
func (s *Store) AppendEvent(ctx context.Context, evt *event.Event) error {
	if _, err := s.db.NewInsert().Model(toEventModel(evt)).Exec(ctx); err != nil {
		return fmt.Errorf("conductor/bun: append event: %w", err)
	}
	return nil
}

// ListEvents returns events matching the options, newest first.
func (s *Store) ListEvents(ctx context.Context, opts event.ListOpts) ([]*event.Event, error) {
	var models []eventModel
	q := s.db.NewSelect().Model(&models)

	if opts.Topic != "" {
		q = q.Where("topic = ?", opts.Topic)
	}
	q = q.Order("created_at DESC", "id DESC")
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("conductor/bun: list events: %w", err)
	}

	out := make([]*event.Event, 0, len(models))
	for i := range models {
		evt, convErr := fromEventModel(&models[i])
		if convErr != nil {
			return nil, fmt.Errorf("conductor/bun: list events: %w", convErr)
		}
		out = append(out, evt)
	}
	return out, nil
}
