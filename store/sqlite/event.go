package sqlite

import (
	"context"
	"fmt"

	"github.com/conductorhq/conductor/event"
)

// AppendEvent persists a new event.
func (s *Store) AppendEvent(ctx context.Context, evt *event.Event) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO conductor_events (id, topic, payload, created_at)
		VALUES (?, ?, ?, ?)`,
		evt.ID.String(), evt.Topic, evt.Payload, evt.CreatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("conductor/sqlite: append event: %w", err)
	}
	return nil
}

// ListEvents returns events matching the options, newest first.
func (s *Store) ListEvents(ctx context.Context, opts event.ListOpts) ([]*event.Event, error) {
	query := `SELECT id, topic, payload, created_at FROM conductor_events`
	var args []any

	if opts.Topic != "" {
		query += ` WHERE topic = ?`
		args = append(args, opts.Topic)
	}
	query += ` ORDER BY created_at DESC, id DESC`

	if opts.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, opts.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("conductor/sqlite: list events: %w", err)
	}
	defer rows.Close()

	var out []*event.Event
	for rows.Next() {
		evt, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("conductor/sqlite: list events: %w", err)
		}
		out = append(out, evt)
	}
	return out, rows.Err()
}
