package postgres

import (
	"context"
	"fmt"

	"github.com/conductorhq/conductor/event"
)

// AppendEvent persists a new event.
func (s *Store) AppendEvent(ctx context.Context, evt *event.Event) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO conductor_events (id, topic, payload, created_at)
		VALUES ($1, $2, $3, $4)`,
		evt.ID.String(), evt.Topic, evt.Payload, evt.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("conductor/postgres: append event: %w", err)
	}
	return nil
}

// ListEvents returns events matching the options, newest first.
func (s *Store) ListEvents(ctx context.Context, opts event.ListOpts) ([]*event.Event, error) {
	query := `SELECT id, topic, payload, created_at FROM conductor_events`
	var args []any

	if opts.Topic != "" {
		args = append(args, opts.Topic)
		query += fmt.Sprintf(" WHERE topic = $%d", len(args))
	}
	query += ` ORDER BY created_at DESC, id DESC`

	if opts.Limit > 0 {
		args = append(args, opts.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("conductor/postgres: list events: %w", err)
	}
	defer rows.Close()

	var out []*event.Event
	for rows.Next() {
		evt, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("conductor/postgres: list events: %w", err)
		}
		out = append(out, evt)
	}
	return out, rows.Err()
}
