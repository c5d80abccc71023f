package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/conductorhq/conductor"
	"github.com/conductorhq/conductor/dlq"
	"github.com/conductorhq/conductor/id"
)

// PushDeadLetter adds a quarantined entry snapshot.
func (s *Store) PushDeadLetter(ctx context.Context, d *dlq.Entry) error {
	args, err := deadLetterArgs(d)
	if err != nil {
		return fmt.Errorf("conductor/postgres: push dead letter: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO conductor_dead_letters (`+deadLetterColumns+`)
		VALUES (
			$1, $2, $3, $4, $5, $6,
			$7, $8, $9, $10, $11,
			$12, $13, $14, $15, $16, $17, $18,
			$19, $20, $21, $22
		)`, args...)
	if err != nil {
		return fmt.Errorf("conductor/postgres: push dead letter: %w", err)
	}
	return nil
}

// GetDeadLetter retrieves a dead-letter entry by ID.
func (s *Store) GetDeadLetter(ctx context.Context, dlqID id.DeadLetterID) (*dlq.Entry, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+deadLetterColumns+` FROM conductor_dead_letters WHERE id = $1`,
		dlqID.String(),
	)

	d, err := scanDeadLetter(row)
	if err != nil {
		if isNoRows(err) {
			return nil, conductor.ErrDeadLetterNotFound
		}
		return nil, fmt.Errorf("conductor/postgres: get dead letter: %w", err)
	}
	return d, nil
}

// ListDeadLetters returns dead-letter entries, most recently quarantined
// first.
func (s *Store) ListDeadLetters(ctx context.Context, opts dlq.ListOpts) ([]*dlq.Entry, error) {
	query := `SELECT ` + deadLetterColumns + ` FROM conductor_dead_letters`
	var args []any

	if opts.JobID != "" {
		args = append(args, opts.JobID)
		query += fmt.Sprintf(" WHERE job_id = $%d", len(args))
	}
	query += ` ORDER BY created_at DESC, id DESC`

	if opts.Limit > 0 {
		args = append(args, opts.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if opts.Offset > 0 {
		args = append(args, opts.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("conductor/postgres: list dead letters: %w", err)
	}
	defer rows.Close()

	var out []*dlq.Entry
	for rows.Next() {
		d, err := scanDeadLetter(rows)
		if err != nil {
			return nil, fmt.Errorf("conductor/postgres: list dead letters: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// MarkResubmitted increments RetryCount and stamps ResubmittedAt.
func (s *Store) MarkResubmitted(ctx context.Context, dlqID id.DeadLetterID, at time.Time) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE conductor_dead_letters
		SET retry_count = retry_count + 1, resubmitted_at = $2
		WHERE id = $1`,
		dlqID.String(), at,
	)
	if err != nil {
		return fmt.Errorf("conductor/postgres: mark resubmitted: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return conductor.ErrDeadLetterNotFound
	}
	return nil
}

// PurgeDeadLetters removes dead-letter entries created before the given
// time and returns the number removed.
func (s *Store) PurgeDeadLetters(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM conductor_dead_letters WHERE created_at < $1`, before,
	)
	if err != nil {
		return 0, fmt.Errorf("conductor/postgres: purge dead letters: %w", err)
	}
	return tag.RowsAffected(), nil
}

// CountDeadLetters returns the total number of quarantined entries.
func (s *Store) CountDeadLetters(ctx context.Context) (int64, error) {
	var n int64
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM conductor_dead_letters`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("conductor/postgres: count dead letters: %w", err)
	}
	return n, nil
}
