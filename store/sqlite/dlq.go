package sqlite

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
		return fmt.Errorf("conductor/sqlite: push dead letter: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO conductor_dead_letters (`+deadLetterColumns+`)
		VALUES (
			?, ?, ?, ?, ?, ?,
			?, ?, ?, ?, ?,
			?, ?, ?, ?, ?, ?, ?,
			?, ?, ?, ?
		)`, args...)
	if err != nil {
		return fmt.Errorf("conductor/sqlite: push dead letter: %w", err)
	}
	return nil
}

// GetDeadLetter retrieves a dead-letter entry by ID.
func (s *Store) GetDeadLetter(ctx context.Context, dlqID id.DeadLetterID) (*dlq.Entry, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+deadLetterColumns+` FROM conductor_dead_letters WHERE id = ?`,
		dlqID.String(),
	)

	d, err := scanDeadLetter(row)
	if err != nil {
		if isNoRows(err) {
			return nil, conductor.ErrDeadLetterNotFound
		}
		return nil, fmt.Errorf("conductor/sqlite: get dead letter: %w", err)
	}
	return d, nil
}

// ListDeadLetters returns dead-letter entries, most recently quarantined
// first.
func (s *Store) ListDeadLetters(ctx context.Context, opts dlq.ListOpts) ([]*dlq.Entry, error) {
	query := `SELECT ` + deadLetterColumns + ` FROM conductor_dead_letters`
	var args []any

	if opts.JobID != "" {
		query += ` WHERE job_id = ?`
		args = append(args, opts.JobID)
	}
	query += ` ORDER BY created_at DESC, id DESC`

	if opts.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, opts.Limit)
		if opts.Offset > 0 {
			query += ` OFFSET ?`
			args = append(args, opts.Offset)
		}
	} else if opts.Offset > 0 {
		query += ` LIMIT -1 OFFSET ?`
		args = append(args, opts.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("conductor/sqlite: list dead letters: %w", err)
	}
	defer rows.Close()

	var out []*dlq.Entry
	for rows.Next() {
		d, err := scanDeadLetter(rows)
		if err != nil {
			return nil, fmt.Errorf("conductor/sqlite: list dead letters: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// MarkResubmitted increments RetryCount and stamps ResubmittedAt.
func (s *Store) MarkResubmitted(ctx context.Context, dlqID id.DeadLetterID, at time.Time) error {
	tag, err := s.db.ExecContext(ctx, `
		UPDATE conductor_dead_letters
		SET retry_count = retry_count + 1, resubmitted_at = ?
		WHERE id = ?`,
		at.UnixNano(), dlqID.String(),
	)
	if err != nil {
		return fmt.Errorf("conductor/sqlite: mark resubmitted: %w", err)
	}
	n, err := tag.RowsAffected()
	if err != nil {
		return fmt.Errorf("conductor/sqlite: mark resubmitted: %w", err)
	}
	if n == 0 {
		return conductor.ErrDeadLetterNotFound
	}
	return nil
}

// PurgeDeadLetters removes dead-letter entries created before the given
// time and returns the number removed.
func (s *Store) PurgeDeadLetters(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.db.ExecContext(ctx,
		`DELETE FROM conductor_dead_letters WHERE created_at < ?`, before.UnixNano(),
	)
	if err != nil {
		return 0, fmt.Errorf("conductor/sqlite: purge dead letters: %w", err)
	}
	return tag.RowsAffected()
}

// CountDeadLetters returns the total number of quarantined entries.
func (s *Store) CountDeadLetters(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM conductor_dead_letters`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("conductor/sqlite: count dead letters: %w", err)
	}
	return n, nil
}
