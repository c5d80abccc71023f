package bunstore

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
	m, err := toDeadLetterModel(d)
	if err != nil {
		return fmt.Errorf("conductor/bun: push dead letter: %w", err)
	}
	if _, err := s.db.NewInsert().Model(m).Exec(ctx); err != nil {
		return fmt.Errorf("conductor/bun: push dead letter: %w", err)
	}
	return nil
}

// GetDeadLetter retrieves a dead-letter entry by ID.
func (s *Store) GetDeadLetter(ctx context.Context, dlqID id.DeadLetterID) (*dlq.Entry, error) {
	m := new(deadLetterModel)
	err := s.db.NewSelect().Model(m).
		Where("id = ?", dlqID.String()).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, conductor.ErrDeadLetterNotFound
		}
		return nil, fmt.Errorf("conductor/bun: get dead letter: %w", err)
	}
	return fromDeadLetterModel(m)
}

// ListDeadLetters returns dead-letter entries, most recently quarantined
// first.
func (s *Store) ListDeadLetters(ctx context.Context, opts dlq.ListOpts) ([]*dlq.Entry, error) {
	var models []deadLetterModel
	q := s.db.NewSelect().Model(&models)

	if opts.JobID != "" {
		q = q.Where("job_id = ?", opts.JobID)
	}
	q = q.Order("created_at DESC", "id DESC")
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("conductor/bun: list dead letters: %w", err)
	}

	out := make([]*dlq.Entry, 0, len(models))
	for i := range models {
		d, convErr := fromDeadLetterModel(&models[i])
		if convErr != nil {
			return nil, fmt.Errorf("conductor/bun: list dead letters: %w", convErr)
		}
		out = append(out, d)
	}
	return out, nil
}

// MarkResubmitted increments RetryCount and stamps ResubmittedAt.
func (s *Store) MarkResubmitted(ctx context.Context, dlqID id.DeadLetterID, at time.Time) error {
	res, err := s.db.NewUpdate().Model((*deadLetterModel)(nil)).
		Set("retry_count = retry_count + 1").
		Set("resubmitted_at = ?", at).
		Where("id = ?", dlqID.String()).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("conductor/bun: mark resubmitted: %w", err)
	}
	rows, _ := res.RowsAffected() //nolint:errcheck // driver always returns nil
	if rows == 0 {
		return conductor.ErrDeadLetterNotFound
	}
	return nil
}

// PurgeDeadLetters removes dead-letter entries created before the given
// time and returns the number removed.
func (s *Store) PurgeDeadLetters(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.NewDelete().Model((*deadLetterModel)(nil)).
		Where("created_at < ?", before).
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("conductor/bun: purge dead letters: %w", err)
	}
	rows, _ := res.RowsAffected() //nolint:errcheck // driver always returns nil
	return rows, nil
}

// CountDeadLetters returns the total number of quarantined entries.
func (s *Store) CountDeadLetters(ctx context.Context) (int64, error) {
	n, err := s.db.NewSelect().Model((*deadLetterModel)(nil)).Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("conductor/bun: count dead letters: %w", err)
	}
	return int64(n), nil
}
