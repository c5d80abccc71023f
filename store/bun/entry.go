package bunstore

import (
	"context"
	"fmt"
	"time"

	"github.com/conductorhq/conductor"
	"github.com/conductorhq/conductor/entry"
	"github.com/conductorhq/conductor/id"
)

// CreateEntry persists a new entry.
func (s *Store) CreateEntry(ctx context.Context, e *entry.Entry) error {
	m, err := toEntryModel(e)
	if err != nil {
		return fmt.Errorf("conductor/bun: create entry: %w", err)
	}
	if _, err := s.db.NewInsert().Model(m).Exec(ctx); err != nil {
		if isDuplicateKey(err) {
			return conductor.ErrEntryAlreadyExists
		}
		return fmt.Errorf("conductor/bun: create entry: %w", err)
	}
	return nil
}

// UpdateEntry persists changes to an existing entry.
func (s *Store) UpdateEntry(ctx context.Context, e *entry.Entry) error {
	m, err := toEntryModel(e)
	if err != nil {
		return fmt.Errorf("conductor/bun: update entry: %w", err)
	}
	m.UpdatedAt = time.Now().UTC()

	res, err := s.db.NewUpdate().Model(m).WherePK().Exec(ctx)
	if err != nil {
		return fmt.Errorf("conductor/bun: update entry: %w", err)
	}
	rows, _ := res.RowsAffected() //nolint:errcheck // driver always returns nil
	if rows == 0 {
		return conductor.ErrEntryNotFound
	}
	return nil
}

// GetEntry retrieves an entry by ID.
func (s *Store) GetEntry(ctx context.Context, entryID id.EntryID) (*entry.Entry, error) {
	m := new(entryModel)
	err := s.db.NewSelect().Model(m).
		Where("id = ?", entryID.String()).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, conductor.ErrEntryNotFound
		}
		return nil, fmt.Errorf("conductor/bun: get entry: %w", err)
	}
	return fromEntryModel(m)
}

// ListEntries returns entries matching the options, ordered by enqueue
// time ascending with ID as the tie-break.
func (s *Store) ListEntries(ctx context.Context, opts entry.ListOpts) ([]*entry.Entry, error) {
	var models []entryModel
	q := s.db.NewSelect().Model(&models)

	if opts.Status != "" {
		q = q.Where("status = ?", string(opts.Status))
	}
	if opts.Priority != "" {
		q = q.Where("priority = ?", string(opts.Priority))
	}
	q = q.Order("enqueued_at ASC", "id ASC")
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("conductor/bun: list entries: %w", err)
	}

	out := make([]*entry.Entry, 0, len(models))
	for i := range models {
		e, convErr := fromEntryModel(&models[i])
		if convErr != nil {
			return nil, fmt.Errorf("conductor/bun: list entries: %w", convErr)
		}
		out = append(out, e)
	}
	return out, nil
}

// CountEntries returns the number of entries matching the options.
func (s *Store) CountEntries(ctx context.Context, opts entry.CountOpts) (int64, error) {
	q := s.db.NewSelect().Model((*entryModel)(nil))

	if opts.Status != "" {
		q = q.Where("status = ?", string(opts.Status))
	}
	if opts.Priority != "" {
		q = q.Where("priority = ?", string(opts.Priority))
	}

	n, err := q.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("conductor/bun: count entries: %w", err)
	}
	return int64(n), nil
}
