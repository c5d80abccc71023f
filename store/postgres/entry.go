package postgres

import (
	"context"
	"fmt"

	"github.com/conductorhq/conductor"
	"github.com/conductorhq/conductor/entry"
	"github.com/conductorhq/conductor/id"
)

// CreateEntry persists a new entry.
func (s *Store) CreateEntry(ctx context.Context, e *entry.Entry) error {
	args, err := entryArgs(e)
	if err != nil {
		return fmt.Errorf("conductor/postgres: create entry: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO conductor_entries (`+entryColumns+`)
		VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9, $10,
			$11, $12, $13, $14,
			$15, $16, $17, $18, $19,
			$20, $21, $22, $23, $24,
			$25, $26, $27, $28
		)`, args...)
	if err != nil {
		if isDuplicateKey(err) {
			return conductor.ErrEntryAlreadyExists
		}
		return fmt.Errorf("conductor/postgres: create entry: %w", err)
	}
	return nil
}

// UpdateEntry persists changes to an existing entry.
func (s *Store) UpdateEntry(ctx context.Context, e *entry.Entry) error {
	args, err := entryArgs(e)
	if err != nil {
		return fmt.Errorf("conductor/postgres: update entry: %w", err)
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE conductor_entries SET
			job_id = $2, job_name = $3, status = $4, priority = $5,
			scheduled_for = $6, enqueued_at = $7, started_at = $8,
			last_attempt_at = $9, completed_at = $10,
			depends_on = $11, dependency_status = $12, attempt = $13,
			max_attempts = $14, retry_delay = $15, retry_backoff = $16,
			timeout = $17, concurrency_key = $18, rate_limit = $19,
			input = $20, org_id = $21, user_id = $22, tags = $23,
			metadata = $24, error = $25, error_stack = $26,
			created_at = $27, updated_at = NOW()
		WHERE id = $1`, args[:27]...)
	if err != nil {
		return fmt.Errorf("conductor/postgres: update entry: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return conductor.ErrEntryNotFound
	}
	return nil
}

// GetEntry retrieves an entry by ID.
func (s *Store) GetEntry(ctx context.Context, entryID id.EntryID) (*entry.Entry, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+entryColumns+` FROM conductor_entries WHERE id = $1`,
		entryID.String(),
	)

	e, err := scanEntry(row)
	if err != nil {
		if isNoRows(err) {
			return nil, conductor.ErrEntryNotFound
		}
		return nil, fmt.Errorf("conductor/postgres: get entry: %w", err)
	}
	return e, nil
}

// ListEntries returns entries matching the options, ordered by enqueue
// time ascending with ID as the tie-break.
func (s *Store) ListEntries(ctx context.Context, opts entry.ListOpts) ([]*entry.Entry, error) {
	query := `SELECT ` + entryColumns + ` FROM conductor_entries`
	where, args := entryFilter(opts.Status, opts.Priority)
	query += where
	query += ` ORDER BY enqueued_at ASC, id ASC`

	argIdx := len(args) + 1
	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, opts.Limit)
		argIdx++
	}
	if opts.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, opts.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("conductor/postgres: list entries: %w", err)
	}
	defer rows.Close()

	out, err := collectEntries(rows)
	if err != nil {
		return nil, fmt.Errorf("conductor/postgres: list entries: %w", err)
	}
	return out, nil
}

// CountEntries returns the number of entries matching the options.
func (s *Store) CountEntries(ctx context.Context, opts entry.CountOpts) (int64, error) {
	query := `SELECT COUNT(*) FROM conductor_entries`
	where, args := entryFilter(opts.Status, opts.Priority)
	query += where

	var n int64
	if err := s.pool.QueryRow(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("conductor/postgres: count entries: %w", err)
	}
	return n, nil
}

// entryFilter builds the shared WHERE clause for list and count.
func entryFilter(status entry.Status, priority entry.Priority) (string, []any) {
	var (
		where string
		args  []any
	)
	if status != "" {
		args = append(args, string(status))
		where = fmt.Sprintf(" WHERE status = $%d", len(args))
	}
	if priority != "" {
		args = append(args, string(priority))
		kw := " WHERE"
		if where != "" {
			kw = " AND"
		}
		where += fmt.Sprintf("%s priority = $%d", kw, len(args))
	}
	return where, args
}
