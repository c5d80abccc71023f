package sqlite

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
	args, err := entryArgs(e)
	if err != nil {
		return fmt.Errorf("conductor/sqlite: create entry: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO conductor_entries (`+entryColumns+`)
		VALUES (
			?, ?, ?, ?, ?,
			?, ?, ?, ?, ?,
			?, ?, ?, ?,
			?, ?, ?, ?, ?,
			?, ?, ?, ?, ?,
			?, ?, ?, ?
		)`, args...)
	if err != nil {
		if isDuplicateKey(err) {
			return conductor.ErrEntryAlreadyExists
		}
		return fmt.Errorf("conductor/sqlite: create entry: %w", err)
	}
	return nil
}

// UpdateEntry persists changes to an existing entry.
func (s *Store) UpdateEntry(ctx context.Context, e *entry.Entry) error {
	args, err := entryArgs(e)
	if err != nil {
		return fmt.Errorf("conductor/sqlite: update entry: %w", err)
	}
	// Reorder: id moves to the WHERE clause, updated_at is stamped here.
	set := args[1:27]
	set = append(set, time.Now().UTC().UnixNano(), args[0])

	tag, err := s.db.ExecContext(ctx, `
		UPDATE conductor_entries SET
			job_id = ?, job_name = ?, status = ?, priority = ?,
			scheduled_for = ?, enqueued_at = ?, started_at = ?,
			last_attempt_at = ?, completed_at = ?,
			depends_on = ?, dependency_status = ?, attempt = ?,
			max_attempts = ?, retry_delay = ?, retry_backoff = ?,
			timeout = ?, concurrency_key = ?, rate_limit = ?,
			input = ?, org_id = ?, user_id = ?, tags = ?,
			metadata = ?, error = ?, error_stack = ?, created_at = ?,
			updated_at = ?
		WHERE id = ?`, set...)
	if err != nil {
		return fmt.Errorf("conductor/sqlite: update entry: %w", err)
	}
	n, err := tag.RowsAffected()
	if err != nil {
		return fmt.Errorf("conductor/sqlite: update entry: %w", err)
	}
	if n == 0 {
		return conductor.ErrEntryNotFound
	}
	return nil
}

// GetEntry retrieves an entry by ID.
func (s *Store) GetEntry(ctx context.Context, entryID id.EntryID) (*entry.Entry, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+entryColumns+` FROM conductor_entries WHERE id = ?`,
		entryID.String(),
	)

	e, err := scanEntry(row)
	if err != nil {
		if isNoRows(err) {
			return nil, conductor.ErrEntryNotFound
		}
		return nil, fmt.Errorf("conductor/sqlite: get entry: %w", err)
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

	if opts.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, opts.Limit)
		if opts.Offset > 0 {
			query += ` OFFSET ?`
			args = append(args, opts.Offset)
		}
	} else if opts.Offset > 0 {
		// SQLite requires LIMIT before OFFSET; -1 means unbounded.
		query += ` LIMIT -1 OFFSET ?`
		args = append(args, opts.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("conductor/sqlite: list entries: %w", err)
	}
	defer rows.Close()

	var out []*entry.Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("conductor/sqlite: list entries: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// CountEntries returns the number of entries matching the options.
func (s *Store) CountEntries(ctx context.Context, opts entry.CountOpts) (int64, error) {
	query := `SELECT COUNT(*) FROM conductor_entries`
	where, args := entryFilter(opts.Status, opts.Priority)
	query += where

	var n int64
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("conductor/sqlite: count entries: %w", err)
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
		where = ` WHERE status = ?`
		args = append(args, string(status))
	}
	if priority != "" {
		kw := ` WHERE`
		if where != "" {
			kw = ` AND`
		}
		where += kw + ` priority = ?`
		args = append(args, string(priority))
	}
	return where, args
}
