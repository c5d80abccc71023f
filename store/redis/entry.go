package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/conductorhq/conductor"
	"github.com/conductorhq/conductor/entry"
	"github.com/conductorhq/conductor/id"
)

// CreateEntry stores the entry as JSON and indexes it by enqueue time.
func (s *Store) CreateEntry(ctx context.Context, e *entry.Entry) error {
	eID := e.ID.String()
	key := entryKey(eID)

	exists, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("conductor/redis: create entry exists: %w", err)
	}
	if exists > 0 {
		return conductor.ErrEntryAlreadyExists
	}

	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("conductor/redis: marshal entry: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, key, data, 0)
	pipe.ZAdd(ctx, entryIndexKey, goredis.Z{
		Score:  float64(e.EnqueuedAt.UnixNano()),
		Member: eID,
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("conductor/redis: create entry: %w", err)
	}
	return nil
}

// UpdateEntry persists changes to an existing entry.
func (s *Store) UpdateEntry(ctx context.Context, e *entry.Entry) error {
	key := entryKey(e.ID.String())

	exists, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("conductor/redis: update entry exists: %w", err)
	}
	if exists == 0 {
		return conductor.ErrEntryNotFound
	}

	cp := e.Clone()
	cp.UpdatedAt = time.Now().UTC()
	data, err := json.Marshal(cp)
	if err != nil {
		return fmt.Errorf("conductor/redis: marshal entry: %w", err)
	}
	if err := s.client.Set(ctx, key, data, 0).Err(); err != nil {
		return fmt.Errorf("conductor/redis: update entry: %w", err)
	}
	return nil
}

// GetEntry retrieves an entry by ID.
func (s *Store) GetEntry(ctx context.Context, entryID id.EntryID) (*entry.Entry, error) {
	data, err := s.client.Get(ctx, entryKey(entryID.String())).Bytes()
	if err != nil {
		if err == goredis.Nil {
			return nil, conductor.ErrEntryNotFound
		}
		return nil, fmt.Errorf("conductor/redis: get entry: %w", err)
	}

	var e entry.Entry
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("conductor/redis: unmarshal entry: %w", err)
	}
	return &e, nil
}

// ListEntries walks the enqueue-time index ascending and filters on the
// decoded records. Status and priority filters cannot be pushed down to
// Redis, so offset and limit apply after filtering.
func (s *Store) ListEntries(ctx context.Context, opts entry.ListOpts) ([]*entry.Entry, error) {
	ids, err := s.client.ZRange(ctx, entryIndexKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("conductor/redis: list entries: %w", err)
	}

	var out []*entry.Entry
	skipped := 0
	for _, eID := range ids {
		data, getErr := s.client.Get(ctx, entryKey(eID)).Bytes()
		if getErr != nil {
			if getErr == goredis.Nil {
				continue // index lag after a delete
			}
			return nil, fmt.Errorf("conductor/redis: list entries: %w", getErr)
		}
		var e entry.Entry
		if err := json.Unmarshal(data, &e); err != nil {
			return nil, fmt.Errorf("conductor/redis: unmarshal entry %s: %w", eID, err)
		}
		if opts.Status != "" && e.Status != opts.Status {
			continue
		}
		if opts.Priority != "" && e.Priority != opts.Priority {
			continue
		}
		if skipped < opts.Offset {
			skipped++
			continue
		}
		out = append(out, &e)
		if opts.Limit > 0 && len(out) >= opts.Limit {
			break
		}
	}
	return out, nil
}

// CountEntries returns the number of entries matching the options.
func (s *Store) CountEntries(ctx context.Context, opts entry.CountOpts) (int64, error) {
	if opts.Status == "" && opts.Priority == "" {
		n, err := s.client.ZCard(ctx, entryIndexKey).Result()
		if err != nil {
			return 0, fmt.Errorf("conductor/redis: count entries: %w", err)
		}
		return n, nil
	}

	entries, err := s.ListEntries(ctx, entry.ListOpts{
		Status:   opts.Status,
		Priority: opts.Priority,
	})
	if err != nil {
		return 0, err
	}
	return int64(len(entries)), nil
}
