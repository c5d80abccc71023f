package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/conductorhq/conductor"
	"github.com/conductorhq/conductor/dlq"
	"github.com/conductorhq/conductor/id"
)

// PushDeadLetter stores the quarantined snapshot and indexes it by
// creation time.
func (s *Store) PushDeadLetter(ctx context.Context, d *dlq.Entry) error {
	dID := d.ID.String()

	data, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("conductor/redis: marshal dead letter: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, dlqKey(dID), data, 0)
	pipe.ZAdd(ctx, dlqIndexKey, goredis.Z{
		Score:  float64(d.CreatedAt.UnixNano()),
		Member: dID,
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("conductor/redis: push dead letter: %w", err)
	}
	return nil
}

// GetDeadLetter retrieves a dead-letter entry by ID.
func (s *Store) GetDeadLetter(ctx context.Context, dlqID id.DeadLetterID) (*dlq.Entry, error) {
	data, err := s.client.Get(ctx, dlqKey(dlqID.String())).Bytes()
	if err != nil {
		if err == goredis.Nil {
			return nil, conductor.ErrDeadLetterNotFound
		}
		return nil, fmt.Errorf("conductor/redis: get dead letter: %w", err)
	}

	var d dlq.Entry
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("conductor/redis: unmarshal dead letter: %w", err)
	}
	return &d, nil
}

// ListDeadLetters walks the creation-time index newest first.
func (s *Store) ListDeadLetters(ctx context.Context, opts dlq.ListOpts) ([]*dlq.Entry, error) {
	ids, err := s.client.ZRevRange(ctx, dlqIndexKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("conductor/redis: list dead letters: %w", err)
	}

	var out []*dlq.Entry
	skipped := 0
	for _, dID := range ids {
		data, getErr := s.client.Get(ctx, dlqKey(dID)).Bytes()
		if getErr != nil {
			if getErr == goredis.Nil {
				continue
			}
			return nil, fmt.Errorf("conductor/redis: list dead letters: %w", getErr)
		}
		var d dlq.Entry
		if err := json.Unmarshal(data, &d); err != nil {
			return nil, fmt.Errorf("conductor/redis: unmarshal dead letter %s: %w", dID, err)
		}
		if opts.JobID != "" && d.JobID != opts.JobID {
			continue
		}
		if skipped < opts.Offset {
			skipped++
			continue
		}
		out = append(out, &d)
		if opts.Limit > 0 && len(out) >= opts.Limit {
			break
		}
	}
	return out, nil
}

// MarkResubmitted increments RetryCount and stamps ResubmittedAt.
func (s *Store) MarkResubmitted(ctx context.Context, dlqID id.DeadLetterID, at time.Time) error {
	d, err := s.GetDeadLetter(ctx, dlqID)
	if err != nil {
		return err
	}

	d.RetryCount++
	stamped := at.UTC()
	d.ResubmittedAt = &stamped

	data, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("conductor/redis: marshal dead letter: %w", err)
	}
	if err := s.client.Set(ctx, dlqKey(dlqID.String()), data, 0).Err(); err != nil {
		return fmt.Errorf("conductor/redis: mark resubmitted: %w", err)
	}
	return nil
}

// PurgeDeadLetters removes dead-letter entries created before the given
// time and returns the number removed.
func (s *Store) PurgeDeadLetters(ctx context.Context, before time.Time) (int64, error) {
	maxScore := strconv.FormatInt(before.UnixNano(), 10)
	ids, err := s.client.ZRangeByScore(ctx, dlqIndexKey, &goredis.ZRangeBy{
		Min: "-inf",
		Max: "(" + maxScore,
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("conductor/redis: purge dead letters: %w", err)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	pipe := s.client.TxPipeline()
	for _, dID := range ids {
		pipe.Del(ctx, dlqKey(dID))
		pipe.ZRem(ctx, dlqIndexKey, dID)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("conductor/redis: purge dead letters: %w", err)
	}
	return int64(len(ids)), nil
}

// CountDeadLetters returns the total number of quarantined entries.
func (s *Store) CountDeadLetters(ctx context.Context) (int64, error) {
	n, err := s.client.ZCard(ctx, dlqIndexKey).Result()
	if err != nil {
		return 0, fmt.Errorf("conductor/redis: count dead letters: %w", err)
	}
	return n, nil
}
