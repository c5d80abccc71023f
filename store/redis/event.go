package redis

import (
	"context"
	"encoding/json"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"github.com/conductorhq/conductor/event"
)

// AppendEvent stores the event and indexes it by creation time.
func (s *Store) AppendEvent(ctx context.Context, evt *event.Event) error {
	eID := evt.ID.String()

	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("conductor/redis: marshal event: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, eventKey(eID), data, 0)
	pipe.ZAdd(ctx, eventIndexKey, goredis.Z{
		Score:  float64(evt.CreatedAt.UnixNano()),
		Member: eID,
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("conductor/redis: append event: %w", err)
	}
	return nil
}

// ListEvents walks the creation-time index newest first.
func (s *Store) ListEvents(ctx context.Context, opts event.ListOpts) ([]*event.Event, error) {
	ids, err := s.client.ZRevRange(ctx, eventIndexKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("conductor/redis: list events: %w", err)
	}

	var out []*event.Event
	for _, eID := range ids {
		data, getErr := s.client.Get(ctx, eventKey(eID)).Bytes()
		if getErr != nil {
			if getErr == goredis.Nil {
				continue
			}
			return nil, fmt.Errorf("conductor/redis: list events: %w", getErr)
		}
		var evt event.Event
		if err := json.Unmarshal(data, &evt); err != nil {
			return nil, fmt.Errorf("conductor/redis: unmarshal event %s: %w", eID, err)
		}
		if opts.Topic != "" && evt.Topic != opts.Topic {
			continue
		}
		out = append(out, &evt)
		if opts.Limit > 0 && len(out) >= opts.Limit {
			break
		}
	}
	return out, nil
}
