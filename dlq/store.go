package dlq

import (
	"context"
	"time"

	"github.com/conductorhq/conductor/id"
)

// ListOpts controls pagination for dead-letter list queries.
type ListOpts struct {
	// Limit is the maximum number of entries to return. Zero means no limit.
	Limit int
	// Offset is the number of entries to skip.
	Offset int
	// JobID filters by the original job. Empty means all jobs.
	JobID string
}

// Store defines the persistence contract for the dead-letter collection.
type Store interface {
	// PushDeadLetter adds a quarantined entry snapshot.
	PushDeadLetter(ctx context.Context, e *Entry) error

	// GetDeadLetter retrieves a dead-letter entry by ID.
	GetDeadLetter(ctx context.Context, dlqID id.DeadLetterID) (*Entry, error)

	// ListDeadLetters returns dead-letter entries matching the options,
	// most recently quarantined first.
	ListDeadLetters(ctx context.Context, opts ListOpts) ([]*Entry, error)

	// MarkResubmitted increments RetryCount and stamps ResubmittedAt on
	// a dead-letter record. Snapshot fields are never touched.
	MarkResubmitted(ctx context.Context, dlqID id.DeadLetterID, at time.Time) error

	// PurgeDeadLetters removes dead-letter entries created before the
	// given time. Returns the number of entries removed.
	PurgeDeadLetters(ctx context.Context, before time.Time) (int64, error)

	// CountDeadLetters returns the total number of quarantined entries.
	CountDeadLetters(ctx context.Context) (int64, error)
}
