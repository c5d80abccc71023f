package dlq

import (
	"context"
	"time"

	"github.com/conductorhq/conductor"
	"github.com/conductorhq/conductor/entry"
	"github.com/conductorhq/conductor/id"
)

// Service provides high-level dead-letter operations over a Store.
type Service struct {
	store   Store
	entries entry.Store
}

// NewService creates a dead-letter service.
func NewService(store Store, entries entry.Store) *Service {
	return &Service{store: store, entries: entries}
}

// Quarantine snapshots an exhausted entry into the dead-letter
// collection and persists it. The failure reason is the final handler
// error.
func (s *Service) Quarantine(ctx context.Context, e *entry.Entry, failure error) (*Entry, error) {
	now := time.Now().UTC()
	dl := &Entry{
		ID:              id.NewDeadLetterID(),
		OriginalEntryID: e.ID,
		JobID:           e.JobID,
		JobName:         e.JobName,
		FailureReason:   failure.Error(),
		ErrorStack:      e.ErrorStack,
		Attempts:        e.Attempt,
		MaxAttempts:     e.MaxAttempts,
		FirstAttemptAt:  e.StartedAt,
		LastAttemptAt:   e.LastAttemptAt,
		Input:           e.Input,
		RetryDelay:      e.RetryDelay,
		RetryBackoff:    e.RetryBackoff,
		Timeout:         e.Timeout,
		OrgID:           e.OrgID,
		UserID:          e.UserID,
		Tags:            e.Tags,
		Metadata:        e.Metadata,
		CanRetry:        true,
		RetryCount:      0,
		CreatedAt:       now,
	}
	if err := s.store.PushDeadLetter(ctx, dl); err != nil {
		return nil, err
	}
	return dl, nil
}

// Resubmit creates a brand-new queue entry from a dead-letter record.
// The new entry carries the original input and retry configuration, is
// forced to high priority, and starts with a fresh attempt budget. The
// dead-letter record's RetryCount is incremented; its snapshot fields
// are never mutated. Returns ErrNotResubmittable when the record is
// flagged non-retryable.
func (s *Service) Resubmit(ctx context.Context, dlqID id.DeadLetterID) (*entry.Entry, error) {
	dl, err := s.store.GetDeadLetter(ctx, dlqID)
	if err != nil {
		return nil, err
	}
	if !dl.CanRetry {
		return nil, conductor.ErrNotResubmittable
	}

	now := time.Now().UTC()
	e := &entry.Entry{
		ID:           id.NewEntryID(),
		JobID:        dl.JobID,
		JobName:      dl.JobName,
		Status:       entry.StatusReady,
		Priority:     entry.PriorityHigh,
		EnqueuedAt:   now,
		MaxAttempts:  dl.MaxAttempts,
		RetryDelay:   dl.RetryDelay,
		RetryBackoff: dl.RetryBackoff,
		Timeout:      dl.Timeout,
		Input:        dl.Input,
		OrgID:        dl.OrgID,
		UserID:       dl.UserID,
		Tags:         dl.Tags,
		Metadata:     dl.Metadata,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.entries.CreateEntry(ctx, e); err != nil {
		return nil, err
	}

	if err := s.store.MarkResubmitted(ctx, dlqID, now); err != nil {
		// The new entry is already enqueued; report but don't roll back.
		return e, err
	}
	return e, nil
}

// DLQStore returns the underlying store for direct access to List, Get,
// Purge, and Count operations.
func (s *Service) DLQStore() Store {
	return s.store
}
