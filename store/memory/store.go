package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/conductorhq/conductor"
	"github.com/conductorhq/conductor/dlq"
	"github.com/conductorhq/conductor/entry"
	"github.com/conductorhq/conductor/event"
	"github.com/conductorhq/conductor/id"
)

// Ensure Store implements store.Store at compile time.
// We can't import store here (import cycle), so we verify each subsystem.
var (
	_ entry.Store = (*Store)(nil)
	_ dlq.Store   = (*Store)(nil)
	_ event.Store = (*Store)(nil)
)

// Store is a fully in-memory implementation of store.Store.
// Safe for concurrent access. Intended for unit testing and development.
type Store struct {
	mu sync.RWMutex

	entries map[string]*entry.Entry
	letters map[string]*dlq.Entry
	events  map[string]*event.Event
}

// New returns a new empty Store.
func New() *Store {
	return &Store{
		entries: make(map[string]*entry.Entry),
		letters: make(map[string]*dlq.Entry),
		events:  make(map[string]*event.Event),
	}
}

// ──────────────────────────────────────────────────
// Lifecycle — Migrate / Ping / Close
// ──────────────────────────────────────────────────

// Migrate is a no-op for the memory store.
func (m *Store) Migrate(_ context.Context) error { return nil }

// Ping always succeeds for the memory store.
func (m *Store) Ping(_ context.Context) error { return nil }

// Close is a no-op for the memory store.
func (m *Store) Close() error { return nil }

// ──────────────────────────────────────────────────
// Entry Store
// ──────────────────────────────────────────────────

// CreateEntry persists a new entry.
func (m *Store) CreateEntry(_ context.Context, e *entry.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := e.ID.String()
	if _, exists := m.entries[key]; exists {
		return conductor.ErrEntryAlreadyExists
	}
	m.entries[key] = e.Clone()
	return nil
}

// UpdateEntry persists changes to an existing entry.
func (m *Store) UpdateEntry(_ context.Context, e *entry.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := e.ID.String()
	if _, ok := m.entries[key]; !ok {
		return conductor.ErrEntryNotFound
	}
	cp := e.Clone()
	cp.UpdatedAt = time.Now().UTC()
	m.entries[key] = cp
	return nil
}

// GetEntry retrieves an entry by ID.
func (m *Store) GetEntry(_ context.Context, entryID id.EntryID) (*entry.Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.entries[entryID.String()]
	if !ok {
		return nil, conductor.ErrEntryNotFound
	}
	return e.Clone(), nil
}

// ListEntries returns entries matching the given options, ordered by
// enqueue time ascending (entry ID breaks ties).
func (m *Store) ListEntries(_ context.Context, opts entry.ListOpts) ([]*entry.Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*entry.Entry, 0, len(m.entries))
	for _, e := range m.entries {
		if opts.Status != "" && e.Status != opts.Status {
			continue
		}
		if opts.Priority != "" && e.Priority != opts.Priority {
			continue
		}
		result = append(result, e.Clone())
	}

	sort.Slice(result, func(i, k int) bool {
		if !result[i].EnqueuedAt.Equal(result[k].EnqueuedAt) {
			return result[i].EnqueuedAt.Before(result[k].EnqueuedAt)
		}
		return result[i].ID.String() < result[k].ID.String()
	})

	// Apply offset / limit.
	if opts.Offset > 0 {
		if opts.Offset >= len(result) {
			return nil, nil
		}
		result = result[opts.Offset:]
	}
	if opts.Limit > 0 && len(result) > opts.Limit {
		result = result[:opts.Limit]
	}

	return result, nil
}

// CountEntries returns the number of entries matching the options.
func (m *Store) CountEntries(_ context.Context, opts entry.CountOpts) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var count int64
	for _, e := range m.entries {
		if opts.Status != "" && e.Status != opts.Status {
			continue
		}
		if opts.Priority != "" && e.Priority != opts.Priority {
			continue
		}
		count++
	}
	return count, nil
}

// ──────────────────────────────────────────────────
// Dead-Letter Store
// ──────────────────────────────────────────────────

// PushDeadLetter adds a quarantined entry snapshot.
func (m *Store) PushDeadLetter(_ context.Context, e *dlq.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *e
	m.letters[e.ID.String()] = &cp
	return nil
}

// GetDeadLetter retrieves a dead-letter entry by ID.
func (m *Store) GetDeadLetter(_ context.Context, dlqID id.DeadLetterID) (*dlq.Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.letters[dlqID.String()]
	if !ok {
		return nil, conductor.ErrDeadLetterNotFound
	}
	cp := *e
	return &cp, nil
}

// ListDeadLetters returns dead-letter entries, most recently
// quarantined first.
func (m *Store) ListDeadLetters(_ context.Context, opts dlq.ListOpts) ([]*dlq.Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*dlq.Entry, 0, len(m.letters))
	for _, e := range m.letters {
		if opts.JobID != "" && e.JobID != opts.JobID {
			continue
		}
		cp := *e
		result = append(result, &cp)
	}

	sort.Slice(result, func(i, k int) bool {
		return result[i].CreatedAt.After(result[k].CreatedAt)
	})

	if opts.Offset > 0 {
		if opts.Offset >= len(result) {
			return nil, nil
		}
		result = result[opts.Offset:]
	}
	if opts.Limit > 0 && len(result) > opts.Limit {
		result = result[:opts.Limit]
	}

	return result, nil
}

// MarkResubmitted records that a dead-letter entry was resubmitted.
func (m *Store) MarkResubmitted(_ context.Context, dlqID id.DeadLetterID, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.letters[dlqID.String()]
	if !ok {
		return conductor.ErrDeadLetterNotFound
	}
	e.RetryCount++
	e.ResubmittedAt = &at
	return nil
}

// PurgeDeadLetters removes dead-letter entries quarantined before the
// given time and returns how many were removed.
func (m *Store) PurgeDeadLetters(_ context.Context, before time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var removed int64
	for key, e := range m.letters {
		if e.CreatedAt.Before(before) {
			delete(m.letters, key)
			removed++
		}
	}
	return removed, nil
}

// CountDeadLetters returns the number of dead-letter entries.
func (m *Store) CountDeadLetters(_ context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return int64(len(m.letters)), nil
}

// ──────────────────────────────────────────────────
// Event Store
// ──────────────────────────────────────────────────

// AppendEvent persists a new event.
func (m *Store) AppendEvent(_ context.Context, evt *event.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *evt
	m.events[evt.ID.String()] = &cp
	return nil
}

// ListEvents returns events matching the options, newest first.
func (m *Store) ListEvents(_ context.Context, opts event.ListOpts) ([]*event.Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*event.Event, 0, len(m.events))
	for _, evt := range m.events {
		if opts.Topic != "" && evt.Topic != opts.Topic {
			continue
		}
		cp := *evt
		result = append(result, &cp)
	}

	sort.Slice(result, func(i, k int) bool {
		if !result[i].CreatedAt.Equal(result[k].CreatedAt) {
			return result[i].CreatedAt.After(result[k].CreatedAt)
		}
		return result[i].ID.String() > result[k].ID.String()
	})

	if opts.Limit > 0 && len(result) > opts.Limit {
		result = result[:opts.Limit]
	}

	return result, nil
}
