package entry

import (
	"context"

	"github.com/conductorhq/conductor/id"
)

// ListOpts controls pagination and filtering for entry list queries.
type ListOpts struct {
	// Limit is the maximum number of entries to return. Zero means no limit.
	Limit int
	// Offset is the number of entries to skip.
	Offset int
	// Status filters by status. Empty means all statuses.
	Status Status
	// Priority filters by priority. Empty means all priorities.
	Priority Priority
}

// CountOpts controls filtering for entry count queries.
type CountOpts struct {
	// Status filters by status. Empty means all statuses.
	Status Status
	// Priority filters by priority. Empty means all priorities.
	Priority Priority
}

// Store is the record store adapter: durable CRUD for queue entries.
// The orchestrator treats it as a document store; whether it is backed
// by memory, SQL, or a key-value server is invisible here. Readiness
// scans go through List so an indexed backend can push the filter down
// later without touching orchestrator logic.
type Store interface {
	// CreateEntry persists a new entry.
	CreateEntry(ctx context.Context, e *Entry) error

	// UpdateEntry persists changes to an existing entry.
	UpdateEntry(ctx context.Context, e *Entry) error

	// GetEntry retrieves an entry by ID.
	GetEntry(ctx context.Context, entryID id.EntryID) (*Entry, error)

	// ListEntries returns entries matching the given options, ordered by
	// enqueue time ascending.
	ListEntries(ctx context.Context, opts ListOpts) ([]*Entry, error)

	// CountEntries returns the number of entries matching the options.
	CountEntries(ctx context.Context, opts CountOpts) (int64, error)
}
