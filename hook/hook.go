// Package hook defines the extension system for Conductor. Extensions
// are notified of lifecycle events (entry enqueued, completed, failed,
// etc.) and can react to them — logging, metrics, event publishing.
//
// Each lifecycle hook is a separate interface so extensions opt in only
// to the events they care about. Hook errors are logged and absorbed;
// they never block or roll back a status transition.
package hook

import (
	"context"
	"time"

	"github.com/conductorhq/conductor/entry"
)

// Extension is the base interface all extensions must implement.
type Extension interface {
	// Name returns a unique human-readable name for the extension.
	Name() string
}

// ──────────────────────────────────────────────────
// Entry lifecycle hooks
// ──────────────────────────────────────────────────

// EntryEnqueued is called after an entry is successfully enqueued.
type EntryEnqueued interface {
	OnEntryEnqueued(ctx context.Context, e *entry.Entry) error
}

// EntryStarted is called when an execution attempt begins.
type EntryStarted interface {
	OnEntryStarted(ctx context.Context, e *entry.Entry) error
}

// EntryCompleted is called after an entry finishes successfully.
type EntryCompleted interface {
	OnEntryCompleted(ctx context.Context, e *entry.Entry, elapsed time.Duration) error
}

// EntryFailed is called when an entry fails terminally (no more
// attempts, and not quarantined) or is failed by dependency cascade.
type EntryFailed interface {
	OnEntryFailed(ctx context.Context, e *entry.Entry, err error) error
}

// EntryRetrying is called when an attempt fails but the entry is
// re-queued with a backoff delay.
type EntryRetrying interface {
	OnEntryRetrying(ctx context.Context, e *entry.Entry, attempt int, nextRunAt time.Time) error
}

// EntryDeadLettered is called when an entry is quarantined.
type EntryDeadLettered interface {
	OnEntryDeadLettered(ctx context.Context, e *entry.Entry, err error) error
}

// EntryCancelled is called when an entry is explicitly cancelled.
type EntryCancelled interface {
	OnEntryCancelled(ctx context.Context, e *entry.Entry) error
}

// ──────────────────────────────────────────────────
// Orchestrator lifecycle hooks
// ──────────────────────────────────────────────────

// ModeChanged is called when the orchestrator is paused, resumed, or
// put into draining mode.
type ModeChanged interface {
	OnModeChanged(ctx context.Context, mode string) error
}

// Shutdown is called during graceful shutdown.
type Shutdown interface {
	OnShutdown(ctx context.Context) error
}
