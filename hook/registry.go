package hook

import (
	"context"
	"log/slog"
	"time"

	"github.com/conductorhq/conductor/entry"
)

// Named entry types pair a hook implementation with the extension name
// captured at registration time. This avoids type-asserting back to
// Extension inside the emit methods.
type entryEnqueuedEntry struct {
	name string
	hook EntryEnqueued
}

type entryStartedEntry struct {
	name string
	hook EntryStarted
}

type entryCompletedEntry struct {
	name string
	hook EntryCompleted
}

type entryFailedEntry struct {
	name string
	hook EntryFailed
}

type entryRetryingEntry struct {
	name string
	hook EntryRetrying
}

type entryDeadLetteredEntry struct {
	name string
	hook EntryDeadLettered
}

type entryCancelledEntry struct {
	name string
	hook EntryCancelled
}

type modeChangedEntry struct {
	name string
	hook ModeChanged
}

type shutdownEntry struct {
	name string
	hook Shutdown
}

// Registry holds registered extensions and dispatches lifecycle events
// to them. It type-caches extensions at registration time so emit calls
// iterate only over extensions that implement the relevant hook.
type Registry struct {
	extensions []Extension
	logger     *slog.Logger

	// Type-cached slices for each lifecycle hook.
	entryEnqueued     []entryEnqueuedEntry
	entryStarted      []entryStartedEntry
	entryCompleted    []entryCompletedEntry
	entryFailed       []entryFailedEntry
	entryRetrying     []entryRetryingEntry
	entryDeadLettered []entryDeadLetteredEntry
	entryCancelled    []entryCancelledEntry
	modeChanged       []modeChangedEntry
	shutdown          []shutdownEntry
}

// NewRegistry creates an extension registry with the given logger.
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{logger: logger}
}

// Register adds an extension and type-asserts it into all applicable
// hook caches. Extensions are notified in registration order.
func (r *Registry) Register(e Extension) {
	r.extensions = append(r.extensions, e)
	name := e.Name()

	if h, ok := e.(EntryEnqueued); ok {
		r.entryEnqueued = append(r.entryEnqueued, entryEnqueuedEntry{name, h})
	}
	if h, ok := e.(EntryStarted); ok {
		r.entryStarted = append(r.entryStarted, entryStartedEntry{name, h})
	}
	if h, ok := e.(EntryCompleted); ok {
		r.entryCompleted = append(r.entryCompleted, entryCompletedEntry{name, h})
	}
	if h, ok := e.(EntryFailed); ok {
		r.entryFailed = append(r.entryFailed, entryFailedEntry{name, h})
	}
	if h, ok := e.(EntryRetrying); ok {
		r.entryRetrying = append(r.entryRetrying, entryRetryingEntry{name, h})
	}
	if h, ok := e.(EntryDeadLettered); ok {
		r.entryDeadLettered = append(r.entryDeadLettered, entryDeadLetteredEntry{name, h})
	}
	if h, ok := e.(EntryCancelled); ok {
		r.entryCancelled = append(r.entryCancelled, entryCancelledEntry{name, h})
	}
	if h, ok := e.(ModeChanged); ok {
		r.modeChanged = append(r.modeChanged, modeChangedEntry{name, h})
	}
	if h, ok := e.(Shutdown); ok {
		r.shutdown = append(r.shutdown, shutdownEntry{name, h})
	}
}

// Extensions returns all registered extensions in registration order.
func (r *Registry) Extensions() []Extension { return r.extensions }

// EmitEntryEnqueued notifies all extensions that implement EntryEnqueued.
func (r *Registry) EmitEntryEnqueued(ctx context.Context, e *entry.Entry) {
	for _, h := range r.entryEnqueued {
		if err := h.hook.OnEntryEnqueued(ctx, e); err != nil {
			r.logHookError("OnEntryEnqueued", h.name, err)
		}
	}
}

// EmitEntryStarted notifies all extensions that implement EntryStarted.
func (r *Registry) EmitEntryStarted(ctx context.Context, e *entry.Entry) {
	for _, h := range r.entryStarted {
		if err := h.hook.OnEntryStarted(ctx, e); err != nil {
			r.logHookError("OnEntryStarted", h.name, err)
		}
	}
}

// EmitEntryCompleted notifies all extensions that implement EntryCompleted.
func (r *Registry) EmitEntryCompleted(ctx context.Context, e *entry.Entry, elapsed time.Duration) {
	for _, h := range r.entryCompleted {
		if err := h.hook.OnEntryCompleted(ctx, e, elapsed); err != nil {
			r.logHookError("OnEntryCompleted", h.name, err)
		}
	}
}

// EmitEntryFailed notifies all extensions that implement EntryFailed.
func (r *Registry) EmitEntryFailed(ctx context.Context, e *entry.Entry, entryErr error) {
	for _, h := range r.entryFailed {
		if err := h.hook.OnEntryFailed(ctx, e, entryErr); err != nil {
			r.logHookError("OnEntryFailed", h.name, err)
		}
	}
}

// EmitEntryRetrying notifies all extensions that implement EntryRetrying.
func (r *Registry) EmitEntryRetrying(ctx context.Context, e *entry.Entry, attempt int, nextRunAt time.Time) {
	for _, h := range r.entryRetrying {
		if err := h.hook.OnEntryRetrying(ctx, e, attempt, nextRunAt); err != nil {
			r.logHookError("OnEntryRetrying", h.name, err)
		}
	}
}

// EmitEntryDeadLettered notifies all extensions that implement EntryDeadLettered.
func (r *Registry) EmitEntryDeadLettered(ctx context.Context, e *entry.Entry, entryErr error) {
	for _, h := range r.entryDeadLettered {
		if err := h.hook.OnEntryDeadLettered(ctx, e, entryErr); err != nil {
			r.logHookError("OnEntryDeadLettered", h.name, err)
		}
	}
}

// EmitEntryCancelled notifies all extensions that implement EntryCancelled.
func (r *Registry) EmitEntryCancelled(ctx context.Context, e *entry.Entry) {
	for _, h := range r.entryCancelled {
		if err := h.hook.OnEntryCancelled(ctx, e); err != nil {
			r.logHookError("OnEntryCancelled", h.name, err)
		}
	}
}

// EmitModeChanged notifies all extensions that implement ModeChanged.
func (r *Registry) EmitModeChanged(ctx context.Context, mode string) {
	for _, h := range r.modeChanged {
		if err := h.hook.OnModeChanged(ctx, mode); err != nil {
			r.logHookError("OnModeChanged", h.name, err)
		}
	}
}

// EmitShutdown notifies all extensions that implement Shutdown.
func (r *Registry) EmitShutdown(ctx context.Context) {
	for _, h := range r.shutdown {
		if err := h.hook.OnShutdown(ctx); err != nil {
			r.logHookError("OnShutdown", h.name, err)
		}
	}
}

// logHookError logs a warning when a lifecycle hook returns an error.
// Errors from hooks are never propagated — they must not block the pipeline.
func (r *Registry) logHookError(hook, extName string, err error) {
	r.logger.Warn("extension hook error",
		slog.String("hook", hook),
		slog.String("extension", extName),
		slog.String("error", err.Error()),
	)
}
