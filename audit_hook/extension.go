package audithook

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/conductorhq/conductor/entry"
	"github.com/conductorhq/conductor/hook"
)

// Compile-time interface checks.
var (
	_ hook.Extension         = (*Extension)(nil)
	_ hook.EntryEnqueued     = (*Extension)(nil)
	_ hook.EntryStarted      = (*Extension)(nil)
	_ hook.EntryCompleted    = (*Extension)(nil)
	_ hook.EntryFailed       = (*Extension)(nil)
	_ hook.EntryRetrying     = (*Extension)(nil)
	_ hook.EntryDeadLettered = (*Extension)(nil)
	_ hook.EntryCancelled    = (*Extension)(nil)
	_ hook.ModeChanged       = (*Extension)(nil)
)

// Recorder is the interface that audit backends must implement.
// It is defined locally so that the audit_hook package does not import
// any particular audit system — callers inject a concrete backend at
// wiring time.
type Recorder interface {
	// Record persists a fully-formed audit event.
	Record(ctx context.Context, event *AuditEvent) error
}

// AuditEvent is a local representation of an audit event. Callers
// provide a RecorderFunc adapter that bridges to their audit backend.
type AuditEvent struct {
	// What happened
	Action   string `json:"action"`
	Resource string `json:"resource"`
	Category string `json:"category"`

	// Details
	ResourceID string         `json:"resource_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Outcome    string         `json:"outcome"`
	Severity   string         `json:"severity"`
	Reason     string         `json:"reason,omitempty"`
}

// RecorderFunc is an adapter to use a plain function as a Recorder.
type RecorderFunc func(ctx context.Context, event *AuditEvent) error

func (f RecorderFunc) Record(ctx context.Context, event *AuditEvent) error {
	return f(ctx, event)
}

// Severity constants.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

// Outcome constants.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Extension bridges Conductor lifecycle events to an audit trail
// backend. Each lifecycle hook emits a structured audit event through
// the [Recorder].
type Extension struct {
	recorder Recorder
	enabled  map[string]bool // nil = all enabled
	logger   *slog.Logger
}

// New creates an Extension that emits audit events through the provided Recorder.
func New(r Recorder, opts ...Option) *Extension {
	e := &Extension{
		recorder: r,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements hook.Extension.
func (e *Extension) Name() string { return "audit-hook" }

// ── Entry lifecycle hooks ───────────────────────────

// OnEntryEnqueued implements hook.EntryEnqueued.
func (e *Extension) OnEntryEnqueued(ctx context.Context, en *entry.Entry) error {
	return e.record(ctx, ActionEntryEnqueued, SeverityInfo, OutcomeSuccess,
		ResourceEntry, en.ID.String(), CategoryEntry, nil,
		"job_id", en.JobID,
		"priority", string(en.Priority),
		"max_attempts", en.MaxAttempts,
		"depends_on", len(en.DependsOn),
	)
}

// OnEntryStarted implements hook.EntryStarted.
func (e *Extension) OnEntryStarted(ctx context.Context, en *entry.Entry) error {
	return e.record(ctx, ActionEntryStarted, SeverityInfo, OutcomeSuccess,
		ResourceEntry, en.ID.String(), CategoryEntry, nil,
		"job_id", en.JobID,
		"priority", string(en.Priority),
		"attempt", en.Attempt,
	)
}

// OnEntryCompleted implements hook.EntryCompleted.
func (e *Extension) OnEntryCompleted(ctx context.Context, en *entry.Entry, elapsed time.Duration) error {
	return e.record(ctx, ActionEntryCompleted, SeverityInfo, OutcomeSuccess,
		ResourceEntry, en.ID.String(), CategoryEntry, nil,
		"job_id", en.JobID,
		"attempt", en.Attempt,
		"elapsed_ms", elapsed.Milliseconds(),
	)
}

// OnEntryFailed implements hook.EntryFailed.
func (e *Extension) OnEntryFailed(ctx context.Context, en *entry.Entry, err error) error {
	return e.record(ctx, ActionEntryFailed, SeverityCritical, OutcomeFailure,
		ResourceEntry, en.ID.String(), CategoryEntry, err,
		"job_id", en.JobID,
		"attempt", en.Attempt,
		"max_attempts", en.MaxAttempts,
	)
}

// OnEntryRetrying implements hook.EntryRetrying.
func (e *Extension) OnEntryRetrying(ctx context.Context, en *entry.Entry, attempt int, nextRunAt time.Time) error {
	return e.record(ctx, ActionEntryRetrying, SeverityWarning, OutcomeFailure,
		ResourceEntry, en.ID.String(), CategoryEntry, nil,
		"job_id", en.JobID,
		"attempt", attempt,
		"max_attempts", en.MaxAttempts,
		"next_run_at", nextRunAt.UTC().Format(time.RFC3339Nano),
	)
}

// OnEntryDeadLettered implements hook.EntryDeadLettered.
func (e *Extension) OnEntryDeadLettered(ctx context.Context, en *entry.Entry, err error) error {
	return e.record(ctx, ActionEntryDeadLettered, SeverityCritical, OutcomeFailure,
		ResourceEntry, en.ID.String(), CategoryEntry, err,
		"job_id", en.JobID,
		"attempt", en.Attempt,
	)
}

// OnEntryCancelled implements hook.EntryCancelled.
func (e *Extension) OnEntryCancelled(ctx context.Context, en *entry.Entry) error {
	return e.record(ctx, ActionEntryCancelled, SeverityWarning, OutcomeSuccess,
		ResourceEntry, en.ID.String(), CategoryEntry, nil,
		"job_id", en.JobID,
		"status", string(en.Status),
	)
}

// ── Orchestrator lifecycle hooks ────────────────────

// OnModeChanged implements hook.ModeChanged.
func (e *Extension) OnModeChanged(ctx context.Context, mode string) error {
	return e.record(ctx, ActionModeChanged, SeverityInfo, OutcomeSuccess,
		ResourceOrchestrator, "", CategoryOrchestrator, nil,
		"mode", mode,
	)
}

// ── Internal helpers ────────────────────────────────

// record builds and sends an audit event if the action is enabled.
// The kvPairs argument is a list of key-value pairs added to Metadata.
func (e *Extension) record(
	ctx context.Context,
	action, severity, outcome string,
	resource, resourceID, category string,
	err error,
	kvPairs ...any,
) error {
	if e.enabled != nil && !e.enabled[action] {
		return nil
	}

	meta := make(map[string]any, len(kvPairs)/2+1)
	for i := 0; i+1 < len(kvPairs); i += 2 {
		key, ok := kvPairs[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", kvPairs[i])
		}
		meta[key] = kvPairs[i+1]
	}

	var reason string
	if err != nil {
		reason = err.Error()
		meta["error"] = err.Error()
	}

	evt := &AuditEvent{
		Action:     action,
		Resource:   resource,
		Category:   category,
		ResourceID: resourceID,
		Metadata:   meta,
		Outcome:    outcome,
		Severity:   severity,
		Reason:     reason,
	}

	if recErr := e.recorder.Record(ctx, evt); recErr != nil {
		e.logger.Warn("audit_hook: failed to record audit event",
			"action", action,
			"resource_id", resourceID,
			"error", recErr,
		)
		return recErr
	}
	return nil
}
