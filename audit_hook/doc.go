// Package audithook is a Conductor extension that bridges entry
// lifecycle events to an immutable audit trail backend.
//
// Every entry and orchestrator lifecycle hook emits a structured audit
// event through the [Recorder] interface. The extension assigns
// appropriate severity levels (info for normal operations, warning for
// retries, critical for terminal failures and quarantines) and rich
// metadata (job ID, priority, attempt counts, elapsed time, errors).
//
// # Usage
//
//	audithook.New(audithook.RecorderFunc(func(ctx context.Context, evt *audithook.AuditEvent) error {
//	    return trail.Append(ctx, evt.Action, evt.Resource, evt.ResourceID, evt.Metadata)
//	}))
//
// # Selective filtering
//
//	audithook.New(recorder,
//	    audithook.WithActions(
//	        audithook.ActionEntryFailed,
//	        audithook.ActionEntryDeadLettered,
//	    ),
//	)
package audithook
