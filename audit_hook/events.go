package audithook

// Audit event actions. Each constant corresponds to one lifecycle hook
// and becomes the Action field of the audit event.
const (
	ActionEntryEnqueued     = "entry.enqueued"
	ActionEntryStarted      = "entry.started"
	ActionEntryCompleted    = "entry.completed"
	ActionEntryFailed       = "entry.failed"
	ActionEntryRetrying     = "entry.retrying"
	ActionEntryDeadLettered = "entry.dead_lettered"
	ActionEntryCancelled    = "entry.cancelled"
	ActionModeChanged       = "orchestrator.mode_changed"
)

// Audit event categories group related actions.
const (
	CategoryEntry        = "conductor.entry"
	CategoryOrchestrator = "conductor.orchestrator"
)

// Resource types used as the Resource field in audit events.
const (
	ResourceEntry        = "entry"
	ResourceOrchestrator = "orchestrator"
)

// AllActions returns every action this extension can emit.
func AllActions() []string {
	return []string{
		ActionEntryEnqueued,
		ActionEntryStarted,
		ActionEntryCompleted,
		ActionEntryFailed,
		ActionEntryRetrying,
		ActionEntryDeadLettered,
		ActionEntryCancelled,
		ActionModeChanged,
	}
}
