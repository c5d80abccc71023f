package conductor

import "errors"

var (
	// Store errors.
	ErrNoStore     = errors.New("conductor: no store configured")
	ErrStoreClosed = errors.New("conductor: store closed")

	// Not found errors.
	ErrEntryNotFound      = errors.New("conductor: entry not found")
	ErrDeadLetterNotFound = errors.New("conductor: dead-letter entry not found")
	ErrEventNotFound      = errors.New("conductor: event not found")
	ErrJobNotRegistered   = errors.New("conductor: job not registered")

	// Conflict errors.
	ErrEntryAlreadyExists = errors.New("conductor: entry already exists")

	// Operational errors, surfaced synchronously to the caller.
	ErrEntryRunning     = errors.New("conductor: entry is running and cannot be cancelled")
	ErrEntryTerminal    = errors.New("conductor: entry is in a terminal state")
	ErrNotResubmittable = errors.New("conductor: dead-letter entry cannot be resubmitted")
	ErrDependencyCycle  = errors.New("conductor: dependency cycle detected")
	ErrNotStarted       = errors.New("conductor: orchestrator not started")
)
