// Package entry defines the queue entry data model — the unit of work
// tracked by the orchestrator — together with its closed status and
// priority enums, the legal state transition table, and the record
// store contract used to persist entries durably.
package entry

import (
	"time"

	"github.com/conductorhq/conductor/id"
)

// BackoffPolicy names the retry delay curve applied to an entry's base
// retry delay.
type BackoffPolicy string

const (
	// BackoffFixed keeps the delay constant across attempts.
	BackoffFixed BackoffPolicy = "fixed"
	// BackoffExponential doubles the delay each attempt.
	BackoffExponential BackoffPolicy = "exponential"
	// BackoffLinear grows the delay proportionally to the attempt count.
	BackoffLinear BackoffPolicy = "linear"
)

// DependencyState is the observed outcome of a single dependency.
type DependencyState string

const (
	// DepPending means the dependency has not reached a terminal state.
	DepPending DependencyState = "pending"
	// DepCompleted means the dependency finished successfully.
	DepCompleted DependencyState = "completed"
	// DepFailed means the dependency failed, was cancelled, or was
	// dead-lettered.
	DepFailed DependencyState = "failed"
)

// RateLimit caps how often a kind of work may run: at most MaxRuns
// dispatches of the same job within any trailing Window. The limit is
// keyed by job ID, not by individual entry.
type RateLimit struct {
	MaxRuns int           `json:"max_runs"`
	Window  time.Duration `json:"window"`
}

// Entry is a single unit of queued work. It references a registered job
// by JobID and carries all scheduling, retry, and classification state.
type Entry struct {
	ID      id.EntryID `json:"id"`
	JobID   string     `json:"job_id"`
	JobName string     `json:"job_name"`

	Status   Status   `json:"status"`
	Priority Priority `json:"priority"`

	ScheduledFor  *time.Time `json:"scheduled_for,omitempty"`
	EnqueuedAt    time.Time  `json:"enqueued_at"`
	StartedAt     *time.Time `json:"started_at,omitempty"`
	LastAttemptAt *time.Time `json:"last_attempt_at,omitempty"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`

	// DependsOn lists entry IDs that must complete before this entry is
	// dispatchable. DependencyStatus tracks each dependency's observed
	// outcome, keyed by the dependency's ID string.
	DependsOn        []id.EntryID               `json:"depends_on,omitempty"`
	DependencyStatus map[string]DependencyState `json:"dependency_status,omitempty"`

	// Attempt counts executions started so far. It increments exactly
	// once per execution start, never on enqueue.
	Attempt      int           `json:"attempt"`
	MaxAttempts  int           `json:"max_attempts"`
	RetryDelay   time.Duration `json:"retry_delay"`
	RetryBackoff BackoffPolicy `json:"retry_backoff"`
	Timeout      time.Duration `json:"timeout"`

	ConcurrencyKey string     `json:"concurrency_key,omitempty"`
	RateLimit      *RateLimit `json:"rate_limit,omitempty"`

	// Input is the opaque payload handed to the unit of work.
	Input []byte `json:"input,omitempty"`

	// Classification fields, opaque to the orchestrator.
	OrgID    string            `json:"org_id,omitempty"`
	UserID   string            `json:"user_id,omitempty"`
	Tags     []string          `json:"tags,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`

	Error      string `json:"error,omitempty"`
	ErrorStack string `json:"error_stack,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HasDependencies reports whether the entry declares any dependencies.
func (e *Entry) HasDependencies() bool {
	return len(e.DependsOn) > 0
}

// DependenciesSatisfied reports whether every declared dependency has
// completed. Entries without dependencies are trivially satisfied.
func (e *Entry) DependenciesSatisfied() bool {
	for _, dep := range e.DependsOn {
		if e.DependencyStatus[dep.String()] != DepCompleted {
			return false
		}
	}
	return true
}

// DueAt reports whether the entry's scheduled time (if any) has passed.
func (e *Entry) DueAt(now time.Time) bool {
	return e.ScheduledFor == nil || !e.ScheduledFor.After(now)
}

// Clone returns a deep copy so stores and callers can mutate
// independently without racing.
func (e *Entry) Clone() *Entry {
	cp := *e
	if e.ScheduledFor != nil {
		t := *e.ScheduledFor
		cp.ScheduledFor = &t
	}
	if e.StartedAt != nil {
		t := *e.StartedAt
		cp.StartedAt = &t
	}
	if e.LastAttemptAt != nil {
		t := *e.LastAttemptAt
		cp.LastAttemptAt = &t
	}
	if e.CompletedAt != nil {
		t := *e.CompletedAt
		cp.CompletedAt = &t
	}
	if e.DependsOn != nil {
		cp.DependsOn = append([]id.EntryID(nil), e.DependsOn...)
	}
	if e.DependencyStatus != nil {
		cp.DependencyStatus = make(map[string]DependencyState, len(e.DependencyStatus))
		for k, v := range e.DependencyStatus {
			cp.DependencyStatus[k] = v
		}
	}
	if e.RateLimit != nil {
		rl := *e.RateLimit
		cp.RateLimit = &rl
	}
	if e.Input != nil {
		cp.Input = append([]byte(nil), e.Input...)
	}
	if e.Tags != nil {
		cp.Tags = append([]string(nil), e.Tags...)
	}
	if e.Metadata != nil {
		cp.Metadata = make(map[string]string, len(e.Metadata))
		for k, v := range e.Metadata {
			cp.Metadata[k] = v
		}
	}
	return &cp
}
