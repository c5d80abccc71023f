package entry

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidTransition is returned when a status change is not permitted
// by the transition table.
var ErrInvalidTransition = errors.New("entry: invalid status transition")

// Status is the lifecycle state of a queue entry. The set is closed;
// Transition rejects anything outside the table below.
type Status string

const (
	// StatusPending means the entry is waiting on dependencies.
	StatusPending Status = "pending"
	// StatusDelayed means the entry is waiting for its scheduled time,
	// either from enqueue-time scheduling or a retry backoff.
	StatusDelayed Status = "delayed"
	// StatusReady means the entry is eligible for dispatch.
	StatusReady Status = "ready"
	// StatusRunning means an execution attempt is in flight.
	StatusRunning Status = "running"
	// StatusCompleted means the entry finished successfully.
	StatusCompleted Status = "completed"
	// StatusFailed means the entry failed permanently.
	StatusFailed Status = "failed"
	// StatusDeadLetter means the entry exhausted its failure budget and
	// was quarantined for inspection or resubmission.
	StatusDeadLetter Status = "dead-letter"
	// StatusCancelled means the entry was cancelled before running.
	StatusCancelled Status = "cancelled"
)

// Priority orders entries for dispatch. Higher priorities are serviced
// more densely by the weighted-fair selector, never exclusively.
type Priority string

const (
	PriorityCritical Priority = "critical"
	PriorityHigh     Priority = "high"
	PriorityNormal   Priority = "normal"
	PriorityLow      Priority = "low"
)

// Priorities lists all priorities from most to least urgent.
func Priorities() []Priority {
	return []Priority{PriorityCritical, PriorityHigh, PriorityNormal, PriorityLow}
}

// Valid reports whether p is a member of the closed priority set.
func (p Priority) Valid() bool {
	switch p {
	case PriorityCritical, PriorityHigh, PriorityNormal, PriorityLow:
		return true
	}
	return false
}

// Statuses lists all members of the closed status set.
func Statuses() []Status {
	return []Status{
		StatusPending, StatusDelayed, StatusReady, StatusRunning,
		StatusCompleted, StatusFailed, StatusDeadLetter, StatusCancelled,
	}
}

// Valid reports whether s is a member of the closed status set.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusDelayed, StatusReady, StatusRunning,
		StatusCompleted, StatusFailed, StatusDeadLetter, StatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether s admits no further transitions.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusDeadLetter, StatusCancelled:
		return true
	}
	return false
}

// transitions is the legal state machine. A running entry may only move
// to completed, delayed (retry), failed, or dead-letter; terminal states
// admit nothing.
var transitions = map[Status]map[Status]bool{
	StatusPending: {
		StatusReady:     true,
		StatusDelayed:   true,
		StatusFailed:    true, // dependency cascade
		StatusCancelled: true,
	},
	StatusDelayed: {
		StatusReady:     true,
		StatusFailed:    true, // dependency cascade
		StatusCancelled: true,
	},
	StatusReady: {
		StatusRunning:   true,
		StatusFailed:    true, // dependency cascade
		StatusCancelled: true,
	},
	StatusRunning: {
		StatusCompleted:  true,
		StatusDelayed:    true, // retry with backoff
		StatusFailed:     true,
		StatusDeadLetter: true,
	},
}

// CanTransition reports whether the table permits from → to.
func CanTransition(from, to Status) bool {
	return transitions[from][to]
}

// Transition moves the entry to the given status after checking the
// table, stamping UpdatedAt with now.
func (e *Entry) Transition(to Status, now time.Time) error {
	if !CanTransition(e.Status, to) {
		return fmt.Errorf("%w: %s → %s (entry %s)", ErrInvalidTransition, e.Status, to, e.ID)
	}
	e.Status = to
	e.UpdatedAt = now
	return nil
}
