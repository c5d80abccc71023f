package dlq

import (
	"time"

	"github.com/conductorhq/conductor/entry"
	"github.com/conductorhq/conductor/id"
)

// Entry is a snapshot of a queue entry that exhausted its failure budget
// and was quarantined for inspection or resubmission. Snapshot fields
// are immutable once written; only RetryCount and ResubmittedAt change,
// and only through resubmission.
type Entry struct {
	ID              id.DeadLetterID `json:"id"`
	OriginalEntryID id.EntryID      `json:"original_entry_id"`
	JobID           string          `json:"job_id"`
	JobName         string          `json:"job_name"`
	FailureReason   string          `json:"failure_reason"`
	ErrorStack      string          `json:"error_stack,omitempty"`
	Attempts        int             `json:"attempts"`
	MaxAttempts     int             `json:"max_attempts"`
	FirstAttemptAt  *time.Time      `json:"first_attempt_at,omitempty"`
	LastAttemptAt   *time.Time      `json:"last_attempt_at,omitempty"`
	Input           []byte          `json:"input,omitempty"`

	// Retry configuration carried over so resubmission can reproduce
	// the original entry's behavior.
	RetryDelay   time.Duration       `json:"retry_delay"`
	RetryBackoff entry.BackoffPolicy `json:"retry_backoff"`
	Timeout      time.Duration       `json:"timeout"`

	// Classification carried from the original entry.
	OrgID    string            `json:"org_id,omitempty"`
	UserID   string            `json:"user_id,omitempty"`
	Tags     []string          `json:"tags,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`

	CanRetry      bool       `json:"can_retry"`
	RetryCount    int        `json:"retry_count"`
	ResubmittedAt *time.Time `json:"resubmitted_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}
