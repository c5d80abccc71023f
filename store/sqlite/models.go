package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/conductorhq/conductor/dlq"
	"github.com/conductorhq/conductor/entry"
	"github.com/conductorhq/conductor/event"
	"github.com/conductorhq/conductor/id"
)

// entryColumns is the column list shared by every entry query so scan
// order never drifts from select order.
const entryColumns = `
	id, job_id, job_name, status, priority,
	scheduled_for, enqueued_at, started_at, last_attempt_at, completed_at,
	depends_on, dependency_status, attempt, max_attempts,
	retry_delay, retry_backoff, timeout, concurrency_key, rate_limit,
	input, org_id, user_id, tags, metadata,
	error, error_stack, created_at, updated_at`

func entryArgs(e *entry.Entry) ([]any, error) {
	dependsOn, err := jsonOrNil(idStrings(e.DependsOn))
	if err != nil {
		return nil, fmt.Errorf("marshal depends_on: %w", err)
	}
	depStatus, err := jsonOrNil(e.DependencyStatus)
	if err != nil {
		return nil, fmt.Errorf("marshal dependency_status: %w", err)
	}
	rateLimit, err := jsonOrNil(e.RateLimit)
	if err != nil {
		return nil, fmt.Errorf("marshal rate_limit: %w", err)
	}
	tags, err := jsonOrNil(e.Tags)
	if err != nil {
		return nil, fmt.Errorf("marshal tags: %w", err)
	}
	metadata, err := jsonOrNil(e.Metadata)
	if err != nil {
		return nil, fmt.Errorf("marshal metadata: %w", err)
	}

	return []any{
		e.ID.String(), e.JobID, e.JobName, string(e.Status), string(e.Priority),
		nsPtr(e.ScheduledFor), e.EnqueuedAt.UnixNano(), nsPtr(e.StartedAt),
		nsPtr(e.LastAttemptAt), nsPtr(e.CompletedAt),
		dependsOn, depStatus, e.Attempt, e.MaxAttempts,
		e.RetryDelay.Nanoseconds(), string(e.RetryBackoff), e.Timeout.Nanoseconds(),
		e.ConcurrencyKey, rateLimit,
		e.Input, e.OrgID, e.UserID, tags, metadata,
		e.Error, e.ErrorStack, e.CreatedAt.UnixNano(), e.UpdatedAt.UnixNano(),
	}, nil
}

type scanner interface {
	Scan(dest ...any) error
}

// scanEntry reads one row in entryColumns order.
func scanEntry(row scanner) (*entry.Entry, error) {
	var (
		e             entry.Entry
		rawID         string
		status        string
		priority      string
		scheduledFor  sql.NullInt64
		enqueuedAt    int64
		startedAt     sql.NullInt64
		lastAttemptAt sql.NullInt64
		completedAt   sql.NullInt64
		dependsOn     sql.NullString
		depStatus     sql.NullString
		retryDelay    int64
		backoff       string
		timeout       int64
		rateLimit     sql.NullString
		tags          sql.NullString
		metadata      sql.NullString
		createdAt     int64
		updatedAt     int64
	)

	err := row.Scan(
		&rawID, &e.JobID, &e.JobName, &status, &priority,
		&scheduledFor, &enqueuedAt, &startedAt, &lastAttemptAt, &completedAt,
		&dependsOn, &depStatus, &e.Attempt, &e.MaxAttempts,
		&retryDelay, &backoff, &timeout, &e.ConcurrencyKey, &rateLimit,
		&e.Input, &e.OrgID, &e.UserID, &tags, &metadata,
		&e.Error, &e.ErrorStack, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	e.ID, err = id.ParseEntryID(rawID)
	if err != nil {
		return nil, fmt.Errorf("parse entry id %q: %w", rawID, err)
	}
	e.Status = entry.Status(status)
	e.Priority = entry.Priority(priority)
	e.ScheduledFor = timePtr(scheduledFor)
	e.EnqueuedAt = time.Unix(0, enqueuedAt).UTC()
	e.StartedAt = timePtr(startedAt)
	e.LastAttemptAt = timePtr(lastAttemptAt)
	e.CompletedAt = timePtr(completedAt)
	e.RetryDelay = time.Duration(retryDelay)
	e.RetryBackoff = entry.BackoffPolicy(backoff)
	e.Timeout = time.Duration(timeout)
	e.CreatedAt = time.Unix(0, createdAt).UTC()
	e.UpdatedAt = time.Unix(0, updatedAt).UTC()

	var rawDeps []string
	if err := unmarshalOrNil(dependsOn, &rawDeps); err != nil {
		return nil, fmt.Errorf("unmarshal depends_on: %w", err)
	}
	for _, raw := range rawDeps {
		depID, err := id.ParseEntryID(raw)
		if err != nil {
			return nil, fmt.Errorf("parse dependency id %q: %w", raw, err)
		}
		e.DependsOn = append(e.DependsOn, depID)
	}
	if err := unmarshalOrNil(depStatus, &e.DependencyStatus); err != nil {
		return nil, fmt.Errorf("unmarshal dependency_status: %w", err)
	}
	if err := unmarshalOrNil(rateLimit, &e.RateLimit); err != nil {
		return nil, fmt.Errorf("unmarshal rate_limit: %w", err)
	}
	if err := unmarshalOrNil(tags, &e.Tags); err != nil {
		return nil, fmt.Errorf("unmarshal tags: %w", err)
	}
	if err := unmarshalOrNil(metadata, &e.Metadata); err != nil {
		return nil, fmt.Errorf("unmarshal metadata: %w", err)
	}

	return &e, nil
}

// ── Dead letters ──────────────────────────────────────────────────

const deadLetterColumns = `
	id, original_entry_id, job_id, job_name, failure_reason, error_stack,
	attempts, max_attempts, first_attempt_at, last_attempt_at, input,
	retry_delay, retry_backoff, timeout, org_id, user_id, tags, metadata,
	can_retry, retry_count, resubmitted_at, created_at`

func deadLetterArgs(d *dlq.Entry) ([]any, error) {
	tags, err := jsonOrNil(d.Tags)
	if err != nil {
		return nil, fmt.Errorf("marshal tags: %w", err)
	}
	metadata, err := jsonOrNil(d.Metadata)
	if err != nil {
		return nil, fmt.Errorf("marshal metadata: %w", err)
	}

	return []any{
		d.ID.String(), d.OriginalEntryID.String(), d.JobID, d.JobName,
		d.FailureReason, d.ErrorStack,
		d.Attempts, d.MaxAttempts, nsPtr(d.FirstAttemptAt), nsPtr(d.LastAttemptAt), d.Input,
		d.RetryDelay.Nanoseconds(), string(d.RetryBackoff), d.Timeout.Nanoseconds(),
		d.OrgID, d.UserID, tags, metadata,
		d.CanRetry, d.RetryCount, nsPtr(d.ResubmittedAt), d.CreatedAt.UnixNano(),
	}, nil
}

func scanDeadLetter(row scanner) (*dlq.Entry, error) {
	var (
		d              dlq.Entry
		rawID          string
		rawOrigID      string
		firstAttemptAt sql.NullInt64
		lastAttemptAt  sql.NullInt64
		retryDelay     int64
		backoff        string
		timeout        int64
		tags           sql.NullString
		metadata       sql.NullString
		resubmittedAt  sql.NullInt64
		createdAt      int64
	)

	err := row.Scan(
		&rawID, &rawOrigID, &d.JobID, &d.JobName, &d.FailureReason, &d.ErrorStack,
		&d.Attempts, &d.MaxAttempts, &firstAttemptAt, &lastAttemptAt, &d.Input,
		&retryDelay, &backoff, &timeout, &d.OrgID, &d.UserID, &tags, &metadata,
		&d.CanRetry, &d.RetryCount, &resubmittedAt, &createdAt,
	)
	if err != nil {
		return nil, err
	}

	d.ID, err = id.ParseDeadLetterID(rawID)
	if err != nil {
		return nil, fmt.Errorf("parse dead-letter id %q: %w", rawID, err)
	}
	d.OriginalEntryID, err = id.ParseEntryID(rawOrigID)
	if err != nil {
		return nil, fmt.Errorf("parse original entry id %q: %w", rawOrigID, err)
	}
	d.FirstAttemptAt = timePtr(firstAttemptAt)
	d.LastAttemptAt = timePtr(lastAttemptAt)
	d.RetryDelay = time.Duration(retryDelay)
	d.RetryBackoff = entry.BackoffPolicy(backoff)
	d.Timeout = time.Duration(timeout)
	d.ResubmittedAt = timePtr(resubmittedAt)
	d.CreatedAt = time.Unix(0, createdAt).UTC()

	if err := unmarshalOrNil(tags, &d.Tags); err != nil {
		return nil, fmt.Errorf("unmarshal tags: %w", err)
	}
	if err := unmarshalOrNil(metadata, &d.Metadata); err != nil {
		return nil, fmt.Errorf("unmarshal metadata: %w", err)
	}

	return &d, nil
}

// ── Events ────────────────────────────────────────────────────────

func scanEvent(row scanner) (*event.Event, error) {
	var (
		evt       event.Event
		rawID     string
		createdAt int64
	)
	if err := row.Scan(&rawID, &evt.Topic, &evt.Payload, &createdAt); err != nil {
		return nil, err
	}
	parsed, err := id.ParseEventID(rawID)
	if err != nil {
		return nil, fmt.Errorf("parse event id %q: %w", rawID, err)
	}
	evt.ID = parsed
	evt.CreatedAt = time.Unix(0, createdAt).UTC()
	return &evt, nil
}

// ── Column helpers ────────────────────────────────────────────────

func nsPtr(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixNano(), Valid: true}
}

func timePtr(n sql.NullInt64) *time.Time {
	if !n.Valid {
		return nil
	}
	t := time.Unix(0, n.Int64).UTC()
	return &t
}

// jsonOrNil marshals v for a TEXT column, mapping empty values to SQL
// NULL.
func jsonOrNil(v any) (any, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case []string:
		if len(t) == 0 {
			return nil, nil
		}
	case map[string]string:
		if len(t) == 0 {
			return nil, nil
		}
	case map[string]entry.DependencyState:
		if len(t) == 0 {
			return nil, nil
		}
	case *entry.RateLimit:
		if t == nil {
			return nil, nil
		}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func unmarshalOrNil(s sql.NullString, dst any) error {
	if !s.Valid || s.String == "" {
		return nil
	}
	return json.Unmarshal([]byte(s.String), dst)
}

func idStrings(ids []id.EntryID) []string {
	if len(ids) == 0 {
		return nil
	}
	out := make([]string, len(ids))
	for i, v := range ids {
		out[i] = v.String()
	}
	return out
}
