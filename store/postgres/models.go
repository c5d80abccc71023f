package postgres

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

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

// entryArgs flattens an entry into the positional argument list matching
// entryColumns.
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
		e.ScheduledFor, e.EnqueuedAt, e.StartedAt, e.LastAttemptAt, e.CompletedAt,
		dependsOn, depStatus, e.Attempt, e.MaxAttempts,
		e.RetryDelay.Nanoseconds(), string(e.RetryBackoff), e.Timeout.Nanoseconds(),
		e.ConcurrencyKey, rateLimit,
		e.Input, e.OrgID, e.UserID, tags, metadata,
		e.Error, e.ErrorStack, e.CreatedAt, e.UpdatedAt,
	}, nil
}

type scanner interface {
	Scan(dest ...any) error
}

// scanEntry reads one row in entryColumns order.
func scanEntry(row scanner) (*entry.Entry, error) {
	var (
		e          entry.Entry
		rawID      string
		status     string
		priority   string
		dependsOn  []byte
		depStatus  []byte
		retryDelay int64
		backoff    string
		timeout    int64
		rateLimit  []byte
		tags       []byte
		metadata   []byte
	)

	err := row.Scan(
		&rawID, &e.JobID, &e.JobName, &status, &priority,
		&e.ScheduledFor, &e.EnqueuedAt, &e.StartedAt, &e.LastAttemptAt, &e.CompletedAt,
		&dependsOn, &depStatus, &e.Attempt, &e.MaxAttempts,
		&retryDelay, &backoff, &timeout, &e.ConcurrencyKey, &rateLimit,
		&e.Input, &e.OrgID, &e.UserID, &tags, &metadata,
		&e.Error, &e.ErrorStack, &e.CreatedAt, &e.UpdatedAt,
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
	e.RetryDelay = time.Duration(retryDelay)
	e.RetryBackoff = entry.BackoffPolicy(backoff)
	e.Timeout = time.Duration(timeout)

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

func collectEntries(rows pgx.Rows) ([]*entry.Entry, error) {
	var out []*entry.Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
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
		d.Attempts, d.MaxAttempts, d.FirstAttemptAt, d.LastAttemptAt, d.Input,
		d.RetryDelay.Nanoseconds(), string(d.RetryBackoff), d.Timeout.Nanoseconds(),
		d.OrgID, d.UserID, tags, metadata,
		d.CanRetry, d.RetryCount, d.ResubmittedAt, d.CreatedAt,
	}, nil
}

func scanDeadLetter(row scanner) (*dlq.Entry, error) {
	var (
		d          dlq.Entry
		rawID      string
		rawOrigID  string
		retryDelay int64
		backoff    string
		timeout    int64
		tags       []byte
		metadata   []byte
	)

	err := row.Scan(
		&rawID, &rawOrigID, &d.JobID, &d.JobName, &d.FailureReason, &d.ErrorStack,
		&d.Attempts, &d.MaxAttempts, &d.FirstAttemptAt, &d.LastAttemptAt, &d.Input,
		&retryDelay, &backoff, &timeout, &d.OrgID, &d.UserID, &tags, &metadata,
		&d.CanRetry, &d.RetryCount, &d.ResubmittedAt, &d.CreatedAt,
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
	d.RetryDelay = time.Duration(retryDelay)
	d.RetryBackoff = entry.BackoffPolicy(backoff)
	d.Timeout = time.Duration(timeout)

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
		evt   event.Event
		rawID string
	)
	if err := row.Scan(&rawID, &evt.Topic, &evt.Payload, &evt.CreatedAt); err != nil {
		return nil, err
	}
	parsed, err := id.ParseEventID(rawID)
	if err != nil {
		return nil, fmt.Errorf("parse event id %q: %w", rawID, err)
	}
	evt.ID = parsed
	return &evt, nil
}

// ── JSON column helpers ───────────────────────────────────────────

// jsonOrNil marshals v for a JSONB column, mapping empty values to SQL
// NULL so the column stays queryable with IS NULL.
func jsonOrNil(v any) ([]byte, error) {
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
	return json.Marshal(v)
}

func unmarshalOrNil(data []byte, dst any) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, dst)
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
