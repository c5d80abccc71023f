package bunstore

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"github.com/conductorhq/conductor/dlq"
	"github.com/conductorhq/conductor/entry"
	"github.com/conductorhq/conductor/event"
	"github.com/conductorhq/conductor/id"
)

// ── Entry model ───────────────────────────────────────────────────

type entryModel struct {
	bun.BaseModel `bun:"table:conductor_entries"`

	ID               string     `bun:"id,pk"`
	JobID            string     `bun:"job_id,notnull"`
	JobName          string     `bun:"job_name,notnull,default:''"`
	Status           string     `bun:"status,notnull,default:'ready'"`
	Priority         string     `bun:"priority,notnull,default:'normal'"`
	ScheduledFor     *time.Time `bun:"scheduled_for"`
	EnqueuedAt       time.Time  `bun:"enqueued_at,notnull,default:current_timestamp"`
	StartedAt        *time.Time `bun:"started_at"`
	LastAttemptAt    *time.Time `bun:"last_attempt_at"`
	CompletedAt      *time.Time `bun:"completed_at"`
	DependsOn        []byte     `bun:"depends_on,type:jsonb,nullzero"`
	DependencyStatus []byte     `bun:"dependency_status,type:jsonb,nullzero"`
	Attempt          int        `bun:"attempt,notnull,default:0"`
	MaxAttempts      int        `bun:"max_attempts,notnull,default:3"`
	RetryDelay       int64      `bun:"retry_delay,notnull,default:0"`
	RetryBackoff     string     `bun:"retry_backoff,notnull,default:'exponential'"`
	Timeout          int64      `bun:"timeout,notnull,default:0"`
	ConcurrencyKey   string     `bun:"concurrency_key,notnull,default:''"`
	RateLimit        []byte     `bun:"rate_limit,type:jsonb,nullzero"`
	Input            []byte     `bun:"input,type:bytea"`
	OrgID            string     `bun:"org_id,notnull,default:''"`
	UserID           string     `bun:"user_id,notnull,default:''"`
	Tags             []byte     `bun:"tags,type:jsonb,nullzero"`
	Metadata         []byte     `bun:"metadata,type:jsonb,nullzero"`
	Error            string     `bun:"error,notnull,default:''"`
	ErrorStack       string     `bun:"error_stack,notnull,default:''"`
	CreatedAt        time.Time  `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt        time.Time  `bun:"updated_at,notnull,default:current_timestamp"`
}

func toEntryModel(e *entry.Entry) (*entryModel, error) {
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

	return &entryModel{
		ID:               e.ID.String(),
		JobID:            e.JobID,
		JobName:          e.JobName,
		Status:           string(e.Status),
		Priority:         string(e.Priority),
		ScheduledFor:     e.ScheduledFor,
		EnqueuedAt:       e.EnqueuedAt,
		StartedAt:        e.StartedAt,
		LastAttemptAt:    e.LastAttemptAt,
		CompletedAt:      e.CompletedAt,
		DependsOn:        dependsOn,
		DependencyStatus: depStatus,
		Attempt:          e.Attempt,
		MaxAttempts:      e.MaxAttempts,
		RetryDelay:       e.RetryDelay.Nanoseconds(),
		RetryBackoff:     string(e.RetryBackoff),
		Timeout:          e.Timeout.Nanoseconds(),
		ConcurrencyKey:   e.ConcurrencyKey,
		RateLimit:        rateLimit,
		Input:            e.Input,
		OrgID:            e.OrgID,
		UserID:           e.UserID,
		Tags:             tags,
		Metadata:         metadata,
		Error:            e.Error,
		ErrorStack:       e.ErrorStack,
		CreatedAt:        e.CreatedAt,
		UpdatedAt:        e.UpdatedAt,
	}, nil
}

func fromEntryModel(m *entryModel) (*entry.Entry, error) {
	parsedID, err := id.ParseEntryID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("parse entry id %q: %w", m.ID, err)
	}

	e := &entry.Entry{
		ID:             parsedID,
		JobID:          m.JobID,
		JobName:        m.JobName,
		Status:         entry.Status(m.Status),
		Priority:       entry.Priority(m.Priority),
		ScheduledFor:   m.ScheduledFor,
		EnqueuedAt:     m.EnqueuedAt,
		StartedAt:      m.StartedAt,
		LastAttemptAt:  m.LastAttemptAt,
		CompletedAt:    m.CompletedAt,
		Attempt:        m.Attempt,
		MaxAttempts:    m.MaxAttempts,
		RetryDelay:     time.Duration(m.RetryDelay),
		RetryBackoff:   entry.BackoffPolicy(m.RetryBackoff),
		Timeout:        time.Duration(m.Timeout),
		ConcurrencyKey: m.ConcurrencyKey,
		Input:          m.Input,
		OrgID:          m.OrgID,
		UserID:         m.UserID,
		Error:          m.Error,
		ErrorStack:     m.ErrorStack,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}

	var rawDeps []string
	if err := unmarshalOrNil(m.DependsOn, &rawDeps); err != nil {
		return nil, fmt.Errorf("unmarshal depends_on: %w", err)
	}
	for _, raw := range rawDeps {
		depID, err := id.ParseEntryID(raw)
		if err != nil {
			return nil, fmt.Errorf("parse dependency id %q: %w", raw, err)
		}
		e.DependsOn = append(e.DependsOn, depID)
	}
	if err := unmarshalOrNil(m.DependencyStatus, &e.DependencyStatus); err != nil {
		return nil, fmt.Errorf("unmarshal dependency_status: %w", err)
	}
	if err := unmarshalOrNil(m.RateLimit, &e.RateLimit); err != nil {
		return nil, fmt.Errorf("unmarshal rate_limit: %w", err)
	}
	if err := unmarshalOrNil(m.Tags, &e.Tags); err != nil {
		return nil, fmt.Errorf("unmarshal tags: %w", err)
	}
	if err := unmarshalOrNil(m.Metadata, &e.Metadata); err != nil {
		return nil, fmt.Errorf("unmarshal metadata: %w", err)
	}

	return e, nil
}

// ── Dead-letter model ─────────────────────────────────────────────

type deadLetterModel struct {
	bun.BaseModel `bun:"table:conductor_dead_letters"`

	ID              string     `bun:"id,pk"`
	OriginalEntryID string     `bun:"original_entry_id,notnull"`
	JobID           string     `bun:"job_id,notnull"`
	JobName         string     `bun:"job_name,notnull,default:''"`
	FailureReason   string     `bun:"failure_reason,notnull,default:''"`
	ErrorStack      string     `bun:"error_stack,notnull,default:''"`
	Attempts        int        `bun:"attempts,notnull,default:0"`
	MaxAttempts     int        `bun:"max_attempts,notnull,default:0"`
	FirstAttemptAt  *time.Time `bun:"first_attempt_at"`
	LastAttemptAt   *time.Time `bun:"last_attempt_at"`
	Input           []byte     `bun:"input,type:bytea"`
	RetryDelay      int64      `bun:"retry_delay,notnull,default:0"`
	RetryBackoff    string     `bun:"retry_backoff,notnull,default:'exponential'"`
	Timeout         int64      `bun:"timeout,notnull,default:0"`
	OrgID           string     `bun:"org_id,notnull,default:''"`
	UserID          string     `bun:"user_id,notnull,default:''"`
	Tags            []byte     `bun:"tags,type:jsonb,nullzero"`
	Metadata        []byte     `bun:"metadata,type:jsonb,nullzero"`
	CanRetry        bool       `bun:"can_retry,notnull,default:true"`
	RetryCount      int        `bun:"retry_count,notnull,default:0"`
	ResubmittedAt   *time.Time `bun:"resubmitted_at"`
	CreatedAt       time.Time  `bun:"created_at,notnull,default:current_timestamp"`
}

func toDeadLetterModel(d *dlq.Entry) (*deadLetterModel, error) {
	tags, err := jsonOrNil(d.Tags)
	if err != nil {
		return nil, fmt.Errorf("marshal tags: %w", err)
	}
	metadata, err := jsonOrNil(d.Metadata)
	if err != nil {
		return nil, fmt.Errorf("marshal metadata: %w", err)
	}

	return &deadLetterModel{
		ID:              d.ID.String(),
		OriginalEntryID: d.OriginalEntryID.String(),
		JobID:           d.JobID,
		JobName:         d.JobName,
		FailureReason:   d.FailureReason,
		ErrorStack:      d.ErrorStack,
		Attempts:        d.Attempts,
		MaxAttempts:     d.MaxAttempts,
		FirstAttemptAt:  d.FirstAttemptAt,
		LastAttemptAt:   d.LastAttemptAt,
		Input:           d.Input,
		RetryDelay:      d.RetryDelay.Nanoseconds(),
		RetryBackoff:    string(d.RetryBackoff),
		Timeout:         d.Timeout.Nanoseconds(),
		OrgID:           d.OrgID,
		UserID:          d.UserID,
		Tags:            tags,
		Metadata:        metadata,
		CanRetry:        d.CanRetry,
		RetryCount:      d.RetryCount,
		ResubmittedAt:   d.ResubmittedAt,
		CreatedAt:       d.CreatedAt,
	}, nil
}

func fromDeadLetterModel(m *deadLetterModel) (*dlq.Entry, error) {
	parsedID, err := id.ParseDeadLetterID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("parse dead-letter id %q: %w", m.ID, err)
	}
	origID, err := id.ParseEntryID(m.OriginalEntryID)
	if err != nil {
		return nil, fmt.Errorf("parse original entry id %q: %w", m.OriginalEntryID, err)
	}

	d := &dlq.Entry{
		ID:              parsedID,
		OriginalEntryID: origID,
		JobID:           m.JobID,
		JobName:         m.JobName,
		FailureReason:   m.FailureReason,
		ErrorStack:      m.ErrorStack,
		Attempts:        m.Attempts,
		MaxAttempts:     m.MaxAttempts,
		FirstAttemptAt:  m.FirstAttemptAt,
		LastAttemptAt:   m.LastAttemptAt,
		Input:           m.Input,
		RetryDelay:      time.Duration(m.RetryDelay),
		RetryBackoff:    entry.BackoffPolicy(m.RetryBackoff),
		Timeout:         time.Duration(m.Timeout),
		OrgID:           m.OrgID,
		UserID:          m.UserID,
		CanRetry:        m.CanRetry,
		RetryCount:      m.RetryCount,
		ResubmittedAt:   m.ResubmittedAt,
		CreatedAt:       m.CreatedAt,
	}

	if err := unmarshalOrNil(m.Tags, &d.Tags); err != nil {
		return nil, fmt.Errorf("unmarshal tags: %w", err)
	}
	if err := unmarshalOrNil(m.Metadata, &d.Metadata); err != nil {
		return nil, fmt.Errorf("unmarshal metadata: %w", err)
	}

	return d, nil
}

// ── Event model ───────────────────────────────────────────────────

type eventModel struct {
	bun.BaseModel `bun:"table:conductor_events"`

	ID        string    `bun:"id,pk"`
	Topic     string    `bun:"topic,notnull"`
	Payload   []byte    `bun:"payload,type:bytea"`
	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp"`
}

func toEventModel(evt *event.Event) *eventModel {
	return &eventModel{
		ID:        evt.ID.String(),
		Topic:     evt.Topic,
		Payload:   evt.Payload,
		CreatedAt: evt.CreatedAt,
	}
}

func fromEventModel(m *eventModel) (*event.Event, error) {
	parsedID, err := id.ParseEventID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("parse event id %q: %w", m.ID, err)
	}
	return &event.Event{
		ID:        parsedID,
		Topic:     m.Topic,
		Payload:   m.Payload,
		CreatedAt: m.CreatedAt,
	}, nil
}

// ── JSON column helpers ───────────────────────────────────────────

// jsonOrNil marshals v for a JSONB column, mapping empty values to nil
// so nullzero stores SQL NULL.
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
