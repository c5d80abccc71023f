package job

import (
	"time"

	"github.com/conductorhq/conductor/entry"
	"github.com/conductorhq/conductor/id"
)

// Options configures a queue entry at enqueue time. Zero values defer to
// the orchestrator's configured defaults.
type Options struct {
	// Priority determines which selection bucket the entry lands in.
	Priority entry.Priority

	// MaxAttempts is the execution attempt budget before the entry is
	// failed or dead-lettered.
	MaxAttempts int

	// RetryDelay is the base delay the backoff policy is applied to.
	RetryDelay time.Duration

	// RetryBackoff is the delay curve: fixed, exponential, or linear.
	RetryBackoff entry.BackoffPolicy

	// Timeout is the maximum duration a single attempt may run.
	Timeout time.Duration

	// ScheduledFor defers dispatch until the given time. Zero means
	// dispatchable immediately.
	ScheduledFor time.Time

	// DependsOn lists entries that must complete before this one runs.
	DependsOn []id.EntryID

	// ConcurrencyKey groups entries under a shared per-key concurrency
	// ceiling. Empty means only the global ceiling applies.
	ConcurrencyKey string

	// RateLimit caps dispatches of this entry's job within a sliding
	// window. Nil means unlimited.
	RateLimit *entry.RateLimit

	// Classification, opaque to the orchestrator.
	OrgID    string
	UserID   string
	Tags     []string
	Metadata map[string]string
}

// DefaultOptions returns Options with the normal priority and everything
// else deferred to orchestrator defaults.
func DefaultOptions() Options {
	return Options{
		Priority: entry.PriorityNormal,
	}
}

// Option is a functional option for configuring enqueue behavior.
type Option func(*Options)

// WithPriority sets the entry's priority bucket.
func WithPriority(p entry.Priority) Option {
	return func(o *Options) { o.Priority = p }
}

// WithMaxAttempts sets the execution attempt budget.
func WithMaxAttempts(n int) Option {
	return func(o *Options) { o.MaxAttempts = n }
}

// WithRetryDelay sets the base retry delay.
func WithRetryDelay(d time.Duration) Option {
	return func(o *Options) { o.RetryDelay = d }
}

// WithRetryBackoff sets the retry delay curve.
func WithRetryBackoff(p entry.BackoffPolicy) Option {
	return func(o *Options) { o.RetryBackoff = p }
}

// WithTimeout sets the per-attempt execution deadline.
func WithTimeout(d time.Duration) Option {
	return func(o *Options) { o.Timeout = d }
}

// WithScheduledFor defers dispatch until the given time.
func WithScheduledFor(t time.Time) Option {
	return func(o *Options) { o.ScheduledFor = t }
}

// WithDependsOn gates the entry on completion of the given entries.
func WithDependsOn(ids ...id.EntryID) Option {
	return func(o *Options) { o.DependsOn = append(o.DependsOn, ids...) }
}

// WithConcurrencyKey places the entry under a per-key concurrency ceiling.
func WithConcurrencyKey(key string) Option {
	return func(o *Options) { o.ConcurrencyKey = key }
}

// WithRateLimit caps dispatches of the entry's job to maxRuns per window.
func WithRateLimit(maxRuns int, window time.Duration) Option {
	return func(o *Options) {
		o.RateLimit = &entry.RateLimit{MaxRuns: maxRuns, Window: window}
	}
}

// WithOrg tags the entry with an organization identifier.
func WithOrg(orgID string) Option {
	return func(o *Options) { o.OrgID = orgID }
}

// WithUser tags the entry with a user identifier.
func WithUser(userID string) Option {
	return func(o *Options) { o.UserID = userID }
}

// WithTags attaches classification tags.
func WithTags(tags ...string) Option {
	return func(o *Options) { o.Tags = append(o.Tags, tags...) }
}

// WithMetadata attaches opaque key-value metadata.
func WithMetadata(md map[string]string) Option {
	return func(o *Options) { o.Metadata = md }
}
