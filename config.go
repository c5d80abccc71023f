package conductor

import (
	"time"

	"github.com/conductorhq/conductor/entry"
)

// Mode is the dispatch mode of the orchestrator.
type Mode string

const (
	// ModeActive means ticks dispatch eligible entries normally.
	ModeActive Mode = "active"
	// ModePaused means the tick loop still runs but dispatches nothing
	// new; running entries finish normally.
	ModePaused Mode = "paused"
	// ModeDraining means entries already ready or running continue, and
	// the orchestrator stops itself once nothing is left to do.
	ModeDraining Mode = "draining"
)

// Config holds configuration for the orchestrator. Fields with defaults
// apply to entries that do not override them at enqueue time.
type Config struct {
	// MaxConcurrency is the global ceiling on concurrently running entries.
	MaxConcurrency int

	// ConcurrencyLimits maps a concurrency key to its per-key ceiling.
	// Keys absent from the map are unbounded (the global ceiling still
	// applies).
	ConcurrencyLimits map[string]int

	// PriorityWeights controls how densely each priority bucket is
	// serviced per selection round.
	PriorityWeights map[entry.Priority]int

	// DefaultMaxAttempts is the execution attempt budget for entries
	// that do not set their own.
	DefaultMaxAttempts int

	// DefaultRetryDelay is the base retry delay.
	DefaultRetryDelay time.Duration

	// DefaultRetryBackoff is the backoff policy applied to the base delay.
	DefaultRetryBackoff entry.BackoffPolicy

	// DefaultTimeout is the maximum execution duration per attempt.
	DefaultTimeout time.Duration

	// DeadLetterEnabled turns quarantine of chronically failing entries
	// on or off. When off, exhausted entries end in the failed state.
	DeadLetterEnabled bool

	// DeadLetterThreshold is the minimum attempt count before an
	// exhausted entry is eligible for quarantine instead of permanent
	// failure.
	DeadLetterThreshold int

	// Mode is the initial dispatch mode.
	Mode Mode

	// PollInterval is the tick interval driving dispatch decisions.
	PollInterval time.Duration

	// DispatchRate is an optional global cap on dispatches per second,
	// enforced with a token bucket. Zero disables it.
	DispatchRate float64

	// DispatchBurst is the burst size for the dispatch token bucket.
	// Defaults to 1 if DispatchRate is set but DispatchBurst is zero.
	DispatchBurst int

	// ShutdownTimeout is the maximum time Stop waits for in-flight
	// entries before cancelling their contexts.
	ShutdownTimeout time.Duration

	// Retention is how long terminal entries stay queryable before they
	// become eligible for cleanup. Cleanup itself is owned by the host.
	Retention time.Duration
}

// DefaultWeights returns the default priority weights.
func DefaultWeights() map[entry.Priority]int {
	return map[entry.Priority]int{
		entry.PriorityCritical: 50,
		entry.PriorityHigh:     30,
		entry.PriorityNormal:   15,
		entry.PriorityLow:      5,
	}
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		MaxConcurrency:      10,
		ConcurrencyLimits:   map[string]int{},
		PriorityWeights:     DefaultWeights(),
		DefaultMaxAttempts:  3,
		DefaultRetryDelay:   5 * time.Second,
		DefaultRetryBackoff: entry.BackoffExponential,
		DefaultTimeout:      5 * time.Minute,
		DeadLetterEnabled:   true,
		DeadLetterThreshold: 5,
		Mode:                ModeActive,
		PollInterval:        1 * time.Second,
		ShutdownTimeout:     30 * time.Second,
		Retention:           7 * 24 * time.Hour,
	}
}

// ConfigPatch carries partial configuration updates applied at runtime.
// Nil fields leave the current value unchanged.
type ConfigPatch struct {
	MaxConcurrency      *int
	ConcurrencyLimits   map[string]int
	PriorityWeights     map[entry.Priority]int
	DefaultMaxAttempts  *int
	DefaultRetryDelay   *time.Duration
	DefaultRetryBackoff *entry.BackoffPolicy
	DefaultTimeout      *time.Duration
	DeadLetterEnabled   *bool
	DeadLetterThreshold *int
	PollInterval        *time.Duration
	DispatchRate        *float64
	DispatchBurst       *int
}

// Apply merges the patch into a copy of c and returns it.
func (p ConfigPatch) Apply(c Config) Config {
	if p.MaxConcurrency != nil {
		c.MaxConcurrency = *p.MaxConcurrency
	}
	if p.ConcurrencyLimits != nil {
		c.ConcurrencyLimits = p.ConcurrencyLimits
	}
	if p.PriorityWeights != nil {
		c.PriorityWeights = p.PriorityWeights
	}
	if p.DefaultMaxAttempts != nil {
		c.DefaultMaxAttempts = *p.DefaultMaxAttempts
	}
	if p.DefaultRetryDelay != nil {
		c.DefaultRetryDelay = *p.DefaultRetryDelay
	}
	if p.DefaultRetryBackoff != nil {
		c.DefaultRetryBackoff = *p.DefaultRetryBackoff
	}
	if p.DefaultTimeout != nil {
		c.DefaultTimeout = *p.DefaultTimeout
	}
	if p.DeadLetterEnabled != nil {
		c.DeadLetterEnabled = *p.DeadLetterEnabled
	}
	if p.DeadLetterThreshold != nil {
		c.DeadLetterThreshold = *p.DeadLetterThreshold
	}
	if p.PollInterval != nil {
		c.PollInterval = *p.PollInterval
	}
	if p.DispatchRate != nil {
		c.DispatchRate = *p.DispatchRate
	}
	if p.DispatchBurst != nil {
		c.DispatchBurst = *p.DispatchBurst
	}
	return c
}
