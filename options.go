package conductor

import (
	"context"
	"log/slog"
	"time"

	"github.com/conductorhq/conductor/entry"
)

// Option configures an Orchestrator.
type Option func(*Orchestrator) error

// Storer is the minimal store interface held by the Orchestrator.
// It covers lifecycle operations only. The full composite interface
// (store.Store) is used in subsystem layers that don't create import
// cycles. Implementations satisfy store.Store which embeds all
// subsystem stores.
type Storer interface {
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}

// loopRunner is an internal interface for the tick loop lifecycle.
type loopRunner interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// hookEmitter is an internal interface for hook lifecycle events.
type hookEmitter interface {
	EmitShutdown(ctx context.Context)
}

// Orchestrator is the central coordinator for queue entry processing.
// One active Orchestrator per process is assumed; the hosting process
// owns its lifecycle explicitly via Start and Stop.
//
// Create one with New() and functional options, then wire subsystems
// with engine.Build. The Orchestrator holds references to subsystem
// components via internal interfaces to avoid import cycles.
type Orchestrator struct {
	config Config
	logger *slog.Logger
	store  Storer
	hooks  hookEmitter
	loop   loopRunner

	// started tracks whether Start has been called.
	started bool
}

// New creates a new Orchestrator with the given options.
func New(opts ...Option) (*Orchestrator, error) {
	o := &Orchestrator{
		config: DefaultConfig(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, err
		}
	}
	return o, nil
}

// Logger returns the orchestrator's logger.
func (o *Orchestrator) Logger() *slog.Logger { return o.logger }

// Store returns the orchestrator's store.
func (o *Orchestrator) Store() Storer { return o.store }

// Config returns a copy of the orchestrator's configuration.
func (o *Orchestrator) Config() Config { return o.config }

// SetLoop sets the tick loop runner (called by the engine package).
func (o *Orchestrator) SetLoop(l loopRunner) { o.loop = l }

// SetHooks sets the hook emitter (called by the engine package).
func (o *Orchestrator) SetHooks(h hookEmitter) { o.hooks = h }

// Start begins entry processing.
func (o *Orchestrator) Start(ctx context.Context) error {
	if o.loop == nil {
		return ErrNoStore
	}
	if err := o.loop.Start(ctx); err != nil {
		return err
	}
	o.started = true
	return nil
}

// Stop gracefully shuts down the orchestrator.
func (o *Orchestrator) Stop(ctx context.Context) error {
	if o.loop != nil && o.started {
		if err := o.loop.Stop(ctx); err != nil {
			o.logger.Error("tick loop stop error", "error", err)
		}
	}
	if o.hooks != nil {
		o.hooks.EmitShutdown(ctx)
	}
	if o.store != nil {
		return o.store.Close()
	}
	return nil
}

// WithMaxConcurrency sets the global ceiling on concurrently running entries.
func WithMaxConcurrency(n int) Option {
	return func(o *Orchestrator) error {
		o.config.MaxConcurrency = n
		return nil
	}
}

// WithConcurrencyLimit sets the per-key ceiling for a concurrency key.
func WithConcurrencyLimit(key string, limit int) Option {
	return func(o *Orchestrator) error {
		if o.config.ConcurrencyLimits == nil {
			o.config.ConcurrencyLimits = map[string]int{}
		}
		o.config.ConcurrencyLimits[key] = limit
		return nil
	}
}

// WithPriorityWeights sets the selection weights per priority bucket.
func WithPriorityWeights(w map[entry.Priority]int) Option {
	return func(o *Orchestrator) error {
		o.config.PriorityWeights = w
		return nil
	}
}

// WithPollInterval sets the tick interval driving dispatch decisions.
func WithPollInterval(d time.Duration) Option {
	return func(o *Orchestrator) error {
		o.config.PollInterval = d
		return nil
	}
}

// WithDeadLetter configures quarantine of chronically failing entries.
func WithDeadLetter(enabled bool, threshold int) Option {
	return func(o *Orchestrator) error {
		o.config.DeadLetterEnabled = enabled
		o.config.DeadLetterThreshold = threshold
		return nil
	}
}

// WithDispatchRate caps global dispatches per second with a token bucket.
func WithDispatchRate(perSecond float64, burst int) Option {
	return func(o *Orchestrator) error {
		o.config.DispatchRate = perSecond
		o.config.DispatchBurst = burst
		return nil
	}
}

// WithRetryDefaults sets the attempt budget, base delay, and backoff
// policy applied to entries that do not override them.
func WithRetryDefaults(maxAttempts int, delay time.Duration, policy entry.BackoffPolicy) Option {
	return func(o *Orchestrator) error {
		o.config.DefaultMaxAttempts = maxAttempts
		o.config.DefaultRetryDelay = delay
		o.config.DefaultRetryBackoff = policy
		return nil
	}
}

// WithDefaultTimeout sets the per-attempt execution deadline default.
func WithDefaultTimeout(d time.Duration) Option {
	return func(o *Orchestrator) error {
		o.config.DefaultTimeout = d
		return nil
	}
}

// WithLogger sets the structured logger for the orchestrator.
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) error {
		o.logger = l
		return nil
	}
}

// WithStore sets the persistence backend for the orchestrator.
// The store must implement Storer at minimum; typically it will be a
// store.Store which embeds all subsystem store interfaces.
func WithStore(s Storer) Option {
	return func(o *Orchestrator) error {
		o.store = s
		return nil
	}
}
