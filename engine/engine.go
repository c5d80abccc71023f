package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/conductorhq/conductor"
	"github.com/conductorhq/conductor/dlq"
	"github.com/conductorhq/conductor/entry"
	"github.com/conductorhq/conductor/event"
	"github.com/conductorhq/conductor/graph"
	"github.com/conductorhq/conductor/hook"
	"github.com/conductorhq/conductor/id"
	"github.com/conductorhq/conductor/job"
	"github.com/conductorhq/conductor/limiter"
	mw "github.com/conductorhq/conductor/middleware"
	"github.com/conductorhq/conductor/observability"
	"github.com/conductorhq/conductor/selector"
	"github.com/conductorhq/conductor/stats"
	"github.com/conductorhq/conductor/worker"
)

// Engine wires an Orchestrator's subsystems and runs the tick loop.
// Use Build() to create one from an Orchestrator.
type Engine struct {
	orc      *conductor.Orchestrator
	hooks    *hook.Registry
	registry *job.Registry
	logger   *slog.Logger

	entryStore entry.Store
	dlqService *dlq.Service
	eventBus   *event.Bus
	resolver   *graph.Resolver
	selector   *selector.Selector
	limiter    *limiter.Limiter
	aggregator *stats.Aggregator
	executor   *worker.Executor
	mws        []mw.Middleware

	// cfg and mode are guarded by mu. The tick loop reads them every
	// tick; UpdateConfig and the lifecycle operations write them.
	mu   sync.RWMutex
	cfg  conductor.Config
	mode conductor.Mode

	// Tick loop state.
	loopMu   sync.Mutex
	running  bool
	stopCh   chan struct{}
	doneCh   chan struct{}
	baseCtx  context.Context
	cancel   context.CancelFunc
	active   atomic.Int64
	inflight sync.WaitGroup

	// claimed holds the IDs of entries handed to an execution goroutine.
	// The store can keep listing such an entry as ready until the running
	// transition is persisted, so the tick loop consults this set before
	// dispatching. Only the tick loop adds; each execution goroutine
	// removes its own ID after the executor returns.
	claimedMu sync.Mutex
	claimed   map[string]struct{}

	// OpenTelemetry providers (optional; nil means use global).
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
}

// Option configures an Engine.
type Option func(*Engine)

// WithExtension registers a hook extension with the engine.
func WithExtension(e hook.Extension) Option {
	return func(eng *Engine) {
		eng.hooks.Register(e)
	}
}

// WithMiddleware adds middleware to the engine's chain.
func WithMiddleware(m mw.Middleware) Option {
	return func(eng *Engine) {
		eng.mws = append(eng.mws, m)
	}
}

// WithTracerProvider sets a custom OTel TracerProvider for the engine.
// When set, the tracing middleware uses this provider instead of the
// global one.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(eng *Engine) {
		eng.tracerProvider = tp
	}
}

// WithMeterProvider sets a custom OTel MeterProvider for the engine.
// When set, both the metrics middleware and the observability extension
// use this provider instead of the global one.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(eng *Engine) {
		eng.meterProvider = mp
	}
}

const scopeName = "github.com/conductorhq/conductor"

// Build creates an Engine from an Orchestrator. The Orchestrator's
// store must implement entry.Store, dlq.Store, and event.Store —
// store.Store embeds all three.
func Build(orc *conductor.Orchestrator, opts ...Option) (*Engine, error) {
	logger := orc.Logger()
	st := orc.Store()

	if st == nil {
		return nil, conductor.ErrNoStore
	}

	es, ok := st.(entry.Store)
	if !ok {
		return nil, fmt.Errorf("conductor: store does not implement entry.Store")
	}
	ds, ok := st.(dlq.Store)
	if !ok {
		return nil, fmt.Errorf("conductor: store does not implement dlq.Store")
	}
	evs, ok := st.(event.Store)
	if !ok {
		return nil, fmt.Errorf("conductor: store does not implement event.Store")
	}

	cfg := orc.Config()
	eng := &Engine{
		orc:        orc,
		hooks:      hook.NewRegistry(logger),
		registry:   job.NewRegistry(),
		logger:     logger,
		entryStore: es,
		cfg:        cfg,
		mode:       cfg.Mode,
		claimed:    make(map[string]struct{}),
	}
	if eng.mode == "" {
		eng.mode = conductor.ModeActive
	}

	for _, opt := range opts {
		opt(eng)
	}

	eng.dlqService = dlq.NewService(ds, es)
	eng.eventBus = event.NewBus(evs, logger)
	eng.resolver = graph.New(es, logger)
	eng.selector = selector.New(cfg.PriorityWeights)
	eng.limiter = limiter.New(cfg.ConcurrencyLimits, cfg.DispatchRate, cfg.DispatchBurst)
	eng.aggregator = stats.New(es, ds, eng.limiter)

	// Lifecycle events flow hooks → publisher hook → event bus.
	eng.hooks.Register(hook.NewPublisherHook(eng.eventBus))

	// Build tracing middleware (custom provider or global).
	var tracingMw mw.Middleware
	if eng.tracerProvider != nil {
		tracingMw = mw.TracingWithTracer(eng.tracerProvider.Tracer(scopeName))
	} else {
		tracingMw = mw.Tracing()
	}

	// Build metrics middleware (custom provider or global).
	var metricsMw mw.Middleware
	if eng.meterProvider != nil {
		metricsMw = mw.MetricsWithMeter(eng.meterProvider.Meter(scopeName))
	} else {
		metricsMw = mw.Metrics()
	}

	// Register the observability metrics extension.
	var obsExt *observability.MetricsExtension
	if eng.meterProvider != nil {
		obsExt = observability.NewMetricsExtensionWithMeter(eng.meterProvider.Meter(scopeName + "/observability"))
	} else {
		obsExt = observability.NewMetricsExtension()
	}
	eng.hooks.Register(obsExt)

	// Default middleware stack: recover → tracing → metrics → logging → timeout.
	defaultMws := []mw.Middleware{
		mw.Recover(logger),
		tracingMw,
		metricsMw,
		mw.Logging(logger),
		mw.Timeout(),
	}
	allMws := make([]mw.Middleware, 0, len(defaultMws)+len(eng.mws))
	allMws = append(allMws, defaultMws...)
	allMws = append(allMws, eng.mws...)
	eng.mws = allMws

	eng.executor = worker.NewExecutor(
		eng.registry,
		eng.hooks,
		es,
		eng.dlqService,
		eng.resolver,
		eng.eventBus,
		worker.DeadLetterPolicy{Enabled: cfg.DeadLetterEnabled, Threshold: cfg.DeadLetterThreshold},
		logger,
		allMws...,
	)

	// Wire back into the Orchestrator.
	orc.SetLoop(eng)
	orc.SetHooks(eng.hooks)

	return eng, nil
}

// Register registers a typed job definition with the engine.
func Register[T any](eng *Engine, def *job.Definition[T]) {
	job.RegisterDefinition(eng.registry, def)
}

// Enqueue creates and enqueues an entry for a registered job.
func Enqueue[T any](ctx context.Context, eng *Engine, jobID string, input T, opts ...job.Option) (*entry.Entry, error) {
	data, err := json.Marshal(input)
	if err != nil {
		return nil, fmt.Errorf("marshal input for job %q: %w", jobID, err)
	}
	return eng.EnqueueRaw(ctx, jobID, data, opts...)
}

// EnqueueRaw enqueues an entry with a pre-serialized input. The job does
// not have to be registered yet: an unregistered job ID produces a valid
// entry that waits in the pool until a handler appears.
//
// The entry's initial status is derived from its options: a failed
// dependency fails it immediately, an unsatisfied dependency set parks
// it pending, a future schedule parks it delayed, and otherwise it is
// ready for dispatch.
func (eng *Engine) EnqueueRaw(ctx context.Context, jobID string, input []byte, opts ...job.Option) (*entry.Entry, error) {
	eng.mu.RLock()
	cfg := eng.cfg
	eng.mu.RUnlock()

	// Definition defaults apply first, call-site options override.
	jobName := jobID
	jobOpts := job.DefaultOptions()
	if reg, ok := eng.registry.Lookup(jobID); ok {
		jobName = reg.Name
		jobOpts = reg.Opts
	}
	for _, opt := range opts {
		opt(&jobOpts)
	}

	// Orchestrator defaults fill whatever the options left unset.
	if jobOpts.Priority == "" {
		jobOpts.Priority = entry.PriorityNormal
	}
	if jobOpts.MaxAttempts <= 0 {
		jobOpts.MaxAttempts = cfg.DefaultMaxAttempts
	}
	if jobOpts.RetryDelay <= 0 {
		jobOpts.RetryDelay = cfg.DefaultRetryDelay
	}
	if jobOpts.RetryBackoff == "" {
		jobOpts.RetryBackoff = cfg.DefaultRetryBackoff
	}
	if jobOpts.Timeout <= 0 {
		jobOpts.Timeout = cfg.DefaultTimeout
	}

	now := time.Now().UTC()
	e := &entry.Entry{
		ID:             id.NewEntryID(),
		JobID:          jobID,
		JobName:        jobName,
		Priority:       jobOpts.Priority,
		EnqueuedAt:     now,
		DependsOn:      jobOpts.DependsOn,
		MaxAttempts:    jobOpts.MaxAttempts,
		RetryDelay:     jobOpts.RetryDelay,
		RetryBackoff:   jobOpts.RetryBackoff,
		Timeout:        jobOpts.Timeout,
		ConcurrencyKey: jobOpts.ConcurrencyKey,
		RateLimit:      jobOpts.RateLimit,
		Input:          input,
		OrgID:          jobOpts.OrgID,
		UserID:         jobOpts.UserID,
		Tags:           jobOpts.Tags,
		Metadata:       jobOpts.Metadata,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if !jobOpts.ScheduledFor.IsZero() {
		sched := jobOpts.ScheduledFor.UTC()
		e.ScheduledFor = &sched
	}

	if len(e.DependsOn) > 0 {
		if err := eng.resolver.ValidateAcyclic(ctx, e.DependsOn); err != nil {
			return nil, err
		}
		snap, err := eng.resolver.Snapshot(ctx, e.DependsOn)
		if err != nil {
			return nil, err
		}
		e.DependencyStatus = snap
	}

	e.Status = eng.initialStatus(e, now)

	if err := eng.entryStore.CreateEntry(ctx, e); err != nil {
		return nil, err
	}

	eng.hooks.EmitEntryEnqueued(ctx, e)
	if e.Status == entry.StatusFailed {
		eng.hooks.EmitEntryFailed(ctx, e, errors.New(e.Error))
	}
	return e, nil
}

// initialStatus derives the status a new entry enters the pool with.
func (eng *Engine) initialStatus(e *entry.Entry, now time.Time) entry.Status {
	for depKey, state := range e.DependencyStatus {
		if state == entry.DepFailed {
			e.Error = fmt.Sprintf("dependency %s failed", depKey)
			return entry.StatusFailed
		}
	}
	if e.HasDependencies() && !e.DependenciesSatisfied() {
		return entry.StatusPending
	}
	if !e.DueAt(now) {
		return entry.StatusDelayed
	}
	return entry.StatusReady
}

// Hooks returns the hook registry.
func (eng *Engine) Hooks() *hook.Registry { return eng.hooks }

// Registry returns the job registry.
func (eng *Engine) Registry() *job.Registry { return eng.registry }

// Orchestrator returns the underlying Orchestrator.
func (eng *Engine) Orchestrator() *conductor.Orchestrator { return eng.orc }

// DLQService returns the dead-letter service for replay and inspection.
func (eng *Engine) DLQService() *dlq.Service { return eng.dlqService }

// EventBus returns the event bus.
func (eng *Engine) EventBus() *event.Bus { return eng.eventBus }

// Limiter returns the concurrency and rate limiter.
func (eng *Engine) Limiter() *limiter.Limiter { return eng.limiter }
