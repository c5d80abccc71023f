// Package worker provides the execution engine — an Executor that runs a
// ready entry through middleware and the registered handler, then applies
// the retry, dead-letter, and dependency-cascade rules to the outcome.
package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/conductorhq/conductor/backoff"
	"github.com/conductorhq/conductor/dlq"
	"github.com/conductorhq/conductor/entry"
	"github.com/conductorhq/conductor/event"
	"github.com/conductorhq/conductor/graph"
	"github.com/conductorhq/conductor/hook"
	"github.com/conductorhq/conductor/job"
	"github.com/conductorhq/conductor/middleware"
)

// DeadLetterPolicy controls when an exhausted entry is quarantined
// instead of marked failed.
type DeadLetterPolicy struct {
	// Enabled turns quarantining on. When false, exhausted entries are
	// marked failed and stay in the primary store.
	Enabled bool
	// Threshold is the minimum attempt count required before an
	// exhausted entry qualifies for quarantine.
	Threshold int
}

// Executor runs a single entry through middleware and the registered
// handler, then handles retry scheduling, dead-letter quarantine, state
// updates, dependency cascade, and lifecycle hooks.
type Executor struct {
	registry   *job.Registry
	hooks      *hook.Registry
	store      entry.Store
	dlqService *dlq.Service
	resolver   *graph.Resolver
	publisher  event.Publisher
	policy     DeadLetterPolicy
	mw         middleware.Middleware
	logger     *slog.Logger
}

// NewExecutor creates an Executor with the given dependencies.
func NewExecutor(
	registry *job.Registry,
	hooks *hook.Registry,
	store entry.Store,
	dlqService *dlq.Service,
	resolver *graph.Resolver,
	publisher event.Publisher,
	policy DeadLetterPolicy,
	logger *slog.Logger,
	mws ...middleware.Middleware,
) *Executor {
	if publisher == nil {
		publisher = event.Nop{}
	}
	return &Executor{
		registry:   registry,
		hooks:      hooks,
		store:      store,
		dlqService: dlqService,
		resolver:   resolver,
		publisher:  publisher,
		policy:     policy,
		mw:         middleware.Chain(mws...),
		logger:     logger,
	}
}

// Execute runs a ready entry through the middleware chain and handler.
// On success: marks completed, emits EntryCompleted, cascades readiness.
// On failure with attempts remaining: schedules a retry with backoff and
// emits EntryRetrying.
// On failure with attempts exhausted: quarantines to the dead-letter
// store when the policy allows, otherwise marks failed; either way the
// failure cascades to dependents.
//
// A missing handler is not a failure: the entry is left untouched in the
// ready state so a later registration can pick it up.
func (x *Executor) Execute(ctx context.Context, e *entry.Entry) error {
	reg, ok := x.registry.Lookup(e.JobID)
	if !ok {
		x.logger.Warn("no handler registered for job, skipping entry",
			slog.String("job_id", e.JobID),
			slog.String("entry_id", e.ID.String()),
		)
		return nil
	}

	now := time.Now().UTC()
	e.Attempt++
	if e.StartedAt == nil {
		started := now
		e.StartedAt = &started
	}
	last := now
	e.LastAttemptAt = &last

	if err := e.Transition(entry.StatusRunning, now); err != nil {
		return err
	}
	if err := x.store.UpdateEntry(ctx, e); err != nil {
		return err
	}
	x.hooks.EmitEntryStarted(ctx, e)

	info := &job.RunInfo{
		EntryID:   e.ID,
		JobID:     e.JobID,
		JobName:   e.JobName,
		Attempt:   e.Attempt,
		StartedAt: now,
		Input:     e.Input,
		Logger: x.logger.With(
			slog.String("job_id", e.JobID),
			slog.String("entry_id", e.ID.String()),
		),
		Publish: x.publisher.Publish,
	}

	terminal := func(ctx context.Context) error {
		return reg.Handler(job.NewContext(ctx, info), e.Input)
	}

	start := time.Now()
	err := x.mw(ctx, e, terminal)
	elapsed := time.Since(start)

	now = time.Now().UTC()
	if err != nil {
		return x.handleFailure(ctx, e, err, now)
	}
	return x.handleSuccess(ctx, e, now, elapsed)
}

// handleSuccess marks the entry completed and unblocks dependents.
func (x *Executor) handleSuccess(ctx context.Context, e *entry.Entry, now time.Time, elapsed time.Duration) error {
	completed := now
	e.CompletedAt = &completed
	e.Error = ""
	e.ErrorStack = ""
	if err := e.Transition(entry.StatusCompleted, now); err != nil {
		return err
	}

	if updateErr := x.store.UpdateEntry(ctx, e); updateErr != nil {
		x.logger.Error("failed to update entry after success",
			slog.String("entry_id", e.ID.String()),
			slog.String("job_id", e.JobID),
			slog.String("error", updateErr.Error()),
		)
		return updateErr
	}

	x.hooks.EmitEntryCompleted(ctx, e, elapsed)
	return x.cascade(ctx, e, now)
}

// handleFailure either schedules a retry or finalizes the entry.
func (x *Executor) handleFailure(ctx context.Context, e *entry.Entry, handlerErr error, now time.Time) error {
	e.Error = handlerErr.Error()

	if e.Attempt < e.MaxAttempts {
		return x.scheduleRetry(ctx, e, now)
	}

	if x.policy.Enabled && e.Attempt >= x.policy.Threshold {
		return x.quarantine(ctx, e, handlerErr, now)
	}
	return x.finalizeFailed(ctx, e, handlerErr, now)
}

// scheduleRetry moves the entry back to delayed with a backoff delay.
func (x *Executor) scheduleRetry(ctx context.Context, e *entry.Entry, now time.Time) error {
	delay := backoff.ForPolicy(e.RetryBackoff, e.RetryDelay).Delay(e.Attempt)
	nextRunAt := now.Add(delay)
	sched := nextRunAt
	e.ScheduledFor = &sched

	if err := e.Transition(entry.StatusDelayed, now); err != nil {
		return err
	}
	if updateErr := x.store.UpdateEntry(ctx, e); updateErr != nil {
		x.logger.Error("failed to update entry for retry",
			slog.String("entry_id", e.ID.String()),
			slog.String("error", updateErr.Error()),
		)
		return updateErr
	}

	x.hooks.EmitEntryRetrying(ctx, e, e.Attempt, nextRunAt)

	x.logger.Info("entry scheduled for retry",
		slog.String("entry_id", e.ID.String()),
		slog.String("job_id", e.JobID),
		slog.Int("attempt", e.Attempt),
		slog.Int("max_attempts", e.MaxAttempts),
		slog.Duration("delay", delay),
	)
	return nil
}

// quarantine moves the exhausted entry to the dead-letter store.
func (x *Executor) quarantine(ctx context.Context, e *entry.Entry, handlerErr error, now time.Time) error {
	if err := e.Transition(entry.StatusDeadLetter, now); err != nil {
		return err
	}
	if updateErr := x.store.UpdateEntry(ctx, e); updateErr != nil {
		x.logger.Error("failed to update entry as dead-lettered",
			slog.String("entry_id", e.ID.String()),
			slog.String("error", updateErr.Error()),
		)
		return updateErr
	}

	if _, dlqErr := x.dlqService.Quarantine(ctx, e, handlerErr); dlqErr != nil {
		x.logger.Error("failed to quarantine entry",
			slog.String("entry_id", e.ID.String()),
			slog.String("error", dlqErr.Error()),
		)
	}

	x.hooks.EmitEntryDeadLettered(ctx, e, handlerErr)

	x.logger.Warn("entry quarantined after exhausting attempts",
		slog.String("entry_id", e.ID.String()),
		slog.String("job_id", e.JobID),
		slog.Int("attempts", e.Attempt),
		slog.String("error", handlerErr.Error()),
	)
	return x.cascade(ctx, e, now)
}

// finalizeFailed marks the entry failed without quarantining.
func (x *Executor) finalizeFailed(ctx context.Context, e *entry.Entry, handlerErr error, now time.Time) error {
	if err := e.Transition(entry.StatusFailed, now); err != nil {
		return err
	}
	if updateErr := x.store.UpdateEntry(ctx, e); updateErr != nil {
		x.logger.Error("failed to update entry as failed",
			slog.String("entry_id", e.ID.String()),
			slog.String("error", updateErr.Error()),
		)
		return updateErr
	}

	x.hooks.EmitEntryFailed(ctx, e, handlerErr)

	x.logger.Warn("entry failed after exhausting attempts",
		slog.String("entry_id", e.ID.String()),
		slog.String("job_id", e.JobID),
		slog.Int("attempts", e.Attempt),
		slog.String("error", handlerErr.Error()),
	)
	return x.cascade(ctx, e, now)
}

// cascade propagates a terminal outcome to dependent entries.
func (x *Executor) cascade(ctx context.Context, e *entry.Entry, now time.Time) error {
	if x.resolver == nil {
		return nil
	}
	if _, err := x.resolver.OnTerminal(ctx, e.ID, e.Status, now); err != nil {
		x.logger.Error("dependency cascade failed",
			slog.String("entry_id", e.ID.String()),
			slog.String("error", err.Error()),
		)
		return err
	}
	return nil
}
