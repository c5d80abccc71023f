package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/conductorhq/conductor"
	"github.com/conductorhq/conductor/entry"
	"github.com/conductorhq/conductor/id"
	"github.com/conductorhq/conductor/stats"
	"github.com/conductorhq/conductor/worker"
)

// Mode returns the current dispatch mode.
func (eng *Engine) Mode() conductor.Mode {
	eng.mu.RLock()
	defer eng.mu.RUnlock()
	return eng.mode
}

// setMode transitions the dispatch mode and emits ModeChanged. Setting
// the mode it is already in is a no-op.
func (eng *Engine) setMode(ctx context.Context, to conductor.Mode) {
	eng.mu.Lock()
	if eng.mode == to {
		eng.mu.Unlock()
		return
	}
	from := eng.mode
	eng.mode = to
	eng.mu.Unlock()

	eng.logger.Info("dispatch mode changed",
		slog.String("from", string(from)),
		slog.String("to", string(to)),
	)
	eng.hooks.EmitModeChanged(ctx, string(to))
}

// Pause stops dispatching new entries. Running entries finish normally;
// the pools keep accepting enqueues. Idempotent.
func (eng *Engine) Pause(ctx context.Context) {
	eng.setMode(ctx, conductor.ModePaused)
}

// Resume restores normal dispatch. Idempotent.
func (eng *Engine) Resume(ctx context.Context) {
	eng.setMode(ctx, conductor.ModeActive)
}

// Drain lets ready and running entries finish, dispatches nothing that
// is not already in flight toward readiness, and stops the tick loop
// once the ready pool is empty and nothing is running. Pending and
// delayed entries stay parked for the next start. Idempotent.
func (eng *Engine) Drain(ctx context.Context) {
	eng.setMode(ctx, conductor.ModeDraining)
}

// Cancel withdraws an entry that has not started running. Running
// entries cannot be cancelled (ErrEntryRunning); entries already in a
// terminal state report ErrEntryTerminal. Cancellation counts as
// failure for dependents.
func (eng *Engine) Cancel(ctx context.Context, entryID id.EntryID) error {
	e, err := eng.entryStore.GetEntry(ctx, entryID)
	if err != nil {
		return err
	}
	if e.Status == entry.StatusRunning {
		return conductor.ErrEntryRunning
	}
	if e.Status.Terminal() {
		return conductor.ErrEntryTerminal
	}

	now := time.Now().UTC()
	if err := e.Transition(entry.StatusCancelled, now); err != nil {
		return err
	}
	if err := eng.entryStore.UpdateEntry(ctx, e); err != nil {
		return err
	}

	eng.hooks.EmitEntryCancelled(ctx, e)

	if _, err := eng.resolver.OnTerminal(ctx, e.ID, e.Status, now); err != nil {
		return err
	}
	return nil
}

// RetryDeadLetter resubmits a quarantined entry as a brand-new
// high-priority entry with a fresh attempt budget, and returns it.
func (eng *Engine) RetryDeadLetter(ctx context.Context, dlqID id.DeadLetterID) (*entry.Entry, error) {
	e, err := eng.dlqService.Resubmit(ctx, dlqID)
	if err != nil {
		return nil, err
	}
	eng.hooks.EmitEntryEnqueued(ctx, e)
	return e, nil
}

// Stats collects a point-in-time snapshot of queue statistics.
func (eng *Engine) Stats(ctx context.Context) (*stats.Snapshot, error) {
	return eng.aggregator.Collect(ctx)
}

// Config returns a copy of the engine's current configuration.
func (eng *Engine) Config() conductor.Config {
	eng.mu.RLock()
	defer eng.mu.RUnlock()
	return eng.cfg
}

// UpdateConfig applies a partial configuration update at runtime and
// propagates it to the selector, limiter, and executor. In-flight
// executions keep the settings they started with.
func (eng *Engine) UpdateConfig(patch conductor.ConfigPatch) {
	eng.mu.Lock()
	eng.cfg = patch.Apply(eng.cfg)
	cfg := eng.cfg

	if patch.PriorityWeights != nil {
		eng.selector.SetWeights(cfg.PriorityWeights)
	}
	if patch.ConcurrencyLimits != nil {
		eng.limiter.SetLimits(cfg.ConcurrencyLimits)
	}
	if patch.DispatchRate != nil || patch.DispatchBurst != nil {
		eng.limiter.SetDispatchRate(cfg.DispatchRate, cfg.DispatchBurst)
	}
	if patch.DeadLetterEnabled != nil || patch.DeadLetterThreshold != nil {
		eng.executor = worker.NewExecutor(
			eng.registry,
			eng.hooks,
			eng.entryStore,
			eng.dlqService,
			eng.resolver,
			eng.eventBus,
			worker.DeadLetterPolicy{Enabled: cfg.DeadLetterEnabled, Threshold: cfg.DeadLetterThreshold},
			eng.logger,
			eng.mws...,
		)
	}
	eng.mu.Unlock()

	eng.logger.Info("configuration updated",
		slog.Int("max_concurrency", cfg.MaxConcurrency),
		slog.Duration("poll_interval", cfg.PollInterval),
	)
}
