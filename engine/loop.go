package engine

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/conductorhq/conductor"
	"github.com/conductorhq/conductor/entry"
)

// errDrained signals the tick loop that draining finished.
var errDrained = errors.New("conductor: drained")

// Start launches the tick loop goroutine. It returns immediately.
func (eng *Engine) Start(_ context.Context) error {
	eng.loopMu.Lock()
	defer eng.loopMu.Unlock()

	if eng.running {
		return nil
	}
	eng.running = true
	eng.stopCh = make(chan struct{})
	eng.doneCh = make(chan struct{})
	eng.baseCtx, eng.cancel = context.WithCancel(context.Background())

	go eng.run()

	eng.logger.Info("tick loop started",
		slog.Duration("poll_interval", eng.pollInterval()),
	)
	return nil
}

// Stop halts the tick loop and waits up to the configured shutdown
// timeout for in-flight executions, then cancels their contexts.
func (eng *Engine) Stop(ctx context.Context) error {
	eng.loopMu.Lock()
	if !eng.running {
		eng.loopMu.Unlock()
		return nil
	}
	eng.running = false
	close(eng.stopCh)
	eng.loopMu.Unlock()

	<-eng.doneCh

	eng.mu.RLock()
	grace := eng.cfg.ShutdownTimeout
	eng.mu.RUnlock()

	finished := make(chan struct{})
	go func() {
		eng.inflight.Wait()
		close(finished)
	}()

	select {
	case <-finished:
	case <-time.After(grace):
		eng.logger.Warn("shutdown grace period elapsed, cancelling in-flight entries",
			slog.Int64("active", eng.active.Load()),
		)
		eng.cancel()
		<-finished
	case <-ctx.Done():
		eng.cancel()
		<-finished
	}

	eng.cancel()
	eng.logger.Info("tick loop stopped")
	return nil
}

func (eng *Engine) pollInterval() time.Duration {
	eng.mu.RLock()
	defer eng.mu.RUnlock()
	if eng.cfg.PollInterval <= 0 {
		return time.Second
	}
	return eng.cfg.PollInterval
}

// run is the tick loop. All dispatch decisions happen here, on a single
// goroutine; executions fan out and report back through the store.
func (eng *Engine) run() {
	defer close(eng.doneCh)

	ticker := time.NewTicker(eng.pollInterval())
	defer ticker.Stop()

	for {
		select {
		case <-eng.stopCh:
			return
		case <-ticker.C:
			if err := eng.tick(eng.baseCtx); err != nil {
				if errors.Is(err, errDrained) {
					eng.logger.Info("drain complete, tick loop exiting")
					eng.loopMu.Lock()
					eng.running = false
					eng.loopMu.Unlock()
					return
				}
				eng.logger.Error("tick failed", slog.String("error", err.Error()))
			}
			ticker.Reset(eng.pollInterval())
		}
	}
}

// tick runs one dispatch cycle: promote due and unblocked entries, then
// select, admit, and launch ready ones up to the concurrency budget.
func (eng *Engine) tick(ctx context.Context) error {
	now := time.Now().UTC()

	if err := eng.promote(ctx, now); err != nil {
		return err
	}

	eng.mu.RLock()
	mode := eng.mode
	maxConcurrency := eng.cfg.MaxConcurrency
	eng.mu.RUnlock()

	if mode == conductor.ModePaused {
		return nil
	}

	pool, err := eng.entryStore.ListEntries(ctx, entry.ListOpts{Status: entry.StatusReady})
	if err != nil {
		return err
	}
	pool = eng.unclaimed(pool)

	// Draining is complete only when ready, pending, and delayed are all
	// empty and nothing is in flight: a delayed entry (scheduled, or a
	// backoff retry from a run that finished during drain) still owes an
	// execution.
	if mode == conductor.ModeDraining && len(pool) == 0 && eng.active.Load() == 0 {
		idle, err := eng.poolsIdle(ctx)
		if err != nil {
			return err
		}
		if idle {
			return errDrained
		}
	}

	slots := maxConcurrency - int(eng.active.Load())
	if slots <= 0 || len(pool) == 0 {
		return nil
	}

	for _, e := range eng.selector.Select(pool, slots) {
		// Admitting an unregistered job would charge its rate-limit
		// window for a run that never happens. Leave it in the pool.
		if _, ok := eng.registry.Lookup(e.JobID); !ok {
			eng.logger.Warn("no handler registered for job, skipping entry",
				slog.String("job_id", e.JobID),
				slog.String("entry_id", e.ID.String()),
			)
			continue
		}
		if !eng.limiter.Admit(e, now) {
			continue
		}
		eng.launch(ctx, e)
	}
	return nil
}

// poolsIdle reports whether no pending or delayed entry remains.
func (eng *Engine) poolsIdle(ctx context.Context) (bool, error) {
	for _, st := range []entry.Status{entry.StatusPending, entry.StatusDelayed} {
		n, err := eng.entryStore.CountEntries(ctx, entry.CountOpts{Status: st})
		if err != nil {
			return false, err
		}
		if n > 0 {
			return false, nil
		}
	}
	return true, nil
}

// promote moves delayed entries whose time has come, and pending entries
// whose dependency sets are satisfied, into the ready pool.
func (eng *Engine) promote(ctx context.Context, now time.Time) error {
	delayed, err := eng.entryStore.ListEntries(ctx, entry.ListOpts{Status: entry.StatusDelayed})
	if err != nil {
		return err
	}
	for _, e := range delayed {
		if !e.DueAt(now) {
			continue
		}
		if err := e.Transition(entry.StatusReady, now); err != nil {
			return err
		}
		if err := eng.entryStore.UpdateEntry(ctx, e); err != nil {
			return err
		}
	}

	// Pending entries are normally promoted by the resolver when a
	// dependency terminates; this sweep catches entries whose last
	// dependency completed between snapshot and create.
	pending, err := eng.entryStore.ListEntries(ctx, entry.ListOpts{Status: entry.StatusPending})
	if err != nil {
		return err
	}
	for _, e := range pending {
		if !e.DependenciesSatisfied() {
			continue
		}
		to := entry.StatusReady
		if !e.DueAt(now) {
			to = entry.StatusDelayed
		}
		if err := e.Transition(to, now); err != nil {
			return err
		}
		if err := eng.entryStore.UpdateEntry(ctx, e); err != nil {
			return err
		}
	}
	return nil
}

// unclaimed filters out entries already handed to an execution
// goroutine. Runs on the tick goroutine; the filtered slice reuses the
// pool's backing array.
func (eng *Engine) unclaimed(pool []*entry.Entry) []*entry.Entry {
	eng.claimedMu.Lock()
	defer eng.claimedMu.Unlock()
	if len(eng.claimed) == 0 {
		return pool
	}
	out := pool[:0]
	for _, e := range pool {
		if _, ok := eng.claimed[e.ID.String()]; !ok {
			out = append(out, e)
		}
	}
	return out
}

// launch runs an admitted entry on its own goroutine. The tick loop does
// not await the result; the executor reports back through the store and
// lifecycle hooks. The entry is claimed before the goroutine starts so
// the next tick cannot dispatch it again while the running transition is
// still being persisted.
func (eng *Engine) launch(ctx context.Context, e *entry.Entry) {
	key := e.ID.String()
	eng.claimedMu.Lock()
	eng.claimed[key] = struct{}{}
	eng.claimedMu.Unlock()

	eng.active.Add(1)
	eng.inflight.Add(1)
	go func() {
		defer func() {
			eng.limiter.Release(e)
			eng.active.Add(-1)
			eng.inflight.Done()

			// By now the executor has persisted the entry's next status,
			// so a ready listing no longer includes this attempt.
			eng.claimedMu.Lock()
			delete(eng.claimed, key)
			eng.claimedMu.Unlock()
		}()

		eng.mu.RLock()
		exec := eng.executor
		eng.mu.RUnlock()

		if err := exec.Execute(ctx, e); err != nil {
			eng.logger.Error("entry execution bookkeeping failed",
				slog.String("entry_id", e.ID.String()),
				slog.String("job_id", e.JobID),
				slog.String("error", err.Error()),
			)
		}
	}()
}
