// Package graph tracks per-entry dependency sets and propagates terminal
// outcomes to dependents. Completion unblocks dependents; failure
// cascades transitively, failing every entry downstream of the failed
// one. The resolver also validates at enqueue time that a dependency set
// does not close a cycle.
package graph

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/conductorhq/conductor"
	"github.com/conductorhq/conductor/entry"
	"github.com/conductorhq/conductor/id"
)

// Resolver re-evaluates dependent entries when a dependency reaches a
// terminal state. All mutations go through the record store; the
// resolver holds no state of its own.
type Resolver struct {
	store  entry.Store
	logger *slog.Logger
}

// New creates a Resolver over the given record store.
func New(store entry.Store, logger *slog.Logger) *Resolver {
	return &Resolver{store: store, logger: logger}
}

// Result lists the entries affected by a terminal outcome: dependents
// promoted to ready and dependents failed by cascade, in the order the
// transitions were applied.
type Result struct {
	Ready  []*entry.Entry
	Failed []*entry.Entry
}

// outcomeOf maps a terminal status onto the dependency state dependents
// observe. Anything that is not success counts as failure.
func outcomeOf(s entry.Status) entry.DependencyState {
	if s == entry.StatusCompleted {
		return entry.DepCompleted
	}
	return entry.DepFailed
}

// OnTerminal propagates the terminal outcome of the given entry to its
// dependents. It scans pending entries whose dependency sets include the
// terminal ID, updates their observed dependency states, promotes
// fully-satisfied dependents to ready (or delayed, when their scheduled
// time has not passed), and fails dependents of failed work — cascading
// transitively via an iterative worklist, which terminates on any finite
// graph, cyclic or not.
func (r *Resolver) OnTerminal(ctx context.Context, terminalID id.EntryID, status entry.Status, now time.Time) (*Result, error) {
	res := &Result{}

	type item struct {
		depID   id.EntryID
		outcome entry.DependencyState
	}
	work := []item{{terminalID, outcomeOf(status)}}
	seen := map[string]bool{}

	for len(work) > 0 {
		cur := work[0]
		work = work[1:]

		key := cur.depID.String()
		if seen[key] {
			continue
		}
		seen[key] = true

		pending, err := r.store.ListEntries(ctx, entry.ListOpts{Status: entry.StatusPending})
		if err != nil {
			return res, fmt.Errorf("graph: list pending entries: %w", err)
		}

		for _, dep := range pending {
			if !dependsOn(dep, cur.depID) {
				continue
			}
			if dep.DependencyStatus == nil {
				dep.DependencyStatus = make(map[string]entry.DependencyState, len(dep.DependsOn))
			}
			dep.DependencyStatus[key] = cur.outcome

			switch {
			case cur.outcome == entry.DepFailed:
				dep.Error = fmt.Sprintf("dependency %s failed", key)
				if err := dep.Transition(entry.StatusFailed, now); err != nil {
					return res, err
				}
				if err := r.store.UpdateEntry(ctx, dep); err != nil {
					return res, fmt.Errorf("graph: fail dependent %s: %w", dep.ID, err)
				}
				res.Failed = append(res.Failed, dep)
				work = append(work, item{dep.ID, entry.DepFailed})

			case dep.DependenciesSatisfied():
				to := entry.StatusReady
				if !dep.DueAt(now) {
					to = entry.StatusDelayed
				}
				if err := dep.Transition(to, now); err != nil {
					return res, err
				}
				if err := r.store.UpdateEntry(ctx, dep); err != nil {
					return res, fmt.Errorf("graph: promote dependent %s: %w", dep.ID, err)
				}
				if to == entry.StatusReady {
					res.Ready = append(res.Ready, dep)
				}

			default:
				if err := r.store.UpdateEntry(ctx, dep); err != nil {
					return res, fmt.Errorf("graph: record dependency state on %s: %w", dep.ID, err)
				}
			}
		}
	}

	return res, nil
}

// Snapshot returns the current observed state of each dependency, for
// initializing a new entry's DependencyStatus at enqueue time. Unknown
// IDs read as pending; terminal-but-not-completed dependencies read as
// failed.
func (r *Resolver) Snapshot(ctx context.Context, deps []id.EntryID) (map[string]entry.DependencyState, error) {
	if len(deps) == 0 {
		return nil, nil
	}
	out := make(map[string]entry.DependencyState, len(deps))
	for _, depID := range deps {
		dep, err := r.store.GetEntry(ctx, depID)
		if err != nil || dep == nil {
			// Forward reference: the dependency may be enqueued later.
			out[depID.String()] = entry.DepPending
			continue
		}
		switch {
		case dep.Status == entry.StatusCompleted:
			out[depID.String()] = entry.DepCompleted
		case dep.Status.Terminal():
			out[depID.String()] = entry.DepFailed
		default:
			out[depID.String()] = entry.DepPending
		}
	}
	return out, nil
}

// ValidateAcyclic checks that following DependsOn edges from the given
// set never revisits a node on the current path. The store is the edge
// source; unknown IDs are leaves. Returns ErrDependencyCycle when a
// cycle is reachable.
func (r *Resolver) ValidateAcyclic(ctx context.Context, deps []id.EntryID) error {
	onPath := map[string]bool{}
	done := map[string]bool{}

	var visit func(depID id.EntryID) error
	visit = func(depID id.EntryID) error {
		key := depID.String()
		if done[key] {
			return nil
		}
		if onPath[key] {
			return fmt.Errorf("%w: via %s", conductor.ErrDependencyCycle, key)
		}
		onPath[key] = true
		defer func() {
			onPath[key] = false
			done[key] = true
		}()

		dep, err := r.store.GetEntry(ctx, depID)
		if err != nil || dep == nil {
			return nil // unknown IDs are leaves
		}
		for _, next := range dep.DependsOn {
			if err := visit(next); err != nil {
				return err
			}
		}
		return nil
	}

	for _, depID := range deps {
		if err := visit(depID); err != nil {
			return err
		}
	}
	return nil
}

func dependsOn(e *entry.Entry, depID id.EntryID) bool {
	for _, d := range e.DependsOn {
		if d.String() == depID.String() {
			return true
		}
	}
	return false
}
