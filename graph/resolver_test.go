package graph_test

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/conductorhq/conductor"
	"github.com/conductorhq/conductor/entry"
	"github.com/conductorhq/conductor/graph"
	"github.com/conductorhq/conductor/id"
	"github.com/conductorhq/conductor/store/memory"
)

func newEntry(status entry.Status, deps ...id.EntryID) *entry.Entry {
	now := time.Now().UTC()
	e := &entry.Entry{
		ID:          id.NewEntryID(),
		JobID:       "job.test",
		JobName:     "test",
		Status:      status,
		Priority:    entry.PriorityNormal,
		EnqueuedAt:  now,
		MaxAttempts: 3,
		DependsOn:   deps,
		CreatedAt:   now,
	}
	if len(deps) > 0 {
		e.DependencyStatus = make(map[string]entry.DependencyState, len(deps))
		for _, d := range deps {
			e.DependencyStatus[d.String()] = entry.DepPending
		}
	}
	return e
}

func mustCreate(t *testing.T, s *memory.Store, entries ...*entry.Entry) {
	t.Helper()
	for _, e := range entries {
		if err := s.CreateEntry(context.Background(), e); err != nil {
			t.Fatalf("CreateEntry returned error: %v", err)
		}
	}
}

func TestOnTerminal_PromotesSatisfiedDependent(t *testing.T) {
	t.Parallel()
	s := memory.New()
	r := graph.New(s, slog.Default())
	ctx := context.Background()

	dep := newEntry(entry.StatusCompleted)
	waiting := newEntry(entry.StatusPending, dep.ID)
	mustCreate(t, s, dep, waiting)

	res, err := r.OnTerminal(ctx, dep.ID, entry.StatusCompleted, time.Now().UTC())
	if err != nil {
		t.Fatalf("OnTerminal returned error: %v", err)
	}
	if len(res.Ready) != 1 || res.Ready[0].ID.String() != waiting.ID.String() {
		t.Fatalf("expected waiting entry promoted, got %+v", res.Ready)
	}

	got, _ := s.GetEntry(ctx, waiting.ID)
	if got.Status != entry.StatusReady {
		t.Errorf("Status = %s, want ready", got.Status)
	}
	if got.DependencyStatus[dep.ID.String()] != entry.DepCompleted {
		t.Errorf("dependency state = %s, want completed", got.DependencyStatus[dep.ID.String()])
	}
}

func TestOnTerminal_HoldsUntilAllSatisfied(t *testing.T) {
	t.Parallel()
	s := memory.New()
	r := graph.New(s, slog.Default())
	ctx := context.Background()

	depA := newEntry(entry.StatusCompleted)
	depB := newEntry(entry.StatusRunning)
	waiting := newEntry(entry.StatusPending, depA.ID, depB.ID)
	mustCreate(t, s, depA, depB, waiting)

	res, err := r.OnTerminal(ctx, depA.ID, entry.StatusCompleted, time.Now().UTC())
	if err != nil {
		t.Fatalf("OnTerminal returned error: %v", err)
	}
	if len(res.Ready) != 0 {
		t.Fatalf("expected no promotion with one dependency outstanding, got %d", len(res.Ready))
	}

	got, _ := s.GetEntry(ctx, waiting.ID)
	if got.Status != entry.StatusPending {
		t.Errorf("Status = %s, want pending", got.Status)
	}
}

func TestOnTerminal_PromotesToDelayedWhenScheduled(t *testing.T) {
	t.Parallel()
	s := memory.New()
	r := graph.New(s, slog.Default())
	ctx := context.Background()

	dep := newEntry(entry.StatusCompleted)
	waiting := newEntry(entry.StatusPending, dep.ID)
	future := time.Now().UTC().Add(time.Hour)
	waiting.ScheduledFor = &future
	mustCreate(t, s, dep, waiting)

	res, err := r.OnTerminal(ctx, dep.ID, entry.StatusCompleted, time.Now().UTC())
	if err != nil {
		t.Fatalf("OnTerminal returned error: %v", err)
	}
	if len(res.Ready) != 0 {
		t.Fatalf("scheduled entry must not be ready yet, got %d", len(res.Ready))
	}

	got, _ := s.GetEntry(ctx, waiting.ID)
	if got.Status != entry.StatusDelayed {
		t.Errorf("Status = %s, want delayed", got.Status)
	}
}

func TestOnTerminal_FailureCascadesTransitively(t *testing.T) {
	t.Parallel()
	s := memory.New()
	r := graph.New(s, slog.Default())
	ctx := context.Background()

	root := newEntry(entry.StatusFailed)
	mid := newEntry(entry.StatusPending, root.ID)
	leaf := newEntry(entry.StatusPending, mid.ID)
	mustCreate(t, s, root, mid, leaf)

	res, err := r.OnTerminal(ctx, root.ID, entry.StatusFailed, time.Now().UTC())
	if err != nil {
		t.Fatalf("OnTerminal returned error: %v", err)
	}
	if len(res.Failed) != 2 {
		t.Fatalf("expected 2 cascade failures, got %d", len(res.Failed))
	}

	for _, eid := range []id.EntryID{mid.ID, leaf.ID} {
		got, _ := s.GetEntry(ctx, eid)
		if got.Status != entry.StatusFailed {
			t.Errorf("entry %s: Status = %s, want failed", eid, got.Status)
		}
		if !strings.Contains(got.Error, "dependency") || !strings.Contains(got.Error, "failed") {
			t.Errorf("entry %s: Error = %q, want dependency failure message", eid, got.Error)
		}
	}
}

func TestOnTerminal_DeadLetterCountsAsFailure(t *testing.T) {
	t.Parallel()
	s := memory.New()
	r := graph.New(s, slog.Default())
	ctx := context.Background()

	dep := newEntry(entry.StatusDeadLetter)
	waiting := newEntry(entry.StatusPending, dep.ID)
	mustCreate(t, s, dep, waiting)

	res, err := r.OnTerminal(ctx, dep.ID, entry.StatusDeadLetter, time.Now().UTC())
	if err != nil {
		t.Fatalf("OnTerminal returned error: %v", err)
	}
	if len(res.Failed) != 1 {
		t.Fatalf("expected 1 cascade failure, got %d", len(res.Failed))
	}
}

func TestSnapshot(t *testing.T) {
	t.Parallel()
	s := memory.New()
	r := graph.New(s, slog.Default())
	ctx := context.Background()

	completed := newEntry(entry.StatusCompleted)
	failed := newEntry(entry.StatusFailed)
	running := newEntry(entry.StatusRunning)
	mustCreate(t, s, completed, failed, running)
	unknown := id.NewEntryID()

	snap, err := r.Snapshot(ctx, []id.EntryID{completed.ID, failed.ID, running.ID, unknown})
	if err != nil {
		t.Fatalf("Snapshot returned error: %v", err)
	}

	want := map[string]entry.DependencyState{
		completed.ID.String(): entry.DepCompleted,
		failed.ID.String():    entry.DepFailed,
		running.ID.String():   entry.DepPending,
		unknown.String():      entry.DepPending,
	}
	for key, state := range want {
		if snap[key] != state {
			t.Errorf("snapshot[%s] = %s, want %s", key, snap[key], state)
		}
	}
}

func TestSnapshot_EmptyDeps(t *testing.T) {
	t.Parallel()
	r := graph.New(memory.New(), slog.Default())

	snap, err := r.Snapshot(context.Background(), nil)
	if err != nil {
		t.Fatalf("Snapshot returned error: %v", err)
	}
	if snap != nil {
		t.Errorf("expected nil snapshot for empty deps, got %v", snap)
	}
}

func TestValidateAcyclic(t *testing.T) {
	t.Parallel()
	s := memory.New()
	r := graph.New(s, slog.Default())
	ctx := context.Background()

	a := newEntry(entry.StatusPending)
	b := newEntry(entry.StatusPending, a.ID)
	mustCreate(t, s, a, b)

	if err := r.ValidateAcyclic(ctx, []id.EntryID{b.ID}); err != nil {
		t.Fatalf("acyclic chain rejected: %v", err)
	}

	// Close the loop: a depends on b, b depends on a.
	a.DependsOn = []id.EntryID{b.ID}
	if err := s.UpdateEntry(ctx, a); err != nil {
		t.Fatalf("UpdateEntry returned error: %v", err)
	}

	err := r.ValidateAcyclic(ctx, []id.EntryID{a.ID})
	if !errors.Is(err, conductor.ErrDependencyCycle) {
		t.Fatalf("expected ErrDependencyCycle, got %v", err)
	}
}

func TestValidateAcyclic_UnknownIDsAreLeaves(t *testing.T) {
	t.Parallel()
	r := graph.New(memory.New(), slog.Default())

	if err := r.ValidateAcyclic(context.Background(), []id.EntryID{id.NewEntryID()}); err != nil {
		t.Fatalf("unknown dependency rejected: %v", err)
	}
}
