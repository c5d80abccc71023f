package stats_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/conductorhq/conductor/dlq"
	"github.com/conductorhq/conductor/entry"
	"github.com/conductorhq/conductor/id"
	"github.com/conductorhq/conductor/limiter"
	"github.com/conductorhq/conductor/stats"
	"github.com/conductorhq/conductor/store/memory"
)

func seedEntry(t *testing.T, s *memory.Store, e *entry.Entry) {
	t.Helper()
	if err := s.CreateEntry(context.Background(), e); err != nil {
		t.Fatalf("CreateEntry returned error: %v", err)
	}
}

func TestCollect_EmptySystem(t *testing.T) {
	t.Parallel()
	s := memory.New()
	agg := stats.New(s, s, nil)

	snap, err := agg.Collect(context.Background())
	if err != nil {
		t.Fatalf("Collect returned error: %v", err)
	}

	if snap.Total != 0 {
		t.Errorf("Total = %d, want 0", snap.Total)
	}
	if snap.SuccessRate != 0 {
		t.Errorf("SuccessRate = %f, want 0", snap.SuccessRate)
	}
	if snap.AvgWait != 0 || snap.AvgExec != 0 {
		t.Errorf("expected zero averages, got wait=%v exec=%v", snap.AvgWait, snap.AvgExec)
	}
	// Stable shape: every status and priority key present.
	if len(snap.ByStatus) != len(entry.Statuses()) {
		t.Errorf("ByStatus has %d keys, want %d", len(snap.ByStatus), len(entry.Statuses()))
	}
	if len(snap.ByPriority) != len(entry.Priorities()) {
		t.Errorf("ByPriority has %d keys, want %d", len(snap.ByPriority), len(entry.Priorities()))
	}
}

func TestCollect_CountsAndAverages(t *testing.T) {
	t.Parallel()
	s := memory.New()
	agg := stats.New(s, s, nil)
	ctx := context.Background()

	base := time.Now().UTC().Add(-time.Minute)

	// Completed: waited 2s, ran 4s.
	started := base.Add(2 * time.Second)
	done := started.Add(4 * time.Second)
	completed := &entry.Entry{
		ID: id.NewEntryID(), JobID: "job.a", Status: entry.StatusCompleted,
		Priority: entry.PriorityHigh, EnqueuedAt: base,
		StartedAt: &started, CompletedAt: &done,
	}

	// Failed: waited 6s, never completed.
	failedStart := base.Add(6 * time.Second)
	failed := &entry.Entry{
		ID: id.NewEntryID(), JobID: "job.b", Status: entry.StatusFailed,
		Priority: entry.PriorityNormal, EnqueuedAt: base,
		StartedAt: &failedStart,
	}

	// Still waiting.
	ready := &entry.Entry{
		ID: id.NewEntryID(), JobID: "job.c", Status: entry.StatusReady,
		Priority: entry.PriorityNormal, EnqueuedAt: base,
	}
	running := &entry.Entry{
		ID: id.NewEntryID(), JobID: "job.d", Status: entry.StatusRunning,
		Priority: entry.PriorityCritical, EnqueuedAt: base,
		StartedAt: &started,
	}

	for _, e := range []*entry.Entry{completed, failed, ready, running} {
		seedEntry(t, s, e)
	}

	snap, err := agg.Collect(ctx)
	if err != nil {
		t.Fatalf("Collect returned error: %v", err)
	}

	if snap.Total != 4 {
		t.Errorf("Total = %d, want 4", snap.Total)
	}
	if snap.ByStatus[entry.StatusCompleted] != 1 {
		t.Errorf("completed count = %d, want 1", snap.ByStatus[entry.StatusCompleted])
	}
	if snap.ByStatus[entry.StatusReady] != 1 {
		t.Errorf("ready count = %d, want 1", snap.ByStatus[entry.StatusReady])
	}
	if snap.Running != 1 {
		t.Errorf("Running = %d, want 1", snap.Running)
	}

	// Terminal entries don't count toward priority pools.
	if snap.ByPriority[entry.PriorityHigh] != 0 {
		t.Errorf("high pool = %d, want 0", snap.ByPriority[entry.PriorityHigh])
	}
	if snap.ByPriority[entry.PriorityNormal] != 1 {
		t.Errorf("normal pool = %d, want 1", snap.ByPriority[entry.PriorityNormal])
	}

	// AvgWait over the three started entries: (2s + 6s + 2s) / 3.
	wantWait := (2*time.Second + 6*time.Second + 2*time.Second) / 3
	if snap.AvgWait != wantWait {
		t.Errorf("AvgWait = %v, want %v", snap.AvgWait, wantWait)
	}
	// AvgExec over the one completed entry.
	if snap.AvgExec != 4*time.Second {
		t.Errorf("AvgExec = %v, want 4s", snap.AvgExec)
	}
	// One completed, one failed.
	if snap.SuccessRate != 0.5 {
		t.Errorf("SuccessRate = %f, want 0.5", snap.SuccessRate)
	}
}

func TestCollect_SuccessRateExcludesDeadLetters(t *testing.T) {
	t.Parallel()
	s := memory.New()
	agg := stats.New(s, s, nil)

	now := time.Now().UTC()
	statuses := []entry.Status{
		entry.StatusCompleted, entry.StatusCompleted, entry.StatusCompleted,
		entry.StatusFailed,
		entry.StatusDeadLetter, entry.StatusDeadLetter,
	}
	for _, st := range statuses {
		seedEntry(t, s, &entry.Entry{
			ID: id.NewEntryID(), JobID: "job.mixed", Status: st,
			Priority: entry.PriorityNormal, EnqueuedAt: now,
		})
	}

	snap, err := agg.Collect(context.Background())
	if err != nil {
		t.Fatalf("Collect returned error: %v", err)
	}

	// Three completed, one failed; the two quarantined entries are
	// neither success nor failure.
	if snap.SuccessRate != 0.75 {
		t.Errorf("SuccessRate = %f, want 0.75", snap.SuccessRate)
	}
	if snap.ByStatus[entry.StatusDeadLetter] != 2 {
		t.Errorf("dead-letter count = %d, want 2", snap.ByStatus[entry.StatusDeadLetter])
	}
}

func TestCollect_DeadLettersAndGroups(t *testing.T) {
	t.Parallel()
	s := memory.New()
	lim := limiter.New(map[string]int{"tenant-a": 2}, 0, 0)
	agg := stats.New(s, s, lim)
	ctx := context.Background()

	if err := s.PushDeadLetter(ctx, &dlq.Entry{
		ID:              id.NewDeadLetterID(),
		OriginalEntryID: id.NewEntryID(),
		JobID:           "job.dead",
		CreatedAt:       time.Now().UTC(),
	}); err != nil {
		t.Fatalf("PushDeadLetter returned error: %v", err)
	}

	occupant := &entry.Entry{
		ID: id.NewEntryID(), JobID: "job.slot", Status: entry.StatusReady,
		Priority: entry.PriorityNormal, EnqueuedAt: time.Now().UTC(),
		ConcurrencyKey: "tenant-a",
	}
	if !lim.Admit(occupant, time.Now().UTC()) {
		t.Fatal("Admit refused an empty group")
	}

	snap, err := agg.Collect(ctx)
	if err != nil {
		t.Fatalf("Collect returned error: %v", err)
	}

	if snap.DeadLetters != 1 {
		t.Errorf("DeadLetters = %d, want 1", snap.DeadLetters)
	}
	if len(snap.Groups) != 1 {
		t.Fatalf("expected 1 concurrency group, got %d", len(snap.Groups))
	}
	if snap.Groups[0].Key != "tenant-a" || snap.Groups[0].Active != 1 {
		t.Errorf("group = %+v, want tenant-a with 1 active", snap.Groups[0])
	}
}

func TestCollect_StoreErrorPropagates(t *testing.T) {
	t.Parallel()
	agg := stats.New(brokenEntryStore{}, nil, nil)

	_, err := agg.Collect(context.Background())
	if err == nil {
		t.Fatal("expected error from broken store")
	}
}

type brokenEntryStore struct {
	entry.Store
}

func (brokenEntryStore) ListEntries(context.Context, entry.ListOpts) ([]*entry.Entry, error) {
	return nil, errors.New("connection reset")
}
