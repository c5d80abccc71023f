package sqlite_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/conductorhq/conductor"
	"github.com/conductorhq/conductor/dlq"
	"github.com/conductorhq/conductor/entry"
	"github.com/conductorhq/conductor/event"
	"github.com/conductorhq/conductor/id"
	"github.com/conductorhq/conductor/store/sqlite"
)

func newStore(t *testing.T) *sqlite.Store {
	t.Helper()
	s, err := sqlite.New(filepath.Join(t.TempDir(), "conductor.db"))
	if err != nil {
		t.Fatalf("sqlite.New: %v", err)
	}
	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("Close: %v", err)
		}
	})
	if err := s.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	return s
}

func testEntry(enqueuedAt time.Time) *entry.Entry {
	now := enqueuedAt.UTC()
	return &entry.Entry{
		ID:           id.NewEntryID(),
		JobID:        "send-report",
		JobName:      "Send Report",
		Status:       entry.StatusReady,
		Priority:     entry.PriorityNormal,
		EnqueuedAt:   now,
		MaxAttempts:  3,
		RetryDelay:   5 * time.Second,
		RetryBackoff: entry.BackoffExponential,
		Timeout:      time.Minute,
		Input:        []byte(`{"name":"daily"}`),
		Tags:         []string{"report"},
		Metadata:     map[string]string{"team": "billing"},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func TestSQLite_EntryRoundTrip(t *testing.T) {
	t.Parallel()
	s := newStore(t)
	ctx := context.Background()

	dep := id.NewEntryID()
	e := testEntry(time.Now())
	e.DependsOn = []id.EntryID{dep}
	e.DependencyStatus = map[string]entry.DependencyState{dep.String(): entry.DepPending}
	e.RateLimit = &entry.RateLimit{MaxRuns: 5, Window: time.Minute}
	sched := time.Now().Add(time.Hour).UTC()
	e.ScheduledFor = &sched

	if err := s.CreateEntry(ctx, e); err != nil {
		t.Fatalf("CreateEntry: %v", err)
	}
	if err := s.CreateEntry(ctx, e); !errors.Is(err, conductor.ErrEntryAlreadyExists) {
		t.Fatalf("duplicate CreateEntry: err = %v, want ErrEntryAlreadyExists", err)
	}

	got, err := s.GetEntry(ctx, e.ID)
	if err != nil {
		t.Fatalf("GetEntry: %v", err)
	}
	if got.JobID != e.JobID || got.Status != e.Status || got.Priority != e.Priority {
		t.Errorf("got %+v, want %+v", got, e)
	}
	if got.ScheduledFor == nil || !got.ScheduledFor.Equal(sched) {
		t.Errorf("ScheduledFor = %v, want %v", got.ScheduledFor, sched)
	}
	if len(got.DependsOn) != 1 || got.DependsOn[0].String() != dep.String() {
		t.Errorf("DependsOn = %v, want [%v]", got.DependsOn, dep)
	}
	if got.DependencyStatus[dep.String()] != entry.DepPending {
		t.Errorf("DependencyStatus = %v", got.DependencyStatus)
	}
	if got.RateLimit == nil || got.RateLimit.MaxRuns != 5 || got.RateLimit.Window != time.Minute {
		t.Errorf("RateLimit = %+v", got.RateLimit)
	}
	if string(got.Input) != `{"name":"daily"}` {
		t.Errorf("Input = %s", got.Input)
	}
	if got.Metadata["team"] != "billing" {
		t.Errorf("Metadata = %v", got.Metadata)
	}

	got.Status = entry.StatusRunning
	got.Attempt = 1
	started := time.Now().UTC()
	got.StartedAt = &started
	if err := s.UpdateEntry(ctx, got); err != nil {
		t.Fatalf("UpdateEntry: %v", err)
	}

	again, err := s.GetEntry(ctx, e.ID)
	if err != nil {
		t.Fatalf("GetEntry: %v", err)
	}
	if again.Status != entry.StatusRunning || again.Attempt != 1 {
		t.Errorf("after update: status %q attempt %d", again.Status, again.Attempt)
	}
	if again.StartedAt == nil {
		t.Error("StartedAt not persisted")
	}
	if !again.UpdatedAt.After(e.UpdatedAt) {
		t.Error("UpdatedAt not advanced")
	}
}

func TestSQLite_EntryNotFound(t *testing.T) {
	t.Parallel()
	s := newStore(t)
	ctx := context.Background()

	if _, err := s.GetEntry(ctx, id.NewEntryID()); !errors.Is(err, conductor.ErrEntryNotFound) {
		t.Errorf("GetEntry: err = %v, want ErrEntryNotFound", err)
	}
	e := testEntry(time.Now())
	if err := s.UpdateEntry(ctx, e); !errors.Is(err, conductor.ErrEntryNotFound) {
		t.Errorf("UpdateEntry: err = %v, want ErrEntryNotFound", err)
	}
}

func TestSQLite_ListEntriesOrderAndFilter(t *testing.T) {
	t.Parallel()
	s := newStore(t)
	ctx := context.Background()

	base := time.Now().Add(-time.Hour)
	var created []*entry.Entry
	for i := 0; i < 5; i++ {
		e := testEntry(base.Add(time.Duration(i) * time.Minute))
		if i%2 == 0 {
			e.Status = entry.StatusCompleted
		}
		if i == 3 {
			e.Priority = entry.PriorityCritical
		}
		if err := s.CreateEntry(ctx, e); err != nil {
			t.Fatalf("CreateEntry: %v", err)
		}
		created = append(created, e)
	}

	all, err := s.ListEntries(ctx, entry.ListOpts{})
	if err != nil {
		t.Fatalf("ListEntries: %v", err)
	}
	if len(all) != 5 {
		t.Fatalf("len(all) = %d, want 5", len(all))
	}
	for i := 1; i < len(all); i++ {
		if all[i].EnqueuedAt.Before(all[i-1].EnqueuedAt) {
			t.Fatalf("entries not ordered by enqueue time ascending")
		}
	}

	ready, err := s.ListEntries(ctx, entry.ListOpts{Status: entry.StatusReady})
	if err != nil {
		t.Fatalf("ListEntries ready: %v", err)
	}
	if len(ready) != 2 {
		t.Errorf("len(ready) = %d, want 2", len(ready))
	}

	crit, err := s.ListEntries(ctx, entry.ListOpts{Priority: entry.PriorityCritical})
	if err != nil {
		t.Fatalf("ListEntries critical: %v", err)
	}
	if len(crit) != 1 || crit[0].ID.String() != created[3].ID.String() {
		t.Errorf("critical filter returned %d entries", len(crit))
	}

	page, err := s.ListEntries(ctx, entry.ListOpts{Limit: 2, Offset: 1})
	if err != nil {
		t.Fatalf("ListEntries page: %v", err)
	}
	if len(page) != 2 {
		t.Fatalf("len(page) = %d, want 2", len(page))
	}
	if page[0].ID.String() != all[1].ID.String() {
		t.Errorf("page starts at %v, want %v", page[0].ID, all[1].ID)
	}

	n, err := s.CountEntries(ctx, entry.CountOpts{Status: entry.StatusCompleted})
	if err != nil {
		t.Fatalf("CountEntries: %v", err)
	}
	if n != 3 {
		t.Errorf("count completed = %d, want 3", n)
	}
}

func TestSQLite_DeadLetterLifecycle(t *testing.T) {
	t.Parallel()
	s := newStore(t)
	ctx := context.Background()

	now := time.Now().UTC()
	d := &dlq.Entry{
		ID:              id.NewDeadLetterID(),
		OriginalEntryID: id.NewEntryID(),
		JobID:           "send-report",
		JobName:         "Send Report",
		FailureReason:   "boom",
		Attempts:        5,
		MaxAttempts:     5,
		Input:           []byte(`{"name":"daily"}`),
		RetryDelay:      5 * time.Second,
		RetryBackoff:    entry.BackoffExponential,
		Timeout:         time.Minute,
		CanRetry:        true,
		CreatedAt:       now,
	}
	if err := s.PushDeadLetter(ctx, d); err != nil {
		t.Fatalf("PushDeadLetter: %v", err)
	}

	got, err := s.GetDeadLetter(ctx, d.ID)
	if err != nil {
		t.Fatalf("GetDeadLetter: %v", err)
	}
	if got.FailureReason != "boom" || got.Attempts != 5 || !got.CanRetry {
		t.Errorf("got %+v", got)
	}
	if got.OriginalEntryID.String() != d.OriginalEntryID.String() {
		t.Errorf("OriginalEntryID = %v, want %v", got.OriginalEntryID, d.OriginalEntryID)
	}

	if err := s.MarkResubmitted(ctx, d.ID, now.Add(time.Minute)); err != nil {
		t.Fatalf("MarkResubmitted: %v", err)
	}
	got, err = s.GetDeadLetter(ctx, d.ID)
	if err != nil {
		t.Fatalf("GetDeadLetter: %v", err)
	}
	if got.RetryCount != 1 || got.ResubmittedAt == nil {
		t.Errorf("RetryCount = %d, ResubmittedAt = %v", got.RetryCount, got.ResubmittedAt)
	}

	if _, err := s.GetDeadLetter(ctx, id.NewDeadLetterID()); !errors.Is(err, conductor.ErrDeadLetterNotFound) {
		t.Errorf("GetDeadLetter missing: err = %v, want ErrDeadLetterNotFound", err)
	}

	n, err := s.CountDeadLetters(ctx)
	if err != nil {
		t.Fatalf("CountDeadLetters: %v", err)
	}
	if n != 1 {
		t.Errorf("count = %d, want 1", n)
	}

	purged, err := s.PurgeDeadLetters(ctx, now.Add(time.Hour))
	if err != nil {
		t.Fatalf("PurgeDeadLetters: %v", err)
	}
	if purged != 1 {
		t.Errorf("purged = %d, want 1", purged)
	}
}

func TestSQLite_DeadLetterListNewestFirst(t *testing.T) {
	t.Parallel()
	s := newStore(t)
	ctx := context.Background()

	base := time.Now().Add(-time.Hour).UTC()
	for i := 0; i < 3; i++ {
		d := &dlq.Entry{
			ID:              id.NewDeadLetterID(),
			OriginalEntryID: id.NewEntryID(),
			JobID:           "send-report",
			CreatedAt:       base.Add(time.Duration(i) * time.Minute),
		}
		if err := s.PushDeadLetter(ctx, d); err != nil {
			t.Fatalf("PushDeadLetter: %v", err)
		}
	}

	letters, err := s.ListDeadLetters(ctx, dlq.ListOpts{})
	if err != nil {
		t.Fatalf("ListDeadLetters: %v", err)
	}
	if len(letters) != 3 {
		t.Fatalf("len = %d, want 3", len(letters))
	}
	for i := 1; i < len(letters); i++ {
		if letters[i].CreatedAt.After(letters[i-1].CreatedAt) {
			t.Fatal("letters not ordered newest first")
		}
	}

	none, err := s.ListDeadLetters(ctx, dlq.ListOpts{JobID: "other-job"})
	if err != nil {
		t.Fatalf("ListDeadLetters filtered: %v", err)
	}
	if len(none) != 0 {
		t.Errorf("len = %d, want 0", len(none))
	}
}

func TestSQLite_Events(t *testing.T) {
	t.Parallel()
	s := newStore(t)
	ctx := context.Background()

	base := time.Now().Add(-time.Hour).UTC()
	topics := []string{event.TopicEnqueued, event.TopicStarted, event.TopicCompleted}
	for i, topic := range topics {
		evt := &event.Event{
			ID:        id.NewEventID(),
			Topic:     topic,
			Payload:   []byte(`{"entry_id":"ent_x"}`),
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		}
		if err := s.AppendEvent(ctx, evt); err != nil {
			t.Fatalf("AppendEvent: %v", err)
		}
	}

	all, err := s.ListEvents(ctx, event.ListOpts{})
	if err != nil {
		t.Fatalf("ListEvents: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("len = %d, want 3", len(all))
	}
	if all[0].Topic != event.TopicCompleted {
		t.Errorf("newest event topic = %q, want %q", all[0].Topic, event.TopicCompleted)
	}

	started, err := s.ListEvents(ctx, event.ListOpts{Topic: event.TopicStarted})
	if err != nil {
		t.Fatalf("ListEvents filtered: %v", err)
	}
	if len(started) != 1 {
		t.Errorf("len = %d, want 1", len(started))
	}

	limited, err := s.ListEvents(ctx, event.ListOpts{Limit: 2})
	if err != nil {
		t.Fatalf("ListEvents limited: %v", err)
	}
	if len(limited) != 2 {
		t.Errorf("len = %d, want 2", len(limited))
	}
}
