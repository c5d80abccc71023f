package entry

import (
	"errors"
	"testing"
	"time"

	"github.com/conductorhq/conductor/id"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to Status
		want     bool
	}{
		{StatusPending, StatusReady, true},
		{StatusPending, StatusDelayed, true},
		{StatusPending, StatusFailed, true},
		{StatusPending, StatusCancelled, true},
		{StatusPending, StatusRunning, false},
		{StatusPending, StatusCompleted, false},
		{StatusDelayed, StatusReady, true},
		{StatusDelayed, StatusRunning, false},
		{StatusReady, StatusRunning, true},
		{StatusReady, StatusCancelled, true},
		{StatusReady, StatusCompleted, false},
		{StatusRunning, StatusCompleted, true},
		{StatusRunning, StatusDelayed, true},
		{StatusRunning, StatusFailed, true},
		{StatusRunning, StatusDeadLetter, true},
		{StatusRunning, StatusCancelled, false},
		{StatusCompleted, StatusReady, false},
		{StatusFailed, StatusReady, false},
		{StatusDeadLetter, StatusReady, false},
		{StatusCancelled, StatusReady, false},
	}

	for _, tt := range tests {
		if got := CanTransition(tt.from, tt.to); got != tt.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestTransition_Illegal(t *testing.T) {
	e := &Entry{ID: id.NewEntryID(), Status: StatusCompleted}
	err := e.Transition(StatusRunning, time.Now())
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
	if e.Status != StatusCompleted {
		t.Errorf("status mutated on rejected transition: %s", e.Status)
	}
}

func TestTransition_StampsUpdatedAt(t *testing.T) {
	now := time.Now().UTC()
	e := &Entry{ID: id.NewEntryID(), Status: StatusReady}
	if err := e.Transition(StatusRunning, now); err != nil {
		t.Fatalf("Transition: %v", err)
	}
	if e.Status != StatusRunning {
		t.Errorf("status = %s, want running", e.Status)
	}
	if !e.UpdatedAt.Equal(now) {
		t.Errorf("UpdatedAt = %v, want %v", e.UpdatedAt, now)
	}
}

func TestTerminal(t *testing.T) {
	for _, s := range []Status{StatusCompleted, StatusFailed, StatusDeadLetter, StatusCancelled} {
		if !s.Terminal() {
			t.Errorf("%s should be terminal", s)
		}
	}
	for _, s := range []Status{StatusPending, StatusDelayed, StatusReady, StatusRunning} {
		if s.Terminal() {
			t.Errorf("%s should not be terminal", s)
		}
	}
}

func TestDependenciesSatisfied(t *testing.T) {
	a, b := id.NewEntryID(), id.NewEntryID()
	e := &Entry{
		DependsOn: []id.EntryID{a, b},
		DependencyStatus: map[string]DependencyState{
			a.String(): DepCompleted,
			b.String(): DepPending,
		},
	}
	if e.DependenciesSatisfied() {
		t.Error("should not be satisfied with a pending dependency")
	}
	e.DependencyStatus[b.String()] = DepCompleted
	if !e.DependenciesSatisfied() {
		t.Error("should be satisfied once all dependencies completed")
	}

	empty := &Entry{}
	if !empty.DependenciesSatisfied() {
		t.Error("entry without dependencies is trivially satisfied")
	}
}

func TestDueAt(t *testing.T) {
	now := time.Now().UTC()
	later := now.Add(time.Hour)

	if e := (&Entry{}); !e.DueAt(now) {
		t.Error("entry without scheduled time is always due")
	}
	if e := (&Entry{ScheduledFor: &later}); e.DueAt(now) {
		t.Error("entry scheduled in the future is not due")
	}
	if e := (&Entry{ScheduledFor: &now}); !e.DueAt(now) {
		t.Error("entry scheduled exactly now is due")
	}
}

func TestClone_Independent(t *testing.T) {
	dep := id.NewEntryID()
	e := &Entry{
		ID:               id.NewEntryID(),
		Status:           StatusPending,
		DependsOn:        []id.EntryID{dep},
		DependencyStatus: map[string]DependencyState{dep.String(): DepPending},
		Input:            []byte(`{"k":"v"}`),
		Tags:             []string{"batch"},
		Metadata:         map[string]string{"src": "test"},
		RateLimit:        &RateLimit{MaxRuns: 3, Window: time.Minute},
	}

	cp := e.Clone()
	cp.DependencyStatus[dep.String()] = DepCompleted
	cp.Metadata["src"] = "mutated"
	cp.Input[0] = 'X'
	cp.RateLimit.MaxRuns = 99

	if e.DependencyStatus[dep.String()] != DepPending {
		t.Error("clone shares DependencyStatus map")
	}
	if e.Metadata["src"] != "test" {
		t.Error("clone shares Metadata map")
	}
	if e.Input[0] == 'X' {
		t.Error("clone shares Input slice")
	}
	if e.RateLimit.MaxRuns != 3 {
		t.Error("clone shares RateLimit")
	}
}
