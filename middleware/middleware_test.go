package middleware_test

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/conductorhq/conductor/entry"
	"github.com/conductorhq/conductor/id"
	"github.com/conductorhq/conductor/middleware"
)

func newTestEntry() *entry.Entry {
	return &entry.Entry{
		ID:       id.NewEntryID(),
		JobID:    "job.test",
		JobName:  "test",
		Priority: entry.PriorityNormal,
		Attempt:  1,
	}
}

func TestChain_ExecutionOrder(t *testing.T) {
	var order []string

	mw1 := func(ctx context.Context, _ *entry.Entry, next middleware.Handler) error {
		order = append(order, "mw1-before")
		err := next(ctx)
		order = append(order, "mw1-after")
		return err
	}

	mw2 := func(ctx context.Context, _ *entry.Entry, next middleware.Handler) error {
		order = append(order, "mw2-before")
		err := next(ctx)
		order = append(order, "mw2-after")
		return err
	}

	chain := middleware.Chain(mw1, mw2)
	handler := func(_ context.Context) error {
		order = append(order, "handler")
		return nil
	}

	err := chain(context.Background(), newTestEntry(), handler)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := []string{"mw1-before", "mw2-before", "handler", "mw2-after", "mw1-after"}
	if len(order) != len(expected) {
		t.Fatalf("expected %d calls, got %d: %v", len(expected), len(order), order)
	}
	for i, want := range expected {
		if order[i] != want {
			t.Errorf("order[%d] = %q, want %q", i, order[i], want)
		}
	}
}

func TestChain_Empty(t *testing.T) {
	chain := middleware.Chain()
	called := false
	handler := func(_ context.Context) error {
		called = true
		return nil
	}

	err := chain(context.Background(), newTestEntry(), handler)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !called {
		t.Fatal("handler not called with empty chain")
	}
}

func TestChain_PropagatesError(t *testing.T) {
	mw := func(ctx context.Context, _ *entry.Entry, next middleware.Handler) error {
		return next(ctx)
	}
	chain := middleware.Chain(mw)
	want := errors.New("handler error")

	err := chain(context.Background(), newTestEntry(), func(_ context.Context) error {
		return want
	})
	if !errors.Is(err, want) {
		t.Fatalf("expected %v, got %v", want, err)
	}
}

func TestRecover_CatchesPanic(t *testing.T) {
	logger := slog.Default()
	mw := middleware.Recover(logger)
	e := newTestEntry()
	e.JobName = "panicky"

	err := mw(context.Background(), e, func(_ context.Context) error {
		panic("test panic")
	})
	if err == nil {
		t.Fatal("expected error from panic recovery")
	}
	if got := err.Error(); got != "panic in job panicky: test panic" {
		t.Errorf("unexpected error message: %q", got)
	}
	if e.ErrorStack == "" {
		t.Error("expected stack trace recorded on entry")
	}
}

func TestRecover_PassesThrough(t *testing.T) {
	logger := slog.Default()
	mw := middleware.Recover(logger)

	called := false
	err := mw(context.Background(), newTestEntry(), func(_ context.Context) error {
		called = true
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !called {
		t.Fatal("handler not called")
	}
}

func TestTimeout_Exceeded(t *testing.T) {
	mw := middleware.Timeout()
	e := newTestEntry()
	e.Timeout = 20 * time.Millisecond

	start := time.Now()
	err := mw(context.Background(), e, func(ctx context.Context) error {
		// Ignores cancellation on purpose.
		time.Sleep(500 * time.Millisecond)
		return nil
	})
	elapsed := time.Since(start)

	if !errors.Is(err, middleware.ErrExecutionTimeout) {
		t.Fatalf("expected ErrExecutionTimeout, got %v", err)
	}
	if elapsed > 200*time.Millisecond {
		t.Errorf("timeout did not short-circuit: took %v", elapsed)
	}
}

func TestTimeout_HandlerFinishesFirst(t *testing.T) {
	mw := middleware.Timeout()
	e := newTestEntry()
	e.Timeout = time.Second

	err := mw(context.Background(), e, func(_ context.Context) error {
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestTimeout_ZeroTimeoutNoDeadline(t *testing.T) {
	mw := middleware.Timeout()
	e := newTestEntry()
	e.Timeout = 0

	err := mw(context.Background(), e, func(ctx context.Context) error {
		if _, ok := ctx.Deadline(); ok {
			t.Error("expected no deadline when Timeout is zero")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestTimeout_WrapsDeadlineExceeded(t *testing.T) {
	mw := middleware.Timeout()
	e := newTestEntry()
	e.Timeout = 20 * time.Millisecond

	err := mw(context.Background(), e, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	if !errors.Is(err, middleware.ErrExecutionTimeout) {
		t.Fatalf("expected ErrExecutionTimeout, got %v", err)
	}
}
