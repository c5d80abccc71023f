package middleware

import (
	"context"
	"errors"

	"github.com/conductorhq/conductor/entry"
)

// ErrExecutionTimeout is returned when a handler exceeds the entry's
// execution deadline.
var ErrExecutionTimeout = errors.New("execution timeout")

// Timeout returns middleware that enforces a per-entry execution deadline.
// If the entry has a non-zero Timeout, the handler races against the
// deadline: the context is cancelled when the deadline passes and
// ErrExecutionTimeout is returned immediately, even if the handler does
// not observe cancellation. A handler that ignores its context keeps
// running until it returns on its own; its result is discarded.
func Timeout() Middleware {
	return func(ctx context.Context, e *entry.Entry, next Handler) error {
		if e.Timeout <= 0 {
			return next(ctx)
		}

		ctx, cancel := context.WithTimeout(ctx, e.Timeout)
		defer cancel()

		done := make(chan error, 1)
		go func() {
			done <- next(ctx)
		}()

		select {
		case err := <-done:
			if err != nil && errors.Is(err, context.DeadlineExceeded) {
				return ErrExecutionTimeout
			}
			return err
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return ErrExecutionTimeout
			}
			return ctx.Err()
		}
	}
}
