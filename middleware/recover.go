package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/conductorhq/conductor/entry"
)

// Recover returns middleware that recovers from panics in the handler chain.
// Panics are converted to errors and logged with a stack trace. The stack
// is stashed on the entry so it survives into the failure record.
func Recover(logger *slog.Logger) Middleware {
	return func(ctx context.Context, e *entry.Entry, next Handler) (retErr error) {
		defer func() {
			if r := recover(); r != nil {
				stack := string(debug.Stack())
				logger.Error("job handler panicked",
					slog.String("job_name", e.JobName),
					slog.String("entry_id", e.ID.String()),
					slog.Any("panic", r),
					slog.String("stack", stack),
				)
				e.ErrorStack = stack
				retErr = fmt.Errorf("panic in job %s: %v", e.JobName, r)
			}
		}()
		return next(ctx)
	}
}
