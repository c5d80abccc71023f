package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/conductorhq/conductor/entry"
)

// Logging returns middleware that logs entry start and completion.
func Logging(logger *slog.Logger) Middleware {
	return func(ctx context.Context, e *entry.Entry, next Handler) error {
		logger.Info("entry started",
			slog.String("job_name", e.JobName),
			slog.String("entry_id", e.ID.String()),
			slog.Int("attempt", e.Attempt),
		)

		start := time.Now()
		err := next(ctx)
		elapsed := time.Since(start)

		if err != nil {
			logger.Error("entry failed",
				slog.String("job_name", e.JobName),
				slog.String("entry_id", e.ID.String()),
				slog.Int("attempt", e.Attempt),
				slog.Duration("elapsed", elapsed),
				slog.String("error", err.Error()),
			)
		} else {
			logger.Info("entry completed",
				slog.String("job_name", e.JobName),
				slog.String("entry_id", e.ID.String()),
				slog.Duration("elapsed", elapsed),
			)
		}

		return err
	}
}
