package job

import (
	"context"
	"log/slog"
	"time"

	"github.com/conductorhq/conductor/id"
)

// RunInfo is the execution context handed to a running handler. It
// exposes the entry's input, a logger, a best-effort event publisher,
// and the attempt that is executing.
type RunInfo struct {
	EntryID   id.EntryID
	JobID     string
	JobName   string
	Attempt   int
	StartedAt time.Time
	Input     []byte

	Logger *slog.Logger

	// Publish emits a fire-and-forget event to the orchestrator's event
	// sink. Failures never affect the running entry.
	Publish func(ctx context.Context, topic string, payload any)
}

type runInfoKey struct{}

// NewContext returns a context carrying the given run info.
func NewContext(ctx context.Context, info *RunInfo) context.Context {
	return context.WithValue(ctx, runInfoKey{}, info)
}

// FromContext extracts run info injected by the execution engine.
// Returns false when the context did not come from a handler invocation.
func FromContext(ctx context.Context) (*RunInfo, bool) {
	info, ok := ctx.Value(runInfoKey{}).(*RunInfo)
	return info, ok
}
