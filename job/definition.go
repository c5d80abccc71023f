package job

import "context"

// Definition is a typed job definition with a handler function.
// T is the input type (must be JSON-serializable).
type Definition[T any] struct {
	// ID is the stable identifier entries reference this job by.
	ID string

	// Name is a human-readable display label, denormalized onto entries.
	Name string

	// Handler is the function that processes the job input.
	Handler func(ctx context.Context, input T) error

	// Opts are the enqueue-time defaults for entries of this job.
	Opts Options
}

// NewDefinition creates a typed job definition.
func NewDefinition[T any](jobID, name string, handler func(ctx context.Context, input T) error, opts ...Option) *Definition[T] {
	def := &Definition[T]{
		ID:      jobID,
		Name:    name,
		Handler: handler,
		Opts:    DefaultOptions(),
	}
	for _, opt := range opts {
		opt(&def.Opts)
	}
	return def
}
