// Package job defines named units of work: typed definitions, the
// registry the execution engine looks handlers up in, and the
// enqueue-time options an entry is created with.
//
// A job is the business logic; a queue entry (package entry) is one
// scheduled execution of it. The registry is a pure lookup from a stable
// job ID to a handler — a missing handler is a deployment defect, not a
// job failure, and the engine treats it that way.
//
// # Defining a Job
//
// Use [Definition] with a typed handler. The input is JSON-serialized at
// enqueue time and deserialized before the handler runs:
//
//	var SendEmail = job.NewDefinition("send-email", "Send Email",
//	    func(ctx context.Context, input EmailInput) error {
//	        return mailer.Send(input.To, input.Subject, input.Body)
//	    },
//	)
//
// # Registry
//
// [Registry] maps job IDs to type-erased [HandlerFunc] values.
// Register definitions at startup via [RegisterDefinition]:
//
//	job.RegisterDefinition(registry, SendEmail)
//	job.RegisterDefinition(registry, GenerateReport)
//
// The engine package provides higher-level engine.Register and
// engine.Enqueue wrappers.
package job
