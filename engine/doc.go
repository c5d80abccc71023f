// Package engine wires all conductor subsystems together. It creates the
// hook registry, job registry, middleware chain, selector, limiter,
// dependency resolver, executor, and stats aggregator, and runs the tick
// loop that drives dispatch.
//
// This package exists to break the import cycle: the root conductor
// package defines Config and the sentinel errors (imported by entry, dlq,
// graph, etc.) and so cannot import those packages back. The engine
// package sits above all subsystem packages and below the application
// layer.
//
// Typical usage:
//
//	orc, err := conductor.New(
//		conductor.WithStore(memory.New()),
//		conductor.WithMaxConcurrency(20),
//	)
//	if err != nil { ... }
//
//	eng, err := engine.Build(orc)
//	if err != nil { ... }
//
//	engine.Register(eng, job.NewDefinition("email.send", "Send Email", sendEmail))
//
//	if err := orc.Start(ctx); err != nil { ... }
//	e, err := engine.Enqueue(ctx, eng, "email.send", EmailInput{To: "a@b.c"})
//
// The tick loop promotes due and unblocked entries to ready, selects the
// next batch with weighted-fair priority, admits them through the
// limiter, and executes each on its own goroutine. All dispatch
// decisions happen on the single tick goroutine; executions run
// concurrently and report back through the store.
package engine
