// Package conductor provides a priority job queue and execution
// orchestrator for Go. It accepts units of background work, orders them
// by priority and readiness, executes them under concurrency and rate
// constraints, retries failures with backoff, and quarantines jobs that
// exhaust their failure budget in a dead-letter collection.
//
// Conductor is designed as a library, not a service. Import it, configure
// a store, register jobs as ordinary Go functions, and enqueue work.
//
// # Quick Start
//
//	orc, err := conductor.New(
//	    conductor.WithStore(memory.New()),
//	    conductor.WithMaxConcurrency(20),
//	)
//
// # Architecture
//
// Conductor follows a composable store pattern where each subsystem
// (entry, dlq, event) defines its own store interface. A single backend
// implements all of them. Scheduling is driven by a single periodic tick
// that selects ready entries with weighted-fair priority ordering,
// admits them through concurrency and rate gates, and launches execution
// without awaiting it.
//
// All entity IDs use TypeID — type-prefixed, K-sortable, UUIDv7-based
// identifiers.
package conductor
