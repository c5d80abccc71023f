// Package store defines the aggregate persistence interface. Each subsystem
// (entry, dlq, event) defines its own store interface. The composite Store
// composes them all. Backends: Postgres, Bun, SQLite, Redis, and Memory.
package store

import (
	"context"

	"github.com/conductorhq/conductor/dlq"
	"github.com/conductorhq/conductor/entry"
	"github.com/conductorhq/conductor/event"
)

// Store is the aggregate persistence interface.
// Each subsystem store is a composable interface; a single backend
// (postgres, bun, sqlite, redis, memory) implements all of them.
type Store interface {
	entry.Store
	dlq.Store
	event.Store

	// Migrate runs all schema migrations.
	Migrate(ctx context.Context) error

	// Ping checks backend connectivity.
	Ping(ctx context.Context) error

	// Close closes the store connection.
	Close() error
}
