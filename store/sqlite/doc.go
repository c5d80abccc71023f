// Package sqlite implements the aggregate store on SQLite via
// database/sql and the modernc.org/sqlite driver. It is a single-node
// backend: WAL journaling with a single writer connection. Timestamps
// are stored as unix nanoseconds, structured fields as JSON text.
package sqlite
