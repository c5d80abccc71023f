// Package postgres implements the aggregate store on PostgreSQL using
// pgx/v5. Entries, dead letters, and events live in three tables with
// JSONB columns for the structured fields; schema migrations are
// embedded SQL files applied in filename order.
package postgres
