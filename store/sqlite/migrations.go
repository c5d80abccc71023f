package sqlite

// schema holds the DDL applied by Migrate, in order. Statements are
// idempotent so Migrate can run on every startup.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS conductor_entries (
		id                TEXT PRIMARY KEY,
		job_id            TEXT NOT NULL,
		job_name          TEXT NOT NULL DEFAULT '',
		status            TEXT NOT NULL DEFAULT 'ready',
		priority          TEXT NOT NULL DEFAULT 'normal',
		scheduled_for     INTEGER,
		enqueued_at       INTEGER NOT NULL,
		started_at        INTEGER,
		last_attempt_at   INTEGER,
		completed_at      INTEGER,
		depends_on        TEXT,
		dependency_status TEXT,
		attempt           INTEGER NOT NULL DEFAULT 0,
		max_attempts      INTEGER NOT NULL DEFAULT 3,
		retry_delay       INTEGER NOT NULL DEFAULT 0,
		retry_backoff     TEXT NOT NULL DEFAULT 'exponential',
		timeout           INTEGER NOT NULL DEFAULT 0,
		concurrency_key   TEXT NOT NULL DEFAULT '',
		rate_limit        TEXT,
		input             BLOB,
		org_id            TEXT NOT NULL DEFAULT '',
		user_id           TEXT NOT NULL DEFAULT '',
		tags              TEXT,
		metadata          TEXT,
		error             TEXT NOT NULL DEFAULT '',
		error_stack       TEXT NOT NULL DEFAULT '',
		created_at        INTEGER NOT NULL,
		updated_at        INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_conductor_entries_dispatch
		ON conductor_entries (status, enqueued_at ASC)`,
	`CREATE INDEX IF NOT EXISTS idx_conductor_entries_job
		ON conductor_entries (job_id)`,

	`CREATE TABLE IF NOT EXISTS conductor_dead_letters (
		id                TEXT PRIMARY KEY,
		original_entry_id TEXT NOT NULL,
		job_id            TEXT NOT NULL,
		job_name          TEXT NOT NULL DEFAULT '',
		failure_reason    TEXT NOT NULL DEFAULT '',
		error_stack       TEXT NOT NULL DEFAULT '',
		attempts          INTEGER NOT NULL DEFAULT 0,
		max_attempts      INTEGER NOT NULL DEFAULT 0,
		first_attempt_at  INTEGER,
		last_attempt_at   INTEGER,
		input             BLOB,
		retry_delay       INTEGER NOT NULL DEFAULT 0,
		retry_backoff     TEXT NOT NULL DEFAULT 'exponential',
		timeout           INTEGER NOT NULL DEFAULT 0,
		org_id            TEXT NOT NULL DEFAULT '',
		user_id           TEXT NOT NULL DEFAULT '',
		tags              TEXT,
		metadata          TEXT,
		can_retry         INTEGER NOT NULL DEFAULT 1,
		retry_count       INTEGER NOT NULL DEFAULT 0,
		resubmitted_at    INTEGER,
		created_at        INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_conductor_dead_letters_created
		ON conductor_dead_letters (created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_conductor_dead_letters_job
		ON conductor_dead_letters (job_id)`,

	`CREATE TABLE IF NOT EXISTS conductor_events (
		id         TEXT PRIMARY KEY,
		topic      TEXT NOT NULL,
		payload    BLOB,
		created_at INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_conductor_events_topic_created
		ON conductor_events (topic, created_at DESC)`,
}
