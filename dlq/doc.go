// Package dlq provides the dead-letter quarantine for entries that have
// exhausted their failure budget. It supports inspection, resubmission,
// and purging.
//
// When an entry fails with no attempts remaining — and dead-lettering is
// enabled and the attempt count meets the configured threshold — the
// executor calls [Service.Quarantine] to snapshot it into the dead-letter
// collection. The original input, final error, and attempt history are
// preserved for diagnosis.
//
// # Entry
//
// A [Entry] captures:
//   - OriginalEntryID / JobID / JobName: identity of the exhausted entry
//   - Input: the raw input at time of failure
//   - FailureReason: the final error message
//   - Attempts: the exhausted attempt count
//   - FirstAttemptAt / LastAttemptAt: the failure window
//   - CanRetry / RetryCount: resubmission gate and counter
//
// # Resubmission
//
// [Service.Resubmit] creates a brand-new queue entry at high priority
// carrying the original input, and increments RetryCount on the
// dead-letter record. The snapshot fields themselves are never mutated,
// and the dead-letter record is never re-executed in place.
package dlq
