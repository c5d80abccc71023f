package redis

// Redis key naming conventions for conductor data.
// All keys are prefixed with "conductor:" to avoid collisions.

const keyPrefix = "conductor:"

// ── Entry keys ──

// entryKey returns the key for an entry record: conductor:entry:{id}
func entryKey(id string) string { return keyPrefix + "entry:" + id }

// entryIndexKey is the Sorted Set of entry IDs scored by enqueue time,
// which gives ListEntries its ascending order for free.
const entryIndexKey = keyPrefix + "entries:by_enqueued"

// ── DLQ keys ──

// dlqKey returns the key for a dead-letter record: conductor:dlq:{id}
func dlqKey(id string) string { return keyPrefix + "dlq:" + id }

// dlqIndexKey is the Sorted Set of dead-letter IDs scored by quarantine
// time; listing walks it newest first.
const dlqIndexKey = keyPrefix + "dlq:by_created"

// ── Event keys ──

// eventKey returns the key for an event record: conductor:event:{id}
func eventKey(id string) string { return keyPrefix + "event:" + id }

// eventIndexKey is the Sorted Set of event IDs scored by creation time.
const eventIndexKey = keyPrefix + "events:by_created"
