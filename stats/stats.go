// Package stats computes point-in-time aggregate statistics over the
// orchestrator's stores: entry counts by status and priority, dead-letter
// volume, concurrency group occupancy, and timing averages.
package stats

import (
	"context"
	"time"

	"github.com/conductorhq/conductor/dlq"
	"github.com/conductorhq/conductor/entry"
	"github.com/conductorhq/conductor/limiter"
)

// Snapshot is an aggregate view of the system at a single instant.
// Averages cover only entries that carry the relevant timestamps; a
// fresh system reports zero durations rather than NaN.
type Snapshot struct {
	// Total is the number of entries in the primary store, terminal
	// states included.
	Total int64 `json:"total"`

	// ByStatus counts entries per status. Statuses with no entries are
	// present with a zero count so consumers see a stable shape.
	ByStatus map[entry.Status]int64 `json:"byStatus"`

	// ByPriority counts non-terminal entries per priority.
	ByPriority map[entry.Priority]int64 `json:"byPriority"`

	// DeadLetters is the number of records in the dead-letter store.
	DeadLetters int64 `json:"deadLetters"`

	// Groups is the live concurrency group occupancy.
	Groups []limiter.ConcurrencyGroup `json:"groups"`

	// Running is the total number of entries currently executing.
	Running int64 `json:"running"`

	// AvgWait is the mean time from enqueue to first execution start,
	// over entries that have started.
	AvgWait time.Duration `json:"avgWaitNs"`

	// AvgExec is the mean time from execution start to completion,
	// over completed entries.
	AvgExec time.Duration `json:"avgExecNs"`

	// SuccessRate is completed / (completed + failed). Dead-lettered
	// entries are quarantined, not failed, and are excluded. Zero when
	// nothing has finished yet.
	SuccessRate float64 `json:"successRate"`

	// GeneratedAt is when the snapshot was taken.
	GeneratedAt time.Time `json:"generatedAt"`
}

// Aggregator computes snapshots from the entry store, the dead-letter
// store, and the live limiter state.
type Aggregator struct {
	entries entry.Store
	letters dlq.Store
	limits  *limiter.Limiter
}

// New creates an Aggregator. The limiter may be nil, in which case
// group occupancy is omitted from snapshots.
func New(entries entry.Store, letters dlq.Store, limits *limiter.Limiter) *Aggregator {
	return &Aggregator{entries: entries, letters: letters, limits: limits}
}

// Collect scans the stores and produces a Snapshot.
func (a *Aggregator) Collect(ctx context.Context) (*Snapshot, error) {
	all, err := a.entries.ListEntries(ctx, entry.ListOpts{})
	if err != nil {
		return nil, err
	}

	snap := &Snapshot{
		ByStatus:    make(map[entry.Status]int64, len(entry.Statuses())),
		ByPriority:  make(map[entry.Priority]int64, len(entry.Priorities())),
		GeneratedAt: time.Now().UTC(),
	}
	for _, s := range entry.Statuses() {
		snap.ByStatus[s] = 0
	}
	for _, p := range entry.Priorities() {
		snap.ByPriority[p] = 0
	}

	var (
		waitTotal  time.Duration
		waitCount  int64
		execTotal  time.Duration
		execCount  int64
		completed int64
		failed    int64
	)

	for _, e := range all {
		snap.Total++
		snap.ByStatus[e.Status]++
		if !e.Status.Terminal() {
			snap.ByPriority[e.Priority]++
		}
		if e.Status == entry.StatusRunning {
			snap.Running++
		}

		if e.StartedAt != nil {
			waitTotal += e.StartedAt.Sub(e.EnqueuedAt)
			waitCount++
		}
		if e.CompletedAt != nil && e.StartedAt != nil {
			execTotal += e.CompletedAt.Sub(*e.StartedAt)
			execCount++
		}

		switch e.Status {
		case entry.StatusCompleted:
			completed++
		case entry.StatusFailed:
			failed++
		}
	}

	if waitCount > 0 {
		snap.AvgWait = waitTotal / time.Duration(waitCount)
	}
	if execCount > 0 {
		snap.AvgExec = execTotal / time.Duration(execCount)
	}
	if completed+failed > 0 {
		snap.SuccessRate = float64(completed) / float64(completed+failed)
	}

	if a.letters != nil {
		n, err := a.letters.CountDeadLetters(ctx)
		if err != nil {
			return nil, err
		}
		snap.DeadLetters = n
	}

	if a.limits != nil {
		snap.Groups = a.limits.Groups()
	}

	return snap, nil
}
