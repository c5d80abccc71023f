// Package limiter gates dispatch with three constraints: per-key
// concurrency ceilings, per-job sliding-window rate limits, and an
// optional global dispatch token bucket. All state is in-memory and
// ephemeral — rebuilt empty at startup, owned exclusively by the
// orchestrator, and mutated only from the tick and completion paths.
package limiter

import (
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/conductorhq/conductor/entry"
)

// ConcurrencyGroup is a read-only snapshot of one key's runtime state.
type ConcurrencyGroup struct {
	Key     string
	Limit   int
	Active  int
	Members []string
}

// group tracks runtime state for a single concurrency key. Groups are
// created on first admission and discarded when their last member
// releases, so the map only holds keys with work in flight.
type group struct {
	active  int
	members map[string]struct{}
}

// Limiter is safe for concurrent use.
type Limiter struct {
	mu      sync.Mutex
	limits  map[string]int         // key → ceiling; absent means unbounded
	groups  map[string]*group      // key → in-flight state
	windows map[string][]time.Time // job ID → recent dispatch times
	bucket  *rate.Limiter          // optional global dispatch cap
}

// New creates a Limiter with the given per-key ceilings and an optional
// global dispatch rate (zero disables the token bucket).
func New(limits map[string]int, dispatchRate float64, burst int) *Limiter {
	l := &Limiter{
		limits:  map[string]int{},
		groups:  map[string]*group{},
		windows: map[string][]time.Time{},
	}
	for k, v := range limits {
		l.limits[k] = v
	}
	l.setBucket(dispatchRate, burst)
	return l
}

// SetLimits replaces the per-key ceilings. Active counts are preserved;
// over-limit groups drain naturally as entries finish.
func (l *Limiter) SetLimits(limits map[string]int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.limits = map[string]int{}
	for k, v := range limits {
		l.limits[k] = v
	}
}

// SetDispatchRate replaces the global dispatch token bucket.
func (l *Limiter) SetDispatchRate(perSecond float64, burst int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.setBucket(perSecond, burst)
}

func (l *Limiter) setBucket(perSecond float64, burst int) {
	if perSecond <= 0 {
		l.bucket = nil
		return
	}
	if burst <= 0 {
		burst = 1
	}
	l.bucket = rate.NewLimiter(rate.Limit(perSecond), burst)
}

// Admit checks every constraint that applies to the entry. On success it
// commits: the concurrency count is incremented and a dispatch timestamp
// is recorded, and the caller MUST call Release when execution settles.
// On refusal nothing is mutated and the entry simply waits for a later
// tick.
func (l *Limiter) Admit(e *entry.Entry, now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if e.ConcurrencyKey != "" {
		if limit, ok := l.limits[e.ConcurrencyKey]; ok && limit > 0 {
			if g := l.groups[e.ConcurrencyKey]; g != nil && g.active >= limit {
				return false
			}
		}
	}

	if e.RateLimit != nil && e.RateLimit.MaxRuns > 0 {
		recent := l.prune(e.JobID, now, e.RateLimit.Window)
		if len(recent) >= e.RateLimit.MaxRuns {
			return false
		}
	}

	// The token bucket is checked last: Allow consumes a token, and a
	// refusal above must not burn one.
	if l.bucket != nil && !l.bucket.Allow() {
		return false
	}

	if e.ConcurrencyKey != "" {
		g := l.groups[e.ConcurrencyKey]
		if g == nil {
			g = &group{members: map[string]struct{}{}}
			l.groups[e.ConcurrencyKey] = g
		}
		g.active++
		g.members[e.ID.String()] = struct{}{}
	}
	if e.RateLimit != nil && e.RateLimit.MaxRuns > 0 {
		l.windows[e.JobID] = append(l.windows[e.JobID], now)
	}
	return true
}

// Release decrements the entry's concurrency group. Empty groups are
// discarded. Rate-limit windows are not touched: the dispatch happened
// and still counts against the trailing window.
func (l *Limiter) Release(e *entry.Entry) {
	if e.ConcurrencyKey == "" {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	g := l.groups[e.ConcurrencyKey]
	if g == nil {
		return
	}
	delete(g.members, e.ID.String())
	if g.active > 0 {
		g.active--
	}
	if g.active == 0 {
		delete(l.groups, e.ConcurrencyKey)
	}
}

// ActiveCount returns the in-flight count for a concurrency key.
func (l *Limiter) ActiveCount(key string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if g := l.groups[key]; g != nil {
		return g.active
	}
	return 0
}

// Groups returns a snapshot of all live concurrency groups.
func (l *Limiter) Groups() []ConcurrencyGroup {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]ConcurrencyGroup, 0, len(l.groups))
	for key, g := range l.groups {
		cg := ConcurrencyGroup{
			Key:    key,
			Limit:  l.limits[key],
			Active: g.active,
		}
		for m := range g.members {
			cg.Members = append(cg.Members, m)
		}
		out = append(out, cg)
	}
	return out
}

// prune drops window timestamps older than now-window and returns the
// survivors. The pruned slice is written back so windows do not grow
// without bound.
func (l *Limiter) prune(jobID string, now time.Time, window time.Duration) []time.Time {
	times := l.windows[jobID]
	cutoff := now.Add(-window)
	kept := times[:0]
	for _, ts := range times {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	if len(kept) == 0 {
		delete(l.windows, jobID)
		return nil
	}
	l.windows[jobID] = kept
	return kept
}
