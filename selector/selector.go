// Package selector implements weighted-fair priority ordering for
// dispatch. Ready entries are partitioned into priority buckets, FIFO
// within each bucket, and drawn in rounds sized proportionally to the
// configured weights. Higher priority is serviced more densely, but
// every non-empty bucket yields at least one entry per round, so a
// continuous stream of critical work cannot starve low-priority work.
package selector

import (
	"math"
	"sort"

	"github.com/conductorhq/conductor/entry"
)

// roundScale converts weight fractions to per-round draw counts:
// draws = ceil(weight / total * roundScale).
const roundScale = 10

// Selector orders eligible entries for dispatch. It is stateless apart
// from its weights and safe for concurrent use.
type Selector struct {
	weights map[entry.Priority]int
}

// New creates a Selector with the given priority weights. Priorities
// missing from the map fall back to weight 1 so they still progress.
func New(weights map[entry.Priority]int) *Selector {
	return &Selector{weights: weights}
}

// SetWeights replaces the selection weights. The caller owns the timing
// of this relative to ticks (single-writer discipline).
func (s *Selector) SetWeights(weights map[entry.Priority]int) {
	s.weights = weights
}

// Select returns up to slots entries drawn from pool in weighted-fair
// order. Entries within a priority are ordered FIFO by enqueue time,
// with the ID string as a deterministic tie-break. The pool is not
// mutated.
func (s *Selector) Select(pool []*entry.Entry, slots int) []*entry.Entry {
	if slots <= 0 || len(pool) == 0 {
		return nil
	}

	buckets := make(map[entry.Priority][]*entry.Entry, 4)
	for _, e := range pool {
		p := e.Priority
		if !p.Valid() {
			p = entry.PriorityNormal
		}
		buckets[p] = append(buckets[p], e)
	}
	for _, b := range buckets {
		sort.Slice(b, func(i, j int) bool {
			if !b[i].EnqueuedAt.Equal(b[j].EnqueuedAt) {
				return b[i].EnqueuedAt.Before(b[j].EnqueuedAt)
			}
			return b[i].ID.String() < b[j].ID.String()
		})
	}

	total := 0
	for _, p := range entry.Priorities() {
		if len(buckets[p]) > 0 {
			total += s.weight(p)
		}
	}
	if total == 0 {
		total = 1
	}

	out := make([]*entry.Entry, 0, min(slots, len(pool)))
	for len(out) < slots {
		drew := false
		for _, p := range entry.Priorities() {
			b := buckets[p]
			if len(b) == 0 {
				continue
			}
			n := s.draws(p, total)
			if n > len(b) {
				n = len(b)
			}
			if remaining := slots - len(out); n > remaining {
				n = remaining
			}
			if n <= 0 {
				continue
			}
			out = append(out, b[:n]...)
			buckets[p] = b[n:]
			drew = true
			if len(out) >= slots {
				break
			}
		}
		if !drew {
			break
		}
	}
	return out
}

// weight returns the configured weight for p, defaulting to 1.
func (s *Selector) weight(p entry.Priority) int {
	if w, ok := s.weights[p]; ok && w > 0 {
		return w
	}
	return 1
}

// draws returns how many entries to take from p's bucket per round.
// Always at least 1, which is the anti-starvation guarantee.
func (s *Selector) draws(p entry.Priority, total int) int {
	n := int(math.Ceil(float64(s.weight(p)) / float64(total) * roundScale))
	if n < 1 {
		n = 1
	}
	return n
}
