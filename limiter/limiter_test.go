package limiter

import (
	"testing"
	"time"

	"github.com/conductorhq/conductor/entry"
	"github.com/conductorhq/conductor/id"
)

func keyed(key string) *entry.Entry {
	return &entry.Entry{ID: id.NewEntryID(), JobID: "j", ConcurrencyKey: key}
}

func rated(jobID string, maxRuns int, window time.Duration) *entry.Entry {
	return &entry.Entry{
		ID:        id.NewEntryID(),
		JobID:     jobID,
		RateLimit: &entry.RateLimit{MaxRuns: maxRuns, Window: window},
	}
}

func TestAdmit_UnconstrainedEntry(t *testing.T) {
	l := New(nil, 0, 0)
	e := &entry.Entry{ID: id.NewEntryID(), JobID: "free"}
	for range 100 {
		if !l.Admit(e, time.Now()) {
			t.Fatal("unconstrained entry refused")
		}
	}
}

func TestAdmit_ConcurrencyCeiling(t *testing.T) {
	l := New(map[string]int{"mail": 2}, 0, 0)
	now := time.Now()

	a, b, c := keyed("mail"), keyed("mail"), keyed("mail")
	if !l.Admit(a, now) || !l.Admit(b, now) {
		t.Fatal("admissions under the ceiling should succeed")
	}
	if l.Admit(c, now) {
		t.Fatal("third admission should exceed ceiling 2")
	}
	if got := l.ActiveCount("mail"); got != 2 {
		t.Fatalf("ActiveCount = %d, want 2", got)
	}

	l.Release(a)
	if !l.Admit(c, now) {
		t.Fatal("admission should succeed after release")
	}
}

func TestAdmit_UnconfiguredKeyUnbounded(t *testing.T) {
	l := New(map[string]int{"mail": 1}, 0, 0)
	now := time.Now()
	for range 10 {
		if !l.Admit(keyed("other"), now) {
			t.Fatal("unconfigured key should be unbounded")
		}
	}
}

func TestRelease_DiscardsEmptyGroup(t *testing.T) {
	l := New(map[string]int{"mail": 2}, 0, 0)
	e := keyed("mail")
	l.Admit(e, time.Now())
	if len(l.Groups()) != 1 {
		t.Fatal("expected one live group")
	}
	l.Release(e)
	if len(l.Groups()) != 0 {
		t.Fatal("empty group should be discarded")
	}
}

func TestAdmit_SlidingWindow(t *testing.T) {
	l := New(nil, 0, 0)
	base := time.Now()

	for i := range 3 {
		if !l.Admit(rated("notify", 3, time.Minute), base.Add(time.Duration(i)*time.Second)) {
			t.Fatalf("dispatch %d should be within the window budget", i+1)
		}
	}
	if l.Admit(rated("notify", 3, time.Minute), base.Add(3*time.Second)) {
		t.Fatal("fourth dispatch within the window should be refused")
	}

	// Once the first timestamp slides out of the window, one slot frees.
	if !l.Admit(rated("notify", 3, time.Minute), base.Add(61*time.Second)) {
		t.Fatal("dispatch should be admitted after the window slides")
	}
}

func TestAdmit_RateKeyedByJobID(t *testing.T) {
	l := New(nil, 0, 0)
	now := time.Now()

	// Two distinct entries of the same job share one window.
	if !l.Admit(rated("shared", 1, time.Minute), now) {
		t.Fatal("first dispatch should be admitted")
	}
	if l.Admit(rated("shared", 1, time.Minute), now) {
		t.Fatal("second entry of same job should share the window")
	}
	// A different job has its own window.
	if !l.Admit(rated("distinct", 1, time.Minute), now) {
		t.Fatal("different job should not be throttled")
	}
}

func TestAdmit_RefusalDoesNotMutate(t *testing.T) {
	l := New(map[string]int{"mail": 1}, 0, 0)
	now := time.Now()

	l.Admit(keyed("mail"), now)
	blocked := keyed("mail")
	blocked.RateLimit = &entry.RateLimit{MaxRuns: 5, Window: time.Minute}

	if l.Admit(blocked, now) {
		t.Fatal("should be refused by concurrency ceiling")
	}
	// The refusal must not have recorded a dispatch timestamp.
	free := rated("j", 1, time.Minute)
	if !l.Admit(free, now) {
		t.Fatal("rate window should be untouched by earlier refusal")
	}
}

func TestAdmit_GlobalBucket(t *testing.T) {
	// 1/s with burst 2: two immediate admissions, third refused.
	l := New(nil, 1, 2)
	now := time.Now()
	e := &entry.Entry{ID: id.NewEntryID(), JobID: "j"}
	if !l.Admit(e, now) || !l.Admit(e, now) {
		t.Fatal("burst admissions should succeed")
	}
	if l.Admit(e, now) {
		t.Fatal("third admission should exceed the bucket burst")
	}
}

func TestGroupsSnapshot(t *testing.T) {
	l := New(map[string]int{"mail": 3}, 0, 0)
	a, b := keyed("mail"), keyed("mail")
	l.Admit(a, time.Now())
	l.Admit(b, time.Now())

	groups := l.Groups()
	if len(groups) != 1 {
		t.Fatalf("len(groups) = %d, want 1", len(groups))
	}
	g := groups[0]
	if g.Key != "mail" || g.Limit != 3 || g.Active != 2 || len(g.Members) != 2 {
		t.Errorf("snapshot = %+v", g)
	}
}
