package backoff

import (
	"testing"
	"time"

	"github.com/conductorhq/conductor/entry"
)

func TestFixed(t *testing.T) {
	f := NewFixed(5 * time.Second)
	for attempt := 1; attempt <= 10; attempt++ {
		if d := f.Delay(attempt); d != 5*time.Second {
			t.Errorf("Delay(%d) = %s, want 5s", attempt, d)
		}
	}
}

func TestLinear(t *testing.T) {
	l := NewLinear(2*time.Second, 7*time.Second)
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 6 * time.Second},
		{4, 7 * time.Second}, // capped
		{10, 7 * time.Second},
	}
	for _, tt := range tests {
		if d := l.Delay(tt.attempt); d != tt.want {
			t.Errorf("Delay(%d) = %s, want %s", tt.attempt, d, tt.want)
		}
	}
}

func TestLinear_NoCap(t *testing.T) {
	l := NewLinear(time.Second, 0)
	if d := l.Delay(100); d != 100*time.Second {
		t.Errorf("Delay(100) = %s, want 100s", d)
	}
}

func TestExponential(t *testing.T) {
	e := NewExponential(1*time.Second, 10*time.Second)
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 1 * time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{4, 8 * time.Second},
		{5, 10 * time.Second}, // capped
	}
	for _, tt := range tests {
		if d := e.Delay(tt.attempt); d != tt.want {
			t.Errorf("Delay(%d) = %s, want %s", tt.attempt, d, tt.want)
		}
	}
}

func TestExponential_StrictlyIncreasingUncapped(t *testing.T) {
	e := NewExponential(100*time.Millisecond, 0)
	prev := time.Duration(0)
	for attempt := 1; attempt <= 12; attempt++ {
		d := e.Delay(attempt)
		if d <= prev {
			t.Fatalf("Delay(%d) = %s not strictly greater than %s", attempt, d, prev)
		}
		prev = d
	}
}

func TestExponentialWithJitter_Bounds(t *testing.T) {
	e := NewExponentialWithJitter(1*time.Second, 8*time.Second)
	for attempt := 1; attempt <= 6; attempt++ {
		ceiling := NewExponential(1*time.Second, 8*time.Second).Delay(attempt)
		for range 50 {
			d := e.Delay(attempt)
			if d < 0 || d > ceiling {
				t.Fatalf("Delay(%d) = %s outside [0, %s]", attempt, d, ceiling)
			}
		}
	}
}

func TestForPolicy(t *testing.T) {
	base := 3 * time.Second

	if d := ForPolicy(entry.BackoffFixed, base).Delay(5); d != base {
		t.Errorf("fixed Delay(5) = %s, want %s", d, base)
	}
	if d := ForPolicy(entry.BackoffLinear, base).Delay(4); d != 12*time.Second {
		t.Errorf("linear Delay(4) = %s, want 12s", d)
	}
	if d := ForPolicy(entry.BackoffExponential, base).Delay(3); d != 12*time.Second {
		t.Errorf("exponential Delay(3) = %s, want 12s", d)
	}
	// Unknown policy falls back to exponential.
	if d := ForPolicy(entry.BackoffPolicy("bogus"), base).Delay(2); d != 6*time.Second {
		t.Errorf("fallback Delay(2) = %s, want 6s", d)
	}
}
