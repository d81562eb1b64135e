// Package traffic keeps sliding windows of fetch outcomes for the health check.
package traffic

import (
	"sync"
	"time"
)

// Result classifies one recorded fetch cycle.
type Result int

const (
	ResultSuccess Result = iota
	ResultTransient
	ResultTimedOut
	ResultParseError
	resultCount
)

func (r Result) String() string {
	switch r {
	case ResultSuccess:
		return "success"
	case ResultTransient:
		return "transient"
	case ResultTimedOut:
		return "timed_out"
	case ResultParseError:
		return "parse_error"
	default:
		return "unknown"
	}
}

// Tracker maintains sliding windows of outcome timestamps. Safe for one writer (the
// scheduler) and concurrent readers (the status server).
type Tracker struct {
	mu     sync.Mutex
	times  [resultCount][]time.Time
	maxAge time.Duration
	now    func() time.Time
}

// NewTracker keeps outcomes for maxAge (at least one minute).
func NewTracker(maxAge time.Duration) *Tracker {
	if maxAge < time.Minute {
		maxAge = time.Minute
	}
	return &Tracker{maxAge: maxAge, now: time.Now}
}

// Record appends an outcome stamped with the current time and prunes old entries.
func (t *Tracker) Record(r Result) {
	if r < 0 || r >= resultCount {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now()
	t.times[r] = append(t.times[r], now)
	t.pruneLocked(now)
}

// Count returns how many outcomes of r fall within the window.
func (t *Tracker) Count(r Result, window time.Duration) int {
	if r < 0 || r >= resultCount {
		return 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return countInWindow(t.times[r], t.now().Add(-window))
}

// ErrorRate returns (failures, total) within the window. Every non-success result
// counts as a failure.
func (t *Tracker) ErrorRate(window time.Duration) (failures, total int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	cutoff := t.now().Add(-window)
	for r := Result(0); r < resultCount; r++ {
		n := countInWindow(t.times[r], cutoff)
		total += n
		if r != ResultSuccess {
			failures += n
		}
	}
	return failures, total
}

// LastSuccess returns the most recent success still retained, if any.
func (t *Tracker) LastSuccess() (time.Time, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s := t.times[ResultSuccess]
	if len(s) == 0 {
		return time.Time{}, false
	}
	return s[len(s)-1], true
}

// countInWindow counts timestamps that are not before the cutoff time.
func countInWindow(times []time.Time, cutoff time.Time) int {
	n := 0
	for _, ts := range times {
		if !ts.Before(cutoff) {
			n++
		}
	}
	return n
}

// pruneLocked drops timestamps older than maxAge. Must be called with mu held.
func (t *Tracker) pruneLocked(now time.Time) {
	cutoff := now.Add(-t.maxAge)
	for r := range t.times {
		times := t.times[r]
		i := 0
		for ; i < len(times) && times[i].Before(cutoff); i++ {
		}
		if i > 0 {
			t.times[r] = append(times[:0], times[i:]...)
		}
	}
}
