// Package lifecycle tracks the device phase so the status server can report it
// without touching scheduler state.
package lifecycle

import (
	"sync/atomic"
	"time"
)

// Phase is the scheduler's coarse state.
type Phase int32

const (
	Bootstrapping Phase = iota
	Running
	Halted
)

func (p Phase) String() string {
	switch p {
	case Bootstrapping:
		return "bootstrapping"
	case Running:
		return "running"
	case Halted:
		return "halted"
	default:
		return "unknown"
	}
}

// Tracker holds the current phase and shutdown flag. The zero value is
// Bootstrapping and not shutting down.
type Tracker struct {
	phase        atomic.Int32
	shuttingDown atomic.Bool
	since        atomic.Int64 // unix nanos of the last transition
	onChange     func(from, to Phase)
}

// NewTracker returns a tracker in Bootstrapping. onChange, if set, runs on every
// phase transition.
func NewTracker(onChange func(from, to Phase)) *Tracker {
	t := &Tracker{onChange: onChange}
	t.since.Store(time.Now().UnixNano())
	return t
}

func (t *Tracker) Phase() Phase {
	return Phase(t.phase.Load())
}

// Since returns when the current phase was entered.
func (t *Tracker) Since() time.Time {
	return time.Unix(0, t.since.Load())
}

// Set moves to p. Halted is terminal: later transitions are ignored.
func (t *Tracker) Set(p Phase) {
	for {
		cur := Phase(t.phase.Load())
		if cur == p || cur == Halted {
			return
		}
		if t.phase.CompareAndSwap(int32(cur), int32(p)) {
			t.since.Store(time.Now().UnixNano())
			if t.onChange != nil {
				t.onChange(cur, p)
			}
			return
		}
	}
}

// SetShuttingDown sets the shutdown flag. Call when SIGTERM/SIGINT received.
// The health handler returns 503 with status shutting-down while true.
func (t *Tracker) SetShuttingDown(v bool) {
	t.shuttingDown.Store(v)
}

// IsShuttingDown returns true once shutdown has begun.
func (t *Tracker) IsShuttingDown() bool {
	return t.shuttingDown.Load()
}
