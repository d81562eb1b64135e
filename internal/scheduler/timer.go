package scheduler

import (
	"time"

	"github.com/kjstillabower/weather-ticker/internal/render"
)

// Duty names one of the independently timed responsibilities.
type Duty string

const (
	DutyClock Duty = "clock"
	DutyFetch Duty = "fetch"
	DutyPage  Duty = "page"
)

// Timer fires a duty at most once per check. Firing sets the last-fired time to the
// check's timestamp, so a stalled iteration never causes a burst of catch-up fires.
type Timer struct {
	Interval time.Duration
	last     time.Time
}

func NewTimer(interval time.Duration) Timer {
	return Timer{Interval: interval}
}

// Due reports whether the duty should fire at now. A timer that never fired is due,
// and so is one whose last fire lies in the future (the wall clock was stepped back).
func (t *Timer) Due(now time.Time) bool {
	if t.last.IsZero() || now.Before(t.last) {
		return true
	}
	return now.Sub(t.last) >= t.Interval
}

func (t *Timer) Fire(now time.Time) {
	t.last = now
}

// Check fires the timer if it is due and reports whether it did.
func (t *Timer) Check(now time.Time) bool {
	if !t.Due(now) {
		return false
	}
	t.Fire(now)
	return true
}

// Last returns when the timer last fired; zero if never.
func (t *Timer) Last() time.Time {
	return t.last
}

// State is everything the Running loop carries between iterations. The snapshot
// itself lives in the snapshot.Store.
type State struct {
	Clock    Timer
	Fetch    Timer
	Page     Timer
	Rotation *render.Rotation
}

func newState(cfg Config) State {
	return State{
		Clock:    NewTimer(cfg.ClockInterval),
		Fetch:    NewTimer(cfg.FetchInterval),
		Page:     NewTimer(cfg.PageInterval),
		Rotation: render.NewRotation(cfg.Pages),
	}
}
