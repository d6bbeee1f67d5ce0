package event

import "time"

// windowLimiter counts accepted events inside a rolling window. It is
// driven by event timestamps rather than a wall clock, so replaying a
// recorded timeline yields identical accept/reject decisions.
type windowLimiter struct {
	window   time.Duration
	accepted []time.Time
}

func newWindowLimiter(window time.Duration) *windowLimiter {
	if window <= 0 {
		window = time.Second
	}
	return &windowLimiter{window: window}
}

// allow records the event at time t if fewer than max events were accepted
// within (t-window, t]. A max of zero or less disables the cap.
func (l *windowLimiter) allow(t time.Time, max int) bool {
	if max <= 0 {
		return true
	}

	l.prune(t)
	if len(l.accepted) >= max {
		return false
	}

	l.accepted = append(l.accepted, t)
	return true
}

// prune drops accepted timestamps that have left the window.
func (l *windowLimiter) prune(t time.Time) {
	cutoff := t.Add(-l.window)
	keep := 0
	for _, ts := range l.accepted {
		if ts.After(cutoff) {
			l.accepted[keep] = ts
			keep++
		}
	}
	l.accepted = l.accepted[:keep]
}
