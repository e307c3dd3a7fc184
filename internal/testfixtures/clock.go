package testfixtures

import (
	"sync"
	"time"

	"github.com/example/mindfolk/internal/reminder"
)

// Clock provides a controllable time source for tests. Timers created through
// NewTimer fire only when Advance or Set moves the clock past their deadline.
type Clock struct {
	mu      sync.Mutex
	current time.Time
	timers  map[*fakeTimer]struct{}
}

// NewClock returns a clock initialised to the supplied time. When start is the
// zero value, the shared ReferenceTime is used.
func NewClock(start time.Time) *Clock {
	if start.IsZero() {
		start = ReferenceTime()
	}
	return &Clock{current: start, timers: make(map[*fakeTimer]struct{})}
}

// Now returns the current instant tracked by the clock.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// NowFunc exposes Now as a function suitable for dependency injection.
func (c *Clock) NowFunc() func() time.Time {
	if c == nil {
		return time.Now
	}
	return c.Now
}

// Set updates the clock to the provided time, firing due timers.
func (c *Clock) Set(t time.Time) {
	c.mu.Lock()
	c.current = t
	c.fireLocked()
	c.mu.Unlock()
}

// Advance moves the clock forward by the provided duration, fires due timers
// and returns the updated time.
func (c *Clock) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	c.current = c.current.Add(d)
	updated := c.current
	c.fireLocked()
	c.mu.Unlock()
	return updated
}

// NewTimer implements reminder.Clock.
func (c *Clock) NewTimer(d time.Duration) reminder.Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clock: c, deadline: c.current.Add(d), ch: make(chan time.Time, 1)}
	if d <= 0 {
		t.ch <- c.current
		return t
	}
	c.timers[t] = struct{}{}
	return t
}

// PendingTimers returns the number of timers that have neither fired nor been stopped.
func (c *Clock) PendingTimers() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.timers)
}

// AwaitTimers blocks until at least n timers are pending or timeout elapses.
// It reports whether the condition was met.
func (c *Clock) AwaitTimers(n int, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for {
		if c.PendingTimers() >= n {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(time.Millisecond)
	}
}

func (c *Clock) fireLocked() {
	for t := range c.timers {
		if !t.deadline.After(c.current) {
			delete(c.timers, t)
			t.ch <- c.current
		}
	}
}

type fakeTimer struct {
	clock    *Clock
	deadline time.Time
	ch       chan time.Time
}

func (t *fakeTimer) C() <-chan time.Time { return t.ch }

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if _, ok := t.clock.timers[t]; !ok {
		return false
	}
	delete(t.clock.timers, t)
	return true
}
