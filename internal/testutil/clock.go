package testutil

import (
	"sync"
	"time"
)

// Epoch is the default start of a Clock: 2024-03-01 12:00 UTC.
var Epoch = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

// Clock is a manually advanced wall clock for tests.
//
// Unlike time.Now, Clock only moves when Advance or Set is called, so the
// same scenario always stores the same visit times.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock creates a clock reading start. A zero start uses Epoch.
func NewClock(start time.Time) *Clock {
	if start.IsZero() {
		start = Epoch
	}
	return &Clock{now: start.UTC()}
}

// Now returns the current reading. Pass c.Now where a func() time.Time is
// expected.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d and returns the new reading.
// Negative durations are ignored so the clock never goes back.
func (c *Clock) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	if d > 0 {
		c.now = c.now.Add(d)
	}
	return c.now
}

// Set moves the clock to t.
func (c *Clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t.UTC()
}

// At returns Epoch plus the given number of minutes. Handy for building
// fixtures with readable offsets.
func At(minutes int) time.Time {
	return Epoch.Add(time.Duration(minutes) * time.Minute)
}
