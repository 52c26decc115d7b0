package engine

import "sync/atomic"

// Clock is a monotonic logical clock. The session ticks it once per
// accepted edit.
//
// Thread-safety: Clock is safe for concurrent use. Only the Run loop
// ticks it; watchers read it from any goroutine.
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a new clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt creates a new clock starting at a specific value.
func NewClockAt(start int64) *Clock {
	c := &Clock{}
	c.seq.Store(start)
	return c
}

// Next returns the next value and advances the clock.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the current value without advancing.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
