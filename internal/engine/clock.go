package engine

import "sync/atomic"

// Clock is a monotonic logical clock stamping run start and finish records.
//
// Run history is ordered by these sequence numbers rather than wall-clock
// time, so listings are stable even when two runs start within the same
// millisecond. An engine resumes its clock from the store's last recorded
// sequence, keeping order across processes that share a metrics database.
//
// Thread-safety: Clock is safe for concurrent use (atomic operations).
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a new clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt creates a new clock starting at a specific sequence number.
func NewClockAt(start int64) *Clock {
	c := &Clock{}
	c.seq.Store(start)
	return c
}

// Next returns the next sequence number and increments the clock.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the current sequence number without incrementing.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
