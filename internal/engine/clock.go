package engine

import "sync/atomic"

// Clock hands out increasing sequence numbers.
//
// The engine stamps each dequeued event with one so log lines order the
// way the loop ran them. Each Highway owns another as its update
// generation: an answer is applied only while its ticket still holds the
// latest number issued. Safe for concurrent use.
type Clock struct {
	seq atomic.Int64
}

// NewClock returns a clock whose first Next is 1.
func NewClock() *Clock {
	return &Clock{}
}

// Next issues the following number.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current is the last number issued, 0 before the first Next.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}

// IsCurrent reports whether n is the last number issued.
func (c *Clock) IsCurrent(n int64) bool {
	return n == c.seq.Load()
}
