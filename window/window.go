package window

import (
	"time"
)

// Counter is an append-only sequence of operation timestamps.
// Entries older than the window are pruned lazily on each Load call,
// so memory is bounded by the number of operations in one window.
//
// The zero value is ready to use. Counter is not safe for concurrent
// use; the owning dispatcher serializes access.
type Counter struct {
	stamps []time.Time
}

// Record appends now as an operation timestamp.
func (c *Counter) Record(now time.Time) {
	c.stamps = append(c.stamps, now)
}

// Load returns the number of timestamps still within span of now,
// dropping expired entries first.
func (c *Counter) Load(now time.Time, span time.Duration) int {
	c.prune(now.Add(-span))
	return len(c.stamps)
}

// Oldest returns the earliest retained timestamp. The second return
// value is false when the counter is empty.
func (c *Counter) Oldest() (time.Time, bool) {
	if len(c.stamps) == 0 {
		return time.Time{}, false
	}
	return c.stamps[0], true
}

// Len returns the number of retained timestamps without pruning.
func (c *Counter) Len() int {
	return len(c.stamps)
}

// Reset discards all retained timestamps.
func (c *Counter) Reset() {
	c.stamps = c.stamps[:0]
}

// prune drops timestamps at or before cutoff. Timestamps are appended
// in order, so a single scan from the front suffices.
func (c *Counter) prune(cutoff time.Time) {
	i := 0
	for i < len(c.stamps) && !c.stamps[i].After(cutoff) {
		i++
	}
	if i > 0 {
		c.stamps = append(c.stamps[:0], c.stamps[i:]...)
	}
}
