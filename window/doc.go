// Package window tracks recent operation timestamps over a trailing
// time window and converts the observed load into an admission delay.
//
// # Counting
//
// A [Counter] records one timestamp per dispatched operation and reports
// the number of operations still inside the window, pruning expired
// entries as a side effect:
//
//	var c window.Counter
//	c.Record(time.Now())
//	load := c.Load(time.Now(), 10*time.Second)
//
// # Delay policy
//
// A [Policy] maps load against [Limits] to a wait duration. Below the
// throttle-start threshold no delay is applied. Between the start and
// full-throttle thresholds the delay ramps linearly up to the soft
// ceiling Window/MaxOps, spreading requests out before the hard limit
// is reached. At or beyond the full-throttle threshold the delay is the
// time until the oldest in-window timestamp expires, which is the
// minimum wait guaranteed to bring load back under the limit.
//
// Counter and Policy are not synchronized; callers serialize access.
// The higher-level pacer package holds them under its own lock.
package window
