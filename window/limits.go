package window

import (
	"fmt"
	"time"
)

// Limits holds the live throttling parameters. A provider's feedback
// hook may replace individual fields at runtime through [Limits.Apply];
// the pacer applies updates under its dispatch lock so reads and writes
// never interleave with admission decisions.
//
// Invariant: 0 < ThrottleStart < FullThrottle <= 1.
type Limits struct {
	// MaxOps is the maximum number of operations permitted
	// within one window.
	MaxOps int `json:"max_ops" validate:"gt=0"`
	// Window is the trailing interval over which MaxOps applies.
	Window time.Duration `json:"window" validate:"gt=0"`
	// ThrottleStart is the load ratio at which proactive
	// delays begin.
	ThrottleStart float64 `json:"throttle_start" validate:"gt=0,lt=1"`
	// FullThrottle is the load ratio at which hard-stop
	// behavior takes over.
	FullThrottle float64 `json:"full_throttle" validate:"gtfield=ThrottleStart,lte=1"`
}

// DefaultLimits mirror the conservative defaults most providers
// tolerate: ten operations per second, throttling from 75% of the
// budget and hard-stopping at 90%.
func DefaultLimits() Limits {
	return Limits{
		MaxOps:        10,
		Window:        time.Second,
		ThrottleStart: 0.75,
		FullThrottle:  0.90,
	}
}

// Update describes a partial change to Limits. Nil fields are left
// untouched. Updates are absolute values, never increments, so applying
// the same update twice yields the same Limits.
type Update struct {
	MaxOps        *int
	Window        *time.Duration
	ThrottleStart *float64
	FullThrottle  *float64
}

// Apply returns a copy of l with the non-nil fields of u applied.
// Fields that would break the Limits invariant are ignored, keeping a
// misbehaving provider header from wedging the throttle.
func (l Limits) Apply(u Update) Limits {
	next := l
	if u.MaxOps != nil && *u.MaxOps > 0 {
		next.MaxOps = *u.MaxOps
	}
	if u.Window != nil && *u.Window > 0 {
		next.Window = *u.Window
	}
	if u.ThrottleStart != nil && *u.ThrottleStart > 0 && *u.ThrottleStart < next.FullThrottle {
		next.ThrottleStart = *u.ThrottleStart
	}
	if u.FullThrottle != nil && *u.FullThrottle > next.ThrottleStart && *u.FullThrottle <= 1 {
		next.FullThrottle = *u.FullThrottle
	}
	return next
}

// IsZero reports whether u carries no changes.
func (u Update) IsZero() bool {
	return u.MaxOps == nil && u.Window == nil && u.ThrottleStart == nil && u.FullThrottle == nil
}

func (l Limits) String() string {
	return fmt.Sprintf("%d per %s (throttle %.0f%%-%.0f%%)",
		l.MaxOps, l.Window, l.ThrottleStart*100, l.FullThrottle*100)
}
