package window

import (
	"math/rand/v2"
	"time"
)

const (
	// defaultJitter is the symmetric jitter fraction applied in the
	// linear ramp region.
	defaultJitter = 0.10
	// defaultCushion is the maximum upward-only cushion applied on top
	// of the hard-stop delay.
	defaultCushion = 0.10
)

// Policy converts current load and Limits into an admission delay.
//
// Jitter desynchronizes concurrent callers that would otherwise wake at
// the same instant. In the ramp region jitter is symmetric (+-Jitter);
// in the hard-stop region only an upward cushion is added, so the
// computed delay never undercuts the time needed to bring load back
// under the limit.
type Policy struct {
	// Jitter is the symmetric jitter fraction for ramp delays.
	Jitter float64
	// Cushion is the maximum upward cushion fraction for
	// hard-stop delays.
	Cushion float64
	// Rand returns a value in [0, 1). Replaceable for
	// deterministic tests; nil uses the shared generator.
	Rand func() float64
}

// NewPolicy returns a Policy with 10% jitter and a 10% hard-stop cushion.
func NewPolicy() Policy {
	return Policy{Jitter: defaultJitter, Cushion: defaultCushion}
}

// Delay returns how long the next operation should wait before
// dispatch, given the current in-window load and the oldest retained
// timestamp. Zero means dispatch immediately. hasOldest is false when
// the counter is empty; should the hard-stop branch apply anyway (the
// load was reported by the provider), the delay is one full window.
func (p Policy) Delay(now time.Time, load int, oldest time.Time, hasOldest bool, l Limits) time.Duration {
	ratio := float64(load) / float64(l.MaxOps)

	switch {
	case ratio < l.ThrottleStart:
		return 0

	case ratio < l.FullThrottle:
		// Linear ramp from 0 at ThrottleStart up to the soft
		// ceiling at FullThrottle, spreading requests out before
		// the hard limit is reached.
		ceiling := time.Duration(float64(l.Window) / float64(l.MaxOps))
		progress := (ratio - l.ThrottleStart) / (l.FullThrottle - l.ThrottleStart)
		d := time.Duration(progress * float64(ceiling))
		return p.jittered(d)

	default:
		if !hasOldest {
			// Load was reported externally with nothing recorded
			// locally; without an expiry to wait for, sit out one
			// full window.
			return l.Window + time.Duration(p.Cushion*p.rand()*float64(l.Window))
		}
		// The minimum wait guaranteed to bring load back under the
		// limit: the oldest in-window timestamp must expire first.
		remaining := oldest.Add(l.Window).Sub(now)
		if remaining <= 0 {
			return 0
		}
		return remaining + time.Duration(p.Cushion*p.rand()*float64(remaining))
	}
}

// jittered perturbs d by +-Jitter.
func (p Policy) jittered(d time.Duration) time.Duration {
	if d <= 0 || p.Jitter <= 0 {
		return d
	}
	f := 1 + p.Jitter*(2*p.rand()-1)
	return time.Duration(f * float64(d))
}

func (p Policy) rand() float64 {
	if p.Rand != nil {
		return p.Rand()
	}
	return rand.Float64()
}
