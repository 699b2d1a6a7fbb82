package backoff

import (
	"math"
	"math/rand/v2"
	"time"
)

// Defaults for a Policy built with New.
const (
	DefaultBase   = time.Second
	DefaultFactor = 2.0
	DefaultMax    = time.Hour
)

// Policy describes an exponential backoff schedule: Base * Factor^attempt,
// capped at Max. Policy values are immutable and safe to share.
type Policy struct {
	// Base is the delay before the first retry.
	Base time.Duration
	// Factor is the growth multiplier between attempts.
	Factor float64
	// Max caps the computed delay.
	Max time.Duration
	// Rand returns a value in [0, 1). Replaceable for
	// deterministic tests; nil uses the shared generator.
	Rand func() float64
}

// New returns a Policy with a 1s base, doubling per attempt, capped
// at one hour.
func New() Policy {
	return Policy{Base: DefaultBase, Factor: DefaultFactor, Max: DefaultMax}
}

// Delay returns the un-jittered delay for the given zero-based attempt.
// It is monotonically non-decreasing in attempt and capped at Max.
func (p Policy) Delay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}

	base := p.Base
	if base <= 0 {
		base = DefaultBase
	}
	factor := p.Factor
	if factor < 1 {
		factor = DefaultFactor
	}
	max := p.Max
	if max <= 0 {
		max = DefaultMax
	}

	d := float64(base) * math.Pow(factor, float64(attempt))
	if d > float64(max) {
		return max
	}
	return time.Duration(d)
}

// Jittered returns a wait sampled uniformly from [0, Delay(attempt)],
// the "full jitter" strategy.
func (p Policy) Jittered(attempt int) time.Duration {
	d := p.Delay(attempt)
	if d <= 0 {
		return 0
	}
	return time.Duration(p.rand() * float64(d))
}

func (p Policy) rand() float64 {
	if p.Rand != nil {
		return p.Rand()
	}
	return rand.Float64()
}
