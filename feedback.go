package pacer

import (
	"time"

	"github.com/adamwoolhether/pacer/window"
)

// Verdict classifies a completed dispatch.
type Verdict int

const (
	// VerdictOK: no rate-limit and no transient condition. Errors pass
	// through to the caller unmodified.
	VerdictOK Verdict = iota
	// VerdictTransient: retryable failure not tied to the rate limit
	// itself, e.g. a timeout or 5xx.
	VerdictTransient
	// VerdictRateLimited: the active credential's budget is exhausted;
	// the pacer rotates to the next credential.
	VerdictRateLimited
)

func (v Verdict) String() string {
	switch v {
	case VerdictOK:
		return "ok"
	case VerdictTransient:
		return "transient"
	case VerdictRateLimited:
		return "rate_limited"
	default:
		return "unknown"
	}
}

// Feedback is a provider's reading of one dispatch result.
type Feedback struct {
	Verdict Verdict

	// RetryAfter, when positive, overrides the backoff-computed delay
	// for the next attempt only. Typically derived from a Retry-After
	// header. The attempt counter still advances.
	RetryAfter time.Duration

	// Limits, when non-nil, updates the live throttling parameters:
	// dynamic limit discovery from remaining-quota headers or a known
	// provider schedule.
	Limits *window.Update

	// Position, when non-nil, is the provider's own count of
	// operations consumed within the current window, derived from
	// limit/remaining headers. While fresh it overrides the local
	// count whenever it reports a higher load.
	Position *int
}

// FeedbackFunc inspects a completed call's raw result and error and
// classifies it. Provider-specific implementations read response
// headers, status codes, or Retry-After values; see the provider
// package for ready-made HTTP hooks.
//
// A nil FeedbackFunc treats every dispatch as VerdictOK.
type FeedbackFunc func(result any, err error) Feedback
