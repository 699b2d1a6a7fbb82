package provider

import (
	"time"

	"github.com/adamwoolhether/pacer"
	"github.com/adamwoolhether/pacer/window"
)

// Preset budgets mirror each vendor's published rate limits. The hook
// half of each preset is tuned to how that vendor reports throttling in
// responses; pass both to [pacer.Build]:
//
//	limits, hook := provider.HubSpot()
//	p, err := pacer.Build(
//		pacer.WithLimits(limits),
//		pacer.WithFeedback(hook),
//	)

// Asana allows 1500 requests per minute and reports exhaustion with
// 429 plus Retry-After seconds.
func Asana() (window.Limits, pacer.FeedbackFunc) {
	limits := window.Limits{
		MaxOps:        1500,
		Window:        time.Minute,
		ThrottleStart: 0.75,
		FullThrottle:  0.90,
	}
	return limits, Hook()
}

// HubSpot allows 160 requests per rolling 10 seconds and reports both
// the live interval and the remaining quota in every response, so the
// pacer follows the server's own count.
func HubSpot() (window.Limits, pacer.FeedbackFunc) {
	limits := window.Limits{
		MaxOps:        160,
		Window:        10 * time.Second,
		ThrottleStart: 0.75,
		FullThrottle:  0.90,
	}
	hook := Hook(WithHeaders(Headers{
		Limit:      "X-HubSpot-RateLimit-Max",
		Remaining:  "X-HubSpot-RateLimit-Remaining",
		IntervalMS: "X-HubSpot-RateLimit-Interval-Milliseconds",
	}))
	return limits, hook
}

// Airtable allows 5 requests per second and asks for a 30 second pause
// after a 429 when no Retry-After accompanies it. Throttling starts
// earlier than usual because the budget is so small.
func Airtable() (window.Limits, pacer.FeedbackFunc) {
	limits := window.Limits{
		MaxOps:        5,
		Window:        time.Second,
		ThrottleStart: 0.50,
		FullThrottle:  0.70,
	}
	return limits, Hook(WithFallbackWait(30 * time.Second))
}

// Slack publishes per-method tiers; the preset carries the
// conservative default budget and the standard Retry-After handling.
func Slack() (window.Limits, pacer.FeedbackFunc) {
	return window.DefaultLimits(), Hook()
}

// Fixed pins the limits to a known schedule: the hook re-applies l on
// every successful dispatch and otherwise classifies like [Hook], for
// providers whose budget is documented but never reported in responses.
func Fixed(l window.Limits, opts ...Option) pacer.FeedbackFunc {
	inner := Hook(opts...)
	return func(result any, err error) pacer.Feedback {
		fb := inner(result, err)
		if fb.Verdict != pacer.VerdictOK {
			return fb
		}
		fb.Limits = &window.Update{
			MaxOps:        &l.MaxOps,
			Window:        &l.Window,
			ThrottleStart: &l.ThrottleStart,
			FullThrottle:  &l.FullThrottle,
		}
		fb.Position = nil
		return fb
	}
}
