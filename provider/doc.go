// Package provider supplies ready-made feedback hooks that read HTTP
// responses from rate-limited APIs and translate them into pacer
// signals: transient failures, budget exhaustion, explicit waits, and
// dynamic limit updates.
//
// # Generic hook
//
// [Hook] classifies by status code (408, 429, 5xx, and 403 carrying a
// Retry-After header) and parses Retry-After values given either as
// integer seconds or as an HTTP date:
//
//	p, err := pacer.Build(
//		pacer.WithFeedback(provider.Hook()),
//	)
//
// Providers that report quota telemetry in response headers get dynamic
// limit discovery by naming the headers:
//
//	hook := provider.Hook(provider.WithHeaders(provider.Headers{
//		Limit:      "X-RateLimit-Max",
//		Remaining:  "X-RateLimit-Remaining",
//		IntervalMS: "X-RateLimit-Interval-Milliseconds",
//	}))
//
// # Presets
//
// [Asana], [HubSpot], [Airtable], and [Slack] bundle each vendor's
// published budget with a hook tuned to its response conventions.
// [Fixed] pins the limits to a known schedule regardless of response
// contents.
package provider
