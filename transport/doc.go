// Package transport adapts a [pacer.Pacer] into an [http.RoundTripper],
// gating every outbound request through the admission, backoff, and
// credential-rotation machinery, plus a thin JSON client with
// per-verb helpers.
//
// # RoundTripper
//
// Wrap an existing transport with [NewRoundTripper] and install it on
// any [http.Client]. The Pacer should carry a feedback hook from the
// provider package so responses steer the engine:
//
//	limits, hook := provider.HubSpot()
//	p, _ := pacer.Build(
//		pacer.WithLimits(limits),
//		pacer.WithFeedback(hook),
//		pacer.WithCredentials(primary, backups...),
//	)
//	rt, err := transport.NewRoundTripper(p)
//	httpClient := &http.Client{Transport: rt}
//
// An optional token-bucket cap underneath the adaptive layer enforces a
// hard requests-per-second ceiling regardless of window state:
//
//	rt, err := transport.NewRoundTripper(p, transport.WithRateCap(10, 5))
//
// # Verb helpers
//
// [NewClient] bundles the round tripper with JSON encode/decode and
// GET/POST/PUT/PATCH/DELETE pass-throughs:
//
//	c, err := transport.NewClient(p)
//	err = c.Get(ctx, "https://api.example.com/v1/items", &items)
package transport
