// Package pacer is a client-side admission-control layer for calls to
// rate-limited remote services. It keeps a caller under a provider's
// request budget by slowing down proactively as usage approaches the
// limit, recovers from transient failures with jittered exponential
// backoff, and rotates among backup credentials when a budget is
// exhausted.
//
// # Building a Pacer
//
// Use [Build] with functional options:
//
//	p, err := pacer.Build(
//		pacer.WithLimits(window.Limits{
//			MaxOps:        160,
//			Window:        10 * time.Second,
//			ThrottleStart: 0.75,
//			FullThrottle:  0.90,
//		}),
//		pacer.WithCredentials("primary-key", "backup-key"),
//		pacer.WithFeedback(provider.Hook()),
//	)
//
// # Running operations
//
// Wrap each outbound call in an [Operation] and submit it through
// [Pacer.Run] (or the typed [Do]):
//
//	result, err := p.Run(ctx, func(ctx context.Context, cred keyring.Credential) (any, error) {
//		return callRemote(ctx, cred)
//	})
//
// The pacer waits out the admission delay before dispatch, feeds the
// raw result through the provider's feedback hook, and either returns,
// retries after a backoff, or rotates the credential and re-enters
// admission. The caller sees only the final result or one terminal
// error.
//
// # Concurrent batches
//
// Multiple callers may share one Pacer directly. [Group] additionally
// bounds how many operations one caller keeps in flight:
//
//	g := pacer.NewGroup(p, 4)
//	for _, job := range jobs {
//		g.Go(ctx, job)
//	}
//	err := g.Wait()
//
// For gating plain HTTP traffic, see the
// [github.com/adamwoolhether/pacer/transport] package, which adapts a
// Pacer into an [net/http.RoundTripper].
package pacer
