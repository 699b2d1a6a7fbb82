// Package backoff computes exponential retry delays with full jitter.
//
// A [Policy] grows the delay geometrically across consecutive failed
// attempts of the same logical call and samples the actual wait
// uniformly from [0, delay], avoiding thundering-herd retries:
//
//	p := backoff.New()
//	wait := p.Jittered(attempt) // attempt 0, 1, 2, ...
//
// The policy itself is stateless; the caller tracks the attempt number
// and enforces its own attempt ceiling.
package backoff
