package provider

import (
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/adamwoolhether/pacer"
	"github.com/adamwoolhether/pacer/window"
)

// defaultRetryAfterHeader is where providers report an explicit wait.
const defaultRetryAfterHeader = "Retry-After"

// Headers names the response headers a provider uses to report
// rate-limit telemetry. Empty fields disable the corresponding signal.
type Headers struct {
	// Limit is the header carrying the window budget.
	Limit string
	// Remaining is the header carrying the unused share of the budget.
	// Together with Limit it yields the provider's own count of
	// operations used so far, which overrides the local count when
	// higher.
	Remaining string
	// IntervalMS is the header carrying the window length in
	// milliseconds.
	IntervalMS string
	// RetryAfter overrides the standard Retry-After header name.
	RetryAfter string
}

// Option is a functional option for [Hook].
type Option func(*options)

type options struct {
	headers      Headers
	fallbackWait time.Duration
	clock        func() time.Time
}

// WithHeaders enables dynamic limit discovery from the named headers.
func WithHeaders(h Headers) Option {
	return func(o *options) {
		o.headers = h
	}
}

// WithFallbackWait sets the wait reported for a 429 that carries no
// Retry-After value. Zero leaves the wait to the backoff schedule.
func WithFallbackWait(d time.Duration) Option {
	return func(o *options) {
		o.fallbackWait = d
	}
}

// WithClock replaces the time source used for HTTP-date Retry-After
// values, for tests.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.clock = now
	}
}

// Hook builds a [pacer.FeedbackFunc] for results that are
// *http.Response values. Classification follows common provider
// behavior: 429 means the active credential's budget is exhausted;
// 408, 5xx, and 403-with-Retry-After are transient; anything else is
// passed through, after harvesting any quota headers.
//
// Errors without a response are classified transient only when they
// look like transport failures (see [IsTransportError]); everything
// else passes through untouched so non-transient failures are never
// retried.
func Hook(opts ...Option) pacer.FeedbackFunc {
	o := options{clock: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	retryHeader := o.headers.RetryAfter
	if retryHeader == "" {
		retryHeader = defaultRetryAfterHeader
	}

	return func(result any, err error) pacer.Feedback {
		resp, _ := result.(*http.Response)

		if resp == nil {
			if err != nil && IsTransportError(err) {
				return pacer.Feedback{Verdict: pacer.VerdictTransient}
			}
			return pacer.Feedback{Verdict: pacer.VerdictOK}
		}

		wait := ParseRetryAfter(resp.Header.Get(retryHeader), o.clock())

		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			if wait <= 0 {
				wait = o.fallbackWait
			}
			return pacer.Feedback{Verdict: pacer.VerdictRateLimited, RetryAfter: wait}

		case resp.StatusCode == http.StatusRequestTimeout,
			resp.StatusCode >= 500 && resp.StatusCode < 600:
			return pacer.Feedback{Verdict: pacer.VerdictTransient, RetryAfter: wait}

		case resp.StatusCode == http.StatusForbidden && wait > 0:
			// Some providers mask quota exhaustion as 403 but still
			// attach a Retry-After; treat it as retryable.
			return pacer.Feedback{Verdict: pacer.VerdictTransient, RetryAfter: wait}
		}

		fb := pacer.Feedback{Verdict: pacer.VerdictOK}
		fb.Limits, fb.Position = harvest(resp.Header, o.headers)
		return fb
	}
}

// harvest extracts a limits update and the provider-reported window
// position from quota headers.
func harvest(h http.Header, names Headers) (*window.Update, *int) {
	var u window.Update

	if names.IntervalMS != "" {
		if ms, err := strconv.Atoi(h.Get(names.IntervalMS)); err == nil && ms > 0 {
			d := time.Duration(ms) * time.Millisecond
			u.Window = &d
		}
	}

	var limit int
	haveLimit := false
	if names.Limit != "" {
		if n, err := strconv.Atoi(h.Get(names.Limit)); err == nil && n > 0 {
			limit = n
			haveLimit = true
			u.MaxOps = &limit
		}
	}

	var position *int
	if haveLimit && names.Remaining != "" {
		if rem, err := strconv.Atoi(h.Get(names.Remaining)); err == nil && rem >= 0 && rem <= limit {
			used := limit - rem
			position = &used
		}
	}

	if u.IsZero() {
		return nil, position
	}
	return &u, position
}

// ParseRetryAfter interprets a Retry-After value as either integer
// seconds or an HTTP date (RFC 1123, RFC 850, or asctime). Values in
// the past, or values that cannot be parsed, yield zero.
func ParseRetryAfter(value string, now time.Time) time.Duration {
	if value == "" {
		return 0
	}

	if secs, err := strconv.Atoi(value); err == nil {
		if secs <= 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}

	when, err := http.ParseTime(value)
	if err != nil {
		return 0
	}
	d := when.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}

// IsTransportError reports whether err looks like a transient network
// failure worth retrying: timeouts and dropped connections, not
// protocol-level or caller mistakes. Suitable for [pacer.WithTransient].
func IsTransportError(err error) bool {
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}

	var oe *net.OpError
	return errors.As(err, &oe)
}
