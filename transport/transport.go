package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/adamwoolhether/pacer"
	"github.com/adamwoolhether/pacer/keyring"
)

var (
	ErrMustNotBeZero     = errors.New("must be greater than zero")
	ErrNilPacer          = errors.New("pacer must not be nil")
	ErrWaitingFailed     = errors.New("rate cap waiting failed")
	ErrContextEnded      = errors.New("transport context ended")
	ErrBodyNotRewindable = errors.New("request body cannot be rewound for retries")
)

// CredentialFunc stamps the active credential onto an outgoing request.
type CredentialFunc func(req *http.Request, cred keyring.Credential)

// BearerCredential sets "Authorization: Bearer <credential>", the most
// common scheme among API providers. Empty credentials leave the
// request untouched.
func BearerCredential(req *http.Request, cred keyring.Credential) {
	if cred != "" {
		req.Header.Set("Authorization", "Bearer "+string(cred))
	}
}

// Option is a functional option for [NewRoundTripper] and [NewClient].
type Option func(*options) error

type options struct {
	next      http.RoundTripper
	cap       *rate.Limiter
	capRPS    int
	applyCred CredentialFunc
	logger    *slog.Logger
	timeout   *time.Duration
	userAgent string
}

// WithNext sets the base transport. Defaults to [http.DefaultTransport].
func WithNext(rt http.RoundTripper) Option {
	return func(o *options) error {
		if rt == nil {
			return errors.New("transport must not be nil")
		}
		o.next = rt
		return nil
	}
}

// WithRateCap layers a token-bucket hard ceiling beneath the adaptive
// throttle: no matter what the usage window permits, requests never
// exceed rps with the given burst.
func WithRateCap(rps, burst int) Option {
	return func(o *options) error {
		if rps <= 0 || burst <= 0 {
			return fmt.Errorf("rps[%d] and burst[%d] %w", rps, burst, ErrMustNotBeZero)
		}
		o.cap = rate.NewLimiter(rate.Limit(rps), burst)
		o.capRPS = rps
		return nil
	}
}

// WithCredential sets how the active credential is applied to requests.
// Defaults to [BearerCredential].
func WithCredential(fn CredentialFunc) Option {
	return func(o *options) error {
		if fn == nil {
			return errors.New("credential func must not be nil")
		}
		o.applyCred = fn
		return nil
	}
}

// WithLogger injects a custom [slog.Logger].
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) error {
		if logger == nil {
			return errors.New("logger must not be nil")
		}
		o.logger = logger
		return nil
	}
}

// tripper gates outbound requests through a Pacer, with an optional
// token-bucket cap beneath it.
type tripper struct {
	p         *pacer.Pacer
	next      http.RoundTripper
	cap       *rate.Limiter
	capRPS    int
	applyCred CredentialFunc
	logger    *slog.Logger
}

// NewRoundTripper returns an http.RoundTripper that submits every
// request through p. Requests with a body must be rewindable via
// GetBody (requests built with http.NewRequest from byte or string
// readers are); otherwise retries would replay a consumed body.
//
// The pacer must carry a feedback hook that classifies *http.Response
// results, such as [github.com/adamwoolhether/pacer/provider.Hook].
// Responses with a retriable status
// (429, 408, 5xx, 403 with Retry-After) have their bodies drained and
// closed before classification; without a hook they are not retried
// and reach the caller with a closed body.
func NewRoundTripper(p *pacer.Pacer, opts ...Option) (http.RoundTripper, error) {
	if p == nil {
		return nil, ErrNilPacer
	}

	o := options{
		next:      http.DefaultTransport,
		applyCred: BearerCredential,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(&o); err != nil {
			return nil, fmt.Errorf("applying transport option: %w", err)
		}
	}

	return &tripper{
		p:         p,
		next:      o.next,
		cap:       o.cap,
		capRPS:    o.capRPS,
		applyCred: o.applyCred,
		logger:    o.logger,
	}, nil
}

func (t *tripper) RoundTrip(r *http.Request) (*http.Response, error) {
	ctx := r.Context()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w early: %w", ErrContextEnded, err)
	}

	if r.Body != nil && r.GetBody == nil {
		return nil, ErrBodyNotRewindable
	}

	result, err := t.p.Run(ctx, func(ctx context.Context, cred keyring.Credential) (any, error) {
		req := r.Clone(ctx)
		if r.GetBody != nil {
			body, err := r.GetBody()
			if err != nil {
				return nil, fmt.Errorf("rewinding request body: %w", err)
			}
			req.Body = body
		}
		t.applyCred(req, cred)

		if t.cap != nil && !t.cap.Allow() {
			t.logger.Info("rate cap tokens exhausted", "rate", t.capRPS, "path", req.URL.Path)

			start := time.Now()
			if err := t.cap.Wait(ctx); err != nil {
				return nil, fmt.Errorf("%w: %w", ErrWaitingFailed, err)
			}
			t.logger.Info("rate cap wait complete", "waited", time.Since(start).String(), "rate", t.capRPS)
		}

		resp, err := t.next.RoundTrip(req)
		if resp != nil && retriableStatus(resp) {
			// This response will be retried or surfaced as an error;
			// drain it so the connection can be reused.
			_, _ = io.Copy(io.Discard, resp.Body)
			_ = resp.Body.Close()
		}
		return resp, err
	})

	resp, _ := result.(*http.Response)
	return resp, err
}

// retriableStatus mirrors the provider package's transient/rate-limit
// classification: these responses never reach the caller with a live
// body.
func retriableStatus(resp *http.Response) bool {
	switch {
	case resp.StatusCode == http.StatusTooManyRequests,
		resp.StatusCode == http.StatusRequestTimeout,
		resp.StatusCode >= 500 && resp.StatusCode < 600:
		return true
	case resp.StatusCode == http.StatusForbidden:
		return resp.Header.Get("Retry-After") != ""
	}
	return false
}
