package pacer

import (
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/adamwoolhether/pacer/backoff"
	"github.com/adamwoolhether/pacer/keyring"
	"github.com/adamwoolhether/pacer/window"
)

// Option is a functional option for configuring a [Pacer] via [Build].
type Option func(*options) error

type options struct {
	limits       *window.Limits
	policy       *window.Policy
	backoff      *backoff.Policy
	maxAttempts  *int
	ring         *keyring.Ring
	refresh      keyring.RefreshFunc
	feedback     FeedbackFunc
	transient    func(error) bool
	sharedWindow bool
	logger       *slog.Logger
	tracer       trace.Tracer
	clock        func() time.Time
}

// WithLimits sets the initial throttling parameters. Defaults to
// [window.DefaultLimits]. Limits remain mutable at runtime through
// feedback-hook updates only.
func WithLimits(l window.Limits) Option {
	return func(o *options) error {
		o.limits = &l
		return nil
	}
}

// WithDelayPolicy replaces the admission delay policy, mainly to pin
// jitter in tests.
func WithDelayPolicy(p window.Policy) Option {
	return func(o *options) error {
		o.policy = &p
		return nil
	}
}

// WithBackoff replaces the retry backoff schedule used for transient
// failures. Defaults to [backoff.New].
func WithBackoff(p backoff.Policy) Option {
	return func(o *options) error {
		o.backoff = &p
		return nil
	}
}

// WithMaxAttempts caps the number of dispatches per logical run.
// Defaults to 5.
func WithMaxAttempts(n int) Option {
	return func(o *options) error {
		if n < 1 {
			return errors.New("max attempts must be at least 1")
		}
		o.maxAttempts = &n
		return nil
	}
}

// WithCredentials supplies the primary credential and its backups, in
// rotation order. Without credentials the pacer dispatches operations
// with an empty credential and any rate-limit signal is immediately
// terminal.
func WithCredentials(primary keyring.Credential, backups ...keyring.Credential) Option {
	return func(o *options) error {
		if primary == "" {
			return errors.New("primary credential must not be empty")
		}
		o.ring = keyring.New(primary, backups...)
		return nil
	}
}

// WithRefresh installs a credential-refresh exchange, consulted each
// time rotation lands on a new credential. Providers whose keys require
// a login flow supply their exchange here.
func WithRefresh(fn keyring.RefreshFunc) Option {
	return func(o *options) error {
		if fn == nil {
			return errors.New("refresh func must not be nil")
		}
		o.refresh = fn
		return nil
	}
}

// WithFeedback installs the provider feedback hook that classifies each
// dispatch result. See the provider package for HTTP implementations.
func WithFeedback(fn FeedbackFunc) Option {
	return func(o *options) error {
		if fn == nil {
			return errors.New("feedback func must not be nil")
		}
		o.feedback = fn
		return nil
	}
}

// WithTransient installs a predicate classifying returned errors as
// retryable, for failures the feedback hook does not recognize
// (network timeouts, connection resets).
func WithTransient(pred func(error) bool) Option {
	return func(o *options) error {
		if pred == nil {
			return errors.New("transient predicate must not be nil")
		}
		o.transient = pred
		return nil
	}
}

// WithSharedWindow makes all credentials share one usage window.
// By default each credential gets a fresh window on rotation, matching
// providers that track budgets per credential.
func WithSharedWindow() Option {
	return func(o *options) error {
		o.sharedWindow = true
		return nil
	}
}

// WithLogger injects a custom [slog.Logger]. Defaults to [slog.Default].
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) error {
		if logger == nil {
			return errors.New("logger must not be nil")
		}
		o.logger = logger
		return nil
	}
}

// WithTracer injects an OpenTelemetry tracer for per-run spans.
// Without one, spans are no-ops.
func WithTracer(tracer trace.Tracer) Option {
	return func(o *options) error {
		if tracer == nil {
			return errors.New("tracer must not be nil")
		}
		o.tracer = tracer
		return nil
	}
}

// WithClock replaces the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(o *options) error {
		if now == nil {
			return errors.New("clock must not be nil")
		}
		o.clock = now
		return nil
	}
}
