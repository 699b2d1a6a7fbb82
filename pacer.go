package pacer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/adamwoolhether/pacer/backoff"
	"github.com/adamwoolhether/pacer/keyring"
	"github.com/adamwoolhether/pacer/window"
)

// defaultMaxAttempts caps dispatches per logical run unless overridden.
const defaultMaxAttempts = 5

// Operation is the unit of work: one network or client call, executed
// once per attempt with the currently active credential. Operations
// built without credentials receive the empty credential.
type Operation func(ctx context.Context, cred keyring.Credential) (any, error)

// Pacer gates outgoing calls to a rate-limited remote service. It
// delays dispatch as usage approaches the provider's budget, retries
// transient failures with exponential backoff, and rotates among backup
// credentials when a budget is exhausted.
//
// One Pacer per provider/credential-set is the expected deployment
// unit. All methods are safe for concurrent use; callers sharing a
// Pacer contend on one coarse lock around the usage window, the live
// limits, and the credential cursor, while every wait happens off-lock.
type Pacer struct {
	mu       sync.Mutex
	limits   window.Limits
	counters map[int]*window.Counter
	srvPos   map[int]serverPosition
	ring     *keyring.Ring

	policy      window.Policy
	backoff     backoff.Policy
	maxAttempts int
	feedback    FeedbackFunc
	transient   func(error) bool
	refresh     keyring.RefreshFunc
	sharedWin   bool

	logger *slog.Logger
	tracer trace.Tracer
	clock  func() time.Time
}

// config collects the validated construction surface.
type config struct {
	Limits      window.Limits `json:"limits"`
	BaseDelay   time.Duration `json:"base_delay" validate:"gt=0"`
	MaxAttempts int           `json:"max_attempts" validate:"gte=1"`
}

// Build constructs a Pacer from functional options and validates the
// resulting configuration. There is no runtime reconfiguration surface
// beyond the feedback-driven limits update path.
func Build(opts ...Option) (*Pacer, error) {
	var o options
	for _, opt := range opts {
		if err := opt(&o); err != nil {
			return nil, fmt.Errorf("applying pacer option: %w", err)
		}
	}

	p := &Pacer{
		limits:      window.DefaultLimits(),
		counters:    make(map[int]*window.Counter),
		srvPos:      make(map[int]serverPosition),
		policy:      window.NewPolicy(),
		backoff:     backoff.New(),
		maxAttempts: defaultMaxAttempts,
		logger:      slog.Default(),
		tracer:      noop.NewTracerProvider().Tracer("pacer"),
		clock:       time.Now,
	}

	if o.limits != nil {
		p.limits = *o.limits
	}
	if o.policy != nil {
		p.policy = *o.policy
	}
	if o.backoff != nil {
		p.backoff = *o.backoff
	}
	if o.maxAttempts != nil {
		p.maxAttempts = *o.maxAttempts
	}
	p.ring = o.ring
	p.refresh = o.refresh
	p.feedback = o.feedback
	p.transient = o.transient
	p.sharedWin = o.sharedWindow
	if o.logger != nil {
		p.logger = o.logger
	}
	if o.tracer != nil {
		p.tracer = o.tracer
	}
	if o.clock != nil {
		p.clock = o.clock
	}

	cfg := config{
		Limits:      p.limits,
		BaseDelay:   p.backoff.Base,
		MaxAttempts: p.maxAttempts,
	}
	if err := validateStruct(cfg); err != nil {
		return nil, fmt.Errorf("validating pacer config: %w", err)
	}

	return p, nil
}

// Run executes one logical operation end-to-end: it waits out the
// admission delay, dispatches, classifies the result through the
// feedback hook, retries transient failures via backoff up to the
// attempt ceiling, and rotates credentials on rate-limit signals.
//
// The caller observes either the operation's result or one terminal
// error; intermediate attempts surface only through logs and the run
// span. Non-transient operation errors pass through unmodified and are
// never retried.
func (p *Pacer) Run(ctx context.Context, op Operation) (any, error) {
	callID := uuid.New().String()

	var attempt int
	var waited time.Duration

	ctx, span := p.tracer.Start(ctx, "pacer.run")
	defer func() {
		span.SetAttributes(
			attribute.String("pacer.call_id", callID),
			attribute.Int("pacer.attempts", attempt),
			attribute.String("pacer.waited", waited.String()),
		)
		span.End()
	}()

	var lastErr error
	admit := true // pass the admission gate before the next dispatch
	var retryWait time.Duration

	for {
		var cred keyring.Credential
		if admit {
			var err error
			cred, err = p.admit(ctx, callID, &waited)
			if err != nil {
				return nil, err
			}
		} else {
			if retryWait > 0 {
				waited += retryWait
				if err := sleep(ctx, retryWait); err != nil {
					return nil, err
				}
			}
			cred = p.recordDispatch()
		}
		attempt++

		result, err := op(ctx, cred)

		// A cancellation that lands mid-flight skips post-processing:
		// no feedback, no retry, the raw outcome passes through.
		if ctx.Err() != nil && err != nil {
			return result, err
		}

		fb := p.classify(result, err)

		switch fb.Verdict {
		case VerdictOK:
			p.applyFeedback(fb)
			return result, err

		case VerdictTransient:
			lastErr = err
			if lastErr == nil {
				lastErr = ErrTransient
			}
			if attempt >= p.maxAttempts {
				return nil, &AttemptsError{Attempts: attempt, Last: lastErr}
			}

			retryWait = fb.RetryAfter
			if retryWait <= 0 {
				retryWait = p.backoff.Jittered(attempt - 1)
			}
			p.logger.Info("transient failure, backing off",
				"call_id", callID, "attempt", attempt, "wait", retryWait.String(), "error", lastErr)
			admit = false

		case VerdictRateLimited:
			lastErr = err
			if lastErr == nil {
				lastErr = ErrRateLimited
			}
			if rerr := p.rotate(ctx); rerr != nil {
				if errors.Is(rerr, keyring.ErrExhausted) {
					return nil, fmt.Errorf("%w: %w", ErrCredentialsExhausted, lastErr)
				}
				return nil, rerr
			}

			// The fresh credential's true load is unknown; its window
			// starts empty. Honor an explicit provider wait, otherwise
			// fall back to the backoff schedule before re-admission.
			retryWait = fb.RetryAfter
			if retryWait <= 0 {
				retryWait = p.backoff.Jittered(attempt - 1)
			}
			p.logger.Info("rate limited, rotated credential",
				"call_id", callID, "attempt", attempt, "wait", retryWait.String())
			if retryWait > 0 {
				waited += retryWait
				if err := sleep(ctx, retryWait); err != nil {
					return nil, err
				}
			}
			admit = true
		}
	}
}

// Do runs op through p and returns its typed result.
func Do[T any](ctx context.Context, p *Pacer, op func(ctx context.Context, cred keyring.Credential) (T, error)) (T, error) {
	result, err := p.Run(ctx, func(ctx context.Context, cred keyring.Credential) (any, error) {
		return op(ctx, cred)
	})

	typed, ok := result.(T)
	if !ok {
		var zero T
		return zero, err
	}
	return typed, err
}

// Limits returns a snapshot of the live throttling parameters.
func (p *Pacer) Limits() window.Limits {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.limits
}

// ActiveCredential returns the credential currently in use, or the
// empty credential when the pacer was built without any.
func (p *Pacer) ActiveCredential() keyring.Credential {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ring == nil {
		return ""
	}
	return p.ring.Current()
}

// admit blocks until the usage window has room, then records the
// dispatch and returns the active credential. The load check, delay
// decision, and timestamp record happen under one lock acquisition so
// two callers can never both perceive "under limit" and jointly exceed
// it; the wait itself never holds the lock, and state is re-checked
// after every wake since other callers dispatch in the meantime.
func (p *Pacer) admit(ctx context.Context, callID string, waited *time.Duration) (keyring.Credential, error) {
	for {
		p.mu.Lock()
		now := p.clock()
		c := p.counter()
		load := p.loadLocked(now)
		oldest, ok := c.Oldest()
		delay := p.policy.Delay(now, load, oldest, ok, p.limits)
		if delay <= 0 {
			c.Record(now)
			var cred keyring.Credential
			if p.ring != nil {
				cred = p.ring.Current()
			}
			p.mu.Unlock()
			return cred, nil
		}
		p.mu.Unlock()

		p.logger.Info("throttling dispatch",
			"call_id", callID, "load", load, "wait", delay.String())
		*waited += delay
		if err := sleep(ctx, delay); err != nil {
			return "", err
		}
	}
}

// recordDispatch records a dispatch without consulting the admission
// gate, used for backoff retries that return straight to dispatch.
func (p *Pacer) recordDispatch() keyring.Credential {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.counter().Record(p.clock())
	if p.ring == nil {
		return ""
	}
	return p.ring.Current()
}

// counterIndex keys per-credential state. With WithSharedWindow all
// credentials map to one slot. Callers hold p.mu.
func (p *Pacer) counterIndex() int {
	if !p.sharedWin && p.ring != nil {
		return p.ring.Index()
	}
	return 0
}

// counter returns the usage window for the active credential, creating
// it on first use. Callers hold p.mu.
func (p *Pacer) counter() *window.Counter {
	idx := p.counterIndex()
	c, ok := p.counters[idx]
	if !ok {
		c = &window.Counter{}
		p.counters[idx] = c
	}
	return c
}

// loadLocked returns the effective in-window load: the local count, or
// the provider-reported position when it is still fresh and higher.
// Callers hold p.mu.
func (p *Pacer) loadLocked(now time.Time) int {
	load := p.counter().Load(now, p.limits.Window)
	if sp, ok := p.srvPos[p.counterIndex()]; ok {
		if now.Sub(sp.at) < p.limits.Window && sp.used > load {
			load = sp.used
		}
	}
	return load
}

// classify funnels a dispatch outcome through the feedback hook and the
// transient-error predicate.
func (p *Pacer) classify(result any, err error) Feedback {
	if p.feedback != nil {
		fb := p.feedback(result, err)
		if fb.Verdict != VerdictOK {
			return fb
		}
		if err != nil && p.transient != nil && p.transient(err) {
			return Feedback{Verdict: VerdictTransient}
		}
		return fb
	}

	if err != nil && p.transient != nil && p.transient(err) {
		return Feedback{Verdict: VerdictTransient}
	}
	return Feedback{Verdict: VerdictOK}
}

// rotate advances the credential cursor and, when configured, performs
// the refresh exchange off-lock. Rotation is visible to all callers
// immediately. The refreshed token is written back to the slot the
// refresh was started for; a concurrent caller may have rotated the
// cursor further while the exchange was in flight, and its slot must
// not be overwritten with a stale token.
func (p *Pacer) rotate(ctx context.Context) error {
	p.mu.Lock()
	if p.ring == nil {
		p.mu.Unlock()
		return keyring.ErrExhausted
	}
	cred, err := p.ring.Rotate()
	if err != nil {
		p.mu.Unlock()
		return err
	}
	idx := p.ring.Index()
	p.mu.Unlock()

	p.logger.Info("rotated to backup credential", "index", idx)

	if p.refresh != nil {
		fresh, err := p.refresh(ctx, cred)
		if err != nil {
			return fmt.Errorf("refreshing credential: %w", err)
		}
		p.mu.Lock()
		p.ring.ReplaceAt(idx, fresh)
		p.mu.Unlock()
	}

	return nil
}

// serverPosition is a provider-reported window position, trusted only
// while younger than the window it was measured in.
type serverPosition struct {
	used int
	at   time.Time
}

// applyFeedback folds a successful dispatch's limits update and
// server-reported position into the live state.
func (p *Pacer) applyFeedback(fb Feedback) {
	if fb.Limits == nil && fb.Position == nil {
		return
	}

	p.mu.Lock()
	if fb.Limits != nil && !fb.Limits.IsZero() {
		p.limits = p.limits.Apply(*fb.Limits)
	}
	if fb.Position != nil {
		p.srvPos[p.counterIndex()] = serverPosition{used: *fb.Position, at: p.clock()}
	}
	l := p.limits
	p.mu.Unlock()

	p.logger.Debug("feedback applied", "limits", l.String())
}

// sleep suspends until d elapses or ctx ends. Cancellation abandons the
// pending dispatch before any side effect.
func sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrCancelled, err)
	}
	if d <= 0 {
		return nil
	}

	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", ErrCancelled, ctx.Err())
	}
}
