package transport_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/adamwoolhether/pacer"
	"github.com/adamwoolhether/pacer/backoff"
	"github.com/adamwoolhether/pacer/provider"
	"github.com/adamwoolhether/pacer/transport"
	"github.com/adamwoolhether/pacer/window"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newPacer(t *testing.T, opts ...pacer.Option) *pacer.Pacer {
	t.Helper()

	base := []pacer.Option{
		pacer.WithLimits(window.Limits{MaxOps: 1000, Window: time.Second, ThrottleStart: 0.75, FullThrottle: 0.90}),
		pacer.WithBackoff(backoff.Policy{Base: time.Millisecond, Factor: 2, Max: 50 * time.Millisecond}),
		pacer.WithFeedback(provider.Hook()),
		pacer.WithLogger(quietLogger()),
	}

	p, err := pacer.Build(append(base, opts...)...)
	if err != nil {
		t.Fatal(err)
	}
	return p
}

func TestNewRoundTripper_Validation(t *testing.T) {
	if _, err := transport.NewRoundTripper(nil); !errors.Is(err, transport.ErrNilPacer) {
		t.Errorf("exp ErrNilPacer; got %v", err)
	}

	if _, err := transport.NewRoundTripper(newPacer(t), transport.WithRateCap(0, 5)); !errors.Is(err, transport.ErrMustNotBeZero) {
		t.Errorf("exp ErrMustNotBeZero for zero rps; got %v", err)
	}

	if _, err := transport.NewRoundTripper(newPacer(t), transport.WithNext(nil)); err == nil {
		t.Error("exp error for nil next transport")
	}
}

func TestRoundTrip_RetriesServerErrors(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) <= 2 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	rt, err := transport.NewRoundTripper(newPacer(t), transport.WithLogger(quietLogger()))
	if err != nil {
		t.Fatal(err)
	}

	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, srv.URL, nil)
	if err != nil {
		t.Fatal(err)
	}

	resp, err := rt.RoundTrip(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("exp 200 after retries; got %d", resp.StatusCode)
	}
	if got := hits.Load(); got != 3 {
		t.Errorf("exp 3 attempts; got %d", got)
	}
}

// TestRoundTrip_RotatesCredentialOn429 checks that a 429 switches the
// Authorization header to the next backup before the retry.
func TestRoundTrip_RotatesCredentialOn429(t *testing.T) {
	var seen []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		seen = append(seen, auth)

		if auth != "Bearer backup" {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	p := newPacer(t, pacer.WithCredentials("primary", "backup"))
	rt, err := transport.NewRoundTripper(p, transport.WithLogger(quietLogger()))
	if err != nil {
		t.Fatal(err)
	}

	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, srv.URL, nil)
	if err != nil {
		t.Fatal(err)
	}

	resp, err := rt.RoundTrip(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	exp := []string{"Bearer primary", "Bearer backup"}
	if len(seen) != len(exp) {
		t.Fatalf("exp %d requests; got %d: %v", len(exp), len(seen), seen)
	}
	for i, auth := range exp {
		if seen[i] != auth {
			t.Errorf("request %d: exp %q; got %q", i, auth, seen[i])
		}
	}
}

func TestRoundTrip_ReplaysBodyOnRetry(t *testing.T) {
	var bodies []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		bodies = append(bodies, string(b))

		if len(bodies) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	rt, err := transport.NewRoundTripper(newPacer(t), transport.WithLogger(quietLogger()))
	if err != nil {
		t.Fatal(err)
	}

	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, srv.URL, strings.NewReader(`{"k":"v"}`))
	if err != nil {
		t.Fatal(err)
	}

	resp, err := rt.RoundTrip(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if len(bodies) != 2 {
		t.Fatalf("exp 2 requests; got %d", len(bodies))
	}
	for i, b := range bodies {
		if b != `{"k":"v"}` {
			t.Errorf("request %d: body not replayed; got %q", i, b)
		}
	}
}

func TestRoundTrip_RejectsUnrewindableBody(t *testing.T) {
	rt, err := transport.NewRoundTripper(newPacer(t), transport.WithLogger(quietLogger()))
	if err != nil {
		t.Fatal(err)
	}

	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, "http://localhost/none", nil)
	if err != nil {
		t.Fatal(err)
	}
	req.Body = io.NopCloser(strings.NewReader("one shot"))
	req.GetBody = nil

	if _, err := rt.RoundTrip(req); !errors.Is(err, transport.ErrBodyNotRewindable) {
		t.Errorf("exp ErrBodyNotRewindable; got %v", err)
	}
}

func TestRoundTrip_ContextAlreadyEnded(t *testing.T) {
	rt, err := transport.NewRoundTripper(newPacer(t), transport.WithLogger(quietLogger()))
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "http://localhost/none", nil)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := rt.RoundTrip(req); !errors.Is(err, transport.ErrContextEnded) {
		t.Errorf("exp ErrContextEnded; got %v", err)
	}
}

func TestRoundTrip_RateCapSlowsDispatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	rt, err := transport.NewRoundTripper(newPacer(t),
		transport.WithRateCap(10, 1),
		transport.WithLogger(quietLogger()),
	)
	if err != nil {
		t.Fatal(err)
	}

	start := time.Now()
	for range 3 {
		req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, srv.URL, nil)
		if err != nil {
			t.Fatal(err)
		}
		resp, err := rt.RoundTrip(req)
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
	}

	// Burst 1 at 10 rps: the second and third requests each wait for a
	// token, roughly 100ms apiece.
	if elapsed := time.Since(start); elapsed < 150*time.Millisecond {
		t.Errorf("exp token-bucket pacing; finished in %v", elapsed)
	}
}
