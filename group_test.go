package pacer_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/adamwoolhether/pacer"
	"github.com/adamwoolhether/pacer/keyring"
	"github.com/adamwoolhether/pacer/window"
)

func newGroupPacer(t *testing.T) *pacer.Pacer {
	t.Helper()

	p, err := pacer.Build(
		pacer.WithLimits(window.Limits{MaxOps: 1000, Window: time.Second, ThrottleStart: 0.75, FullThrottle: 0.90}),
		pacer.WithLogger(quietLogger()),
	)
	if err != nil {
		t.Fatal(err)
	}
	return p
}

func TestGroup_BoundedConcurrency(t *testing.T) {
	g := pacer.NewGroup(newGroupPacer(t), 3)

	var inFlight, peak atomic.Int32

	for range 12 {
		g.Go(context.Background(), func(context.Context, keyring.Credential) (any, error) {
			n := inFlight.Add(1)
			defer inFlight.Add(-1)

			for {
				old := peak.Load()
				if n <= old || peak.CompareAndSwap(old, n) {
					break
				}
			}
			time.Sleep(10 * time.Millisecond)
			return nil, nil
		})
	}

	if err := g.Wait(); err != nil {
		t.Fatal(err)
	}
	if got := peak.Load(); got > 3 {
		t.Errorf("exp at most 3 in flight; observed %d", got)
	}
}

func TestGroup_WaitJoinsErrors(t *testing.T) {
	g := pacer.NewGroup(newGroupPacer(t), 0)

	errA := errors.New("a failed")
	errB := errors.New("b failed")

	g.Go(context.Background(), func(context.Context, keyring.Credential) (any, error) {
		return nil, errA
	})
	g.Go(context.Background(), func(context.Context, keyring.Credential) (any, error) {
		return nil, errB
	})
	g.Go(context.Background(), func(context.Context, keyring.Credential) (any, error) {
		return "fine", nil
	})

	err := g.Wait()
	if err == nil {
		t.Fatal("exp joined errors")
	}
	if !errors.Is(err, errA) || !errors.Is(err, errB) {
		t.Errorf("exp both failures joined; got %v", err)
	}
}

func TestGroup_ResultValue(t *testing.T) {
	g := pacer.NewGroup(newGroupPacer(t), 2)

	r := g.Go(context.Background(), func(context.Context, keyring.Credential) (any, error) {
		return 41 + 1, nil
	})

	v, err := r.Value()
	if err != nil {
		t.Fatal(err)
	}
	if v != 42 {
		t.Errorf("exp 42; got %v", v)
	}

	select {
	case <-r.Done():
	default:
		t.Error("exp Done channel closed after Value returned")
	}

	if err := g.Wait(); err != nil {
		t.Fatal(err)
	}
}

func TestGroup_Shutdown(t *testing.T) {
	// One slot, held by a slow operation, so later submissions queue on
	// the semaphore until after Shutdown fires.
	g := pacer.NewGroup(newGroupPacer(t), 1)

	release := make(chan struct{})
	var ran atomic.Int32

	g.Go(context.Background(), func(context.Context, keyring.Credential) (any, error) {
		ran.Add(1)
		<-release
		return nil, nil
	})

	time.Sleep(10 * time.Millisecond)

	queued := g.Go(context.Background(), func(context.Context, keyring.Credential) (any, error) {
		ran.Add(1)
		return nil, nil
	})

	g.Shutdown()
	close(release)

	if err := queued.Err(); !errors.Is(err, pacer.ErrGroupShutdown) {
		t.Errorf("exp ErrGroupShutdown for queued op; got %v", err)
	}
	if err := g.Wait(); !errors.Is(err, pacer.ErrGroupShutdown) {
		t.Errorf("exp shutdown error in joined result; got %v", err)
	}
	if got := ran.Load(); got != 1 {
		t.Errorf("exp only the in-flight op to run; got %d", got)
	}
}

func TestGroup_ResultCancel(t *testing.T) {
	g := pacer.NewGroup(newGroupPacer(t), 1)

	block := make(chan struct{})
	held := g.Go(context.Background(), func(ctx context.Context, _ keyring.Credential) (any, error) {
		select {
		case <-block:
			return nil, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	})

	// Queued behind the held slot; cancelling it abandons the wait.
	waiting := g.Go(context.Background(), func(context.Context, keyring.Credential) (any, error) {
		return nil, nil
	})
	waiting.Cancel()

	if err := waiting.Err(); !errors.Is(err, context.Canceled) {
		t.Errorf("exp context.Canceled for cancelled op; got %v", err)
	}
	// Cancellation surfaces the same sentinel whether it lands on the
	// semaphore wait or inside the pacer's own waits.
	if err := waiting.Err(); !errors.Is(err, pacer.ErrCancelled) {
		t.Errorf("exp ErrCancelled for cancelled op; got %v", err)
	}

	close(block)
	if _, err := held.Value(); err != nil {
		t.Errorf("exp held op unaffected; got %v", err)
	}

	if err := g.Wait(); !errors.Is(err, context.Canceled) {
		t.Errorf("exp cancellation joined; got %v", err)
	}
}
