package pacer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
)

// ErrGroupShutdown is recorded for operations submitted after
// [Group.Shutdown].
var ErrGroupShutdown = errors.New("group has been shut down")

// Group submits a batch of operations through one shared Pacer with a
// bounded number in flight. Each operation still passes the full
// admission gate individually; the group only caps local concurrency.
type Group struct {
	p        *Pacer
	wg       sync.WaitGroup
	mu       sync.Mutex
	sem      chan struct{}
	shutdown atomic.Bool
	errs     []error
}

// NewGroup creates a Group over p with the given concurrency limit.
// If maxConcurrent <= 0, concurrency is unlimited.
func NewGroup(p *Pacer, maxConcurrent int) *Group {
	g := &Group{p: p}
	if maxConcurrent > 0 {
		g.sem = make(chan struct{}, maxConcurrent)
	}
	return g
}

// Go launches op through the group's Pacer in a new goroutine and
// returns a Result for tracking it individually.
func (g *Group) Go(ctx context.Context, op Operation) *Result {
	ctx, cancel := context.WithCancel(ctx)
	r := &Result{
		done:   make(chan struct{}),
		cancel: cancel,
	}

	g.wg.Add(1)
	go func() {
		defer func() {
			cancel()
			close(r.done)
			g.wg.Done()
		}()

		if g.sem != nil {
			select {
			case g.sem <- struct{}{}:
				defer func() {
					<-g.sem
				}()
			case <-ctx.Done():
				// Same sentinel as a cancellation inside Run, so callers
				// match one error either way.
				r.err = fmt.Errorf("%w: %w", ErrCancelled, ctx.Err())
				g.recordErr(r.err)
				return
			}
		}

		if g.shutdown.Load() {
			r.err = ErrGroupShutdown
			g.recordErr(r.err)
			return
		}

		r.value, r.err = g.p.Run(ctx, op)
		if r.err != nil {
			g.recordErr(r.err)
		}
	}()

	return r
}

// Wait blocks until every submitted operation completes and returns
// all errors joined via errors.Join.
func (g *Group) Wait() error {
	g.wg.Wait()

	g.mu.Lock()
	defer g.mu.Unlock()

	return errors.Join(g.errs...)
}

// Shutdown prevents operations not yet started from executing.
func (g *Group) Shutdown() {
	g.shutdown.Store(true)
}

func (g *Group) recordErr(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.errs = append(g.errs, err)
}

// Result represents an in-flight or completed grouped operation.
type Result struct {
	done   chan struct{}
	value  any
	err    error
	cancel context.CancelFunc
}

// Done returns a channel that is closed when the operation completes.
func (r *Result) Done() <-chan struct{} { return r.done }

// Value blocks until the operation completes and returns its outcome.
func (r *Result) Value() (any, error) {
	<-r.done
	return r.value, r.err
}

// Err blocks until the operation completes and returns its error.
func (r *Result) Err() error {
	<-r.done
	return r.err
}

// Cancel abandons the operation's context.
func (r *Result) Cancel() {
	r.cancel()
}
