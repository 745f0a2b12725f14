// Package tasks supervises the background goroutines that drive simulated work.
//
// Work accepted over HTTP must outlive the request that started it, so tasks are
// never tied to a request context. Instead every task runs under the Group's own
// context, which is only cancelled on Shutdown.
//
//	g := tasks.NewGroup()
//	g.Go(func(ctx context.Context) {
//	    if !tasks.Sleep(ctx, 200*time.Millisecond) {
//	        return // shutting down
//	    }
//	    // ...
//	})
//	...
//	g.Shutdown(ctx)
package tasks

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrClosed is returned by Go once Shutdown has been called.
var ErrClosed = errors.New("task group closed")

// Group is a supervised set of goroutines.
type Group struct {
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	closed  bool
	running int

	onRunning func(int)
}

// Option configures a Group.
type Option func(*Group)

// WithRunningHook registers fn to be called with the number of running tasks
// whenever it changes. fn is called with the group's lock held and must not call
// back into the Group.
func WithRunningHook(fn func(int)) Option {
	return func(g *Group) { g.onRunning = fn }
}

// NewGroup creates an empty Group.
func NewGroup(opts ...Option) *Group {
	ctx, cancel := context.WithCancel(context.Background())
	g := &Group{
		ctx:    ctx,
		cancel: cancel,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Go runs fn in a new goroutine. fn receives the group context and should return
// promptly once it is done. Returns ErrClosed after Shutdown.
func (g *Group) Go(fn func(ctx context.Context)) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.closed {
		return ErrClosed
	}

	g.running++
	g.notify()
	g.wg.Add(1)
	go func() {
		defer func() {
			g.mu.Lock()
			g.running--
			g.notify()
			g.mu.Unlock()
			g.wg.Done()
		}()
		fn(g.ctx)
	}()
	return nil
}

// notify must be called with mu held.
func (g *Group) notify() {
	if g.onRunning != nil {
		g.onRunning(g.running)
	}
}

// Running returns the number of tasks that have not yet returned.
func (g *Group) Running() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.running
}

// Wait blocks until every task has returned.
func (g *Group) Wait() {
	g.wg.Wait()
}

// Shutdown stops accepting tasks, cancels the group context and waits for running
// tasks to return or for ctx to end, whichever comes first.
func (g *Group) Shutdown(ctx context.Context) error {
	g.mu.Lock()
	g.closed = true
	g.mu.Unlock()

	g.cancel()

	done := make(chan struct{})
	go func() {
		g.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Sleep pauses for d. It returns false if ctx ended first.
func Sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
