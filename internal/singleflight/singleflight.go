// Package singleflight is an in-flight request registry: concurrent calls
// for the same key share one execution of the work.
package singleflight

import (
	"context"
	"fmt"
	"sync"
)

// Group coalesces concurrent function calls for the same key K so that
// the supplied fn is executed at most once at a time. Other concurrent
// callers wait for the shared result.
//
// Concurrency notes:
//   - The first caller for a given key becomes the leader and starts fn
//     in its own goroutine. Every caller, leader included, then waits.
//   - Publishing (val, err) happens-before close(c.done), so reads after
//     <-done observe the final values.
//   - A caller whose ctx is cancelled stops waiting and returns ctx.Err().
//     The context passed to fn is cancelled only once every waiter has
//     gone, so one impatient caller never fails the others.
//   - The key is removed from the registry when fn returns, successfully
//     or not; the next call starts fresh.
type Group[K comparable, V any] struct {
	mu sync.Mutex
	m  map[K]*call[V]
}

type call[V any] struct {
	done chan struct{} // closed when val/err are published
	val  V
	err  error

	waiters int                // guarded by Group.mu
	cancel  context.CancelFunc // cancels fn's context
}

// PanicError is returned to every waiter when fn panics.
type PanicError struct {
	Value any
}

func (p *PanicError) Error() string { return fmt.Sprintf("singleflight: fn panicked: %v", p.Value) }

// Do runs fn once for the given key. Concurrent calls with the same key
// wait for the shared result. joined reports whether this caller attached
// to a call that was already in flight.
//
// fn receives a context carrying the leader's values but not its
// cancellation; it is cancelled when no caller is waiting any more.
func (g *Group[K, V]) Do(ctx context.Context, key K, fn func(context.Context) (V, error)) (v V, joined bool, err error) {
	g.mu.Lock()
	if g.m == nil {
		g.m = make(map[K]*call[V])
	}
	if c, ok := g.m[key]; ok {
		c.waiters++
		g.mu.Unlock()
		v, err = g.wait(ctx, key, c)
		return v, true, err
	}

	workCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	c := &call[V]{done: make(chan struct{}), waiters: 1, cancel: cancel}
	g.m[key] = c
	g.mu.Unlock()

	go g.run(workCtx, key, c, fn)

	v, err = g.wait(ctx, key, c)
	return v, false, err
}

// InFlight reports whether a call for key is currently registered.
func (g *Group[K, V]) InFlight(key K) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.m[key]
	return ok
}

// Len returns the number of keys in flight.
func (g *Group[K, V]) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.m)
}

func (g *Group[K, V]) run(ctx context.Context, key K, c *call[V], fn func(context.Context) (V, error)) {
	defer func() {
		if r := recover(); r != nil {
			var zero V
			c.val, c.err = zero, &PanicError{Value: r}
		}
		close(c.done)

		g.mu.Lock()
		if g.m[key] == c {
			delete(g.m, key)
		}
		g.mu.Unlock()
		c.cancel()
	}()

	c.val, c.err = fn(ctx)
}

func (g *Group[K, V]) wait(ctx context.Context, key K, c *call[V]) (V, error) {
	select {
	case <-c.done:
		return c.val, c.err
	case <-ctx.Done():
	}

	// Result may have been published concurrently with cancellation.
	select {
	case <-c.done:
		return c.val, c.err
	default:
	}

	g.mu.Lock()
	c.waiters--
	if c.waiters == 0 {
		c.cancel()
		if g.m[key] == c {
			delete(g.m, key)
		}
	}
	g.mu.Unlock()

	var zero V
	return zero, ctx.Err()
}
