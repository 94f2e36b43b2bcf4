package render

import (
	"context"
	"sync"
)

// Arena pools a fixed set of render surfaces. Parallel capture workers check
// a surface out, drive it for one frame, and return it. Checkout blocks when
// all surfaces are in use.
type Arena struct {
	pool chan Renderer

	mu     sync.Mutex
	all    []Renderer
	closed bool
}

// NewArena opens count surfaces from the factory. On any open failure the
// surfaces opened so far are closed and the error is returned.
func NewArena(ctx context.Context, factory Factory, count int) (*Arena, error) {
	a := &Arena{
		pool: make(chan Renderer, count),
	}

	for i := 0; i < count; i++ {
		r, err := factory.Open(ctx)
		if err != nil {
			_ = a.Close()
			return nil, err
		}
		a.all = append(a.all, r)
		a.pool <- r
	}
	return a, nil
}

// Checkout blocks until a surface is free or ctx is cancelled.
func (a *Arena) Checkout(ctx context.Context) (Renderer, error) {
	select {
	case r := <-a.pool:
		return r, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Return hands a surface back to the pool.
func (a *Arena) Return(r Renderer) {
	a.mu.Lock()
	closed := a.closed
	a.mu.Unlock()
	if closed {
		return
	}
	select {
	case a.pool <- r:
	default:
		// Pool full, surface was not checked out from here.
	}
}

// Size returns the number of surfaces the arena owns.
func (a *Arena) Size() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.all)
}

// Close shuts down every surface. In-flight checkouts should be finished
// before calling Close.
func (a *Arena) Close() error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	all := a.all
	a.mu.Unlock()

	var firstErr error
	for _, r := range all {
		if err := r.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
