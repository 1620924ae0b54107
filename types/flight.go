package types

import "context"

/*
Flight is one in-flight loader invocation.

It is published into a CacheEntry before the loader starts so every caller
that arrives during the async gap can wait on the same result instead of
calling the loader again.

A Flight resolves exactly once. Waiters may give up early through their
context; the flight itself keeps going.
*/
type Flight struct {
	done chan struct{}
	val  any
	err  error
}

func NewFlight() *Flight {
	return &Flight{done: make(chan struct{})}
}

// Resolve records the loader outcome and releases every waiter.
// It must be called exactly once.
func (f *Flight) Resolve(val any, err error) {
	f.val = val
	f.err = err
	close(f.done)
}

// Done is closed once the flight has resolved.
func (f *Flight) Done() <-chan struct{} {
	return f.done
}

// Wait blocks until the flight resolves or ctx is done.
func (f *Flight) Wait(ctx context.Context) (any, error) {
	select {
	case <-f.done:
		return f.val, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
