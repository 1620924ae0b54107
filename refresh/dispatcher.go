package refresh

import (
	"sync"

	"golang.org/x/sync/semaphore"
)

/*
Dispatcher runs background refreshes.

Stale reads never wait for a refresh, so the refresh has to run somewhere
else. The dispatcher decides where, and how many may run at once. Refreshes
that a caller waits on (SkipCache) do not go through the dispatcher.
*/
type Dispatcher interface {

	// Dispatch schedules fn. It returns false if fn was not scheduled,
	// either because the dispatcher is saturated or closed.
	Dispatch(fn func()) bool

	// Close stops accepting work and waits for running refreshes.
	Close()
}

// NewDispatcher returns a dispatcher allowing at most limit concurrent
// refreshes. limit <= 0 means no limit.
func NewDispatcher(limit int) Dispatcher {
	if limit <= 0 {
		return &UnboundedDispatcher{}
	}
	return NewBoundedDispatcher(limit)
}

// UnboundedDispatcher starts one goroutine per refresh.
type UnboundedDispatcher struct {
	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

func (d *UnboundedDispatcher) Dispatch(fn func()) bool {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return false
	}
	d.wg.Add(1)
	d.mu.Unlock()

	go func() {
		defer d.wg.Done()
		fn()
	}()
	return true
}

func (d *UnboundedDispatcher) Close() {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
	d.wg.Wait()
}

/*
BoundedDispatcher caps how many refreshes hit the backing store at once.

When every slot is taken the refresh is dropped rather than queued. Dispatch
is called with a shard lock held and must never block. The next stale read
of the key tries again.
*/
type BoundedDispatcher struct {
	sem *semaphore.Weighted

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

func NewBoundedDispatcher(limit int) *BoundedDispatcher {
	return &BoundedDispatcher{sem: semaphore.NewWeighted(int64(limit))}
}

func (d *BoundedDispatcher) Dispatch(fn func()) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed || !d.sem.TryAcquire(1) {
		return false
	}
	d.wg.Add(1)

	go func() {
		defer d.wg.Done()
		defer d.sem.Release(1)
		fn()
	}()
	return true
}

func (d *BoundedDispatcher) Close() {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
	d.wg.Wait()
}
