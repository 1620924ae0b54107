package cache

import (
	"context"

	"github.com/krisalay/swr-cache/types"
)

/*
Cache defines the PUBLIC API of the stale-while-revalidate cache.
Sharding, entry state, timers and loader coordination are hidden behind it.
Entries themselves are never handed out.
*/
type Cache interface {

	/*
		Get returns the value for key, calling loader only when needed.

		BEHAVIOR:
		-------------------
		1. No entry, or the entry sat idle past the expire window:
		   - Call loader once and wait for it
		   - Concurrent callers for the same key wait on that same call

		2. Entry still loading for the first time:
		   - Wait on the running load

		3. Entry fresh:
		   - Return the value immediately

		4. Entry stale (older than the revalidate window):
		   - Return the stale value immediately
		   - Start one background refresh if none is running

		With types.SkipCache() the caller always waits for a load (joining a
		running one if there is one) and the result is written back.

		Errors are whatever the loader returned, or ctx.Err() if the caller
		stopped waiting. A stopped wait does not stop the load.
	*/
	Get(ctx context.Context, key string, loader types.Loader, opts ...types.GetOption) (any, error)

	/*
		Clear removes key. A load still running for it finishes but its
		result is discarded, so the key is not brought back.
	*/
	Clear(key string)

	// ClearAll removes every entry at once.
	ClearAll()

	/*
		Close gracefully shuts down the cache.

		BEHAVIOR:
		---------
		- Stops the idle sweeper
		- Stops scheduling background refreshes
		- Waits for running background refreshes

		Close is safe to call more than once.
	*/
	Close()
}
