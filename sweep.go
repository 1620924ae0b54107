package cache

import (
	"time"

	"github.com/krisalay/swr-cache/types"
)

// sweepLoop periodically drops idle entries.
//
// Get already drops idle entries it finds. The sweep reclaims the ones
// nobody asks for again.
func (c *Store) sweepLoop(every time.Duration) {
	defer c.wg.Done()

	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.sweep()
		}
	}
}

// sweep removes settled entries idle past the expire window. Entries with a
// load in flight are left to settle first.
func (c *Store) sweep() int {
	now := c.engine.Now()
	idle := func(ent *types.CacheEntry) bool {
		return ent.Pending == nil && c.engine.IsExpired(ent, now)
	}

	removed := 0
	for _, sh := range c.shards {
		sh.Mu.Lock()
		removed += sh.Store.DeleteIf(idle)
		sh.Mu.Unlock()
	}

	for i := 0; i < removed; i++ {
		c.engine.Metrics.Expire()
	}
	if removed > 0 {
		c.engine.Logger.WithField("removed", removed).Debug("swept idle entries")
	}
	return removed
}
