// This file defines when a cached value is old enough to be revalidated.
// The goal of refresh is: "Keep data fresh without slowing down reads".

package refresh

import (
	"time"

	"github.com/krisalay/swr-cache/types"
)

// Never disables revalidation. Any negative window means the same thing.
const Never time.Duration = -1

/*
Policy decides whether a resolved entry is stale.

A stale entry is still served. Reading it only kicks off a background
refresh so that the next readers get a newer value.
*/
type Policy interface {
	IsStale(ent *types.CacheEntry, now time.Time) bool
}

// NewPolicy returns the revalidation policy for window, or nil when window
// disables revalidation.
func NewPolicy(window time.Duration) Policy {
	if window < 0 {
		return nil
	}
	return StaleAfter{Window: window}
}

// StaleAfter marks a value stale once Window has passed since it resolved.
type StaleAfter struct {
	Window time.Duration
}

func (s StaleAfter) IsStale(ent *types.CacheEntry, now time.Time) bool {
	return ent.Resolved && now.Sub(ent.ResolvedAt) >= s.Window
}

/*
FailureHook is called when a background refresh fails.

Background refreshes are best effort: readers keep getting the last good
value and nobody waits on the refresh, so its error would otherwise vanish.
The hook is where callers attach alerting or counters. It runs on the
refresh goroutine and must not block for long.
*/
type FailureHook func(key string, err error)
