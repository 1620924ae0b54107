// This file defines how cache entries expire when nobody uses them.

package expiration

import (
	"time"

	"github.com/krisalay/swr-cache/types"
)

// Never disables idle expiry. Any negative window means the same thing.
const Never time.Duration = -1

/*
Strategy decides when an entry has gone unused for too long and must be
dropped outright. Expiry is about access, not freshness: a stale value that
is read often never expires, a fresh value that nobody reads does.
*/
type Strategy interface {

	// IsExpired checks if the entry has been idle past the window.
	IsExpired(*types.CacheEntry, time.Time) bool

	// OnAccess is called on every Get that finds the entry.
	OnAccess(*types.CacheEntry, time.Time)
}

// NewStrategy returns the idle-expiry strategy for window, or nil when
// window disables expiry.
func NewStrategy(window time.Duration) Strategy {
	if window < 0 {
		return nil
	}
	return &ExpireAfterAccess{TTL: window}
}
