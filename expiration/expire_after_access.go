package expiration

import (
	"time"

	"github.com/krisalay/swr-cache/types"
)

/*
ExpireAfterAccess implements "expire after access", also called a sliding TTL.
Every access pushes the deadline forward. As long as the key keeps getting
read, it stays alive. If nobody touches it for TTL, it is dropped and the next
Get loads it from scratch.
*/
type ExpireAfterAccess struct {

	// TTL is how long an entry may sit untouched.
	TTL time.Duration
}

// IsExpired reports whether now is at least TTL past the last hit.
func (e *ExpireAfterAccess) IsExpired(ent *types.CacheEntry, now time.Time) bool {
	return now.Sub(ent.LastHit) >= e.TTL
}

// OnAccess records the access time.
func (e *ExpireAfterAccess) OnAccess(ent *types.CacheEntry, now time.Time) {
	ent.LastHit = now
}
