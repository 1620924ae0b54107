package types

import "time"

// CacheEntry is the per-key record owned by the store.
// It is only read or mutated while holding the owning shard's lock.
type CacheEntry struct {
	Key   string
	Value any

	// Resolved is true once a load has committed Value.
	// A loader may legitimately return nil, so Value alone can't tell.
	Resolved   bool
	ResolvedAt time.Time

	// LastHit is refreshed on every access and drives idle expiry.
	LastHit time.Time

	// Pending is the in-flight load or refresh, nil when settled.
	Pending *Flight
}

// Settled reports whether the entry can be served without coordination.
func (e *CacheEntry) Settled() bool {
	return e.Resolved && e.Pending == nil
}
