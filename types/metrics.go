package types

import "sync/atomic"

// This file defines how the cache reports what it is doing.

/*
Metrics is an interface that defines what the cache wants to measure.
Each method represents an event in the entry lifecycle. The store calls these
methods inline on the Get path, so implementations must be cheap.
*/
type Metrics interface {

	// Hit is called when a fresh value is returned without any loader call.
	Hit()

	// Miss is called when the caller has to wait for a load (first load,
	// expired entry, or SkipCache).
	Miss()

	// Stale is called when a value past its revalidate window is served.
	Stale()

	// Expire is called when an entry is dropped for being idle too long.
	Expire()

	// Refresh is called when a background refresh is started.
	Refresh()

	// RefreshFailure is called when a background refresh fails and the
	// previous value is kept.
	RefreshFailure()
}

/*
NoopMetrics is a "do nothing" implementation of Metrics.

If someone does not care about metrics, the store still works without
nil checks everywhere.
*/
type NoopMetrics struct{}

func (NoopMetrics) Hit()            {}
func (NoopMetrics) Miss()           {}
func (NoopMetrics) Stale()          {}
func (NoopMetrics) Expire()         {}
func (NoopMetrics) Refresh()        {}
func (NoopMetrics) RefreshFailure() {}

// Counters is a lock-free Metrics implementation backed by atomic counters.
type Counters struct {
	hits            atomic.Int64
	misses          atomic.Int64
	stale           atomic.Int64
	expired         atomic.Int64
	refreshes       atomic.Int64
	refreshFailures atomic.Int64
}

func (c *Counters) Hit()            { c.hits.Add(1) }
func (c *Counters) Miss()           { c.misses.Add(1) }
func (c *Counters) Stale()          { c.stale.Add(1) }
func (c *Counters) Expire()         { c.expired.Add(1) }
func (c *Counters) Refresh()        { c.refreshes.Add(1) }
func (c *Counters) RefreshFailure() { c.refreshFailures.Add(1) }

// Stats is a point-in-time copy of Counters.
type Stats struct {
	Hits            int64   `json:"hits"`
	Misses          int64   `json:"misses"`
	Stale           int64   `json:"stale"`
	Expired         int64   `json:"expired"`
	Refreshes       int64   `json:"refreshes"`
	RefreshFailures int64   `json:"refresh_failures"`
	HitRate         float64 `json:"hit_rate"`
}

// Snapshot reads all counters. Stale reads count as hits for HitRate.
func (c *Counters) Snapshot() Stats {
	s := Stats{
		Hits:            c.hits.Load(),
		Misses:          c.misses.Load(),
		Stale:           c.stale.Load(),
		Expired:         c.expired.Load(),
		Refreshes:       c.refreshes.Load(),
		RefreshFailures: c.refreshFailures.Load(),
	}
	if total := s.Hits + s.Stale + s.Misses; total > 0 {
		s.HitRate = float64(s.Hits+s.Stale) / float64(total)
	}
	return s
}
