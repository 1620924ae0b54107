package engine

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/krisalay/swr-cache/expiration"
	"github.com/krisalay/swr-cache/logging"
	"github.com/krisalay/swr-cache/refresh"
	"github.com/krisalay/swr-cache/types"
)

// DefaultRevalidate is how long a value stays fresh unless configured.
const DefaultRevalidate = 300 * time.Second

/*
Config holds the per-store settings. It is read once by NewCacheEngine;
changing it afterwards has no effect on a running store.
*/
type Config struct {
	// Revalidate is how long a resolved value stays fresh. Reading it after
	// that serves the old value and starts a background refresh.
	// refresh.Never disables revalidation.
	Revalidate time.Duration

	// Expire is how long an entry may go without any access before it is
	// dropped and must be loaded from scratch. expiration.Never disables it.
	Expire time.Duration

	// RefreshConcurrency caps concurrent background refreshes. <= 0 is unbounded.
	RefreshConcurrency int

	// SweepInterval enables a background sweep of idle entries when > 0.
	SweepInterval time.Duration

	Clock          types.Clock
	Metrics        types.Metrics
	Logger         *logrus.Entry
	OnRefreshError refresh.FailureHook
}

// DefaultConfig returns revalidate after 300s and never expire.
func DefaultConfig() Config {
	return Config{
		Revalidate: DefaultRevalidate,
		Expire:     expiration.Never,
	}
}

/*
CacheEngine is the "brain" of the cache system.
It is responsible for the "behavior" of the cache, NOT storage.

It decides:
- When an entry has been idle long enough to drop
- When a value is stale and should be revalidated
- Where background refreshes run
- How events are measured and logged

It does NOT:
- Store data
- Handle sharding
- Handle locking
*/
type CacheEngine struct {

	// Expiration drops entries nobody has read for a while.
	// If this is nil, entries never expire.
	Expiration expiration.Strategy

	// Revalidation marks values stale. If nil, values are fresh forever.
	Revalidation refresh.Policy

	// Dispatcher runs background refreshes triggered by stale reads.
	Dispatcher refresh.Dispatcher

	// OnRefreshError observes background refresh failures. May be nil.
	OnRefreshError refresh.FailureHook

	Clock   types.Clock
	Metrics types.Metrics
	Logger  *logrus.Entry

	SweepInterval time.Duration
}

/*
NewCacheEngine creates a CacheEngine from cfg, filling in defaults for
every collaborator left nil.
*/
func NewCacheEngine(cfg Config) *CacheEngine {

	// Collaborators are always non-nil past this point
	if cfg.Clock == nil {
		cfg.Clock = types.SystemClock{}
	}
	if cfg.Metrics == nil {
		cfg.Metrics = types.NoopMetrics{}
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.WithComponent("swr-cache")
	}

	return &CacheEngine{
		Expiration:     expiration.NewStrategy(cfg.Expire),
		Revalidation:   refresh.NewPolicy(cfg.Revalidate),
		Dispatcher:     refresh.NewDispatcher(cfg.RefreshConcurrency),
		OnRefreshError: cfg.OnRefreshError,
		Clock:          cfg.Clock,
		Metrics:        cfg.Metrics,
		Logger:         cfg.Logger,
		SweepInterval:  cfg.SweepInterval,
	}
}

// Now returns the engine's notion of the current time.
func (e *CacheEngine) Now() time.Time {
	return e.Clock.Now()
}

// IsExpired reports whether ent has been idle past the expire window.
// Returns false if no expiration strategy is configured.
func (e *CacheEngine) IsExpired(ent *types.CacheEntry, now time.Time) bool {
	return e.Expiration != nil && e.Expiration.IsExpired(ent, now)
}

// IsStale reports whether ent holds a value past its revalidate window.
func (e *CacheEngine) IsStale(ent *types.CacheEntry, now time.Time) bool {
	return e.Revalidation != nil && e.Revalidation.IsStale(ent, now)
}

// OnAccess records a read of ent.
func (e *CacheEngine) OnAccess(ent *types.CacheEntry, now time.Time) {
	if e.Expiration != nil {
		e.Expiration.OnAccess(ent, now)
		return
	}
	ent.LastHit = now
}

/*
RefreshFailed reports a background refresh that nobody was waiting for.
The previous value stays in place; this only makes the failure visible.
*/
func (e *CacheEngine) RefreshFailed(key string, err error) {
	e.Metrics.RefreshFailure()
	e.Logger.WithFields(logrus.Fields{
		"key":   key,
		"error": err,
	}).Warn("background refresh failed, serving previous value")

	if e.OnRefreshError != nil {
		e.OnRefreshError(key, err)
	}
}

// Close stops background refresh scheduling and waits for running refreshes.
func (e *CacheEngine) Close() {
	e.Dispatcher.Close()
}
