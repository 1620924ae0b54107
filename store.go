package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	api "github.com/krisalay/swr-cache/api"
	"github.com/krisalay/swr-cache/engine"
	"github.com/krisalay/swr-cache/shard"
	"github.com/krisalay/swr-cache/types"
)

// DefaultShards is the shard count used by New.
const DefaultShards = 16

// ErrLoaderPanicked wraps a panic recovered from a loader.
var ErrLoaderPanicked = errors.New("swr-cache: loader panicked")

/*
Store is the cache implementation.
This struct is the orchestrator that connects:
- shards (entry storage and per-key locking)
- the engine (expiry, staleness, refresh scheduling, metrics, logging)
- loaders (the outside world)

Each Store owns its entries. There is no package-level default instance, so
any number of stores can live side by side.
*/
type Store struct {
	// shards are the actual storage units. Each shard has its own lock.
	shards []*shard.Shard

	// engine contains the "rules" of the cache.
	engine *engine.CacheEngine

	// selector decides which shard a key should go to.
	selector shard.Selector

	stop      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

var _ api.Cache = (*Store)(nil)

// New creates a store with DefaultShards shards configured by cfg.
func New(cfg engine.Config) *Store {
	return NewStore(DefaultShards, engine.NewCacheEngine(cfg))
}

// NewStore creates a store with the given number of shards.
func NewStore(shards int, engine *engine.CacheEngine) *Store {
	if shards <= 0 {
		shards = DefaultShards
	}

	s := make([]*shard.Shard, shards)
	for i := range s {
		s[i] = shard.NewShard()
	}

	c := &Store{
		shards:   s,
		engine:   engine,
		selector: shard.HashSelector{},
		stop:     make(chan struct{}),
	}

	if engine.SweepInterval > 0 && engine.Expiration != nil {
		c.wg.Add(1)
		go c.sweepLoop(engine.SweepInterval)
	}

	return c
}

// SkipCache makes Get wait for a fresh load even when a value is cached.
func SkipCache() types.GetOption {
	return types.SkipCache()
}

/*
Get retrieves a value from the cache, loading it when needed.
*/
func (c *Store) Get(ctx context.Context, key string, loader types.Loader, opts ...types.GetOption) (any, error) {
	if types.ApplyGetOptions(opts...).SkipCache {
		return c.fetch(ctx, key, loader)
	}

	sh := c.selector.Select(key, c.shards)
	now := c.engine.Now()

	sh.Mu.Lock()

	ent, ok := sh.Store.Get(key)
	if ok && c.engine.IsExpired(ent, now) {
		c.expireLocked(sh, key)
		ok = false
	}

	// Cache miss: publish the pending load before unlocking so that
	// everyone arriving after us joins it.
	if !ok {
		f := c.loadLocked(ctx, sh, key, loader, now)
		sh.Mu.Unlock()
		c.engine.Metrics.Miss()
		return f.Wait(ctx)
	}

	c.engine.OnAccess(ent, now)

	if !ent.Resolved {
		f := ent.Pending
		if f == nil {
			// Failed loads delete their entry, so this should not happen.
			// Recover by starting over, but make it visible.
			c.engine.Logger.WithField("key", key).Warn("dropping entry with no value and no pending load")
			sh.Store.Delete(key)
			f = c.loadLocked(ctx, sh, key, loader, now)
		}
		sh.Mu.Unlock()
		c.engine.Metrics.Miss()
		return f.Wait(ctx)
	}

	val := ent.Value
	stale := c.engine.IsStale(ent, now)
	if stale && ent.Pending == nil {
		c.backgroundRefreshLocked(ctx, sh, ent, loader)
	}
	sh.Mu.Unlock()

	if stale {
		c.engine.Metrics.Stale()
	} else {
		c.engine.Metrics.Hit()
	}
	return val, nil
}

/*
fetch serves a SkipCache Get. It always waits for a load, reusing one that
is already running, and the result lands in the store like any other load.
*/
func (c *Store) fetch(ctx context.Context, key string, loader types.Loader) (any, error) {
	sh := c.selector.Select(key, c.shards)
	now := c.engine.Now()

	sh.Mu.Lock()

	ent, ok := sh.Store.Get(key)
	if ok && c.engine.IsExpired(ent, now) {
		c.expireLocked(sh, key)
		ok = false
	}

	var f *types.Flight
	if !ok {
		f = c.loadLocked(ctx, sh, key, loader, now)
	} else {
		c.engine.OnAccess(ent, now)
		f = c.refreshLocked(ctx, sh, ent, loader)
	}
	sh.Mu.Unlock()

	c.engine.Metrics.Miss()
	return f.Wait(ctx)
}

// loadLocked creates a fresh entry for key and starts its first load.
// Caller must hold sh.Mu.
func (c *Store) loadLocked(ctx context.Context, sh *shard.Shard, key string, loader types.Loader, now time.Time) *types.Flight {
	f := types.NewFlight()
	ent := &types.CacheEntry{
		Key:     key,
		LastHit: now,
		Pending: f,
	}
	sh.Store.Put(key, ent)

	go c.run(context.WithoutCancel(ctx), sh, ent, f, loader, false)
	return f
}

// refreshLocked returns the running operation for ent, or starts one that
// the caller intends to wait on. Caller must hold sh.Mu.
func (c *Store) refreshLocked(ctx context.Context, sh *shard.Shard, ent *types.CacheEntry, loader types.Loader) *types.Flight {
	if ent.Pending != nil {
		return ent.Pending
	}

	f := types.NewFlight()
	ent.Pending = f

	go c.run(context.WithoutCancel(ctx), sh, ent, f, loader, false)
	return f
}

/*
backgroundRefreshLocked starts a refresh nobody waits for. If the dispatcher
refuses it, the entry is left as it was and a later stale read tries again.
Caller must hold sh.Mu.
*/
func (c *Store) backgroundRefreshLocked(ctx context.Context, sh *shard.Shard, ent *types.CacheEntry, loader types.Loader) {
	f := types.NewFlight()
	ent.Pending = f

	lctx := context.WithoutCancel(ctx)
	scheduled := c.engine.Dispatcher.Dispatch(func() {
		c.run(lctx, sh, ent, f, loader, true)
	})
	if !scheduled {
		ent.Pending = nil
		c.engine.Logger.WithField("key", ent.Key).Debug("background refresh not scheduled")
		return
	}
	c.engine.Metrics.Refresh()
}

// run invokes the loader and settles the operation.
func (c *Store) run(ctx context.Context, sh *shard.Shard, ent *types.CacheEntry, f *types.Flight, loader types.Loader, background bool) {
	val, err := invoke(ctx, loader)
	if err != nil && background {
		c.engine.RefreshFailed(ent.Key, err)
	}
	c.settle(sh, ent, f, val, err)
}

func invoke(ctx context.Context, loader types.Loader) (val any, err error) {
	defer func() {
		if r := recover(); r != nil {
			val, err = nil, fmt.Errorf("%w: %v", ErrLoaderPanicked, r)
		}
	}()
	return loader(ctx)
}

/*
settle commits the outcome of f and releases its waiters.

Nothing is written unless ent is still the entry stored under its key.
If the key was cleared (or cleared and loaded again) while the loader ran,
the result is dropped instead of overwriting or resurrecting the entry.

On failure an entry that never had a value is removed. One that did keeps
its previous value.
*/
func (c *Store) settle(sh *shard.Shard, ent *types.CacheEntry, f *types.Flight, val any, err error) {
	now := c.engine.Now()

	sh.Mu.Lock()
	if cur, ok := sh.Store.Get(ent.Key); ok && cur == ent {
		if err == nil {
			ent.Value = val
			ent.Resolved = true
			ent.ResolvedAt = now
			ent.LastHit = now
		} else if !ent.Resolved {
			sh.Store.Delete(ent.Key)
		}
		if ent.Pending == f {
			ent.Pending = nil
		}
	}
	sh.Mu.Unlock()

	f.Resolve(val, err)
}

// expireLocked drops an idle entry. Caller must hold sh.Mu.
func (c *Store) expireLocked(sh *shard.Shard, key string) {
	sh.Store.Delete(key)
	c.engine.Metrics.Expire()
	c.engine.Logger.WithField("key", key).Debug("entry expired after idle window")
}

/*
Clear deletes a key from the cache immediately.
*/
func (c *Store) Clear(key string) {
	sh := c.selector.Select(key, c.shards)

	sh.Mu.Lock()
	defer sh.Mu.Unlock()

	sh.Store.Delete(key)
}

/*
ClearAll deletes every key. All shard locks are held together so no reader
sees some shards emptied and others not.
*/
func (c *Store) ClearAll() {
	for _, sh := range c.shards {
		sh.Mu.Lock()
	}
	for _, sh := range c.shards {
		sh.Store.Clear()
	}
	for _, sh := range c.shards {
		sh.Mu.Unlock()
	}
}

/*
Close gracefully shuts down the cache.
*/
func (c *Store) Close() {
	c.closeOnce.Do(func() {
		close(c.stop)
		c.wg.Wait()
		c.engine.Close()
	})
}
