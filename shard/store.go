package shard

import "github.com/krisalay/swr-cache/types"

/*
This file defines how entries are stored inside a shard.

Every Get mutates its entry (LastHit moves on each access), so reads and
writes share one lock. None of these methods lock; the caller must hold
Shard.Mu.
*/

// ShardStore is the interface used by a shard to store and retrieve cache entries.
type ShardStore interface {

	// Get retrieves an entry by key.
	Get(string) (*types.CacheEntry, bool)

	// Put inserts or replaces an entry.
	Put(string, *types.CacheEntry)

	// Delete removes an entry.
	Delete(string)

	// DeleteIf removes every entry for which fn returns true and reports
	// how many were removed.
	DeleteIf(fn func(*types.CacheEntry) bool) int

	// Clear removes every entry.
	Clear()

	// Size returns how many entries are stored.
	Size() int
}

type mapStore struct {
	data map[string]*types.CacheEntry
}

func NewMapStore() ShardStore {
	return &mapStore{data: make(map[string]*types.CacheEntry)}
}

func (s *mapStore) Get(key string) (*types.CacheEntry, bool) {
	ent, ok := s.data[key]
	return ent, ok
}

func (s *mapStore) Put(key string, ent *types.CacheEntry) {
	s.data[key] = ent
}

func (s *mapStore) Delete(key string) {
	delete(s.data, key)
}

func (s *mapStore) DeleteIf(fn func(*types.CacheEntry) bool) int {
	removed := 0
	for k, ent := range s.data {
		if fn(ent) {
			delete(s.data, k)
			removed++
		}
	}
	return removed
}

// Clear swaps in a fresh map so the old one can be collected in one go.
func (s *mapStore) Clear() {
	s.data = make(map[string]*types.CacheEntry)
}

func (s *mapStore) Size() int {
	return len(s.data)
}
