package shard

import "sync"

/*
This file defines what a "Shard" is. A shard is a small, independent piece of the cache.
Instead of one map behind one lock, keys are spread over many shards. Each shard:
- Holds some portion of the entries
- Has its own lock

Every decision about a key (check entry, publish a pending load, commit a
result, clear) is made while holding that key's shard lock. Keys in different
shards never contend.
*/
type Shard struct {

	// Store holds the key → entry records of this shard.
	Store ShardStore

	// Mu guards Store and every entry inside it. Loaders never run under it.
	Mu sync.Mutex
}

func NewShard() *Shard {
	return &Shard{Store: NewMapStore()}
}
