package shard

import "hash/fnv"

// Keys are spread across shards so that unrelated keys rarely contend on
// the same mutex.

/*
Selector is the interface that decides which shard should handle a given key.
The mapping must be stable: the same key always lands on the same shard,
otherwise two loads for one key could run at once.
*/
type Selector interface {
	Select(string, []*Shard) *Shard
}

// HashSelector picks a shard by FNV-1a hash of the key.
type HashSelector struct{}

func hash(s string) uint32 {
	h := fnv.New32a()
	h.Write([]byte(s))
	return h.Sum32()
}

func (HashSelector) Select(key string, shards []*Shard) *Shard {
	return shards[hash(key)%uint32(len(shards))]
}
