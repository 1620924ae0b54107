package cache_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	cache "github.com/krisalay/swr-cache"
	"github.com/krisalay/swr-cache/engine"
)

func newBenchmarkCache(b *testing.B) *cache.Store {
	cfg := engine.DefaultConfig()
	cfg.Logger = quietLogger()
	c := cache.New(cfg)
	b.Cleanup(c.Close)
	return c
}

func constLoader(v any) func(context.Context) (any, error) {
	return func(context.Context) (any, error) { return v, nil }
}

//
// ================= SINGLE THREAD BENCH =================
//

func BenchmarkCacheGetHit(b *testing.B) {
	ctx := context.Background()
	c := newBenchmarkCache(b)
	load := constLoader("value")

	c.Get(ctx, "key", load)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		c.Get(ctx, "key", load)
	}
}

func BenchmarkCacheGetMiss(b *testing.B) {
	ctx := context.Background()
	c := newBenchmarkCache(b)
	load := constLoader("value")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		key := fmt.Sprintf("miss-%d", i)
		c.Get(ctx, key, load)
	}
}

//
// ================= PARALLEL BENCH =================
//

func BenchmarkCacheParallelGet(b *testing.B) {
	ctx := context.Background()
	c := newBenchmarkCache(b)

	for i := 0; i < 1000; i++ {
		c.Get(ctx, fmt.Sprintf("key-%d", i), constLoader(i))
	}
	load := constLoader(42)

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			c.Get(ctx, "key-42", load)
		}
	})
}

//
// ================= SKIP CACHE BENCH =================
//

func BenchmarkCacheSkipCache(b *testing.B) {
	ctx := context.Background()
	c := newBenchmarkCache(b)
	load := constLoader("value")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		c.Get(ctx, "key", load, cache.SkipCache())
	}
}

//
// ================= HIGH CONCURRENCY TEST =================
//

func BenchmarkCacheHighConcurrency(b *testing.B) {
	ctx := context.Background()
	c := newBenchmarkCache(b)

	keys := make([]string, 10000)
	for i := range keys {
		keys[i] = fmt.Sprintf("key-%d", i)
		c.Get(ctx, keys[i], constLoader(i))
	}
	load := constLoader(0)

	b.ResetTimer()

	wg := sync.WaitGroup{}
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < b.N/100; j++ {
				c.Get(ctx, keys[(j+id)%len(keys)], load)
			}
		}(i)
	}
	wg.Wait()
}
