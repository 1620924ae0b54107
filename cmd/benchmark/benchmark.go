package main

import (
	"context"
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	cache "github.com/krisalay/swr-cache"
	"github.com/krisalay/swr-cache/engine"
	"github.com/krisalay/swr-cache/types"
)

// ================= BACKING STORE =================

// SlowSource simulates an expensive upstream and counts how often it is hit.
type SlowSource struct {
	latency time.Duration
	calls   atomic.Int64
}

func (s *SlowSource) Loader(key string) types.Loader {
	return func(ctx context.Context) (any, error) {
		s.calls.Add(1)
		select {
		case <-time.After(s.latency):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		return key, nil
	}
}

// ================= FLAGS =================

var (
	shards      int
	keys        int
	goroutines  int
	opsPerG     int
	latency     time.Duration
	revalidate  time.Duration
	concurrency int
)

var rootCmd = &cobra.Command{
	Use:          "swrbench",
	Short:        "Load test the cache under heavy concurrent reads",
	Args:         cobra.NoArgs,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return run(cmd.Context())
	},
}

func init() {
	f := rootCmd.Flags()
	f.IntVar(&shards, "shards", 8, "number of shards")
	f.IntVar(&keys, "keys", 10000, "distinct keys")
	f.IntVar(&goroutines, "goroutines", 200, "concurrent readers")
	f.IntVar(&opsPerG, "ops", 5000, "reads per goroutine")
	f.DurationVar(&latency, "latency", 5*time.Millisecond, "simulated loader latency")
	f.DurationVar(&revalidate, "revalidate", 50*time.Millisecond, "freshness window")
	f.IntVar(&concurrency, "refresh-concurrency", 64, "background refresh limit, 0 for unbounded")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// ================= BENCHMARK =================

func run(ctx context.Context) error {
	if keys <= 0 || goroutines <= 0 || opsPerG <= 0 {
		return fmt.Errorf("keys, goroutines and ops must be positive")
	}

	fmt.Println("\n================ SWR CACHE BENCHMARK =================")
	fmt.Println("CONFIG")
	fmt.Println("---------------------------------")
	fmt.Println("Shards        :", shards)
	fmt.Println("Keys          :", humanize.Comma(int64(keys)))
	fmt.Println("Goroutines    :", goroutines)
	fmt.Println("Ops/Goroutine :", humanize.Comma(int64(opsPerG)))
	fmt.Println("Loader Latency:", latency)
	fmt.Println("Revalidate    :", revalidate)
	fmt.Println("---------------------------------")

	src := &SlowSource{latency: latency}
	metrics := &types.Counters{}

	cfg := engine.DefaultConfig()
	cfg.Revalidate = revalidate
	cfg.RefreshConcurrency = concurrency
	cfg.Metrics = metrics

	c := cache.NewStore(shards, engine.NewCacheEngine(cfg))
	defer c.Close()

	loaders := make([]types.Loader, keys)
	names := make([]string, keys)
	for i := range loaders {
		names[i] = fmt.Sprintf("key-%d", i)
		loaders[i] = src.Loader(names[i])
	}

	// Every goroutine starts on a cold cache, so the first round measures
	// how well concurrent misses collapse into one load per key.
	fmt.Println("Running concurrency benchmark...")
	start := time.Now()

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < goroutines; i++ {
		id := i
		g.Go(func() error {
			for j := 0; j < opsPerG; j++ {
				k := (id + j) % keys
				if _, err := c.Get(gctx, names[k], loaders[k]); err != nil {
					return fmt.Errorf("get %s: %w", names[k], err)
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	duration := time.Since(start)
	totalOps := int64(goroutines) * int64(opsPerG)
	s := metrics.Snapshot()

	fmt.Println("\n================ RESULTS =================")
	fmt.Printf("Total Operations : %s\n", humanize.Comma(totalOps))
	fmt.Printf("Total Time       : %v\n", duration)
	fmt.Printf("Throughput       : %s ops/sec\n", humanize.CommafWithDigits(float64(totalOps)/duration.Seconds(), 2))
	fmt.Printf("Loader Calls     : %s\n", humanize.Comma(src.calls.Load()))
	fmt.Printf("Hits / Stale     : %s / %s\n", humanize.Comma(s.Hits), humanize.Comma(s.Stale))
	fmt.Printf("Misses           : %s\n", humanize.Comma(s.Misses))
	fmt.Printf("Refreshes        : %s\n", humanize.Comma(s.Refreshes))
	fmt.Printf("Hit Rate         : %.2f%%\n", s.HitRate*100)
	fmt.Println("=========================================")

	return nil
}
