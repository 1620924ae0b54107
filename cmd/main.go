package main

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"

	cache "github.com/krisalay/swr-cache"
	"github.com/krisalay/swr-cache/config"
	"github.com/krisalay/swr-cache/engine"
	"github.com/krisalay/swr-cache/logging"
	"github.com/krisalay/swr-cache/types"
)

// ================= BACKING STORE =================

// ReportDB stands in for the relational store: every query is slow and
// counted so the demo can show how often the cache reaches it.
type ReportDB struct {
	latency time.Duration
	queries atomic.Int64
}

func (db *ReportDB) DailyRevenue(ctx context.Context, day string) (any, error) {
	n := db.queries.Add(1)
	fmt.Printf("DB     → aggregate query #%d for %s\n", n, day)

	select {
	case <-time.After(db.latency):
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return fmt.Sprintf("%s: $%d", day, 10000+rand.Intn(5000)), nil
}

func (db *ReportDB) Loader(day string) types.Loader {
	return func(ctx context.Context) (any, error) {
		return db.DailyRevenue(ctx, day)
	}
}

// ================= COMMAND =================

var (
	configFile string
	revalidate string
	expire     string
	latency    time.Duration
)

var rootCmd = &cobra.Command{
	Use:          "swrcache",
	Short:        "Walk through the stale-while-revalidate cache lifecycle",
	Args:         cobra.NoArgs,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Load(configFile)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("revalidate") {
			if cfg.Cache.Revalidate, err = config.ParseWindow(revalidate); err != nil {
				return fmt.Errorf("--revalidate: %w", err)
			}
		}
		if cmd.Flags().Changed("expire") {
			if cfg.Cache.Expire, err = config.ParseWindow(expire); err != nil {
				return fmt.Errorf("--expire: %w", err)
			}
		}
		return runDemo(cmd.Context(), cfg)
	},
}

func init() {
	rootCmd.Flags().StringVarP(&configFile, "config", "c", "", "config file (yaml, json or toml)")
	rootCmd.Flags().StringVar(&revalidate, "revalidate", "1s", "freshness window (seconds, duration or never)")
	rootCmd.Flags().StringVar(&expire, "expire", "3s", "idle window (seconds, duration or never)")
	rootCmd.Flags().DurationVar(&latency, "latency", 300*time.Millisecond, "simulated query latency")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// ================= DEMO =================

func runDemo(ctx context.Context, cfg *config.Config) error {
	logging.Init(cfg.Log)
	log := logging.WithComponent("demo")

	fmt.Println("\n==================== SYSTEM BOOT ====================")
	fmt.Println("REVALIDATE :", window(cfg.Cache.Revalidate))
	fmt.Println("EXPIRE     :", window(cfg.Cache.Expire))
	fmt.Println("LATENCY    :", latency)

	db := &ReportDB{latency: latency}
	metrics := &types.Counters{}

	ec := cfg.EngineConfig()
	ec.Metrics = metrics
	ec.Logger = logging.WithComponent("swr-cache")
	ec.OnRefreshError = func(key string, err error) {
		log.WithField("key", key).WithError(err).Error("refresh failed")
	}
	c := cache.NewStore(cfg.Cache.Shards, engine.NewCacheEngine(ec))
	defer c.Close()

	today := db.Loader("2024-03-01")

	// ====================================================
	fmt.Println("\n==================== 1) COALESCING ====================")
	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			v, err := c.Get(ctx, "revenue:today", today)
			fmt.Printf("GOROUTINE-%d → %v (err=%v)\n", id, v, err)
		}(i)
	}
	wg.Wait()

	// ====================================================
	fmt.Println("\n==================== 2) CACHE HIT ====================")
	v, err := c.Get(ctx, "revenue:today", today)
	fmt.Println("CACHE  → GET revenue:today =", v, err)

	// ====================================================
	fmt.Println("\n==================== 3) STALE-WHILE-REVALIDATE ====================")
	if cfg.Cache.Revalidate >= 0 {
		time.Sleep(cfg.Cache.Revalidate + 50*time.Millisecond)
		start := time.Now()
		v, err = c.Get(ctx, "revenue:today", today)
		fmt.Printf("CACHE  → stale GET in %v = %v %v\n", time.Since(start).Round(time.Millisecond), v, err)

		time.Sleep(latency + 50*time.Millisecond)
		v, err = c.Get(ctx, "revenue:today", today)
		fmt.Println("CACHE  → after refresh =", v, err)
	} else {
		fmt.Println("revalidation disabled")
	}

	// ====================================================
	fmt.Println("\n==================== 4) SKIP CACHE ====================")
	v, err = c.Get(ctx, "revenue:today", today, cache.SkipCache())
	fmt.Println("CACHE  → forced GET =", v, err)
	v, err = c.Get(ctx, "revenue:today", today)
	fmt.Println("CACHE  → next GET sees backfill =", v, err)

	// ====================================================
	fmt.Println("\n==================== 5) CLEAR ====================")
	c.Clear("revenue:today")
	v, err = c.Get(ctx, "revenue:today", today)
	fmt.Println("CACHE  → GET after clear =", v, err)

	// ====================================================
	fmt.Println("\n==================== 6) IDLE EXPIRY ====================")
	if cfg.Cache.Expire >= 0 {
		time.Sleep(cfg.Cache.Expire + 50*time.Millisecond)
		v, err = c.Get(ctx, "revenue:today", today)
		fmt.Println("CACHE  → GET after idle window =", v, err)
	} else {
		fmt.Println("idle expiry disabled")
	}

	// ====================================================
	s := metrics.Snapshot()
	fmt.Println("\n==================== METRICS ====================")
	fmt.Printf("HITS       : %d\n", s.Hits)
	fmt.Printf("STALE      : %d\n", s.Stale)
	fmt.Printf("MISSES     : %d\n", s.Misses)
	fmt.Printf("EXPIRED    : %d\n", s.Expired)
	fmt.Printf("REFRESHES  : %d\n", s.Refreshes)
	fmt.Printf("DB QUERIES : %d\n", db.queries.Load())

	fmt.Println("\n==================== SHUTDOWN ====================")
	return nil
}

func window(d time.Duration) string {
	if d < 0 {
		return "never"
	}
	return d.String()
}
