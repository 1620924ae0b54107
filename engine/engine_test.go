package engine

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/krisalay/swr-cache/expiration"
	"github.com/krisalay/swr-cache/refresh"
	"github.com/krisalay/swr-cache/types"
)

func TestNewCacheEngineDefaults(t *testing.T) {
	e := NewCacheEngine(DefaultConfig())
	defer e.Close()

	assert.NotNil(t, e.Revalidation)
	assert.Nil(t, e.Expiration, "default config never expires")
	assert.IsType(t, types.SystemClock{}, e.Clock)
	assert.IsType(t, types.NoopMetrics{}, e.Metrics)
	assert.NotNil(t, e.Logger)
	assert.IsType(t, &refresh.UnboundedDispatcher{}, e.Dispatcher)
}

func TestEngineDecisions(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Revalidate = 10 * time.Second
	cfg.Expire = 30 * time.Second
	cfg.RefreshConcurrency = 2
	e := NewCacheEngine(cfg)
	defer e.Close()

	assert.IsType(t, &refresh.BoundedDispatcher{}, e.Dispatcher)

	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	ent := &types.CacheEntry{Key: "k", Resolved: true, ResolvedAt: t0, LastHit: t0}

	assert.False(t, e.IsStale(ent, t0.Add(9*time.Second)))
	assert.True(t, e.IsStale(ent, t0.Add(10*time.Second)))
	assert.False(t, e.IsExpired(ent, t0.Add(29*time.Second)))
	assert.True(t, e.IsExpired(ent, t0.Add(30*time.Second)))

	e.OnAccess(ent, t0.Add(20*time.Second))
	assert.Equal(t, t0.Add(20*time.Second), ent.LastHit)
}

func TestEngineNeverWindows(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Revalidate = refresh.Never
	cfg.Expire = expiration.Never
	e := NewCacheEngine(cfg)
	defer e.Close()

	old := time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)
	ent := &types.CacheEntry{Resolved: true, ResolvedAt: old, LastHit: old}
	now := time.Now()
	assert.False(t, e.IsStale(ent, now))
	assert.False(t, e.IsExpired(ent, now))

	e.OnAccess(ent, now)
	assert.Equal(t, now, ent.LastHit)
}

func TestRefreshFailedReportsEverywhere(t *testing.T) {
	var buf bytes.Buffer
	l := logrus.New()
	l.SetOutput(&buf)

	var gotKey string
	var gotErr error
	metrics := &types.Counters{}

	cfg := DefaultConfig()
	cfg.Logger = logrus.NewEntry(l)
	cfg.Metrics = metrics
	cfg.OnRefreshError = func(key string, err error) {
		gotKey, gotErr = key, err
	}
	e := NewCacheEngine(cfg)
	defer e.Close()

	boom := errors.New("boom")
	e.RefreshFailed("orders", boom)

	require.ErrorIs(t, gotErr, boom)
	assert.Equal(t, "orders", gotKey)
	assert.Equal(t, int64(1), metrics.Snapshot().RefreshFailures)
	assert.Contains(t, buf.String(), "background refresh failed")
	assert.Contains(t, buf.String(), "key=orders")
}
