package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/krisalay/swr-cache/config"
	"github.com/krisalay/swr-cache/logging"
	"github.com/krisalay/swr-cache/types"
)

type fakeSource struct {
	calls atomic.Int64
	fail  atomic.Bool
}

func (f *fakeSource) Query(_ context.Context, name string) (Report, error) {
	n := f.calls.Add(1)
	if f.fail.Load() {
		return Report{}, errors.New("warehouse unavailable")
	}
	return Report{Name: name, Value: float64(n), ComputedAt: time.Now()}, nil
}

func newTestServer(t *testing.T) (*APIServer, *fakeSource, http.Handler) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logging.Init(logging.Config{Level: "panic"})

	cfg := config.Default()
	cfg.Cache.Shards = 4

	src := &fakeSource{}
	srv, err := NewAPIServer(cfg, src)
	require.NoError(t, err)
	t.Cleanup(srv.Stop)

	return srv, src, srv.Router()
}

func do(t *testing.T, h http.Handler, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeReport(t *testing.T, rec *httptest.ResponseRecorder) Report {
	t.Helper()
	var r Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &r))
	return r
}

func TestGetAggregateIsCached(t *testing.T) {
	_, src, h := newTestServer(t)

	first := do(t, h, http.MethodGet, "/api/v1/aggregates/revenue")
	require.Equal(t, http.StatusOK, first.Code)
	second := do(t, h, http.MethodGet, "/api/v1/aggregates/revenue")
	require.Equal(t, http.StatusOK, second.Code)

	assert.Equal(t, int64(1), src.calls.Load())
	assert.Equal(t, decodeReport(t, first).Value, decodeReport(t, second).Value)
	assert.Equal(t, "revenue", decodeReport(t, first).Name)
}

func TestFreshQueryBypassesCache(t *testing.T) {
	_, src, h := newTestServer(t)

	do(t, h, http.MethodGet, "/api/v1/aggregates/revenue")
	rec := do(t, h, http.MethodGet, "/api/v1/aggregates/revenue?fresh=1")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(2), decodeReport(t, rec).Value)

	// the forced load is what later readers see
	rec = do(t, h, http.MethodGet, "/api/v1/aggregates/revenue")
	assert.Equal(t, float64(2), decodeReport(t, rec).Value)
	assert.Equal(t, int64(2), src.calls.Load())
}

func TestClearEndpoints(t *testing.T) {
	_, src, h := newTestServer(t)

	do(t, h, http.MethodGet, "/api/v1/aggregates/revenue")
	do(t, h, http.MethodGet, "/api/v1/aggregates/orders")
	require.Equal(t, int64(2), src.calls.Load())

	rec := do(t, h, http.MethodDelete, "/api/v1/cache/revenue")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	do(t, h, http.MethodGet, "/api/v1/aggregates/revenue")
	do(t, h, http.MethodGet, "/api/v1/aggregates/orders")
	assert.Equal(t, int64(3), src.calls.Load())

	rec = do(t, h, http.MethodDelete, "/api/v1/cache")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	do(t, h, http.MethodGet, "/api/v1/aggregates/revenue")
	do(t, h, http.MethodGet, "/api/v1/aggregates/orders")
	assert.Equal(t, int64(5), src.calls.Load())
}

func TestBreakerOpensAfterRepeatedFailures(t *testing.T) {
	_, src, h := newTestServer(t)
	src.fail.Store(true)

	for i := 0; i < 3; i++ {
		rec := do(t, h, http.MethodGet, "/api/v1/aggregates/revenue")
		assert.Equal(t, http.StatusBadGateway, rec.Code)
	}

	rec := do(t, h, http.MethodGet, "/api/v1/aggregates/revenue")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, int64(3), src.calls.Load(), "open breaker must not reach the source")

	rec = do(t, h, http.MethodGet, "/health")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestStats(t *testing.T) {
	_, _, h := newTestServer(t)

	do(t, h, http.MethodGet, "/api/v1/aggregates/revenue")
	do(t, h, http.MethodGet, "/api/v1/aggregates/revenue")

	rec := do(t, h, http.MethodGet, "/stats")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Cache   types.Stats `json:"cache"`
		Breaker string      `json:"breaker"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, int64(1), body.Cache.Hits)
	assert.Equal(t, int64(1), body.Cache.Misses)
	assert.Equal(t, "closed", body.Breaker)
}

func TestInvalidClearSchedule(t *testing.T) {
	cfg := config.Default()
	cfg.Cache.ClearSchedule = "not a schedule"

	_, err := NewAPIServer(cfg, &fakeSource{})
	assert.Error(t, err)
}
