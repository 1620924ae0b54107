package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	cache "github.com/krisalay/swr-cache"
	"github.com/krisalay/swr-cache/config"
	"github.com/krisalay/swr-cache/engine"
	"github.com/krisalay/swr-cache/logging"
	"github.com/krisalay/swr-cache/types"
)

// Report is one computed aggregate.
type Report struct {
	Name       string    `json:"name"`
	Value      float64   `json:"value"`
	ComputedAt time.Time `json:"computed_at"`
}

// Source computes aggregates. Queries are expected to be slow.
type Source interface {
	Query(ctx context.Context, name string) (Report, error)
}

// SimulatedSource pretends to run an expensive aggregate query.
type SimulatedSource struct {
	Latency time.Duration
	calls   atomic.Int64
}

func (s *SimulatedSource) Query(ctx context.Context, name string) (Report, error) {
	s.calls.Add(1)
	select {
	case <-time.After(s.Latency):
	case <-ctx.Done():
		return Report{}, ctx.Err()
	}
	return Report{
		Name:       name,
		Value:      float64(rand.Intn(1_000_000)) / 100,
		ComputedAt: time.Now(),
	}, nil
}

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

/*
APIServer exposes cached aggregates over HTTP.

Reads go through the cache. A stale aggregate is returned immediately and
recomputed in the background. Upstream queries run behind a circuit breaker
so a failing source is not hammered by refreshes.
*/
type APIServer struct {
	cfg     *config.Config
	cache   *cache.Store
	source  Source
	breaker *gobreaker.CircuitBreaker
	metrics *types.Counters
	cron    *cron.Cron
	logger  *logrus.Entry
	server  *http.Server
}

// NewAPIServer wires the cache, breaker and scheduler around source.
func NewAPIServer(cfg *config.Config, source Source) (*APIServer, error) {
	s := &APIServer{
		cfg:     cfg,
		source:  source,
		metrics: &types.Counters{},
		logger:  logging.WithComponent("api-server"),
	}

	s.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "aggregate-source",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			s.logger.WithFields(logrus.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("circuit breaker state changed")
		},
	})

	ec := cfg.EngineConfig()
	ec.Metrics = s.metrics
	ec.Logger = logging.WithComponent("swr-cache")
	ec.OnRefreshError = func(key string, err error) {
		s.logger.WithField("key", key).WithError(err).Error("aggregate refresh failed")
	}
	s.cache = cache.NewStore(cfg.Cache.Shards, engine.NewCacheEngine(ec))

	if cfg.Cache.ClearSchedule != "" {
		s.cron = cron.New()
		_, err := s.cron.AddFunc(cfg.Cache.ClearSchedule, func() {
			s.cache.ClearAll()
			s.logger.Info("scheduled cache clear")
		})
		if err != nil {
			s.cache.Close()
			return nil, fmt.Errorf("schedule cache clear: %w", err)
		}
	}

	return s, nil
}

// loader queries the source through the breaker.
func (s *APIServer) loader(name string) types.Loader {
	return func(ctx context.Context) (any, error) {
		return s.breaker.Execute(func() (interface{}, error) {
			return s.source.Query(ctx, name)
		})
	}
}

func cacheKey(name string) string {
	return "aggregate:" + name
}

// Router builds the HTTP routes.
func (s *APIServer) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/health", s.healthCheck)
	router.GET("/stats", s.getStats)

	v1 := router.Group("/api/v1")
	{
		v1.GET("/aggregates/:name", s.getAggregate)
		v1.DELETE("/cache/:name", s.clearKey)
		v1.DELETE("/cache", s.clearAll)
	}
	return router
}

// Start begins serving in the background.
func (s *APIServer) Start() {
	s.server = &http.Server{
		Addr:    s.cfg.Server.Addr,
		Handler: s.Router(),
	}
	if s.cron != nil {
		s.cron.Start()
	}

	s.logger.WithField("addr", s.cfg.Server.Addr).Info("starting API server")
	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.WithError(err).Fatal("HTTP server failed")
		}
	}()
}

// Stop shuts the HTTP server down, waits for scheduled jobs and closes the cache.
func (s *APIServer) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if s.server != nil {
		if err := s.server.Shutdown(ctx); err != nil {
			s.logger.WithError(err).Error("failed to shut down HTTP server")
		}
	}
	if s.cron != nil {
		<-s.cron.Stop().Done()
	}
	s.cache.Close()
}

func (s *APIServer) healthCheck(c *gin.Context) {
	status := http.StatusOK
	state := s.breaker.State()
	if state == gobreaker.StateOpen {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{
		"status":    http.StatusText(status),
		"source":    state.String(),
		"timestamp": time.Now(),
	})
}

func (s *APIServer) getStats(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"cache":   s.metrics.Snapshot(),
		"breaker": s.breaker.State().String(),
	})
}

func (s *APIServer) getAggregate(c *gin.Context) {
	name := c.Param("name")

	var opts []types.GetOption
	if c.Query("fresh") == "1" {
		opts = append(opts, cache.SkipCache())
	}

	report, err := cache.Fetch(c.Request.Context(), s.cache, cacheKey(name),
		func(ctx context.Context) (Report, error) {
			v, err := s.loader(name)(ctx)
			if err != nil {
				return Report{}, err
			}
			return v.(Report), nil
		}, opts...)
	if err != nil {
		s.writeError(c, name, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func (s *APIServer) writeError(c *gin.Context, name string, err error) {
	status := http.StatusBadGateway
	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		status = http.StatusServiceUnavailable
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		status = http.StatusGatewayTimeout
	}
	s.logger.WithField("name", name).WithError(err).Warn("aggregate request failed")
	c.JSON(status, ErrorResponse{Error: http.StatusText(status), Message: err.Error()})
}

func (s *APIServer) clearKey(c *gin.Context) {
	s.cache.Clear(cacheKey(c.Param("name")))
	c.Status(http.StatusNoContent)
}

func (s *APIServer) clearAll(c *gin.Context) {
	s.cache.ClearAll()
	c.Status(http.StatusNoContent)
}
