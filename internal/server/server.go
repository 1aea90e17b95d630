// Package server exposes the market data HTTP API.
package server

import (
	"context"
	"strconv"
	"time"

	"mdcache/internal/market"
	"mdcache/internal/metrics"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// CandleService is the slice of the cache engine the handlers consume.
type CandleService interface {
	GetCandles(ctx context.Context, symbol string, timeframe market.Timeframe, start, end *time.Time, useCache bool) ([]market.Candle, error)
	GetLatestPrice(ctx context.Context, symbol string) (float64, error)
}

// Server holds the handler dependencies.
type Server struct {
	svc      CandleService
	provider market.Provider
	logger   *zap.Logger
	metrics  *metrics.Metrics
	gatherer prometheus.Gatherer

	// sample request issued by the health check
	sampleSymbol    string
	sampleTimeframe market.Timeframe
}

// Option tweaks the server beyond the required dependencies.
type Option func(*Server)

// WithMetrics attaches Prometheus instrumentation and a /metrics route.
func WithMetrics(m *metrics.Metrics, g prometheus.Gatherer) Option {
	return func(s *Server) {
		s.metrics = m
		s.gatherer = g
	}
}

// WithHealthSample overrides the symbol/timeframe the health check
// fetches through the non-cached path.
func WithHealthSample(symbol string, timeframe market.Timeframe) Option {
	return func(s *Server) {
		s.sampleSymbol = symbol
		s.sampleTimeframe = timeframe
	}
}

// New creates the server.
func New(svc CandleService, provider market.Provider, logger *zap.Logger, opts ...Option) *Server {
	s := &Server{
		svc:             svc,
		provider:        provider,
		logger:          logger,
		sampleSymbol:    "000001",
		sampleTimeframe: market.Timeframe1Min,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Router builds the gin engine with all routes mounted.
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLog())

	api := r.Group("/api/market-data")
	{
		api.GET("/kline/:symbol", s.handleKline)
		api.GET("/latest-price/:symbol", s.handleLatestPrice)
		api.GET("/symbols", s.handleSymbols)
		api.GET("/timeframes", s.handleTimeframes)
		api.POST("/cache/clear", s.handleClearCache)
		api.GET("/health", s.handleHealth)
	}

	if s.gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))
	}

	return r
}

// requestLog logs each request and records its latency.
func (s *Server) requestLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		begin := time.Now()
		c.Next()
		elapsed := time.Since(begin)

		status := c.Writer.Status()
		if s.metrics != nil {
			route := c.FullPath()
			if route == "" {
				route = "unmatched"
			}
			s.metrics.RequestDuration.
				WithLabelValues(route, strconv.Itoa(status)).
				Observe(elapsed.Seconds())
		}

		s.logger.Debug("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", status),
			zap.Duration("elapsed", elapsed))
	}
}
