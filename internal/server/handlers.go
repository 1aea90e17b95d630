package server

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"mdcache/internal/cache"
	"mdcache/internal/market"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// handleKline serves GET /api/market-data/kline/:symbol.
func (s *Server) handleKline(c *gin.Context) {
	symbol := c.Param("symbol")
	timeframe := market.Timeframe(c.DefaultQuery("timeframe", string(market.Timeframe1Min)))

	start, err := parseTimeQuery(c, "start_time")
	if err != nil {
		s.badRequest(c, err)
		return
	}
	end, err := parseTimeQuery(c, "end_time")
	if err != nil {
		s.badRequest(c, err)
		return
	}

	useCache := true
	if raw := c.Query("use_cache"); raw != "" {
		useCache, err = strconv.ParseBool(raw)
		if err != nil {
			s.badRequest(c, fmt.Errorf("invalid use_cache value %q: %w", raw, err))
			return
		}
	}

	candles, err := s.svc.GetCandles(c.Request.Context(), symbol, timeframe, start, end, useCache)
	if err != nil {
		s.serverError(c, "Failed to get market data", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"symbol":    symbol,
		"timeframe": timeframe,
		"data":      market.CandlesToJSON(candles),
		"count":     len(candles),
	})
}

// handleLatestPrice serves GET /api/market-data/latest-price/:symbol.
func (s *Server) handleLatestPrice(c *gin.Context) {
	symbol := c.Param("symbol")

	price, err := s.svc.GetLatestPrice(c.Request.Context(), symbol)
	if errors.Is(err, cache.ErrNoData) {
		c.JSON(http.StatusNotFound, gin.H{
			"error": fmt.Sprintf("No price data found for symbol %s", symbol),
		})
		return
	}
	if err != nil {
		s.serverError(c, "Failed to get latest price", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"symbol":    symbol,
		"price":     price,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// handleSymbols serves the static symbol catalog.
func (s *Server) handleSymbols(c *gin.Context) {
	symbols := market.Symbols()
	c.JSON(http.StatusOK, gin.H{
		"symbols": symbols,
		"count":   len(symbols),
	})
}

// handleTimeframes serves the static timeframe catalog.
func (s *Server) handleTimeframes(c *gin.Context) {
	timeframes := market.Timeframes()
	c.JSON(http.StatusOK, gin.H{
		"timeframes": timeframes,
		"count":      len(timeframes),
	})
}

// handleClearCache serves POST /api/market-data/cache/clear. The
// refresh path already replaces stale rows wholesale, so clearing is
// acknowledged without touching storage.
func (s *Server) handleClearCache(c *gin.Context) {
	target := c.Query("symbol")
	if target == "" {
		target = "all symbols"
	}

	c.JSON(http.StatusOK, gin.H{
		"message":   fmt.Sprintf("Cache cleared for %s", target),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// handleHealth reports provider connectivity and data availability.
// Check failures are downgraded to the status field, never a protocol
// error.
func (s *Server) handleHealth(c *gin.Context) {
	connected := s.provider.IsConnected()

	dataAvailable := false
	if connected {
		sample, err := s.svc.GetCandles(c.Request.Context(), s.sampleSymbol, s.sampleTimeframe, nil, nil, false)
		if err != nil {
			c.JSON(http.StatusOK, gin.H{
				"status":    "unhealthy",
				"error":     err.Error(),
				"timestamp": time.Now().UTC().Format(time.RFC3339),
			})
			return
		}
		dataAvailable = len(sample) > 0
	}

	status := "degraded"
	if connected && dataAvailable {
		status = "healthy"
	}

	c.JSON(http.StatusOK, gin.H{
		"status":                status,
		"market_data_connected": connected,
		"data_available":        dataAvailable,
		"timestamp":             time.Now().UTC().Format(time.RFC3339),
	})
}

// parseTimeQuery reads an optional RFC3339 instant from the query.
func parseTimeQuery(c *gin.Context, name string) (*time.Time, error) {
	raw := c.Query(name)
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", name, raw, err)
	}
	return &t, nil
}

func (s *Server) badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}

func (s *Server) serverError(c *gin.Context, msg string, err error) {
	s.logger.Error(msg,
		zap.String("path", c.Request.URL.Path),
		zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{
		"error": fmt.Sprintf("%s: %v", msg, err),
	})
}
