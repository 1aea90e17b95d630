// Package app wires storage, provider, cache engine and HTTP server
// together and owns their lifecycle.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"mdcache/config"
	"mdcache/internal/cache"
	"mdcache/internal/market"
	"mdcache/internal/metrics"
	"mdcache/internal/server"
	"mdcache/pkg/feed"
	"mdcache/pkg/storage/postgres"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// Run starts the service and blocks until SIGINT/SIGTERM.
func Run(cfg *config.Config, logger *zap.Logger) error {
	store, err := postgres.InitializeAndMigrate(cfg.Postgres, cfg.Environment, cfg.Cache.CreateDatabase)
	if err != nil {
		return fmt.Errorf("failed to set up storage: %w", err)
	}
	defer store.Close()

	pingCtx, cancelPing := context.WithTimeout(context.Background(), 5*time.Second)
	healthy := store.IsHealthy(pingCtx)
	cancelPing()
	if !healthy {
		return fmt.Errorf("storage did not answer a ping")
	}

	registry := prometheus.NewRegistry()
	m := metrics.New(registry)

	provider, disconnect, err := buildProvider(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to start market data provider: %w", err)
	}
	defer disconnect()

	engine := cache.NewEngine(store, provider, logger, m)

	// Route real-time ticks for every catalog symbol into the cache.
	for _, info := range market.Symbols() {
		symbol := info.Code
		err := provider.SubscribeTicks(symbol, func(tick market.Tick) {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := engine.CacheTick(ctx, tick); err != nil {
				logger.Warn("failed to cache tick", zap.String("symbol", symbol), zap.Error(err))
			}
		})
		if err != nil {
			return fmt.Errorf("failed to subscribe ticks for %s: %w", symbol, err)
		}
	}
	defer func() {
		for _, info := range market.Symbols() {
			provider.UnsubscribeTicks(info.Code)
		}
	}()

	janitor := cache.NewJanitor(engine, cfg.Cache.RetentionDays, logger)
	janitor.Start()
	defer janitor.Stop()

	srv := server.New(engine, provider, logger,
		server.WithMetrics(m, registry),
		server.WithHealthSample(cfg.Cache.SampleSymbol, market.Timeframe(cfg.Cache.SampleTimeframe)),
	)

	httpServer := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      srv.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server starting", zap.String("addr", cfg.Server.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("http server failed: %w", err)
	case sig := <-stop:
		logger.Info("shutting down", zap.String("signal", sig.String()))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}

// buildProvider constructs and connects the configured provider. The
// returned func tears the connection down.
func buildProvider(cfg *config.Config, logger *zap.Logger) (market.Provider, func(), error) {
	switch cfg.Provider.Mode {
	case "live":
		client := feed.New(cfg.Provider.Feed, logger)
		if err := client.Connect(); err != nil {
			return nil, nil, err
		}
		return client, client.Disconnect, nil
	case "mock", "":
		mock := market.NewMockProvider(cfg.Provider.TickInterval)
		mock.Connect()
		return mock, mock.Disconnect, nil
	default:
		return nil, nil, fmt.Errorf("unknown provider mode %q", cfg.Provider.Mode)
	}
}
