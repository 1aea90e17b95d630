package main

import (
	"log"

	"mdcache/config"
	"mdcache/internal/app"
	"mdcache/logger"

	"go.uber.org/zap"
)

func main() {
	// viper config
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	// zap logger
	logg, err := logger.New(cfg.Log)
	if err != nil {
		log.Fatalf("failed to create logger: %v", err)
	}
	defer logg.Sync()

	if err := app.Run(cfg, logg); err != nil {
		logg.Fatal("server failed", zap.Error(err))
	}
}
