package cache

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Janitor runs the retention cleanup once at startup and then every 24
// hours at UTC midnight.
type Janitor struct {
	engine        *Engine
	retentionDays int
	logger        *zap.Logger
	stop          chan struct{}
}

// NewJanitor creates a janitor purging rows older than retentionDays.
func NewJanitor(engine *Engine, retentionDays int, logger *zap.Logger) *Janitor {
	return &Janitor{
		engine:        engine,
		retentionDays: retentionDays,
		logger:        logger,
		stop:          make(chan struct{}),
	}
}

// Start launches the cleanup schedule in the background.
func (j *Janitor) Start() {
	go func() {
		j.runOnce()

		// Wait until next UTC midnight, then run once every 24 hours.
		now := time.Now().UTC()
		nextMidnight := now.Truncate(24 * time.Hour).Add(24 * time.Hour)
		select {
		case <-j.stop:
			return
		case <-time.After(time.Until(nextMidnight)):
		}

		ticker := time.NewTicker(24 * time.Hour)
		defer ticker.Stop()
		for {
			j.runOnce()
			select {
			case <-j.stop:
				return
			case <-ticker.C:
			}
		}
	}()
}

// Stop ends the schedule. A cleanup already in flight finishes.
func (j *Janitor) Stop() {
	close(j.stop)
}

func (j *Janitor) runOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if err := j.engine.CleanupOldData(ctx, j.retentionDays); err != nil {
		j.logger.Warn("retention cleanup failed", zap.Error(err))
	}
}
