package postgres

import (
	"context"
	"fmt"
	"time"

	"mdcache/config"

	_ "github.com/lib/pq"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Client wraps the GORM handle for the market data tables.
type Client struct {
	DB *gorm.DB
}

// Open creates a client on an arbitrary GORM dialector. Tests use this
// with an in-memory SQLite database.
func Open(dialector gorm.Dialector) (*Client, error) {
	db, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return &Client{DB: db}, nil
}

// NewClient connects to Postgres with the given DSN.
func NewClient(dsn string) (*Client, error) {
	return Open(postgres.Open(dsn))
}

// InitializeAndMigrate connects to Postgres, optionally creates the DB,
// and migrates the candle and tick tables.
func InitializeAndMigrate(cfg config.PostgresConfig, env string, createDB bool) (*Client, error) {
	if createDB {
		if err := CreateDatabase(cfg, env); err != nil {
			return nil, fmt.Errorf("failed to create database: %w", err)
		}
	}

	client, err := NewClient(cfg.DSN(env))
	if err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}

	if err := client.AutoMigrate(); err != nil {
		return nil, fmt.Errorf("migration failed: %w", err)
	}

	return client, nil
}

// AutoMigrate creates or updates the candle and tick tables.
func (c *Client) AutoMigrate() error {
	if err := c.DB.AutoMigrate(&CandleRecord{}, &TickRecord{}); err != nil {
		return fmt.Errorf("auto-migrate market data tables: %w", err)
	}
	return nil
}

// PurgeOlderThan deletes candles and ticks with a timestamp before the
// cutoff from both tables in one transaction.
func (c *Client) PurgeOlderThan(ctx context.Context, cutoff time.Time) error {
	return c.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("timestamp < ?", cutoff).Delete(&CandleRecord{}).Error; err != nil {
			return fmt.Errorf("purge candles: %w", err)
		}
		if err := tx.Where("timestamp < ?", cutoff).Delete(&TickRecord{}).Error; err != nil {
			return fmt.Errorf("purge ticks: %w", err)
		}
		return nil
	})
}

// IsHealthy reports whether the underlying connection answers a ping.
func (c *Client) IsHealthy(ctx context.Context) bool {
	db, err := c.DB.DB()
	if err != nil {
		return false
	}
	return db.PingContext(ctx) == nil
}

// Close releases the underlying connection pool.
func (c *Client) Close() error {
	db, err := c.DB.DB()
	if err != nil {
		return fmt.Errorf("failed to retrieve raw DB: %w", err)
	}
	return db.Close()
}
