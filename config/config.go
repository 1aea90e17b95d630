package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Environment string         `mapstructure:"environment"` // "dev" or "prod"
	Server      ServerConfig   `mapstructure:"server"`
	Provider    ProviderConfig `mapstructure:"provider"`
	Cache       CacheConfig    `mapstructure:"cache"`
	Log         LogConfig      `mapstructure:"log"`
	Postgres    PostgresConfig `mapstructure:"postgres"`
}

type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// ProviderConfig selects and tunes the market data provider.
type ProviderConfig struct {
	Mode         string        `mapstructure:"mode"`          // "mock" or "live"
	TickInterval time.Duration `mapstructure:"tick_interval"` // mock tick cadence
	Feed         FeedConfig    `mapstructure:"feed"`
}

// FeedConfig holds the endpoints of the live market data feed.
type FeedConfig struct {
	RESTBaseURL string        `mapstructure:"rest_base_url"`
	RESTTimeout time.Duration `mapstructure:"rest_timeout"`
	WSURL       string        `mapstructure:"ws_url"`
}

type CacheConfig struct {
	RetentionDays   int    `mapstructure:"retention_days"`
	SampleSymbol    string `mapstructure:"sample_symbol"`    // used by the health check
	SampleTimeframe string `mapstructure:"sample_timeframe"` // used by the health check
	CreateDatabase  bool   `mapstructure:"create_database"`
}

// LogConfig defines the logger configuration options.
type LogConfig struct {
	Level      string `mapstructure:"level"`       // "debug", "info", "warn", "error"
	Format     string `mapstructure:"format"`      // "json" or "console"
	OutputFile string `mapstructure:"output_file"` // file path to store logs (optional)
}

// Load reads config.yaml from the working directory, ./config or
// $MDCACHE_CONFIG_DIR, and overrides values with environment variables
// (dot notation mapped to underscores, e.g. POSTGRES_HOST).
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	if dir := os.Getenv("MDCACHE_CONFIG_DIR"); dir != "" {
		v.AddConfigPath(dir)
	}

	setDefaults(v)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		// Run on defaults plus env when no file is present.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "dev")

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.shutdown_timeout", "10s")

	v.SetDefault("provider.mode", "mock")
	v.SetDefault("provider.tick_interval", "1s")
	v.SetDefault("provider.feed.rest_timeout", "10s")

	v.SetDefault("cache.retention_days", 30)
	v.SetDefault("cache.sample_symbol", "000001")
	v.SetDefault("cache.sample_timeframe", "1m")
	v.SetDefault("cache.create_database", false)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("postgres.host", "localhost")
	v.SetDefault("postgres.port", 5432)
	v.SetDefault("postgres.user", "postgres")
	v.SetDefault("postgres.dbname", "mdcache")
	v.SetDefault("postgres.sslmode", "disable")
	v.SetDefault("postgres.timezone", "UTC")
}
