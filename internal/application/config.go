// Package application wires the funding engine together: configuration,
// source selection, the backtest pipeline, persistence, and metrics.
package application

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"github.com/sawpanic/fundrun/internal/backtest"
	"github.com/sawpanic/fundrun/internal/infrastructure/db"
	"github.com/sawpanic/fundrun/internal/infrastructure/hyperliquid"
)

// DefaultConfigPath is where the engine looks for its config file.
const DefaultConfigPath = "config/fundrun.yaml"

// Config is the full engine configuration. Every field has a working
// default; the YAML file only needs to name what it changes.
type Config struct {
	HTTP        HTTPConfig        `yaml:"http"`
	Redis       RedisConfig       `yaml:"redis"`
	Database    db.Config         `yaml:"database"`
	Hyperliquid HyperliquidConfig `yaml:"hyperliquid"`
	Backtest    BacktestConfig    `yaml:"backtest"`
	Paths       PathsConfig       `yaml:"paths"`
}

// HTTPConfig configures the API server bind address.
type HTTPConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// RedisConfig configures the shared funding-history cache. An empty Addr
// selects the in-process cache.
type RedisConfig struct {
	Addr              string `yaml:"addr"`
	Password          string `yaml:"password"`
	DB                int    `yaml:"db"`
	DefaultTTLSeconds int    `yaml:"default_ttl_seconds"`
}

// DefaultTTL returns the cache TTL as a duration.
func (c RedisConfig) DefaultTTL() time.Duration {
	return time.Duration(c.DefaultTTLSeconds) * time.Second
}

// HyperliquidConfig configures the exchange client.
type HyperliquidConfig struct {
	BaseURL               string  `yaml:"base_url"`
	TimeoutSeconds        int     `yaml:"timeout_seconds"`
	RequestsPerSec        float64 `yaml:"requests_per_sec"`
	Burst                 int     `yaml:"burst"`
	BreakerFailures       uint32  `yaml:"breaker_failures"`
	BreakerTimeoutSeconds int     `yaml:"breaker_timeout_seconds"`
	CacheTTLMinutes       int     `yaml:"cache_ttl_minutes"`
	WSURL                 string  `yaml:"ws_url"`
}

// ClientConfig translates the YAML shape into the client's config.
func (c HyperliquidConfig) ClientConfig() hyperliquid.Config {
	return hyperliquid.Config{
		BaseURL:         c.BaseURL,
		Timeout:         time.Duration(c.TimeoutSeconds) * time.Second,
		RequestsPerSec:  c.RequestsPerSec,
		Burst:           c.Burst,
		BreakerFailures: c.BreakerFailures,
		BreakerTimeout:  time.Duration(c.BreakerTimeoutSeconds) * time.Second,
		CacheTTL:        time.Duration(c.CacheTTLMinutes) * time.Minute,
	}
}

// BacktestConfig carries the run defaults the CLI and API fall back to.
type BacktestConfig struct {
	DefaultCoin      string  `yaml:"default_coin"`
	DefaultDays      int     `yaml:"default_days"`
	InitialCapital   float64 `yaml:"initial_capital"`
	PositionFraction float64 `yaml:"position_fraction"`
}

// SimConfig translates the defaults into simulator parameters.
func (c BacktestConfig) SimConfig() backtest.SimConfig {
	sim := backtest.DefaultSimConfig()
	if c.InitialCapital > 0 {
		sim.InitialCapital = c.InitialCapital
	}
	if c.PositionFraction > 0 {
		sim.PositionFraction = c.PositionFraction
	}
	return sim
}

// PathsConfig locates the engine's files. An empty ArtifactsDir disables
// artifact writing.
type PathsConfig struct {
	ArtifactsDir string `yaml:"artifacts_dir"`
	EventsFile   string `yaml:"events_file"`
	ProfilesFile string `yaml:"profiles_file"`
}

// DefaultConfig returns the stock configuration.
func DefaultConfig() Config {
	return Config{
		HTTP: HTTPConfig{
			Host: "127.0.0.1",
			Port: 8080,
		},
		Redis: RedisConfig{
			DefaultTTLSeconds: 900,
		},
		Database: db.DefaultConfig(),
		Hyperliquid: HyperliquidConfig{
			BaseURL:               hyperliquid.DefaultBaseURL,
			TimeoutSeconds:        30,
			RequestsPerSec:        5,
			Burst:                 10,
			BreakerFailures:       3,
			BreakerTimeoutSeconds: 30,
			CacheTTLMinutes:       15,
			WSURL:                 hyperliquid.DefaultWSURL,
		},
		Backtest: BacktestConfig{
			DefaultCoin:      "BTC",
			DefaultDays:      30,
			InitialCapital:   10000,
			PositionFraction: 0.1,
		},
		Paths: PathsConfig{
			ArtifactsDir: "artifacts",
			EventsFile:   "config/events.json",
			ProfilesFile: "config/strategies.yaml",
		},
	}
}

// LoadConfig reads the config file over the defaults. A missing file is not
// an error: the defaults run as-is.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	b, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		log.Warn().Str("path", path).Msg("config file not found, using defaults")
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config %s: %w", path, err)
	}

	log.Info().Str("path", path).Msg("configuration loaded")
	return cfg, nil
}

// Validate rejects configurations the engine cannot run with.
func (c Config) Validate() error {
	if c.HTTP.Port < 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http port %d out of range", c.HTTP.Port)
	}
	if c.Hyperliquid.RequestsPerSec < 0 {
		return fmt.Errorf("hyperliquid requests_per_sec must not be negative")
	}
	if c.Backtest.DefaultDays < 1 {
		return fmt.Errorf("backtest default_days must be at least 1")
	}
	if c.Backtest.InitialCapital < 0 || c.Backtest.PositionFraction < 0 || c.Backtest.PositionFraction > 1 {
		return fmt.Errorf("backtest capital settings out of range")
	}
	if c.Database.Enabled && c.Database.DSN == "" {
		return fmt.Errorf("database enabled but no DSN configured")
	}
	return nil
}
