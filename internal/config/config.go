// Package config defines the top-level configuration for the idex bot and
// provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by IDEXBOT_* environment
// variables.
type Config struct {
	Wallet    WalletConfig    `toml:"wallet"`
	Idex      IdexConfig      `toml:"idex"`
	Postgres  PostgresConfig  `toml:"postgres"`
	Redis     RedisConfig     `toml:"redis"`
	S3        S3Config        `toml:"s3"`
	OrderBook OrderBookConfig `toml:"orderbook"`
	Recorder  RecorderConfig  `toml:"recorder"`
	Mode      string          `toml:"mode"`
	LogLevel  string          `toml:"log_level"`
}

// WalletConfig holds Ethereum wallet credentials.
type WalletConfig struct {
	PrivateKey       string `toml:"private_key"`
	EncryptedKeyPath string `toml:"encrypted_key_path"`
	KeyPassword      string `toml:"key_password"`
}

// IdexConfig holds exchange API endpoints and credentials.
type IdexConfig struct {
	RestHost  string `toml:"rest_host"`
	WsHost    string `toml:"ws_host"`
	ApiKey    string `toml:"api_key"`
	ApiSecret string `toml:"api_secret"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds S3-compatible object storage parameters.
type S3Config struct {
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// OrderBookConfig holds the hybrid book composition parameters and the
// markets to track.
type OrderBookConfig struct {
	Markets []string `toml:"markets"`

	// NumPoolLevels is how many synthetic levels to generate per side.
	NumPoolLevels int `toml:"num_pool_levels"`

	// PoolSlippageIncrement is the price distance between synthetic levels
	// as an 8-decimal string, e.g. "0.00100000".
	PoolSlippageIncrement string `toml:"pool_slippage_increment"`

	// SnapshotLimit is the depth requested for REST snapshots.
	SnapshotLimit int `toml:"snapshot_limit"`

	// IncludeMinimumTakerLevels injects the minimum-taker synthetic level
	// on both sides of pool markets.
	IncludeMinimumTakerLevels bool `toml:"include_minimum_taker_levels"`
}

// RecorderConfig holds market data recorder parameters.
type RecorderConfig struct {
	Enabled              bool     `toml:"enabled"`
	FlushInterval        duration `toml:"flush_interval"`
	FlushBatchSize       int      `toml:"flush_batch_size"`
	ArchiveInterval      duration `toml:"archive_interval"`
	ArchiveRetentionDays int      `toml:"archive_retention_days"`
}

// duration is a wrapper around time.Duration that supports TOML string
// decoding (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values.
func Defaults() Config {
	return Config{
		Idex: IdexConfig{
			RestHost: "https://api-matic.idex.io/v1",
			WsHost:   "wss://websocket-matic.idex.io/v1",
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "idexbot",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			DB:         0,
			PoolSize:   20,
			MaxRetries: 3,
			TLSEnabled: false,
		},
		S3: S3Config{
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "idexbot-data",
			UseSSL:         false,
			ForcePathStyle: true,
		},
		OrderBook: OrderBookConfig{
			Markets:                   []string{"ETH-USD"},
			NumPoolLevels:             10,
			PoolSlippageIncrement:     "0.00100000",
			SnapshotLimit:             1000,
			IncludeMinimumTakerLevels: true,
		},
		Recorder: RecorderConfig{
			Enabled:              true,
			FlushInterval:        duration{5 * time.Second},
			FlushBatchSize:       500,
			ArchiveInterval:      duration{time.Hour},
			ArchiveRetentionDays: 90,
		},
		Mode:     "monitor",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"trade":   true,
	"monitor": true,
	"record":  true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns
// a combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: trade, monitor, record)", c.Mode))
	}

	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Wallet and API credentials are only required for trading.
	if c.Mode == "trade" {
		if c.Wallet.PrivateKey == "" && c.Wallet.EncryptedKeyPath == "" {
			errs = append(errs, "wallet: either private_key or encrypted_key_path must be set for mode trade")
		}
		if c.Wallet.EncryptedKeyPath != "" && c.Wallet.KeyPassword == "" {
			errs = append(errs, "wallet: key_password is required when encrypted_key_path is set")
		}
		if c.Idex.ApiKey == "" || c.Idex.ApiSecret == "" {
			errs = append(errs, "idex: api_key and api_secret are required for mode trade")
		}
	}

	if c.Idex.RestHost == "" {
		errs = append(errs, "idex: rest_host must not be empty")
	}
	if c.Idex.WsHost == "" {
		errs = append(errs, "idex: ws_host must not be empty")
	}

	if strings.TrimSpace(c.Postgres.DSN) == "" {
		if c.Postgres.Host == "" {
			errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
		}
		if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
			errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
		}
		if c.Postgres.Database == "" {
			errs = append(errs, "postgres: database must not be empty")
		}
	}
	if c.Postgres.PoolMaxConns < 1 {
		errs = append(errs, "postgres: pool_max_conns must be >= 1")
	}
	if c.Postgres.PoolMinConns < 0 {
		errs = append(errs, "postgres: pool_min_conns must be >= 0")
	}
	if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
		errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
	}

	if c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty")
	}
	if c.Redis.PoolSize < 1 {
		errs = append(errs, "redis: pool_size must be >= 1")
	}

	if c.S3.Endpoint == "" {
		errs = append(errs, "s3: endpoint must not be empty")
	}
	if c.S3.Bucket == "" {
		errs = append(errs, "s3: bucket must not be empty")
	}

	if len(c.OrderBook.Markets) == 0 {
		errs = append(errs, "orderbook: at least one market must be configured")
	}
	if c.OrderBook.NumPoolLevels < 1 {
		errs = append(errs, "orderbook: num_pool_levels must be >= 1")
	}
	if c.OrderBook.SnapshotLimit < 2 || c.OrderBook.SnapshotLimit > 1000 {
		errs = append(errs, fmt.Sprintf("orderbook: snapshot_limit must be 2-1000, got %d", c.OrderBook.SnapshotLimit))
	}

	if c.Recorder.Enabled {
		if c.Recorder.FlushInterval.Duration <= 0 {
			errs = append(errs, "recorder: flush_interval must be > 0 when enabled")
		}
		if c.Recorder.FlushBatchSize < 1 {
			errs = append(errs, "recorder: flush_batch_size must be >= 1 when enabled")
		}
		if c.Recorder.ArchiveRetentionDays < 1 {
			errs = append(errs, "recorder: archive_retention_days must be >= 1 when enabled")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
