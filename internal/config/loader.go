package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies IDEXBOT_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known IDEXBOT_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e.
// not empty). This lets operators inject secrets at deploy time without
// touching the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Wallet ──
	setStr(&cfg.Wallet.PrivateKey, "IDEXBOT_WALLET_PRIVATE_KEY")
	setStr(&cfg.Wallet.EncryptedKeyPath, "IDEXBOT_WALLET_ENCRYPTED_KEY_PATH")
	setStr(&cfg.Wallet.KeyPassword, "IDEXBOT_WALLET_KEY_PASSWORD")

	// ── Idex ──
	setStr(&cfg.Idex.RestHost, "IDEXBOT_IDEX_REST_HOST")
	setStr(&cfg.Idex.WsHost, "IDEXBOT_IDEX_WS_HOST")
	setStr(&cfg.Idex.ApiKey, "IDEXBOT_IDEX_API_KEY")
	setStr(&cfg.Idex.ApiSecret, "IDEXBOT_IDEX_API_SECRET")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "IDEXBOT_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "IDEXBOT_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "IDEXBOT_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "IDEXBOT_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "IDEXBOT_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "IDEXBOT_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "IDEXBOT_POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "IDEXBOT_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "IDEXBOT_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "IDEXBOT_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "IDEXBOT_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "IDEXBOT_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "IDEXBOT_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "IDEXBOT_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "IDEXBOT_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "IDEXBOT_REDIS_TLS_ENABLED")

	// ── S3 ──
	setStr(&cfg.S3.Endpoint, "IDEXBOT_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "IDEXBOT_S3_REGION")
	setStr(&cfg.S3.Bucket, "IDEXBOT_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "IDEXBOT_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "IDEXBOT_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "IDEXBOT_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "IDEXBOT_S3_FORCE_PATH_STYLE")

	// ── OrderBook ──
	setStringSlice(&cfg.OrderBook.Markets, "IDEXBOT_ORDERBOOK_MARKETS")
	setInt(&cfg.OrderBook.NumPoolLevels, "IDEXBOT_ORDERBOOK_NUM_POOL_LEVELS")
	setStr(&cfg.OrderBook.PoolSlippageIncrement, "IDEXBOT_ORDERBOOK_POOL_SLIPPAGE_INCREMENT")
	setInt(&cfg.OrderBook.SnapshotLimit, "IDEXBOT_ORDERBOOK_SNAPSHOT_LIMIT")
	setBool(&cfg.OrderBook.IncludeMinimumTakerLevels, "IDEXBOT_ORDERBOOK_INCLUDE_MINIMUM_TAKER_LEVELS")

	// ── Recorder ──
	setBool(&cfg.Recorder.Enabled, "IDEXBOT_RECORDER_ENABLED")
	setDuration(&cfg.Recorder.FlushInterval, "IDEXBOT_RECORDER_FLUSH_INTERVAL")
	setInt(&cfg.Recorder.FlushBatchSize, "IDEXBOT_RECORDER_FLUSH_BATCH_SIZE")
	setDuration(&cfg.Recorder.ArchiveInterval, "IDEXBOT_RECORDER_ARCHIVE_INTERVAL")
	setInt(&cfg.Recorder.ArchiveRetentionDays, "IDEXBOT_RECORDER_ARCHIVE_RETENTION_DAYS")

	// ── Top-level ──
	setStr(&cfg.Mode, "IDEXBOT_MODE")
	setStr(&cfg.LogLevel, "IDEXBOT_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
