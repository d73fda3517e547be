package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsValidate(t *testing.T) {
	cfg := Defaults()
	require.NoError(t, cfg.Validate())
}

func TestLoadMergesOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
mode = "record"
log_level = "debug"

[orderbook]
markets = ["ETH-USD", "BTC-USD"]
num_pool_levels = 20

[recorder]
flush_interval = "10s"
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "record", cfg.Mode)
	assert.Equal(t, []string{"ETH-USD", "BTC-USD"}, cfg.OrderBook.Markets)
	assert.Equal(t, 20, cfg.OrderBook.NumPoolLevels)
	assert.Equal(t, 10*time.Second, cfg.Recorder.FlushInterval.Duration)

	// Untouched sections keep their defaults.
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, 1000, cfg.OrderBook.SnapshotLimit)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("IDEXBOT_REDIS_ADDR", "redis.internal:6380")
	t.Setenv("IDEXBOT_ORDERBOOK_MARKETS", "ETH-USD, MATIC-USD")
	t.Setenv("IDEXBOT_RECORDER_ENABLED", "false")
	t.Setenv("IDEXBOT_RECORDER_FLUSH_INTERVAL", "30s")

	cfg := Defaults()
	applyEnvOverrides(&cfg)

	assert.Equal(t, "redis.internal:6380", cfg.Redis.Addr)
	assert.Equal(t, []string{"ETH-USD", "MATIC-USD"}, cfg.OrderBook.Markets)
	assert.False(t, cfg.Recorder.Enabled)
	assert.Equal(t, 30*time.Second, cfg.Recorder.FlushInterval.Duration)
}

func TestValidateRejectsBadValues(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "yolo"
	cfg.OrderBook.Markets = nil
	cfg.OrderBook.SnapshotLimit = 1
	cfg.Redis.Addr = ""

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
	assert.Contains(t, err.Error(), "at least one market")
	assert.Contains(t, err.Error(), "snapshot_limit")
	assert.Contains(t, err.Error(), "redis")
}

func TestTradeModeRequiresCredentials(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "trade"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "wallet")
	assert.Contains(t, err.Error(), "api_key")

	cfg.Wallet.PrivateKey = "0xabc"
	cfg.Idex.ApiKey = "k"
	cfg.Idex.ApiSecret = "s"
	require.NoError(t, cfg.Validate())
}

func TestRedactedConfig(t *testing.T) {
	cfg := Defaults()
	cfg.Wallet.PrivateKey = "0xsecret"
	cfg.Idex.ApiSecret = "hush"
	cfg.Postgres.Password = "pw"

	red := RedactedConfig(&cfg)
	assert.Equal(t, "***", red.Wallet.PrivateKey)
	assert.Equal(t, "***", red.Idex.ApiSecret)
	assert.Equal(t, "***", red.Postgres.Password)

	// Original is untouched.
	assert.Equal(t, "0xsecret", cfg.Wallet.PrivateKey)

	red.OrderBook.Markets[0] = "mutated"
	assert.Equal(t, "ETH-USD", cfg.OrderBook.Markets[0])
}
