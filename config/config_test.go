package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadConfig(t *testing.T) {
	t.Run("loads a full config file", func(t *testing.T) {
		path := writeConfigFile(t, `
[server]
port = 9090
mode = "release"
worker_id = 7

[postgres]
host = "db.internal"
port = "5432"
user = "svc"
password = "secret"
dbname = "matchmaking"
max_idle_conns = 5
max_open_conns = 50

[redis]
host = "cache.internal"
port = 6380
db = 1

[kafka]
brokers = ["k1:9092", "k2:9092"]
topic = "events"

[jwt]
secret = "signing-key"

[ratelimit]
per_minute = 60
fallback = true

[worker_pool]
size = 8
queue_size = 256

[matchmaker]
max_retries = 5
retry_backoff_ms = 10

[logging]
level = "warn"
format = "json"
output = "stdout"
`)

		cfg, err := LoadConfig(path)
		require.NoError(t, err)

		assert.Equal(t, 9090, cfg.Server.Port)
		assert.Equal(t, "release", cfg.Server.Mode)
		assert.Equal(t, int64(7), cfg.Server.WorkerID)
		assert.Equal(t, "db.internal", cfg.Postgres.Host)
		assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
		assert.Equal(t, "signing-key", cfg.JWT.Secret)
		assert.Equal(t, 60, cfg.RateLimit.PerMinute)
		assert.True(t, cfg.RateLimit.Fallback)
		assert.Equal(t, 8, cfg.WorkerPool.Size)
		assert.Equal(t, 5, cfg.Matchmaker.MaxRetries)
		assert.Equal(t, 10, cfg.Matchmaker.RetryBackoffMs)
		assert.Equal(t, "warn", cfg.Logging.Level)
	})

	t.Run("fills defaults for omitted sections", func(t *testing.T) {
		path := writeConfigFile(t, `
[postgres]
host = "127.0.0.1"
`)

		cfg, err := LoadConfig(path)
		require.NoError(t, err)

		assert.Equal(t, 8080, cfg.Server.Port)
		assert.Equal(t, "debug", cfg.Server.Mode)
		assert.Equal(t, 3, cfg.Matchmaker.MaxRetries)
		assert.Equal(t, 20, cfg.Matchmaker.RetryBackoffMs)
		assert.Equal(t, "info", cfg.Logging.Level)
		assert.Equal(t, "console", cfg.Logging.Format)
	})

	t.Run("missing file is an error", func(t *testing.T) {
		_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.toml"))
		assert.Error(t, err)
	})
}
