package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadWritesDefaultConfig(t *testing.T) {
	req := require.New(t)
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg, resolved, err := Load(nil, path)
	req.NoError(err)
	req.Equal(path, resolved)
	req.Equal(Default(), cfg)

	_, err = os.Stat(path)
	req.NoError(err)

	// A second load reads the written file back unchanged.
	again, _, err := Load(nil, path)
	req.NoError(err)
	req.Equal(cfg, again)
}

func TestLoadFileAndEnvPrecedence(t *testing.T) {
	req := require.New(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	req.NoError(os.WriteFile(path, []byte(`
addr: ":9000"
write_timeout: 2s
poll_interval: 15s
redis_addr: "localhost:6379"
`), 0o600))

	t.Setenv("WIRECHAT_ADDR", ":9100")
	t.Setenv("WIRECHAT_RATE_LIMIT_PER_MINUTE", "30")

	cfg, _, err := Load(nil, path)
	req.NoError(err)
	req.Equal(":9100", cfg.Addr)
	req.Equal(2*time.Second, cfg.WriteTimeout)
	req.Equal(15*time.Second, cfg.PollInterval)
	req.Equal(30, cfg.RateLimitPerMinute)
	req.Equal("localhost:6379", cfg.RedisAddr)
	req.Equal(Default().PingInterval, cfg.PingInterval)
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("jwt_secret: \"\"\nwrite_timeout: 0s\n"), 0o600))

	_, _, err := Load(nil, path)
	require.Error(t, err)
	require.Contains(t, err.Error(), "jwt_secret is required")
	require.Contains(t, err.Error(), "write_timeout must be positive")
}

func TestValidate(t *testing.T) {
	require.NoError(t, Default().Validate())

	cfg := Default()
	cfg.LogFormat = "xml"
	cfg.MaxMessageBytes = 0
	cfg.BreakerMaxFailures = 0
	err := cfg.Validate()
	require.Error(t, err)
	require.Contains(t, err.Error(), "log_format")
	require.Contains(t, err.Error(), "max_message_bytes")
	require.Contains(t, err.Error(), "breaker_max_failures")
}

func TestUpdateFrom(t *testing.T) {
	cfg := Default()
	cfg.UpdateFrom(Config{Addr: ":1234", LogLevel: "debug"})

	require.Equal(t, ":1234", cfg.Addr)
	require.Equal(t, "debug", cfg.LogLevel)
	require.Equal(t, Default().DatabasePath, cfg.DatabasePath)
}
