package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cyberinferno/telemetry-gateway/protocol"
)

func writeConfigFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "telegate.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 5023, cfg.ListenPort)
	assert.True(t, cfg.AckEnabled)
	assert.Equal(t, int(protocol.AckModeAlways), cfg.AckMode)
	assert.Equal(t, 30*time.Minute, cfg.IdleTimeout)
	assert.Equal(t, 5*time.Second, cfg.ClassificationTimeout)
	assert.Equal(t, 500, cfg.MaxConnections)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 24*time.Hour, cfg.DeviceCacheTTL)
}

func TestLoadFile(t *testing.T) {
	t.Run("overrides defined fields only", func(t *testing.T) {
		path := writeConfigFile(t, `
listen_port = 6100
ack_mode = 1
idle_timeout_seconds = 120
webhook_url = "https://hooks.example.com/alerts"
`)

		cfg, err := Load(path)
		require.NoError(t, err)

		assert.Equal(t, 6100, cfg.ListenPort)
		assert.Equal(t, 1, cfg.AckMode)
		assert.Equal(t, 2*time.Minute, cfg.IdleTimeout)
		assert.Equal(t, "https://hooks.example.com/alerts", cfg.WebhookURL)
		// Untouched fields keep their defaults.
		assert.Equal(t, 500, cfg.MaxConnections)
		assert.True(t, cfg.AckEnabled)
	})

	t.Run("missing file fails", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
		assert.Error(t, err)
	})

	t.Run("malformed file fails", func(t *testing.T) {
		path := writeConfigFile(t, "listen_port = not a number")
		_, err := Load(path)
		assert.Error(t, err)
	})
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Run("environment beats file", func(t *testing.T) {
		path := writeConfigFile(t, "listen_port = 6100")
		t.Setenv("TELEGATE_LISTEN_PORT", "7200")
		t.Setenv("TELEGATE_ACK_ENABLED", "false")
		t.Setenv("TELEGATE_MAX_CONNECTIONS", "25")
		t.Setenv("TELEGATE_DEVICE_CACHE_TTL_SECONDS", "60")

		cfg, err := Load(path)
		require.NoError(t, err)

		assert.Equal(t, 7200, cfg.ListenPort)
		assert.False(t, cfg.AckEnabled)
		assert.Equal(t, 25, cfg.MaxConnections)
		assert.Equal(t, time.Minute, cfg.DeviceCacheTTL)
	})

	t.Run("unparseable value fails", func(t *testing.T) {
		t.Setenv("TELEGATE_LISTEN_PORT", "not-a-port")
		_, err := Load("")
		assert.Error(t, err)
	})
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero port", func(c *Config) { c.ListenPort = 0 }},
		{"port too large", func(c *Config) { c.ListenPort = 70000 }},
		{"unknown ack mode", func(c *Config) { c.AckMode = 9 }},
		{"nonpositive cap", func(c *Config) { c.MaxConnections = 0 }},
		{"nonpositive idle timeout", func(c *Config) { c.IdleTimeout = 0 }},
		{"nonpositive classification timeout", func(c *Config) { c.ClassificationTimeout = -time.Second }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}

	t.Run("defaults are valid", func(t *testing.T) {
		assert.NoError(t, Default().Validate())
	})
}

func TestEffectiveAckMode(t *testing.T) {
	cfg := Default()
	assert.Equal(t, protocol.AckModeAlways, cfg.EffectiveAckMode())

	cfg.AckMode = int(protocol.AckModeVerifySequence)
	assert.Equal(t, protocol.AckModeVerifySequence, cfg.EffectiveAckMode())

	cfg.AckEnabled = false
	assert.Equal(t, protocol.AckModeNever, cfg.EffectiveAckMode())
}

func TestListenAddr(t *testing.T) {
	cfg := Default()
	assert.Equal(t, ":5023", cfg.ListenAddr())

	cfg.ListenHost = "10.0.0.5"
	cfg.ListenPort = 6100
	assert.Equal(t, "10.0.0.5:6100", cfg.ListenAddr())
}
