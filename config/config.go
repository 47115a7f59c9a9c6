// Package config loads the gateway configuration from an optional TOML file
// with environment variable overrides (TELEGATE_* names). Defaults are
// applied first, then the file, then the environment, and the result is
// validated before use.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/cyberinferno/telemetry-gateway/protocol"
)

// Config is the gateway's full configuration surface.
type Config struct {
	// ListenHost is the interface to bind; empty means all interfaces.
	ListenHost string
	// ListenPort is the TCP port devices connect to.
	ListenPort int
	// AckEnabled gates acknowledgment sending entirely; when false the
	// effective ack mode is "never" regardless of AckMode.
	AckEnabled bool
	// AckMode is 0 (never), 1 (verify sequence) or 2 (always, no verify).
	AckMode int
	// IdleTimeout is the fixed connection life after classification.
	IdleTimeout time.Duration
	// ClassificationTimeout drops sockets silent before classification.
	ClassificationTimeout time.Duration
	// MaxConnections caps concurrent protocol sessions.
	MaxConnections int
	// LogLevel is a zerolog level name (debug, info, warn, error).
	LogLevel string
	// WebhookURL, when set, enables the alert webhook collaborator.
	WebhookURL string
	// RedisAddr, when set, backs the device profile cache with Redis
	// instead of process memory.
	RedisAddr string
	// DeviceCacheTTL is the profile cache TTL.
	DeviceCacheTTL time.Duration
}

// Default returns the configuration used when no file or environment
// overrides are present.
//
// Returns:
//   - A Config with production defaults
func Default() Config {
	return Config{
		ListenHost:            "",
		ListenPort:            5023,
		AckEnabled:            true,
		AckMode:               int(protocol.AckModeAlways),
		IdleTimeout:           30 * time.Minute,
		ClassificationTimeout: 5 * time.Second,
		MaxConnections:        500,
		LogLevel:              "info",
		DeviceCacheTTL:        24 * time.Hour,
	}
}

// fileConfig is the TOML shape of the config file. Durations are given in
// seconds, matching the environment variables.
type fileConfig struct {
	ListenHost                  string `toml:"listen_host"`
	ListenPort                  int    `toml:"listen_port"`
	AckEnabled                  bool   `toml:"ack_enabled"`
	AckMode                     int    `toml:"ack_mode"`
	IdleTimeoutSeconds          int    `toml:"idle_timeout_seconds"`
	ClassificationTimeoutSecond int    `toml:"classification_timeout_seconds"`
	MaxConnections              int    `toml:"max_connections"`
	LogLevel                    string `toml:"log_level"`
	WebhookURL                  string `toml:"webhook_url"`
	RedisAddr                   string `toml:"redis_addr"`
	DeviceCacheTTLSeconds       int    `toml:"device_cache_ttl_seconds"`
}

// Load builds the configuration: defaults, then the TOML file at path (if
// path is non-empty), then TELEGATE_* environment variables, validated last.
//
// Parameters:
//   - path: The TOML config file path, or "" to skip the file
//
// Returns:
//   - The effective Config
//   - An error if the file cannot be read or the result fails validation
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		var raw fileConfig
		meta, err := toml.DecodeFile(path, &raw)
		if err != nil {
			return Config{}, fmt.Errorf("load config file: %w", err)
		}

		if meta.IsDefined("listen_host") {
			cfg.ListenHost = strings.TrimSpace(raw.ListenHost)
		}
		if meta.IsDefined("listen_port") {
			cfg.ListenPort = raw.ListenPort
		}
		if meta.IsDefined("ack_enabled") {
			cfg.AckEnabled = raw.AckEnabled
		}
		if meta.IsDefined("ack_mode") {
			cfg.AckMode = raw.AckMode
		}
		if meta.IsDefined("idle_timeout_seconds") {
			cfg.IdleTimeout = time.Duration(raw.IdleTimeoutSeconds) * time.Second
		}
		if meta.IsDefined("classification_timeout_seconds") {
			cfg.ClassificationTimeout = time.Duration(raw.ClassificationTimeoutSecond) * time.Second
		}
		if meta.IsDefined("max_connections") {
			cfg.MaxConnections = raw.MaxConnections
		}
		if meta.IsDefined("log_level") {
			cfg.LogLevel = strings.TrimSpace(raw.LogLevel)
		}
		if meta.IsDefined("webhook_url") {
			cfg.WebhookURL = strings.TrimSpace(raw.WebhookURL)
		}
		if meta.IsDefined("redis_addr") {
			cfg.RedisAddr = strings.TrimSpace(raw.RedisAddr)
		}
		if meta.IsDefined("device_cache_ttl_seconds") {
			cfg.DeviceCacheTTL = time.Duration(raw.DeviceCacheTTLSeconds) * time.Second
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// applyEnv overrides cfg with TELEGATE_* environment variables.
func applyEnv(cfg *Config) error {
	if v, ok := os.LookupEnv("TELEGATE_LISTEN_HOST"); ok {
		cfg.ListenHost = strings.TrimSpace(v)
	}
	if err := envInt("TELEGATE_LISTEN_PORT", &cfg.ListenPort); err != nil {
		return err
	}
	if err := envBool("TELEGATE_ACK_ENABLED", &cfg.AckEnabled); err != nil {
		return err
	}
	if err := envInt("TELEGATE_ACK_MODE", &cfg.AckMode); err != nil {
		return err
	}
	if err := envSeconds("TELEGATE_IDLE_TIMEOUT_SECONDS", &cfg.IdleTimeout); err != nil {
		return err
	}
	if err := envSeconds("TELEGATE_CLASSIFICATION_TIMEOUT_SECONDS", &cfg.ClassificationTimeout); err != nil {
		return err
	}
	if err := envInt("TELEGATE_MAX_CONNECTIONS", &cfg.MaxConnections); err != nil {
		return err
	}
	if v, ok := os.LookupEnv("TELEGATE_LOG_LEVEL"); ok {
		cfg.LogLevel = strings.TrimSpace(v)
	}
	if v, ok := os.LookupEnv("TELEGATE_WEBHOOK_URL"); ok {
		cfg.WebhookURL = strings.TrimSpace(v)
	}
	if v, ok := os.LookupEnv("TELEGATE_REDIS_ADDR"); ok {
		cfg.RedisAddr = strings.TrimSpace(v)
	}
	if err := envSeconds("TELEGATE_DEVICE_CACHE_TTL_SECONDS", &cfg.DeviceCacheTTL); err != nil {
		return err
	}

	return nil
}

// envInt parses an integer environment variable into out when set.
func envInt(name string, out *int) error {
	v, ok := os.LookupEnv(name)
	if !ok {
		return nil
	}

	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return fmt.Errorf("parse %s: %w", name, err)
	}

	*out = n
	return nil
}

// envBool parses a boolean environment variable into out when set.
func envBool(name string, out *bool) error {
	v, ok := os.LookupEnv(name)
	if !ok {
		return nil
	}

	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		return fmt.Errorf("parse %s: %w", name, err)
	}

	*out = b
	return nil
}

// envSeconds parses a whole-seconds environment variable into out when set.
func envSeconds(name string, out *time.Duration) error {
	var n int
	if err := envInt(name, &n); err != nil {
		return err
	}
	if v, ok := os.LookupEnv(name); ok && v != "" {
		*out = time.Duration(n) * time.Second
	}

	return nil
}

// Validate checks the configuration for values the gateway cannot run with.
//
// Returns:
//   - An error naming the first invalid field, or nil
func (c Config) Validate() error {
	if c.ListenPort <= 0 || c.ListenPort > 65535 {
		return fmt.Errorf("listen_port %d out of range", c.ListenPort)
	}
	if !protocol.AckMode(c.AckMode).Valid() {
		return fmt.Errorf("ack_mode %d unknown (0=never, 1=verify, 2=always)", c.AckMode)
	}
	if c.MaxConnections <= 0 {
		return fmt.Errorf("max_connections must be positive, got %d", c.MaxConnections)
	}
	if c.IdleTimeout <= 0 {
		return fmt.Errorf("idle_timeout_seconds must be positive")
	}
	if c.ClassificationTimeout <= 0 {
		return fmt.Errorf("classification_timeout_seconds must be positive")
	}

	return nil
}

// ListenAddr returns the "host:port" the gateway should bind.
//
// Returns:
//   - The listen address string
func (c Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.ListenHost, c.ListenPort)
}

// EffectiveAckMode reconciles the enable-ack flag with the ack mode: a
// disabled flag forces "never" even when the mode says otherwise.
//
// Returns:
//   - The acknowledgment mode the server should run with
func (c Config) EffectiveAckMode() protocol.AckMode {
	if !c.AckEnabled {
		return protocol.AckModeNever
	}

	return protocol.AckMode(c.AckMode)
}
