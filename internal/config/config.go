package config

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/samber/lo"
)

// Config holds server configuration values.
type Config struct {
	Addr              string        `mapstructure:"addr" yaml:"addr"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`

	LogLevel  string `mapstructure:"log_level" yaml:"log_level"`
	LogFormat string `mapstructure:"log_format" yaml:"log_format"` // console or json

	DatabasePath string `mapstructure:"database_path" yaml:"database_path"`

	JWTSecret   string        `mapstructure:"jwt_secret" yaml:"jwt_secret"`
	JWTIssuer   string        `mapstructure:"jwt_issuer" yaml:"jwt_issuer"`
	JWTAudience string        `mapstructure:"jwt_audience" yaml:"jwt_audience"`
	TokenTTL    time.Duration `mapstructure:"token_ttl" yaml:"token_ttl"`

	// Websocket connections.
	WriteTimeout       time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
	PingInterval       time.Duration `mapstructure:"ping_interval" yaml:"ping_interval"`
	MaxMessageBytes    int64         `mapstructure:"max_message_bytes" yaml:"max_message_bytes"`
	RateLimitPerMinute int           `mapstructure:"rate_limit_per_minute" yaml:"rate_limit_per_minute"`

	// Advertised to polling clients.
	PollInterval time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`

	MembershipTimeout  time.Duration `mapstructure:"membership_timeout" yaml:"membership_timeout"`
	BreakerMaxFailures uint32        `mapstructure:"breaker_max_failures" yaml:"breaker_max_failures"`
	BreakerOpenTimeout time.Duration `mapstructure:"breaker_open_timeout" yaml:"breaker_open_timeout"`

	// Empty RedisAddr keeps fanout local to this process.
	RedisAddr    string `mapstructure:"redis_addr" yaml:"redis_addr"`
	RedisChannel string `mapstructure:"redis_channel" yaml:"redis_channel"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		Addr:               ":8080",
		ReadHeaderTimeout:  5 * time.Second,
		ShutdownTimeout:    5 * time.Second,
		LogLevel:           "info",
		LogFormat:          "console",
		DatabasePath:       "wirechat.db",
		JWTSecret:          "dev-secret-change-me",
		JWTIssuer:          "wirechat",
		JWTAudience:        "wirechat-clients",
		TokenTTL:           24 * time.Hour,
		WriteTimeout:       5 * time.Second,
		PingInterval:       30 * time.Second,
		MaxMessageBytes:    64 << 10,
		RateLimitPerMinute: 120,
		PollInterval:       10 * time.Second,
		MembershipTimeout:  2 * time.Second,
		BreakerMaxFailures: 5,
		BreakerOpenTimeout: 30 * time.Second,
		RedisChannel:       "wirechat:fanout",
	}
}

// UpdateFrom overwrites non-zero values from other config into receiver.
func (c *Config) UpdateFrom(other Config) {
	if other.Addr != "" {
		c.Addr = other.Addr
	}
	if other.ReadHeaderTimeout != 0 {
		c.ReadHeaderTimeout = other.ReadHeaderTimeout
	}
	if other.ShutdownTimeout != 0 {
		c.ShutdownTimeout = other.ShutdownTimeout
	}
	if other.LogLevel != "" {
		c.LogLevel = other.LogLevel
	}
	if other.LogFormat != "" {
		c.LogFormat = other.LogFormat
	}
	if other.DatabasePath != "" {
		c.DatabasePath = other.DatabasePath
	}
	if other.RedisAddr != "" {
		c.RedisAddr = other.RedisAddr
	}
}

// Validate rejects configurations the server cannot run with.
func (c Config) Validate() error {
	var errs []error
	if c.Addr == "" {
		errs = append(errs, errors.New("addr is required"))
	}
	if c.DatabasePath == "" {
		errs = append(errs, errors.New("database_path is required"))
	}
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("jwt_secret is required"))
	}
	if c.LogFormat != "console" && c.LogFormat != "json" {
		errs = append(errs, fmt.Errorf("log_format %q: want console or json", c.LogFormat))
	}

	positive := map[string]time.Duration{
		"read_header_timeout":  c.ReadHeaderTimeout,
		"shutdown_timeout":     c.ShutdownTimeout,
		"token_ttl":            c.TokenTTL,
		"write_timeout":        c.WriteTimeout,
		"ping_interval":        c.PingInterval,
		"poll_interval":        c.PollInterval,
		"membership_timeout":   c.MembershipTimeout,
		"breaker_open_timeout": c.BreakerOpenTimeout,
	}
	for _, key := range sortedKeys(positive) {
		if positive[key] <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive", key))
		}
	}
	if c.MaxMessageBytes <= 0 {
		errs = append(errs, errors.New("max_message_bytes must be positive"))
	}
	if c.RateLimitPerMinute < 0 {
		errs = append(errs, errors.New("rate_limit_per_minute must not be negative"))
	}
	if c.BreakerMaxFailures == 0 {
		errs = append(errs, errors.New("breaker_max_failures must be positive"))
	}
	return errors.Join(errs...)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := lo.Keys(m)
	sort.Strings(keys)
	return keys
}
