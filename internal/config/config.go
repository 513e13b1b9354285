package config

import (
	"errors"
	"time"
)

// Config holds server configuration values.
type Config struct {
	Addr              string        `mapstructure:"addr" yaml:"addr"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	LogLevel          string        `mapstructure:"log_level" yaml:"log_level"`
	LogFormat         string        `mapstructure:"log_format" yaml:"log_format"`

	DatabasePath string `mapstructure:"database_path" yaml:"database_path"`

	JWTSecret    string `mapstructure:"jwt_secret" yaml:"jwt_secret"`
	JWTIssuer    string `mapstructure:"jwt_issuer" yaml:"jwt_issuer"`
	JWTAudience  string `mapstructure:"jwt_audience" yaml:"jwt_audience"`
	RequireToken bool   `mapstructure:"require_token" yaml:"require_token"`

	AllowedOrigins   []string `mapstructure:"allowed_origins" yaml:"allowed_origins"`
	ReadLimit        int64    `mapstructure:"read_limit" yaml:"read_limit"`
	SendBuffer       int      `mapstructure:"send_buffer" yaml:"send_buffer"`
	MessageRateLimit int      `mapstructure:"message_rate_limit" yaml:"message_rate_limit"`

	IdleCheckInterval time.Duration `mapstructure:"idle_check_interval" yaml:"idle_check_interval"`
	IdleTimeout       time.Duration `mapstructure:"idle_timeout" yaml:"idle_timeout"`
	JoinTimeout       time.Duration `mapstructure:"join_timeout" yaml:"join_timeout"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		Addr:              ":8080",
		ReadHeaderTimeout: 5 * time.Second,
		ShutdownTimeout:   5 * time.Second,
		LogLevel:          "info",
		LogFormat:         "console",
		DatabasePath:      "wirespace.db",
		JWTIssuer:         "wirespace",
		JWTAudience:       "wirespace",
		ReadLimit:         32768,
		SendBuffer:        64,
		MessageRateLimit:  600,
		IdleCheckInterval: time.Minute,
		IdleTimeout:       5 * time.Minute,
		JoinTimeout:       5 * time.Second,
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
	if other.DatabasePath != "" {
		c.DatabasePath = other.DatabasePath
	}
	if other.JWTSecret != "" {
		c.JWTSecret = other.JWTSecret
	}
	if other.RequireToken {
		c.RequireToken = true
	}
	if other.IdleCheckInterval != 0 {
		c.IdleCheckInterval = other.IdleCheckInterval
	}
	if other.IdleTimeout != 0 {
		c.IdleTimeout = other.IdleTimeout
	}
	if other.JoinTimeout != 0 {
		c.JoinTimeout = other.JoinTimeout
	}
}

// Validate reports the first setting that cannot be used to run the server.
func (c Config) Validate() error {
	switch {
	case c.Addr == "":
		return errors.New("addr is required")
	case c.LogFormat != "console" && c.LogFormat != "json":
		return errors.New("log_format must be console or json")
	case c.DatabasePath == "":
		return errors.New("database_path is required")
	case c.RequireToken && c.JWTSecret == "":
		return errors.New("jwt_secret is required when require_token is set")
	case c.ReadLimit <= 0:
		return errors.New("read_limit must be positive")
	case c.SendBuffer <= 0:
		return errors.New("send_buffer must be positive")
	case c.MessageRateLimit < 0:
		return errors.New("message_rate_limit must not be negative")
	case c.IdleCheckInterval <= 0:
		return errors.New("idle_check_interval must be positive")
	case c.IdleTimeout <= 0:
		return errors.New("idle_timeout must be positive")
	case c.JoinTimeout <= 0:
		return errors.New("join_timeout must be positive")
	}
	return nil
}
