package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Config holds server configuration values.
type Config struct {
	Addr              string        `mapstructure:"addr" yaml:"addr"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	LogLevel          string        `mapstructure:"log_level" yaml:"log_level"`
	LogFile           string        `mapstructure:"log_file" yaml:"log_file"`
	MaxMessageBytes   int64         `mapstructure:"max_message_bytes" yaml:"max_message_bytes"`

	JWTSecret   string        `mapstructure:"jwt_secret" yaml:"jwt_secret"`
	JWTIssuer   string        `mapstructure:"jwt_issuer" yaml:"jwt_issuer"`
	JWTAudience string        `mapstructure:"jwt_audience" yaml:"jwt_audience"`
	JWTTTL      time.Duration `mapstructure:"jwt_ttl" yaml:"jwt_ttl"`
	JWTRequired bool          `mapstructure:"jwt_required" yaml:"jwt_required"`

	HeartbeatTimeout time.Duration `mapstructure:"heartbeat_timeout" yaml:"heartbeat_timeout"`
	RoomGracePeriod  time.Duration `mapstructure:"room_grace_period" yaml:"room_grace_period"`
	SessionQueueSize int           `mapstructure:"session_queue_size" yaml:"session_queue_size"`
	SessionPolicy    string        `mapstructure:"session_policy" yaml:"session_policy"`
	MaxParticipants  int           `mapstructure:"max_participants" yaml:"max_participants"`
	MaxClockSkew     time.Duration `mapstructure:"max_clock_skew" yaml:"max_clock_skew"`

	WSRateLimit  float64 `mapstructure:"ws_rate_limit" yaml:"ws_rate_limit"`
	WSRateBurst  int     `mapstructure:"ws_rate_burst" yaml:"ws_rate_burst"`
	ShareBaseURL string  `mapstructure:"share_base_url" yaml:"share_base_url"`

	AuditDBPath  string `mapstructure:"audit_db_path" yaml:"audit_db_path"`
	OTLPEndpoint string `mapstructure:"otlp_endpoint" yaml:"otlp_endpoint"`
	ServiceName  string `mapstructure:"service_name" yaml:"service_name"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		Addr:              ":8080",
		ReadHeaderTimeout: 5 * time.Second,
		ShutdownTimeout:   5 * time.Second,
		LogLevel:          "info",
		MaxMessageBytes:   64 * 1024,

		JWTSecret:   "change-me-in-production",
		JWTIssuer:   "meetpoint",
		JWTAudience: "meetpoint-clients",
		JWTTTL:      24 * time.Hour,

		HeartbeatTimeout: 45 * time.Second,
		RoomGracePeriod:  10 * time.Minute,
		SessionQueueSize: 64,
		SessionPolicy:    "allow",
		MaxClockSkew:     5 * time.Minute,

		WSRateLimit:  10,
		WSRateBurst:  20,
		ShareBaseURL: "http://localhost:8080",

		ServiceName: "meetpoint-server",
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
	if other.LogFile != "" {
		c.LogFile = other.LogFile
	}
	if other.AuditDBPath != "" {
		c.AuditDBPath = other.AuditDBPath
	}
	if other.OTLPEndpoint != "" {
		c.OTLPEndpoint = other.OTLPEndpoint
	}
}

// Validate rejects values the server cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.Addr == "" {
		errs = append(errs, errors.New("addr must not be empty"))
	}
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("jwt_secret must not be empty"))
	}
	if c.JWTTTL <= 0 {
		errs = append(errs, errors.New("jwt_ttl must be positive"))
	}
	if c.HeartbeatTimeout <= 0 {
		errs = append(errs, errors.New("heartbeat_timeout must be positive"))
	}
	if c.RoomGracePeriod <= 0 {
		errs = append(errs, errors.New("room_grace_period must be positive"))
	}
	if c.SessionQueueSize <= 0 {
		errs = append(errs, errors.New("session_queue_size must be positive"))
	}
	if c.MaxParticipants < 0 {
		errs = append(errs, errors.New("max_participants must not be negative"))
	}
	if c.MaxMessageBytes <= 0 {
		errs = append(errs, errors.New("max_message_bytes must be positive"))
	}
	if c.WSRateLimit < 0 || c.WSRateBurst < 0 {
		errs = append(errs, errors.New("ws_rate_limit and ws_rate_burst must not be negative"))
	}
	switch strings.ToLower(c.SessionPolicy) {
	case "", "allow", "reject":
	default:
		errs = append(errs, fmt.Errorf("session_policy %q must be allow or reject", c.SessionPolicy))
	}
	return errors.Join(errs...)
}
