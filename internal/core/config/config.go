// Package config provides configuration management for quotekeeper services.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// Config is the full service configuration.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Quotes   QuotesConfig
	Cache    CacheConfig
	Events   EventsConfig
	Tracing  TracingConfig
}

// ServerConfig holds listener settings for the gRPC and HTTP front ends.
type ServerConfig struct {
	GRPCHost       string
	GRPCPort       int
	HTTPHost       string
	HTTPPort       int
	RequestTimeout time.Duration
	AllowedOrigins []string
}

// DatabaseConfig locates the store. URL is sqlite://path or postgres://...
type DatabaseConfig struct {
	URL string
}

// QuotesConfig controls quote handling in the service layer.
type QuotesConfig struct {
	// Save persists every calculated quote.
	Save bool
	// EnforceRuleDates re-checks rule start/end dates at calculation time.
	EnforceRuleDates bool
}

// CacheConfig selects the options cache backend.
type CacheConfig struct {
	Backend       string // memory or redis
	OptionsTTL    time.Duration
	RedisAddr     string
	RedisDB       int
	RedisPassword string // QK_REDIS_PASSWORD only
}

// EventsConfig selects the event publisher.
type EventsConfig struct {
	Backend  string // none, memory or amqp
	Exchange string
	AMQPURL  string // QK_AMQP_URL only
}

// TracingConfig enables OpenTelemetry export.
type TracingConfig struct {
	Enabled     bool
	Endpoint    string
	ServiceName string
}

// Default returns configuration with default values.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			GRPCHost:       "0.0.0.0",
			GRPCPort:       50051,
			HTTPHost:       "0.0.0.0",
			HTTPPort:       8080,
			RequestTimeout: 30 * time.Second,
			AllowedOrigins: []string{"*"},
		},
		Quotes: QuotesConfig{
			Save:             true,
			EnforceRuleDates: true,
		},
		Cache: CacheConfig{
			Backend:    "memory",
			OptionsTTL: 10 * time.Minute,
			RedisAddr:  "localhost:6379",
		},
		Events: EventsConfig{
			Backend:  "none",
			Exchange: "quotekeeper",
		},
		Tracing: TracingConfig{
			Endpoint:    "http://localhost:14268/api/traces",
			ServiceName: "quotekeeper",
		},
	}
}

// GRPCAddr is host:port for the gRPC listener.
func (c ServerConfig) GRPCAddr() string {
	return fmt.Sprintf("%s:%d", c.GRPCHost, c.GRPCPort)
}

// HTTPAddr is host:port for the HTTP listener.
func (c ServerConfig) HTTPAddr() string {
	return fmt.Sprintf("%s:%d", c.HTTPHost, c.HTTPPort)
}

// Secret environment variables. These are never read from config files.
const (
	EnvRedisPassword = "QK_REDIS_PASSWORD"
	EnvAMQPURL       = "QK_AMQP_URL"
)

// applySecrets copies environment-only secrets into cfg.
func applySecrets(cfg *Config) {
	cfg.Cache.RedisPassword = strings.TrimSpace(os.Getenv(EnvRedisPassword))
	cfg.Events.AMQPURL = strings.TrimSpace(os.Getenv(EnvAMQPURL))
}
