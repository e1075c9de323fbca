package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// LoadConfig loads configuration from file using viper.
// CLI flags > environment > config file > defaults precedence; flags are
// applied by the caller on the returned Config.
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v, Default())

	// Bind environment variables with QK_ prefix
	v.SetEnvPrefix("QK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if err := validateNoSecretsInConfig(v); err != nil {
		return nil, err
	}

	cfg := &Config{
		Server: ServerConfig{
			GRPCHost:       v.GetString("server.grpc_host"),
			GRPCPort:       v.GetInt("server.grpc_port"),
			HTTPHost:       v.GetString("server.http_host"),
			HTTPPort:       v.GetInt("server.http_port"),
			RequestTimeout: v.GetDuration("server.request_timeout"),
			AllowedOrigins: v.GetStringSlice("server.allowed_origins"),
		},
		Database: DatabaseConfig{
			URL: v.GetString("database.url"),
		},
		Quotes: QuotesConfig{
			Save:             v.GetBool("quotes.save"),
			EnforceRuleDates: v.GetBool("quotes.enforce_rule_dates"),
		},
		Cache: CacheConfig{
			Backend:    strings.ToLower(v.GetString("cache.backend")),
			OptionsTTL: v.GetDuration("cache.options_ttl"),
			RedisAddr:  v.GetString("cache.redis_addr"),
			RedisDB:    v.GetInt("cache.redis_db"),
		},
		Events: EventsConfig{
			Backend:  strings.ToLower(v.GetString("events.backend")),
			Exchange: v.GetString("events.exchange"),
		},
		Tracing: TracingConfig{
			Enabled:     v.GetBool("tracing.enabled"),
			Endpoint:    v.GetString("tracing.endpoint"),
			ServiceName: v.GetString("tracing.service_name"),
		},
	}
	applySecrets(cfg)

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("server.grpc_host", d.Server.GRPCHost)
	v.SetDefault("server.grpc_port", d.Server.GRPCPort)
	v.SetDefault("server.http_host", d.Server.HTTPHost)
	v.SetDefault("server.http_port", d.Server.HTTPPort)
	v.SetDefault("server.request_timeout", d.Server.RequestTimeout.String())
	v.SetDefault("server.allowed_origins", d.Server.AllowedOrigins)
	v.SetDefault("database.url", d.Database.URL)
	v.SetDefault("quotes.save", d.Quotes.Save)
	v.SetDefault("quotes.enforce_rule_dates", d.Quotes.EnforceRuleDates)
	v.SetDefault("cache.backend", d.Cache.Backend)
	v.SetDefault("cache.options_ttl", d.Cache.OptionsTTL.String())
	v.SetDefault("cache.redis_addr", d.Cache.RedisAddr)
	v.SetDefault("cache.redis_db", d.Cache.RedisDB)
	v.SetDefault("events.backend", d.Events.Backend)
	v.SetDefault("events.exchange", d.Events.Exchange)
	v.SetDefault("tracing.enabled", d.Tracing.Enabled)
	v.SetDefault("tracing.endpoint", d.Tracing.Endpoint)
	v.SetDefault("tracing.service_name", d.Tracing.ServiceName)
}

// Validate checks port ranges, positive durations and backend names.
func Validate(cfg *Config) error {
	for name, port := range map[string]int{"grpc_port": cfg.Server.GRPCPort, "http_port": cfg.Server.HTTPPort} {
		if port <= 0 || port > 65535 {
			return fmt.Errorf("%s must be between 1 and 65535, got %d", name, port)
		}
	}
	if cfg.Server.RequestTimeout <= 0 {
		return fmt.Errorf("request_timeout must be positive, got %v", cfg.Server.RequestTimeout)
	}
	if cfg.Cache.OptionsTTL < 0 {
		return fmt.Errorf("cache.options_ttl must not be negative, got %v", cfg.Cache.OptionsTTL)
	}
	switch cfg.Cache.Backend {
	case "memory", "redis":
	default:
		return fmt.Errorf("cache.backend must be memory or redis, got %q", cfg.Cache.Backend)
	}
	switch cfg.Events.Backend {
	case "none", "memory":
	case "amqp":
		if cfg.Events.AMQPURL == "" {
			return fmt.Errorf("events.backend amqp requires %s", EnvAMQPURL)
		}
	default:
		return fmt.Errorf("events.backend must be none, memory or amqp, got %q", cfg.Events.Backend)
	}
	if cfg.Tracing.Enabled && cfg.Tracing.Endpoint == "" {
		return fmt.Errorf("tracing.endpoint is required when tracing is enabled")
	}
	return nil
}

// validateNoSecretsInConfig enforces environment-only secrets (12-factor principle).
func validateNoSecretsInConfig(v *viper.Viper) error {
	if v.InConfig("cache.redis_password") {
		return fmt.Errorf("redis password not allowed in config files (use %s environment variable)", EnvRedisPassword)
	}
	if v.InConfig("events.amqp_url") {
		return fmt.Errorf("AMQP URL not allowed in config files (use %s environment variable)", EnvAMQPURL)
	}
	return nil
}
