package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable the loader reads,
// e.g. EVAL_DATABASE_URL or EVAL_QUEUE_MAX_ATTEMPTS.
const EnvPrefix = "EVAL"

// setDefaults registers the default value of every configuration key.
// Registering every key is also what lets viper bind the matching
// environment variable during Unmarshal.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.shutdown_timeout_seconds", 10)

	v.SetDefault("database.url", "")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.connect_timeout_seconds", 30)

	v.SetDefault("queue.url", "")
	v.SetDefault("queue.name", "evaluation")
	v.SetDefault("queue.max_attempts", 3)
	v.SetDefault("queue.backoff_base_ms", 2000)
	v.SetDefault("queue.retain_completed", 1000)
	v.SetDefault("queue.retain_failed", 1000)

	v.SetDefault("worker.concurrency", 1)
	v.SetDefault("worker.poll_interval_ms", 500)
	v.SetDefault("worker.lease_seconds", 300)
	v.SetDefault("worker.stalled_check_seconds", 30)
	v.SetDefault("worker.metrics_port", 0)

	v.SetDefault("grammar.url", "https://api.languagetool.org/v2/check")
	v.SetDefault("grammar.api_key", "")
	v.SetDefault("grammar.timeout_seconds", 10)
	v.SetDefault("grammar.requests_per_second", 2)
	v.SetDefault("grammar.default_language", "en-US")

	v.SetDefault("storage.probe_enabled", false)
	v.SetDefault("storage.bucket_allowlist", "")
	v.SetDefault("storage.region", "us-east-1")

	v.SetDefault("auth.api_key", "")
}

// Load configuration from environment variables and optionally a config file.
// Environment variables take precedence over values from config files.
// Returns a populated Config struct or an error if loading/validation fails.
func Load() (*Config, error) {
	return LoadFrom(viper.New())
}

// LoadFrom loads configuration using the provided viper instance. Tests use it
// to inject values without touching the process environment.
func LoadFrom(v *viper.Viper) (*Config, error) {
	setDefaults(v)

	// An explicit file set by the caller wins over the ./config.yaml lookup.
	if v.ConfigFileUsed() == "" {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshalling config: %w", err)
	}

	// The broker shares the record database unless configured separately.
	if cfg.Queue.URL == "" {
		cfg.Queue.URL = cfg.Database.URL
	}

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}
