package config

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server   ServerConfig   `mapstructure:"server" validate:"required"`
	Database DatabaseConfig `mapstructure:"database" validate:"required"`
	Queue    QueueConfig    `mapstructure:"queue" validate:"required"`
	Worker   WorkerConfig   `mapstructure:"worker" validate:"required"`
	Grammar  GrammarConfig  `mapstructure:"grammar" validate:"required"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Auth     AuthConfig     `mapstructure:"auth"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port" validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
	// ShutdownTimeoutSeconds bounds graceful HTTP shutdown.
	ShutdownTimeoutSeconds int `mapstructure:"shutdown_timeout_seconds" validate:"gt=0"`
}

// DatabaseConfig contains settings for the durable evaluation record store.
type DatabaseConfig struct {
	URL string `mapstructure:"url" validate:"required,url"`
	// MaxOpenConns caps the connection pool shared by all store operations.
	MaxOpenConns int `mapstructure:"max_open_conns" validate:"gt=0"`
	// ConnectTimeoutSeconds bounds the retrying connect at start-up.
	ConnectTimeoutSeconds int `mapstructure:"connect_timeout_seconds" validate:"gt=0"`
}

// QueueConfig contains settings for the job broker and the retry policy
// attached to every enqueued job.
type QueueConfig struct {
	// URL is the broker database. It may point at the same server as
	// Database.URL; health reporting treats them independently.
	URL  string `mapstructure:"url" validate:"required,url"`
	Name string `mapstructure:"name" validate:"required"`

	MaxAttempts   int `mapstructure:"max_attempts" validate:"gte=1"`
	BackoffBaseMS int `mapstructure:"backoff_base_ms" validate:"gte=0"`

	// RetainCompleted and RetainFailed bound the finished-job history per queue.
	RetainCompleted int `mapstructure:"retain_completed" validate:"gte=0"`
	RetainFailed    int `mapstructure:"retain_failed" validate:"gte=0"`
}

// WorkerConfig contains settings for worker processes.
type WorkerConfig struct {
	// Concurrency is the number of jobs a single worker process runs at once.
	Concurrency         int `mapstructure:"concurrency" validate:"gte=1"`
	PollIntervalMS      int `mapstructure:"poll_interval_ms" validate:"gt=0"`
	LeaseSeconds        int `mapstructure:"lease_seconds" validate:"gt=0"`
	StalledCheckSeconds int `mapstructure:"stalled_check_seconds" validate:"gt=0"`
	// MetricsPort exposes /metrics from worker processes; 0 disables it.
	MetricsPort int `mapstructure:"metrics_port" validate:"gte=0,lt=65536"`
}

// GrammarConfig contains settings for the grammar-checking collaborator.
type GrammarConfig struct {
	URL               string  `mapstructure:"url" validate:"required,url"`
	APIKey            string  `mapstructure:"api_key"`
	TimeoutSeconds    int     `mapstructure:"timeout_seconds" validate:"gt=0"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second" validate:"gt=0"`
	DefaultLanguage   string  `mapstructure:"default_language" validate:"required"`
}

// StorageConfig contains settings for audio source validation.
type StorageConfig struct {
	// ProbeEnabled turns on the remote existence check for audio sources.
	ProbeEnabled bool `mapstructure:"probe_enabled"`
	// BucketAllowlist restricts audio sources to a single bucket when set.
	BucketAllowlist string `mapstructure:"bucket_allowlist"`
	Region          string `mapstructure:"region"`
}

// AuthConfig contains API-key gating settings. An empty key disables the gate.
type AuthConfig struct {
	APIKey string `mapstructure:"api_key"`
}
