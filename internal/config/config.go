package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"go.yaml.in/yaml/v2"
)

// Config holds all runtime configuration. Defaults come from this file;
// an optional YAML file overlays them; environment variables win over
// both. Only DATABASE_URL is required, and only when audit persistence is
// enabled.
type Config struct {
	// HTTP server
	HTTPPort        string        `yaml:"http_port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// Ingress admission control: a single limiter protecting the process
	// as a whole, upstream of any per-listener queue. It does not attempt
	// fairness across listeners.
	IngressRateLimit int `yaml:"ingress_rate_limit"`
	IngressBurst     int `yaml:"ingress_burst"`

	// Worker pool backing dispatch.Executor
	WorkerPoolSize      int `yaml:"worker_pool_size"`
	WorkerPoolQueueSize int `yaml:"worker_pool_queue_size"`

	// Per-listener queue and offer/poll tuning
	MaxQueueCapacity int           `yaml:"max_queue_capacity"`
	OfferTimeout     time.Duration `yaml:"offer_timeout"`
	MaxOfferAttempts int           `yaml:"max_offer_attempts"`
	PollInterval     time.Duration `yaml:"poll_interval"`

	// Webhook invoker
	WebhookTimeout time.Duration `yaml:"webhook_timeout"`

	// Audit invoker (optional: only wired when DatabaseURL is non-empty)
	DatabaseURL      string `yaml:"database_url"`
	DBMaxConns       int32  `yaml:"db_max_conns"`
	DBMinConns       int32  `yaml:"db_min_conns"`
	MigrationsSource string `yaml:"migrations_source"`

	// Metrics sampling
	MetricsSampleInterval time.Duration `yaml:"metrics_sample_interval"`
}

func defaults() Config {
	return Config{
		HTTPPort:        "8080",
		ReadTimeout:     5 * time.Second,
		WriteTimeout:    10 * time.Second,
		ShutdownTimeout: 30 * time.Second,

		IngressRateLimit: 100,
		IngressBurst:     50,

		WorkerPoolSize:      32,
		WorkerPoolQueueSize: 256,

		MaxQueueCapacity: 1000,
		OfferTimeout:     time.Minute,
		MaxOfferAttempts: 10,
		PollInterval:     10 * time.Millisecond,

		WebhookTimeout: 10 * time.Second,

		DBMaxConns: 25,
		DBMinConns: 5,

		MigrationsSource: "file://migrations",

		MetricsSampleInterval: 5 * time.Second,
	}
}

// Load builds a Config by layering, in increasing priority: built-in
// defaults, an optional YAML file named by CONFIG_FILE, and environment
// variables. An unset CONFIG_FILE is not an error — the defaults (and
// any env overrides) stand on their own — but a CONFIG_FILE that is set
// and cannot be read or parsed is.
func Load() (*Config, error) {
	cfg := defaults()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := overlayYAML(&cfg, path); err != nil {
			return nil, fmt.Errorf("config: %w", err)
		}
	}

	overlayEnv(&cfg)

	return &cfg, nil
}

func overlayYAML(cfg *Config, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file %q: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return fmt.Errorf("parse config file %q: %w", path, err)
	}
	return nil
}

func overlayEnv(cfg *Config) {
	cfg.HTTPPort = getEnv("HTTP_PORT", cfg.HTTPPort)
	cfg.ReadTimeout = getDuration("READ_TIMEOUT", cfg.ReadTimeout)
	cfg.WriteTimeout = getDuration("WRITE_TIMEOUT", cfg.WriteTimeout)
	cfg.ShutdownTimeout = getDuration("SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)

	cfg.IngressRateLimit = getInt("INGRESS_RATE_LIMIT", cfg.IngressRateLimit)
	cfg.IngressBurst = getInt("INGRESS_BURST", cfg.IngressBurst)

	cfg.WorkerPoolSize = getInt("WORKER_POOL_SIZE", cfg.WorkerPoolSize)
	cfg.WorkerPoolQueueSize = getInt("WORKER_POOL_QUEUE_SIZE", cfg.WorkerPoolQueueSize)

	cfg.MaxQueueCapacity = getInt("MAX_QUEUE_CAPACITY", cfg.MaxQueueCapacity)
	cfg.OfferTimeout = getDuration("OFFER_TIMEOUT", cfg.OfferTimeout)
	cfg.MaxOfferAttempts = getInt("MAX_OFFER_ATTEMPTS", cfg.MaxOfferAttempts)
	cfg.PollInterval = getDuration("POLL_INTERVAL", cfg.PollInterval)

	cfg.WebhookTimeout = getDuration("WEBHOOK_TIMEOUT", cfg.WebhookTimeout)

	cfg.DatabaseURL = getEnv("DATABASE_URL", cfg.DatabaseURL)
	cfg.DBMaxConns = int32(getInt("DB_MAX_CONNS", int(cfg.DBMaxConns)))
	cfg.DBMinConns = int32(getInt("DB_MIN_CONNS", int(cfg.DBMinConns)))
	cfg.MigrationsSource = getEnv("MIGRATIONS_SOURCE", cfg.MigrationsSource)

	cfg.MetricsSampleInterval = getDuration("METRICS_SAMPLE_INTERVAL", cfg.MetricsSampleInterval)
}

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultVal
}

func getDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}
