package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/kiranshivaraju/consentscan/pkg/models"
	"github.com/robfig/cron/v3"
	"golang.org/x/crypto/bcrypt"
)

// Config holds all configuration for the consentscan server and workers.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Queue     QueueConfig
	Worker    WorkerConfig
	Retention RetentionConfig
	API       APIConfig
	Analyzer  AnalyzerConfig
}

type ServerConfig struct {
	Port     int
	Env      string
	LogLevel string
}

type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	URL string
}

type QueueConfig struct {
	// PollTimeout bounds each blocking pop.
	PollTimeout time.Duration
}

type WorkerConfig struct {
	Name   string
	Queues []models.Priority
	// Concurrency loops service Queues in strict order. The per-tier counts add
	// loops dedicated to a single tier.
	Concurrency        int
	ConcurrencyHigh    int
	ConcurrencyDefault int
	ConcurrencyLow     int
	// MetricsAddr is where `worker run` serves /metrics. Empty disables it.
	MetricsAddr string
}

type RetentionConfig struct {
	Window    time.Duration
	Schedule  string
	OrphanAge time.Duration
}

type APIConfig struct {
	SubmitTimeout   time.Duration
	StatusCacheTTL  time.Duration
	RateLimitPerMin int
	// APIKeyHash is a bcrypt hash. Empty disables authentication.
	APIKeyHash string
}

type AnalyzerConfig struct {
	Kind string
	URL  string
	// Timeout is an optional per-job deadline. Zero means none.
	Timeout        time.Duration
	RequestTimeout time.Duration
}

var validAnalyzers = map[string]bool{
	"heuristic": true,
	"remote":    true,
}

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Load reads configuration from environment variables and returns a validated Config.
// Returns an error with a descriptive message if any required value is missing or invalid.
func Load() (*Config, error) {
	env := &envReader{}

	queues, queuesErr := models.ParsePriorities(env.str("WORKER_QUEUES", "high,default,low"))
	if queuesErr != nil {
		env.fail("WORKER_QUEUES", queuesErr)
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:     env.integer("CONSENTSCAN_PORT", 8080),
			Env:      env.str("CONSENTSCAN_ENV", "development"),
			LogLevel: strings.ToLower(env.str("LOG_LEVEL", "info")),
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    env.integer("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    env.integer("DATABASE_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: env.duration("DATABASE_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			URL: os.Getenv("REDIS_URL"),
		},
		Queue: QueueConfig{
			PollTimeout: env.duration("QUEUE_POLL_TIMEOUT", 5*time.Second),
		},
		Worker: WorkerConfig{
			Name:               env.str("WORKER_NAME", defaultWorkerName()),
			Queues:             queues,
			Concurrency:        env.integer("WORKER_CONCURRENCY", 2),
			ConcurrencyHigh:    env.integer("WORKER_CONCURRENCY_HIGH", 0),
			ConcurrencyDefault: env.integer("WORKER_CONCURRENCY_DEFAULT", 0),
			ConcurrencyLow:     env.integer("WORKER_CONCURRENCY_LOW", 0),
			MetricsAddr:        os.Getenv("WORKER_METRICS_ADDR"),
		},
		Retention: RetentionConfig{
			Window:    env.duration("RETENTION_WINDOW", 168*time.Hour),
			Schedule:  env.str("SWEEP_SCHEDULE", "@daily"),
			OrphanAge: env.duration("ORPHAN_AGE", time.Hour),
		},
		API: APIConfig{
			SubmitTimeout:   env.duration("SUBMIT_TIMEOUT", 10*time.Second),
			StatusCacheTTL:  env.duration("STATUS_CACHE_TTL", 5*time.Minute),
			RateLimitPerMin: env.integer("RATE_LIMIT_PER_MIN", 60),
			APIKeyHash:      os.Getenv("API_KEY_HASH"),
		},
		Analyzer: AnalyzerConfig{
			Kind:           strings.ToLower(env.str("ANALYZER", "heuristic")),
			URL:            os.Getenv("ANALYZER_URL"),
			Timeout:        env.duration("ANALYZER_TIMEOUT", 0),
			RequestTimeout: env.duration("REQUEST_TIMEOUT", 30*time.Second),
		},
	}

	if env.err != nil {
		return nil, env.err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.Redis.URL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("CONSENTSCAN_PORT must be between 1 and 65535; got %d", c.Server.Port)
	}
	if !validLogLevels[c.Server.LogLevel] {
		return fmt.Errorf("LOG_LEVEL must be one of debug, info, warn, error; got %q", c.Server.LogLevel)
	}

	if c.Queue.PollTimeout <= 0 {
		return fmt.Errorf("QUEUE_POLL_TIMEOUT must be positive; got %s", c.Queue.PollTimeout)
	}

	if c.Worker.Concurrency < 0 || c.Worker.ConcurrencyHigh < 0 ||
		c.Worker.ConcurrencyDefault < 0 || c.Worker.ConcurrencyLow < 0 {
		return fmt.Errorf("WORKER_CONCURRENCY values must not be negative")
	}

	if c.Retention.Window <= 0 {
		return fmt.Errorf("RETENTION_WINDOW must be positive; got %s", c.Retention.Window)
	}
	if _, err := cron.ParseStandard(c.Retention.Schedule); err != nil {
		return fmt.Errorf("SWEEP_SCHEDULE is not a valid cron spec %q: %w", c.Retention.Schedule, err)
	}
	if c.Retention.OrphanAge <= 0 {
		return fmt.Errorf("ORPHAN_AGE must be positive; got %s", c.Retention.OrphanAge)
	}

	if c.API.RateLimitPerMin <= 0 {
		return fmt.Errorf("RATE_LIMIT_PER_MIN must be positive; got %d", c.API.RateLimitPerMin)
	}

	if !validAnalyzers[c.Analyzer.Kind] {
		return fmt.Errorf("ANALYZER must be one of heuristic, remote; got %q", c.Analyzer.Kind)
	}
	if c.Analyzer.Kind == "remote" {
		if c.Analyzer.URL == "" {
			return fmt.Errorf("ANALYZER_URL is required when ANALYZER is remote")
		}
		if !strings.HasPrefix(c.Analyzer.URL, "http://") && !strings.HasPrefix(c.Analyzer.URL, "https://") {
			return fmt.Errorf("ANALYZER_URL must start with http:// or https://, got %q", c.Analyzer.URL)
		}
	}
	if c.API.APIKeyHash != "" {
		if _, err := bcrypt.Cost([]byte(c.API.APIKeyHash)); err != nil {
			return fmt.Errorf("API_KEY_HASH must be a bcrypt hash: %w", err)
		}
	}

	if c.Analyzer.Timeout < 0 {
		return fmt.Errorf("ANALYZER_TIMEOUT must not be negative; got %s", c.Analyzer.Timeout)
	}

	return nil
}

// SlogLevel maps LogLevel onto a slog.Level. Unknown values map to info.
func (s ServerConfig) SlogLevel() slog.Level {
	switch s.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func defaultWorkerName() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "worker"
	}
	return fmt.Sprintf("%s-%d", host, os.Getpid())
}

// envReader keeps the first parse failure so Load can report it by variable name.
type envReader struct {
	err error
}

func (e *envReader) fail(key string, err error) {
	if e.err == nil {
		e.err = fmt.Errorf("%s: %w", key, err)
	}
}

func (e *envReader) str(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func (e *envReader) integer(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		e.fail(key, fmt.Errorf("invalid integer %q", v))
		return defaultVal
	}
	return i
}

// duration accepts Go duration strings and bare integers as seconds.
func (e *envReader) duration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.fail(key, fmt.Errorf("invalid duration %q", v))
		return defaultVal
	}
	return d
}
