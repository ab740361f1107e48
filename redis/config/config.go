// Package config holds the redis connection and queue settings.
package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

type RedisConfig struct {
	Host            string
	Port            int
	Password        string
	DB              int
	Workers         int
	RetryInterval   time.Duration
	MaxRetries      int
	RetentionPeriod time.Duration
	TaskTimeout     time.Duration
	QueuePriorities map[string]int
}

const (
	defaultHost          = "localhost"
	defaultPort          = 6379
	defaultWorkers       = 2
	defaultRetryInterval = 5 * time.Second
	defaultMaxRetries    = 3
	defaultRetentionDays = 7
	defaultTaskTimeout   = 2 * time.Minute
	maxDB                = 15
	maxWorkers           = 100
	maxMaxRetries        = 10
	maxRetentionDays     = 365
)

const (
	QueueCritical = "critical"
	QueueDefault  = "default"
	QueueLow      = "low"
)

// DefaultQueuePriorities are the weights of the task queues.
func DefaultQueuePriorities() map[string]int {
	return map[string]int{
		QueueCritical: 6,
		QueueDefault:  3,
		QueueLow:      1,
	}
}

func Default() *RedisConfig {
	return &RedisConfig{
		Host:            defaultHost,
		Port:            defaultPort,
		Workers:         defaultWorkers,
		RetryInterval:   defaultRetryInterval,
		MaxRetries:      defaultMaxRetries,
		RetentionPeriod: defaultRetentionDays * 24 * time.Hour,
		TaskTimeout:     defaultTaskTimeout,
		QueuePriorities: DefaultQueuePriorities(),
	}
}

// NewRedisConfig builds the configuration from rawURL, when set, and the
// REDIS_* environment variables. The url wins over REDIS_HOST, REDIS_PORT,
// REDIS_PASSWORD and REDIS_DB.
func NewRedisConfig(rawURL string) (*RedisConfig, error) {
	cfg := Default()

	var err error

	cfg.Host = getEnvOrDefault("REDIS_HOST", cfg.Host)
	cfg.Password = os.Getenv("REDIS_PASSWORD")

	if cfg.Port, err = intEnv("REDIS_PORT", cfg.Port, 1, 65535); err != nil {
		return nil, err
	}

	if cfg.DB, err = intEnv("REDIS_DB", cfg.DB, 0, maxDB); err != nil {
		return nil, err
	}

	if cfg.Workers, err = intEnv("REDIS_WORKERS", cfg.Workers, 1, maxWorkers); err != nil {
		return nil, err
	}

	if cfg.MaxRetries, err = intEnv("REDIS_MAX_RETRIES", cfg.MaxRetries, 1, maxMaxRetries); err != nil {
		return nil, err
	}

	days, err := intEnv("REDIS_RETENTION_DAYS", defaultRetentionDays, 1, maxRetentionDays)
	if err != nil {
		return nil, err
	}

	cfg.RetentionPeriod = time.Duration(days) * 24 * time.Hour

	if cfg.RetryInterval, err = durationEnv("REDIS_RETRY_INTERVAL", cfg.RetryInterval, time.Second, time.Hour); err != nil {
		return nil, err
	}

	if cfg.TaskTimeout, err = durationEnv("REDIS_TASK_TIMEOUT", cfg.TaskTimeout, 10*time.Second, time.Hour); err != nil {
		return nil, err
	}

	if rawURL != "" {
		if err := cfg.applyURL(rawURL); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// applyURL reads host, port, password and db from a redis:// url.
func (c *RedisConfig) applyURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid redis url: %w", err)
	}

	if u.Scheme != "redis" && u.Scheme != "rediss" {
		return fmt.Errorf("invalid redis url scheme %q", u.Scheme)
	}

	if host := u.Hostname(); host != "" {
		c.Host = host
	}

	c.Port = defaultPort

	if port := u.Port(); port != "" {
		if c.Port, err = parseInt("port", port, 1, 65535); err != nil {
			return err
		}
	}

	if password, ok := u.User.Password(); ok {
		c.Password = password
	}

	if db := strings.TrimPrefix(u.Path, "/"); db != "" {
		if c.DB, err = parseInt("db", db, 0, maxDB); err != nil {
			return err
		}
	}

	return nil
}

func (c *RedisConfig) GetRedisAddr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

func intEnv(key string, def, lo, hi int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}

	return parseInt(key, v, lo, hi)
}

func parseInt(name, v string, lo, hi int) (int, error) {
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be a number: %w", name, err)
	}

	if n < lo || n > hi {
		return 0, fmt.Errorf("%s must be between %d and %d", name, lo, hi)
	}

	return n, nil
}

func durationEnv(key string, def, lo, hi time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}

	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration: %w", key, err)
	}

	if d < lo || d > hi {
		return 0, fmt.Errorf("%s must be between %v and %v", key, lo, hi)
	}

	return d, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}

	return defaultValue
}
