// Package redis connects the harvest queue to a redis server through asynq.
package redis

import (
	"context"
	"fmt"
	"sync"

	"github.com/hibiken/asynq"
	goredis "github.com/redis/go-redis/v9"

	"github.com/hoanhv-vvt/thamdinh-extensions/redis/config"
)

// Client enqueues tasks.
type Client struct {
	client *asynq.Client
	rdb    *goredis.Client
	cfg    *config.RedisConfig
	mu     sync.RWMutex
}

func clientOpt(cfg *config.RedisConfig) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     cfg.GetRedisAddr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	}
}

// NewClient connects to redis and fails when the server does not answer.
func NewClient(ctx context.Context, cfg *config.RedisConfig) (*Client, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:     cfg.GetRedisAddr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()

		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.GetRedisAddr(), err)
	}

	return &Client{
		client: asynq.NewClient(clientOpt(cfg)),
		rdb:    rdb,
		cfg:    cfg,
	}, nil
}

// EnqueueTask enqueues a task with the given type and payload.
// Tasks are retained for the configured retention period unless opts say
// otherwise.
func (c *Client) EnqueueTask(ctx context.Context, taskType string, payload []byte, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	defaults := []asynq.Option{
		asynq.MaxRetry(c.cfg.MaxRetries),
		asynq.Timeout(c.cfg.TaskTimeout),
		asynq.Retention(c.cfg.RetentionPeriod),
	}

	task := asynq.NewTask(taskType, payload)

	info, err := c.client.EnqueueContext(ctx, task, append(defaults, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("failed to enqueue task: %w", err)
	}

	return info, nil
}

// IsHealthy pings the redis server.
func (c *Client) IsHealthy(ctx context.Context) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.rdb.Ping(ctx).Err() == nil
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	err := c.client.Close()
	if rerr := c.rdb.Close(); err == nil {
		err = rerr
	}

	if err != nil {
		return fmt.Errorf("failed to close redis client: %w", err)
	}

	return nil
}
