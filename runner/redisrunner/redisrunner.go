// Package redisrunner consumes and produces harvest tasks on a redis queue.
package redisrunner

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/hibiken/asynq"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/hoanhv-vvt/thamdinh-extensions/browser"
	"github.com/hoanhv-vvt/thamdinh-extensions/redis"
	"github.com/hoanhv-vvt/thamdinh-extensions/redis/config"
	"github.com/hoanhv-vvt/thamdinh-extensions/redis/tasks"
	"github.com/hoanhv-vvt/thamdinh-extensions/runner"
	"github.com/hoanhv-vvt/thamdinh-extensions/tlmt"
)

const healthInterval = 30 * time.Second

// RedisRunner processes harvest tasks until its context ends.
type RedisRunner struct {
	cfg    *config.RedisConfig
	log    *zap.Logger
	server *redis.Server
	client *redis.Client
	driver browser.Driver
	mux    *asynq.ServeMux
}

func New(cfg *runner.Config) (*RedisRunner, error) {
	if cfg.RunMode != runner.RunModeRedis {
		return nil, fmt.Errorf("%w: %d", runner.ErrInvalidRunMode, cfg.RunMode)
	}

	redisCfg, err := config.NewRedisConfig(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create redis config: %w", err)
	}

	if cfg.Concurrency > 0 {
		redisCfg.Workers = cfg.Concurrency
	}

	if err := os.MkdirAll(cfg.DataFolder, os.ModePerm); err != nil {
		return nil, err
	}

	log := cfg.Logger.Named("redisrunner")

	client, err := redis.NewClient(context.Background(), redisCfg)
	if err != nil {
		return nil, err
	}

	driver, err := browser.New(cfg.Driver, cfg.BrowserOptions())
	if err != nil {
		_ = client.Close()

		return nil, err
	}

	opts := []tasks.HandlerOption{
		tasks.WithDataFolder(cfg.DataFolder),
		tasks.WithTaskTimeout(redisCfg.TaskTimeout),
		tasks.WithHarvestOptions(cfg.HarvestOptions()...),
		tasks.WithLogger(log.Named("tasks")),
	}

	if cfg.S3Uploader != nil {
		opts = append(opts, tasks.WithUploader(cfg.S3Uploader, cfg.S3Bucket))
	}

	mux := asynq.NewServeMux()
	tasks.NewHandler(driver, opts...).Register(mux)

	return &RedisRunner{
		cfg:    redisCfg,
		log:    log,
		server: redis.NewServer(redisCfg, log.Named("asynq")),
		client: client,
		driver: driver,
		mux:    mux,
	}, nil
}

func (r *RedisRunner) Run(ctx context.Context) error {
	r.log.Info("starting redis runner",
		zap.String("addr", r.cfg.GetRedisAddr()),
		zap.Int("workers", r.cfg.Workers),
	)

	if err := r.server.Start(r.mux); err != nil {
		return err
	}

	_ = runner.Telemetry().Send(ctx, tlmt.NewEvent("redis_runner", map[string]any{
		"workers": r.cfg.Workers,
	}))

	ticker := time.NewTicker(healthInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if !r.client.IsHealthy(ctx) {
				r.log.Warn("redis is not healthy")
			}
		}
	}
}

func (r *RedisRunner) Close(context.Context) error {
	r.log.Info("shutting down redis runner")

	r.server.Shutdown()

	return multierr.Combine(r.client.Close(), r.driver.Close())
}
