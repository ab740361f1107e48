package redis

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/hoanhv-vvt/thamdinh-extensions/redis/config"
)

// Server consumes tasks.
type Server struct {
	server *asynq.Server
	cfg    *config.RedisConfig
	mu     sync.Mutex
}

// RetryDelay backs off exponentially from one second, capped by the retry
// interval.
func RetryDelay(cfg *config.RedisConfig, n int) time.Duration {
	delay := time.Second << min(n, 30)
	if delay > cfg.RetryInterval {
		delay = cfg.RetryInterval
	}

	return delay
}

func NewServer(cfg *config.RedisConfig, log *zap.Logger) *Server {
	redisOpt := asynq.RedisClientOpt{
		Addr:         cfg.GetRedisAddr(),
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
		PoolSize:     10,
	}

	srv := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: cfg.Workers,
			RetryDelayFunc: func(n int, err error, task *asynq.Task) time.Duration {
				delay := RetryDelay(cfg, n)

				log.Warn("task failed, retrying",
					zap.String("type", task.Type()),
					zap.Int("retry", n),
					zap.Duration("delay", delay),
					zap.Error(err),
				)

				return delay
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(_ context.Context, task *asynq.Task, err error) {
				log.Error("task error", zap.String("type", task.Type()), zap.Error(err))
			}),
			Queues:         cfg.QueuePriorities,
			StrictPriority: true,
			Logger:         log.Sugar(),
		},
	)

	return &Server{
		server: srv,
		cfg:    cfg,
	}
}

// Start begins processing in the background.
func (s *Server) Start(mux *asynq.ServeMux) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.server.Start(mux); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

// Shutdown waits for in-flight tasks up to asynq's shutdown timeout.
func (s *Server) Shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.server.Shutdown()
}
