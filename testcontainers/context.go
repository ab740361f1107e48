// Package testcontainers starts throwaway redis and postgres servers for
// integration tests. Docker must be available. Tests using it are skipped
// with -short.
package testcontainers

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

const defaultTimeout = 2 * time.Minute

// TestContext owns the containers of a test and clients connected to them.
type TestContext struct {
	t *testing.T

	Ctx        context.Context
	cancelFunc context.CancelFunc
	cleanup    []func()

	Redis       *redis.Client
	RedisConfig *RedisConfig

	DB             *pgxpool.Pool
	PostgresConfig *PostgresConfig
}

type services struct {
	redis    bool
	postgres bool
}

type Option func(*services)

// WithPostgres also starts a postgres container.
func WithPostgres() Option {
	return func(s *services) {
		s.postgres = true
	}
}

// WithoutRedis skips the redis container.
func WithoutRedis() Option {
	return func(s *services) {
		s.redis = false
	}
}

// NewTestContext starts a redis container, and the services enabled by opts.
// It skips the test in short mode.
func NewTestContext(t *testing.T, opts ...Option) *TestContext {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)

	tc := &TestContext{
		t:          t,
		Ctx:        ctx,
		cancelFunc: cancel,
	}

	svc := services{redis: true}

	for _, opt := range opts {
		opt(&svc)
	}

	if svc.redis {
		if err := tc.initRedis(); err != nil {
			tc.Cleanup()
			t.Fatalf("failed to initialize redis: %v", err)
		}
	}

	if svc.postgres {
		if err := tc.initPostgres(); err != nil {
			tc.Cleanup()
			t.Fatalf("failed to initialize postgres: %v", err)
		}
	}

	return tc
}

// WithTestContext runs fn with a fresh context and cleans up afterwards.
func WithTestContext(t *testing.T, fn func(*TestContext), opts ...Option) {
	t.Helper()

	ctx := NewTestContext(t, opts...)
	defer ctx.Cleanup()

	fn(ctx)
}

// Cleanup releases resources in reverse order of creation.
func (tc *TestContext) Cleanup() {
	for i := len(tc.cleanup) - 1; i >= 0; i-- {
		tc.cleanup[i]()
	}

	tc.cleanup = nil
	tc.cancelFunc()
}

func (tc *TestContext) addCleanup(fn func()) {
	tc.cleanup = append(tc.cleanup, fn)
}

func (tc *TestContext) initRedis() error {
	container, err := NewRedisContainer(tc.Ctx)
	if err != nil {
		return fmt.Errorf("failed to create redis container: %w", err)
	}

	tc.addCleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			tc.t.Errorf("failed to terminate redis container: %v", err)
		}
	})

	tc.Redis = redis.NewClient(&redis.Options{
		Addr:     container.GetAddress(),
		Password: container.Password,
	})

	tc.addCleanup(func() {
		_ = tc.Redis.Close()
	})

	tc.RedisConfig = &RedisConfig{
		Host:     container.Host,
		Port:     container.Port,
		Password: container.Password,
	}

	return nil
}

func (tc *TestContext) initPostgres() error {
	container, err := NewPostgresContainer(tc.Ctx)
	if err != nil {
		return fmt.Errorf("failed to create postgres container: %w", err)
	}

	tc.addCleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			tc.t.Errorf("failed to terminate postgres container: %v", err)
		}
	})

	cfg := container.Config

	pool, err := pgxpool.New(tc.Ctx, cfg.DSN())
	if err != nil {
		return fmt.Errorf("failed to connect to postgres: %w", err)
	}

	tc.addCleanup(pool.Close)

	if err := pool.Ping(tc.Ctx); err != nil {
		return fmt.Errorf("failed to ping postgres: %w", err)
	}

	tc.DB = pool
	tc.PostgresConfig = &cfg

	return nil
}
