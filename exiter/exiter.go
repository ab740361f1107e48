// Package exiter ends a batch run once every seed job settled.
package exiter

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

const defaultCheckInterval = time.Second

type Exiter interface {
	SetSeedCount(int)
	SetCancelFunc(context.CancelFunc)
	// IncrSeedCompleted records settled seeds, failed ones included.
	IncrSeedCompleted(int)
	IncrSeedFailed(int)
	IncrImagesFound(int)
	Stats() Stats
	Run(context.Context)
}

type Stats struct {
	SeedCount     int
	SeedCompleted int
	SeedFailed    int
	ImagesFound   int
}

func (s Stats) Done() bool {
	return s.SeedCount > 0 && s.SeedCompleted >= s.SeedCount
}

type Option func(*exiter)

func WithLogger(l *zap.Logger) Option {
	return func(e *exiter) {
		if l != nil {
			e.log = l
		}
	}
}

// WithProgress registers fn, called from Run whenever the seed count moved.
func WithProgress(fn func(Stats)) Option {
	return func(e *exiter) {
		e.onProgress = fn
	}
}

func WithCheckInterval(d time.Duration) Option {
	return func(e *exiter) {
		if d > 0 {
			e.interval = d
		}
	}
}

type exiter struct {
	mu         sync.Mutex
	stats      Stats
	cancelFunc context.CancelFunc
	onProgress func(Stats)
	interval   time.Duration
	log        *zap.Logger
}

func New(opts ...Option) Exiter {
	ans := exiter{
		interval: defaultCheckInterval,
		log:      zap.NewNop(),
	}

	for _, opt := range opts {
		opt(&ans)
	}

	return &ans
}

func (e *exiter) SetSeedCount(val int) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.stats.SeedCount = val
}

func (e *exiter) SetCancelFunc(fn context.CancelFunc) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.cancelFunc = fn
}

func (e *exiter) IncrSeedCompleted(val int) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.stats.SeedCompleted += val
}

func (e *exiter) IncrSeedFailed(val int) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.stats.SeedFailed += val
}

func (e *exiter) IncrImagesFound(val int) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.stats.ImagesFound += val
}

func (e *exiter) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.stats
}

func (e *exiter) Run(ctx context.Context) {
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	last := -1

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats := e.Stats()

			if stats.SeedCompleted != last {
				last = stats.SeedCompleted

				if e.onProgress != nil {
					e.onProgress(stats)
				}
			}

			if !stats.Done() {
				continue
			}

			e.log.Info("all seeds settled",
				zap.Int("seeds", stats.SeedCount),
				zap.Int("failed", stats.SeedFailed),
				zap.Int("images", stats.ImagesFound),
			)

			e.mu.Lock()
			cancel := e.cancelFunc
			e.mu.Unlock()

			if cancel != nil {
				cancel()
			}

			return
		}
	}
}
