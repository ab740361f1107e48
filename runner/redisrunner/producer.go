package redisrunner

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hoanhv-vvt/thamdinh-extensions/deduper"
	"github.com/hoanhv-vvt/thamdinh-extensions/harvest"
	"github.com/hoanhv-vvt/thamdinh-extensions/redis"
	"github.com/hoanhv-vvt/thamdinh-extensions/redis/config"
	"github.com/hoanhv-vvt/thamdinh-extensions/redis/tasks"
	"github.com/hoanhv-vvt/thamdinh-extensions/runner"
)

// Enqueuer is the producing side of the queue.
type Enqueuer interface {
	EnqueueTask(ctx context.Context, taskType string, payload []byte) error
}

type clientEnqueuer struct {
	client *redis.Client
}

func (e clientEnqueuer) EnqueueTask(ctx context.Context, taskType string, payload []byte) error {
	_, err := e.client.EnqueueTask(ctx, taskType, payload)

	return err
}

// Producer enqueues one harvest task per input address and exits.
type Producer struct {
	cfg    *runner.Config
	log    *zap.Logger
	client *redis.Client
	queue  Enqueuer
}

func NewProducer(cfg *runner.Config) (*Producer, error) {
	if cfg.RunMode != runner.RunModeRedisProduce {
		return nil, fmt.Errorf("%w: %d", runner.ErrInvalidRunMode, cfg.RunMode)
	}

	redisCfg, err := config.NewRedisConfig(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create redis config: %w", err)
	}

	client, err := redis.NewClient(context.Background(), redisCfg)
	if err != nil {
		return nil, err
	}

	return &Producer{
		cfg:    cfg,
		log:    cfg.Logger.Named("producer"),
		client: client,
		queue:  clientEnqueuer{client: client},
	}, nil
}

// NewProducerWithQueue is NewProducer over an existing queue.
func NewProducerWithQueue(cfg *runner.Config, queue Enqueuer) *Producer {
	return &Producer{
		cfg:   cfg,
		log:   cfg.Logger.Named("producer"),
		queue: queue,
	}
}

func (p *Producer) Run(ctx context.Context) error {
	f, err := os.Open(p.cfg.InputFile)
	if err != nil {
		return err
	}

	defer f.Close()

	seeds, err := runner.ParseSeeds(f, deduper.New())
	if err != nil {
		return err
	}

	maxImages := harvest.ClampMaxImages(p.cfg.MaxImages)

	for _, seed := range seeds {
		jobID := seed.ID
		if jobID == "" {
			jobID = uuid.NewString()
		}

		task, err := tasks.CreateHarvestTask(&tasks.HarvestPayload{
			JobID:     jobID,
			Address:   seed.Address,
			MaxImages: maxImages,
		})
		if err != nil {
			return err
		}

		if err := p.queue.EnqueueTask(ctx, task.Type(), task.Payload()); err != nil {
			return fmt.Errorf("enqueue %q: %w", seed.Address, err)
		}

		p.log.Debug("task enqueued", zap.String("job_id", jobID), zap.String("address", seed.Address))
	}

	p.log.Info("tasks enqueued", zap.Int("count", len(seeds)))

	return nil
}

func (p *Producer) Close(context.Context) error {
	if p.client == nil {
		return nil
	}

	return p.client.Close()
}
