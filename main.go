package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/hoanhv-vvt/thamdinh-extensions/runner"
	"github.com/hoanhv-vvt/thamdinh-extensions/runner/filerunner"
	"github.com/hoanhv-vvt/thamdinh-extensions/runner/installplaywright"
	"github.com/hoanhv-vvt/thamdinh-extensions/runner/redisrunner"
	"github.com/hoanhv-vvt/thamdinh-extensions/runner/snapshotrunner"
	"github.com/hoanhv-vvt/thamdinh-extensions/runner/webrunner"
)

func main() {
	_ = godotenv.Load() // .env is optional

	ctx, cancel := context.WithCancel(context.Background())

	cfg := runner.ParseConfig()
	runner.Banner(cfg)

	log := cfg.Logger

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		sig := <-sigChan

		log.Info("received signal, shutting down", zap.String("signal", sig.String()))

		cancel()
	}()

	os.Exit(run(ctx, cancel, cfg))
}

func run(ctx context.Context, cancel context.CancelFunc, cfg *runner.Config) int {
	defer cancel()

	log := cfg.Logger

	defer func() {
		_ = log.Sync()
	}()

	defer runner.Telemetry().Close()

	runnerInstance, err := runnerFactory(cfg)
	if err != nil {
		log.Error("failed to start", zap.Error(err))

		return 1
	}

	code := 0

	if err := runnerInstance.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("run failed", zap.Error(err))

		code = 1
	}

	if err := runnerInstance.Close(context.WithoutCancel(ctx)); err != nil {
		log.Warn("close failed", zap.Error(err))
	}

	return code
}

func runnerFactory(cfg *runner.Config) (runner.Runner, error) {
	switch cfg.RunMode {
	case runner.RunModeFile:
		return filerunner.New(cfg)
	case runner.RunModeRedis:
		r, err := redisrunner.New(cfg)
		if err != nil {
			return nil, err
		}

		return r, nil
	case runner.RunModeRedisProduce:
		p, err := redisrunner.NewProducer(cfg)
		if err != nil {
			return nil, err
		}

		return p, nil
	case runner.RunModeInstallPlaywright:
		return installplaywright.New(cfg)
	case runner.RunModeWeb:
		return webrunner.New(cfg)
	case runner.RunModeSnapshot:
		return snapshotrunner.New(cfg)
	default:
		return nil, fmt.Errorf("%w: %d", runner.ErrInvalidRunMode, cfg.RunMode)
	}
}
