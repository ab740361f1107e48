package installplaywright

import (
	"context"
	"fmt"

	"github.com/go-rod/rod/lib/launcher"
	"github.com/playwright-community/playwright-go"
	"go.uber.org/zap"

	"github.com/hoanhv-vvt/thamdinh-extensions/browser"
	"github.com/hoanhv-vvt/thamdinh-extensions/runner"
)

type installer struct {
	driver string
	log    *zap.Logger
}

func New(cfg *runner.Config) (runner.Runner, error) {
	if cfg.RunMode != runner.RunModeInstallPlaywright {
		return nil, fmt.Errorf("%w: %d", runner.ErrInvalidRunMode, cfg.RunMode)
	}

	return &installer{driver: cfg.Driver, log: cfg.Logger}, nil
}

// Run downloads the browser of the configured driver.
func (i *installer) Run(context.Context) error {
	if i.driver == browser.KindRod {
		path, err := launcher.NewBrowser().Get()
		if err != nil {
			return fmt.Errorf("install rod browser: %w", err)
		}

		i.log.Info("browser installed", zap.String("driver", i.driver), zap.String("path", path))

		return nil
	}

	opts := []*playwright.RunOptions{
		{
			Browsers: []string{"chromium"},
		},
	}

	if err := playwright.Install(opts...); err != nil {
		return fmt.Errorf("install playwright: %w", err)
	}

	i.log.Info("browser installed", zap.String("driver", browser.KindPlaywright))

	return nil
}

func (i *installer) Close(context.Context) error {
	return nil
}
