package browser

import (
	"context"
	"fmt"

	"github.com/playwright-community/playwright-go"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/hoanhv-vvt/thamdinh-extensions/harvest"
	"github.com/hoanhv-vvt/thamdinh-extensions/harvest/pwdom"
)

type playwrightDriver struct {
	opts    Options
	pw      *playwright.Playwright
	browser playwright.Browser
}

func NewPlaywright(opts Options) (Driver, error) {
	opts.setDefaults()

	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("failed to start playwright: %w", err)
	}

	launchOpts := playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(opts.Headless),
	}

	if opts.Proxy != "" {
		launchOpts.Proxy = &playwright.Proxy{Server: opts.Proxy}

		if opts.ProxyUsername != "" {
			launchOpts.Proxy.Username = playwright.String(opts.ProxyUsername)
			launchOpts.Proxy.Password = playwright.String(opts.ProxyPassword)
		}
	}

	browser, err := pw.Chromium.Launch(launchOpts)
	if err != nil {
		return nil, multierr.Append(
			fmt.Errorf("failed to launch browser: %w", err),
			pw.Stop(),
		)
	}

	opts.Logger.Info("browser started", zap.String("driver", KindPlaywright), zap.Bool("headless", opts.Headless))

	return &playwrightDriver{opts: opts, pw: pw, browser: browser}, nil
}

func (d *playwrightDriver) NewTab(ctx context.Context) (Tab, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	bctx, err := d.browser.NewContext(playwright.BrowserNewContextOptions{
		UserAgent: playwright.String(d.opts.UserAgent),
		Viewport: &playwright.Size{
			Width:  d.opts.ViewportWidth,
			Height: d.opts.ViewportHeight,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create context: %w", err)
	}

	page, err := bctx.NewPage()
	if err != nil {
		return nil, multierr.Append(
			fmt.Errorf("failed to create page: %w", err),
			bctx.Close(),
		)
	}

	page.SetDefaultTimeout(float64(d.opts.Timeout.Milliseconds()))

	return &playwrightTab{
		bctx: bctx,
		page: page,
		doc:  pwdom.New(page, pwdom.WithLogger(d.opts.Logger)),
	}, nil
}

func (d *playwrightDriver) Close() error {
	return multierr.Combine(d.browser.Close(), d.pw.Stop())
}

type playwrightTab struct {
	bctx playwright.BrowserContext
	page playwright.Page
	doc  *pwdom.Page
}

func (t *playwrightTab) Document() harvest.Document {
	return t.doc
}

func (t *playwrightTab) Close() error {
	return multierr.Combine(t.page.Close(), t.bctx.Close())
}
