package browser

import (
	"context"
	"fmt"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/hoanhv-vvt/thamdinh-extensions/harvest"
	"github.com/hoanhv-vvt/thamdinh-extensions/harvest/roddom"
)

type rodDriver struct {
	opts     Options
	launcher *launcher.Launcher
	browser  *rod.Browser
}

func NewRod(opts Options) (Driver, error) {
	opts.setDefaults()

	l := launcher.New().Headless(opts.Headless)

	if opts.Proxy != "" {
		l = l.Proxy(opts.Proxy)
	}

	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		l.Kill()

		return nil, fmt.Errorf("failed to connect to browser: %w", err)
	}

	if opts.ProxyUsername != "" {
		go answerProxyAuth(browser, opts)
	}

	opts.Logger.Info("browser started",
		zap.String("driver", KindRod),
		zap.Bool("headless", opts.Headless),
		zap.String("control_url", controlURL),
	)

	return &rodDriver{opts: opts, launcher: l, browser: browser}, nil
}

// answerProxyAuth answers every proxy auth challenge until the browser
// goes away.
func answerProxyAuth(browser *rod.Browser, opts Options) {
	for {
		if err := browser.HandleAuth(opts.ProxyUsername, opts.ProxyPassword)(); err != nil {
			opts.Logger.Debug("proxy auth handler stopped", zap.Error(err))

			return
		}
	}
}

func (d *rodDriver) NewTab(ctx context.Context) (Tab, error) {
	page, err := d.browser.Context(ctx).Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, fmt.Errorf("failed to create page: %w", err)
	}

	// the tab outlives the creating request
	page = page.Context(context.Background())

	err = multierr.Combine(
		page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: d.opts.UserAgent}),
		page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
			Width:             d.opts.ViewportWidth,
			Height:            d.opts.ViewportHeight,
			DeviceScaleFactor: 1,
		}),
	)
	if err != nil {
		return nil, multierr.Append(fmt.Errorf("failed to set up page: %w", err), page.Close())
	}

	return &rodTab{
		page: page,
		doc:  roddom.New(page, roddom.WithLogger(d.opts.Logger)),
	}, nil
}

func (d *rodDriver) Close() error {
	err := d.browser.Close()

	d.launcher.Kill()
	d.launcher.Cleanup()

	return err
}

type rodTab struct {
	page *rod.Page
	doc  *roddom.Page
}

func (t *rodTab) Document() harvest.Document {
	return t.doc
}

func (t *rodTab) Close() error {
	return t.page.Close()
}
