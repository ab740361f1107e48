// Package browser launches the browsers that back a harvest page context.
package browser

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/hoanhv-vvt/thamdinh-extensions/harvest"
)

const (
	KindPlaywright = "playwright"
	KindRod        = "rod"

	DefaultUserAgent      = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	DefaultViewportWidth  = 1920
	DefaultViewportHeight = 1080
	DefaultTimeout        = 60 * time.Second
)

var ErrUnknownDriver = errors.New("unknown browser driver")

// Tab is one page context. A harvester is bound to exactly one tab.
type Tab interface {
	Document() harvest.Document
	Close() error
}

type Driver interface {
	NewTab(ctx context.Context) (Tab, error)
	Close() error
}

type Options struct {
	Headless bool
	// Proxy is the proxy server without credentials.
	Proxy          string
	ProxyUsername  string
	ProxyPassword  string
	UserAgent      string
	ViewportWidth  int
	ViewportHeight int
	Timeout        time.Duration
	Logger         *zap.Logger
}

func DefaultOptions() Options {
	return Options{
		Headless:       true,
		UserAgent:      DefaultUserAgent,
		ViewportWidth:  DefaultViewportWidth,
		ViewportHeight: DefaultViewportHeight,
		Timeout:        DefaultTimeout,
		Logger:         zap.NewNop(),
	}
}

func (o *Options) setDefaults() {
	d := DefaultOptions()

	if o.UserAgent == "" {
		o.UserAgent = d.UserAgent
	}

	if o.ViewportWidth <= 0 || o.ViewportHeight <= 0 {
		o.ViewportWidth = d.ViewportWidth
		o.ViewportHeight = d.ViewportHeight
	}

	if o.Timeout <= 0 {
		o.Timeout = d.Timeout
	}

	if o.Logger == nil {
		o.Logger = d.Logger
	}
}

// New starts the driver named kind.
func New(kind string, opts Options) (Driver, error) {
	opts.setDefaults()

	switch kind {
	case KindPlaywright, "":
		return NewPlaywright(opts)
	case KindRod:
		return NewRod(opts)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, kind)
	}
}
