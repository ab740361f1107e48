// Package roddom exposes a go-rod page as a harvest.Document.
package roddom

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/ysmood/gson"
	"go.uber.org/zap"

	"github.com/hoanhv-vvt/thamdinh-extensions/harvest"
)

const defaultClickTimeout = 2 * time.Second

const observeScript = `(id, binding) => {
	window.__harvestObservers = window.__harvestObservers || {};
	if (window.__harvestObservers[id]) return;
	const observer = new MutationObserver(() => {
		if (typeof window[binding] === 'function') window[binding]();
	});
	observer.observe(document.documentElement, {
		childList: true,
		subtree: true,
		attributes: true,
		attributeFilter: ['src'],
	});
	window.__harvestObservers[id] = observer;
}`

const disconnectScript = `(id) => {
	const observers = window.__harvestObservers || {};
	if (observers[id]) {
		observers[id].disconnect();
		delete observers[id];
	}
}`

var (
	_ harvest.Document  = (*Page)(nil)
	_ harvest.Notifier  = (*Page)(nil)
	_ harvest.Navigator = (*Page)(nil)
)

type Option func(*Page)

func WithLogger(l *zap.Logger) Option {
	return func(p *Page) {
		if l != nil {
			p.log = l
		}
	}
}

func WithClickTimeout(d time.Duration) Option {
	return func(p *Page) {
		p.clickTimeout = d
	}
}

// Page adapts a rod page.
type Page struct {
	page         *rod.Page
	log          *zap.Logger
	clickTimeout time.Duration
	nextID       atomic.Int64
}

func New(page *rod.Page, opts ...Option) *Page {
	ans := Page{
		page:         page,
		log:          zap.NewNop(),
		clickTimeout: defaultClickTimeout,
	}

	for _, opt := range opts {
		opt(&ans)
	}

	return &ans
}

func (p *Page) Raw() *rod.Page {
	return p.page
}

func (p *Page) QueryAll(ctx context.Context, selector string) ([]harvest.Element, error) {
	elements, err := p.page.Context(ctx).Elements(selector)
	if err != nil {
		return nil, fmt.Errorf("query %q: %w", selector, err)
	}

	ans := make([]harvest.Element, 0, len(elements))
	for _, el := range elements {
		ans = append(ans, &element{el: el, clickTimeout: p.clickTimeout})
	}

	return ans, nil
}

// Subscribe exposes a fresh binding and starts a MutationObserver calling it.
func (p *Page) Subscribe(ctx context.Context) (<-chan struct{}, func(), error) {
	id := p.nextID.Add(1)
	binding := fmt.Sprintf("__harvestChanged%d", id)
	ch := make(chan struct{}, 1)

	stop, err := p.page.Context(ctx).Expose(binding, func(gson.JSON) (any, error) {
		select {
		case ch <- struct{}{}:
		default:
		}

		return nil, nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("expose change binding: %w", err)
	}

	release := func() {
		if _, err := p.page.Eval(disconnectScript, id); err != nil {
			p.log.Debug("cannot disconnect observer", zap.Int64("id", id), zap.Error(err))
		}

		if err := stop(); err != nil {
			p.log.Debug("cannot remove binding", zap.String("binding", binding), zap.Error(err))
		}
	}

	if _, err := p.page.Context(ctx).Eval(observeScript, id, binding); err != nil {
		release()

		return nil, nil, fmt.Errorf("install observer: %w", err)
	}

	return ch, release, nil
}

func (p *Page) Navigate(ctx context.Context, address string) error {
	target := harvest.SearchURL(address)

	navCtx, cancel := context.WithTimeout(ctx, harvest.NavigationTimeout)
	defer cancel()

	page := p.page.Context(navCtx)

	if err := page.Navigate(target); err != nil {
		return fmt.Errorf("navigate %s: %w", target, err)
	}

	if err := page.WaitDOMStable(300*time.Millisecond, 0); err != nil && navCtx.Err() == nil {
		p.log.Debug("dom did not settle", zap.Error(err))
	}

	p.rejectCookies(navCtx)

	if err := page.WaitLoad(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		p.log.Debug("load event not reached, continuing", zap.Error(err))
	}

	t := time.NewTimer(harvest.SettleDelay)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
	}

	return nil
}

func (p *Page) rejectCookies(ctx context.Context) {
	for _, sel := range harvest.ConsentSelectors {
		elements, err := p.page.Context(ctx).Elements(sel)
		if err != nil || len(elements) == 0 {
			continue
		}

		clickCtx, cancel := context.WithTimeout(ctx, p.clickTimeout)
		err = elements.First().Context(clickCtx).Click(proto.InputMouseButtonLeft, 1)
		cancel()

		if err != nil {
			p.log.Debug("cannot reject cookies", zap.String("selector", sel), zap.Error(err))

			continue
		}

		return
	}
}

type element struct {
	el           *rod.Element
	clickTimeout time.Duration
}

func (e *element) Attribute(ctx context.Context, name string) (string, error) {
	v, err := e.el.Context(ctx).Attribute(name)
	if err != nil {
		return "", err
	}

	if v == nil {
		return "", nil
	}

	return *v, nil
}

func (e *element) Click(ctx context.Context) error {
	clickCtx, cancel := context.WithTimeout(ctx, e.clickTimeout)
	defer cancel()

	return e.el.Context(clickCtx).Click(proto.InputMouseButtonLeft, 1)
}
