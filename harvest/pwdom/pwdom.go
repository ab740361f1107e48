// Package pwdom exposes a playwright page as a harvest.Document.
package pwdom

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/playwright-community/playwright-go"
	"go.uber.org/zap"

	"github.com/hoanhv-vvt/thamdinh-extensions/harvest"
)

const (
	bindingPrefix = "__harvestChanged"

	defaultClickTimeout     = 2 * time.Second
	defaultAttributeTimeout = 250 * time.Millisecond
)

// observeScript installs a MutationObserver under the given key that reports
// every batch of tree or src changes to the exposed binding.
const observeScript = `({key, binding}) => {
	window.__harvestObservers = window.__harvestObservers || {};
	if (window.__harvestObservers[key]) return;
	const observer = new MutationObserver(() => {
		if (typeof window[binding] === 'function') window[binding](key);
	});
	observer.observe(document.documentElement, {
		childList: true,
		subtree: true,
		attributes: true,
		attributeFilter: ['src'],
	});
	window.__harvestObservers[key] = observer;
}`

const disconnectScript = `(key) => {
	const observers = window.__harvestObservers || {};
	if (observers[key]) {
		observers[key].disconnect();
		delete observers[key];
	}
}`

const readAttributeScript = `(els, name) => els.map((e) => e.getAttribute(name) || '')`

// pageSeq numbers adapters, a reused playwright page keeps the bindings of
// the adapters it had before.
var pageSeq atomic.Int64

var (
	_ harvest.Document  = (*Page)(nil)
	_ harvest.Notifier  = (*Page)(nil)
	_ harvest.Navigator = (*Page)(nil)

	_ harvest.AttributeReader = (*Page)(nil)
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

// Page adapts a playwright page.
type Page struct {
	page         playwright.Page
	log          *zap.Logger
	clickTimeout time.Duration
	binding      string

	exposeOnce sync.Once
	exposeErr  error

	mu     sync.Mutex
	nextID atomic.Int64
	subs   map[int64]chan struct{}
}

func New(page playwright.Page, opts ...Option) *Page {
	ans := Page{
		page:         page,
		log:          zap.NewNop(),
		clickTimeout: defaultClickTimeout,
		binding:      fmt.Sprintf("%s%d", bindingPrefix, pageSeq.Add(1)),
		subs:         make(map[int64]chan struct{}),
	}

	for _, opt := range opts {
		opt(&ans)
	}

	return &ans
}

// Raw returns the wrapped playwright page.
func (p *Page) Raw() playwright.Page {
	return p.page
}

func (p *Page) QueryAll(ctx context.Context, selector string) ([]harvest.Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	locators, err := p.page.Locator(selector).All()
	if err != nil {
		return nil, fmt.Errorf("query %q: %w", selector, err)
	}

	ans := make([]harvest.Element, 0, len(locators))
	for _, l := range locators {
		ans = append(ans, &element{locator: l, clickTimeout: p.clickTimeout})
	}

	return ans, nil
}

// QueryAttribute reads name of every match in one evaluation. It does not
// wait for elements, so a shrinking DOM cannot stall it.
func (p *Page) QueryAttribute(ctx context.Context, selector, name string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	v, err := p.page.Locator(selector).EvaluateAll(readAttributeScript, name)
	if err != nil {
		return nil, fmt.Errorf("read %s of %q: %w", name, selector, err)
	}

	return toStrings(v), nil
}

func toStrings(v any) []string {
	items, _ := v.([]any)

	ans := make([]string, 0, len(items))

	for _, item := range items {
		s, _ := item.(string)
		ans = append(ans, s)
	}

	return ans
}

// Binding is the name of the function exposed for change notifications.
func (p *Page) Binding() string {
	return p.binding
}

// Subscribe starts a MutationObserver in the page. Notifications are
// coalesced, a slow reader only sees that something changed.
func (p *Page) Subscribe(ctx context.Context) (<-chan struct{}, func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	p.exposeOnce.Do(func() {
		p.exposeErr = p.page.ExposeFunction(p.binding, p.onChange)
	})

	if p.exposeErr != nil {
		return nil, nil, fmt.Errorf("expose change binding: %w", p.exposeErr)
	}

	id := p.nextID.Add(1)
	key := fmt.Sprintf("%s_%d", p.binding, id)
	ch := make(chan struct{}, 1)

	p.mu.Lock()
	p.subs[id] = ch
	p.mu.Unlock()

	release := func() {
		p.mu.Lock()
		delete(p.subs, id)
		p.mu.Unlock()

		if _, err := p.page.Evaluate(disconnectScript, key); err != nil {
			p.log.Debug("cannot disconnect observer", zap.String("key", key), zap.Error(err))
		}
	}

	observer := map[string]any{"key": key, "binding": p.binding}

	if _, err := p.page.Evaluate(observeScript, observer); err != nil {
		release()

		return nil, nil, fmt.Errorf("install observer: %w", err)
	}

	return ch, release, nil
}

func (p *Page) onChange(args ...any) any {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, ch := range p.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}

	return nil
}

// Navigate opens the search page of address, dismisses the consent wall
// when shown and lets the page settle.
func (p *Page) Navigate(ctx context.Context, address string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	target := harvest.SearchURL(address)

	resp, err := p.page.Goto(target, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
		Timeout:   playwright.Float(float64(harvest.NavigationTimeout.Milliseconds())),
	})
	if err != nil {
		return fmt.Errorf("goto %s: %w", target, err)
	}

	if resp != nil && resp.Status() >= 400 {
		return fmt.Errorf("goto %s: unexpected status %d", target, resp.Status())
	}

	if err := p.rejectCookies(); err != nil {
		return err
	}

	err = p.page.WaitForLoadState(playwright.PageWaitForLoadStateOptions{
		State:   playwright.LoadStateLoad,
		Timeout: playwright.Float(float64(harvest.NavigationTimeout.Milliseconds())),
	})
	if err != nil {
		p.log.Debug("load state not reached, continuing", zap.Error(err))
	}

	t := time.NewTimer(harvest.SettleDelay)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
	}

	p.log.Debug("search page ready", zap.String("url", p.page.URL()))

	return nil
}

func (p *Page) rejectCookies() error {
	for _, sel := range harvest.ConsentSelectors {
		loc := p.page.Locator(sel)

		count, err := loc.Count()
		if err != nil || count == 0 {
			continue
		}

		if err := loc.First().Click(playwright.LocatorClickOptions{
			Timeout: playwright.Float(float64(p.clickTimeout.Milliseconds())),
		}); err != nil {
			return fmt.Errorf("reject cookies: %w", err)
		}

		return p.page.WaitForLoadState(playwright.PageWaitForLoadStateOptions{
			State: playwright.LoadStateDomcontentloaded,
		})
	}

	return nil
}

type element struct {
	locator      playwright.Locator
	clickTimeout time.Duration
}

func (e *element) Attribute(ctx context.Context, name string) (string, error) {
	timeout, err := boundedTimeout(ctx, defaultAttributeTimeout)
	if err != nil {
		return "", err
	}

	return e.locator.GetAttribute(name, playwright.LocatorGetAttributeOptions{
		Timeout: playwright.Float(float64(timeout.Milliseconds())),
	})
}

func (e *element) Click(ctx context.Context) error {
	timeout, err := boundedTimeout(ctx, e.clickTimeout)
	if err != nil {
		return err
	}

	return e.locator.Click(playwright.LocatorClickOptions{
		Timeout: playwright.Float(float64(timeout.Milliseconds())),
	})
}

// boundedTimeout is limit, shortened to what is left of the ctx deadline.
// Playwright reads a zero timeout as "no timeout", so an exhausted deadline
// is an error.
func boundedTimeout(ctx context.Context, limit time.Duration) (time.Duration, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	timeout := limit

	if deadline, ok := ctx.Deadline(); ok {
		timeout = min(timeout, time.Until(deadline))
	}

	if timeout < time.Millisecond {
		return 0, context.DeadlineExceeded
	}

	return timeout, nil
}
