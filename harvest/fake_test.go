package harvest_test

import (
	"context"
	"errors"
	"sync"

	"github.com/hoanhv-vvt/thamdinh-extensions/harvest"
)

const (
	resultSelector = `div[role="article"] a[href*="/maps/place/"]`
	panelSelector  = `[role="main"]`
)

var errStale = errors.New("element is not attached to the page document")

func imageSelector() string {
	p, err := harvest.DefaultProfile().Compile()
	if err != nil {
		panic(err)
	}

	return p.ImageSelector
}

type fakeElement struct {
	attrs   map[string]string
	attrErr error
	onClick func(ctx context.Context) error
}

func (e *fakeElement) Attribute(_ context.Context, name string) (string, error) {
	if e.attrErr != nil {
		return "", e.attrErr
	}

	return e.attrs[name], nil
}

func (e *fakeElement) Click(ctx context.Context) error {
	if e.onClick == nil {
		return nil
	}

	return e.onClick(ctx)
}

func img(src string) *fakeElement {
	return &fakeElement{attrs: map[string]string{"src": src}}
}

// fakePage is an in-memory page keyed by selector.
type fakePage struct {
	mu      sync.Mutex
	nodes   map[string][]harvest.Element
	queries int
	// gate, when set, blocks the first query until closed.
	gate    chan struct{}
	entered chan struct{}
	visited []string
	navErr  error
}

func newFakePage() *fakePage {
	return &fakePage{nodes: map[string][]harvest.Element{}}
}

func (p *fakePage) QueryAll(ctx context.Context, selector string) ([]harvest.Element, error) {
	p.mu.Lock()
	p.queries++
	first := p.queries == 1
	gate := p.gate
	p.mu.Unlock()

	if first && gate != nil {
		close(p.entered)

		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	ans := make([]harvest.Element, len(p.nodes[selector]))
	copy(ans, p.nodes[selector])

	return ans, nil
}

func (p *fakePage) setImages(srcs ...string) {
	elements := make([]harvest.Element, 0, len(srcs))
	for _, s := range srcs {
		elements = append(elements, img(s))
	}

	p.mu.Lock()
	p.nodes[imageSelector()] = elements
	p.mu.Unlock()
}

// addResult registers a listing entry that shows images once clicked.
func (p *fakePage) addResult(name string, srcs ...string) *fakeElement {
	el := &fakeElement{attrs: map[string]string{"aria-label": name}}
	el.onClick = func(context.Context) error {
		p.mu.Lock()
		p.visited = append(p.visited, name)
		p.nodes[panelSelector] = []harvest.Element{&fakeElement{}}
		p.mu.Unlock()

		p.setImages(srcs...)

		return nil
	}

	p.mu.Lock()
	p.nodes[resultSelector] = append(p.nodes[resultSelector], el)
	p.mu.Unlock()

	return el
}

func (p *fakePage) Visited() []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	return append([]string(nil), p.visited...)
}

// navPage adds navigation to fakePage.
type navPage struct {
	*fakePage
	addresses []string
}

func (p *navPage) Navigate(_ context.Context, address string) error {
	if p.navErr != nil {
		return p.navErr
	}

	p.addresses = append(p.addresses, address)

	return nil
}

// notifyPage adds change notifications to fakePage.
type notifyPage struct {
	*fakePage
	changes  chan struct{}
	released int
	subErr   error
}

func (p *notifyPage) Subscribe(context.Context) (<-chan struct{}, func(), error) {
	if p.subErr != nil {
		return nil, nil, p.subErr
	}

	return p.changes, func() {
		p.mu.Lock()
		p.released++
		p.mu.Unlock()
	}, nil
}

// attrPage answers image sources in one call instead of per element.
type attrPage struct {
	*fakePage
	srcs  []string
	reads int
}

func (p *attrPage) QueryAttribute(_ context.Context, selector, name string) ([]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.reads++

	if selector != imageSelector() || name != "src" {
		return nil, nil
	}

	return append([]string(nil), p.srcs...), nil
}
