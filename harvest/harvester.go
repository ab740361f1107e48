// Package harvest collects image urls from a map search page.
//
// A Harvester is bound to one page. It decides whether the page lists
// several search results or shows a single place, visits a few results when
// needed, and returns a deduplicated list of high resolution image urls.
// All waits are bounded, so a harvest always settles.
package harvest

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

var (
	// ErrBusy is returned when a harvest is already running on the page.
	ErrBusy = errors.New("extraction already in progress")
	// ErrNavigationUnsupported is returned when a request carries an address
	// but the document cannot navigate.
	ErrNavigationUnsupported = errors.New("document cannot navigate")
)

const (
	stateIdle int32 = iota
	stateExtracting
)

type Mode string

const (
	ModeSingle   Mode = "single"
	ModeMulti    Mode = "multi"
	ModeFallback Mode = "fallback"
)

type Request struct {
	// Address, when set, is searched before harvesting.
	Address   string `json:"address,omitempty"`
	MaxImages int    `json:"maxImages"`
}

type Response struct {
	ImageURLs        []string      `json:"imageUrls"`
	Mode             Mode          `json:"mode"`
	LocationsVisited int           `json:"locationsVisited"`
	Elapsed          time.Duration `json:"elapsed"`
}

// Harvester runs at most one extraction at a time on its document.
type Harvester struct {
	doc     Document
	opts    Options
	profile *CompiledProfile
	log     *zap.Logger
	state   atomic.Int32
}

func New(doc Document, opts ...Option) (*Harvester, error) {
	o := DefaultOptions()

	for _, opt := range opts {
		opt(&o)
	}

	profile, err := o.Profile.Compile()
	if err != nil {
		return nil, err
	}

	ans := Harvester{
		doc:     doc,
		opts:    o,
		profile: profile,
		log:     o.Logger.With(zap.String("profile", profile.Name)),
	}

	return &ans, nil
}

// Busy reports whether an extraction is in flight.
func (h *Harvester) Busy() bool {
	return h.state.Load() == stateExtracting
}

// Harvest extracts up to req.MaxImages (at most MaxImagesLimit) image urls.
// A call made while another one runs fails with ErrBusy without waiting.
func (h *Harvester) Harvest(ctx context.Context, req Request) (resp Response, err error) {
	if !h.state.CompareAndSwap(stateIdle, stateExtracting) {
		return Response{}, ErrBusy
	}

	defer h.state.Store(stateIdle)

	defer func() {
		if r := recover(); r != nil {
			resp = Response{}
			err = fmt.Errorf("harvest failed: %v", r)
		}
	}()

	start := time.Now()

	if err := ctx.Err(); err != nil {
		return Response{}, fmt.Errorf("harvest: %w", err)
	}

	if req.Address != "" {
		nav, ok := h.doc.(Navigator)
		if !ok {
			return Response{}, ErrNavigationUnsupported
		}

		if err := nav.Navigate(ctx, req.Address); err != nil {
			return Response{}, fmt.Errorf("navigate to %q: %w", req.Address, err)
		}
	}

	set := NewResultSet(ClampMaxImages(req.MaxImages))

	resp = Response{Mode: ModeSingle}

	if set.Limit() > 0 {
		resp, err = h.run(ctx, set)
	}

	resp.ImageURLs = set.URLs()
	resp.Elapsed = time.Since(start)

	if err != nil {
		return resp, err
	}

	h.log.Info("harvest completed",
		zap.String("mode", string(resp.Mode)),
		zap.Int("images", len(resp.ImageURLs)),
		zap.Int("limit", set.Limit()),
		zap.Int("locations", resp.LocationsVisited),
		zap.Duration("elapsed", resp.Elapsed),
	)

	return resp, nil
}

func (h *Harvester) run(ctx context.Context, set *ResultSet) (Response, error) {
	results := h.detectResults(ctx)

	if len(results) < 2 {
		h.log.Debug("single result page")

		h.waitForImages(ctx, set.Limit())

		urls, err := h.extract(ctx, set.Limit())
		if err != nil {
			return Response{Mode: ModeSingle}, fmt.Errorf("extract images: %w", err)
		}

		set.Merge(urls)

		return Response{Mode: ModeSingle}, nil
	}

	h.log.Debug("multi result page", zap.Int("results", len(results)))

	multiCtx, cancel := context.WithTimeout(ctx, h.opts.MultiTimeout)
	defer cancel()

	visited := h.visitResults(multiCtx, results, set)
	resp := Response{Mode: ModeMulti, LocationsVisited: visited}

	if err := ctx.Err(); err != nil {
		return resp, fmt.Errorf("harvest interrupted: %w", err)
	}

	if errors.Is(multiCtx.Err(), context.DeadlineExceeded) && !set.Full() {
		h.log.Warn("multi result pass timed out, extracting current page",
			zap.Duration("timeout", h.opts.MultiTimeout),
			zap.Int("collected", set.Len()),
		)

		resp.Mode = ModeFallback

		urls, err := h.extract(ctx, set.Limit())
		if err != nil {
			return resp, fmt.Errorf("extract images: %w", err)
		}

		set.Merge(urls)
	}

	return resp, nil
}

// detectResults returns a bounded prefix of the search results shown on the
// page. The first selector matching more than one element wins.
func (h *Harvester) detectResults(ctx context.Context) []Element {
	for _, sel := range h.profile.ResultSelects {
		elements, err := h.doc.QueryAll(ctx, sel)
		if err != nil {
			h.log.Debug("result probe failed", zap.String("selector", sel), zap.Error(err))

			continue
		}

		if len(elements) > 1 {
			h.log.Debug("results detected", zap.String("selector", sel), zap.Int("count", len(elements)))

			return elements[:min(len(elements), h.opts.MaxResults)]
		}
	}

	return nil
}

// visitResults clicks through results until the set is full or ctx ends.
// A failing result is skipped. It returns the number of results visited.
func (h *Harvester) visitResults(ctx context.Context, results []Element, set *ResultSet) int {
	quota := (set.Limit() + len(results) - 1) / len(results)
	visited := 0

	for i, result := range results {
		if set.Full() || ctx.Err() != nil {
			break
		}

		visited++

		added, err := h.visit(ctx, result, quota, set)
		if err != nil {
			h.log.Warn("skipping result", zap.Int("index", i), zap.Error(err))

			continue
		}

		h.log.Debug("result harvested",
			zap.Int("index", i),
			zap.Int("added", added),
			zap.Int("total", set.Len()),
		)
	}

	return visited
}

func (h *Harvester) visit(ctx context.Context, result Element, quota int, set *ResultSet) (int, error) {
	if err := result.Click(ctx); err != nil {
		return 0, fmt.Errorf("click result: %w", err)
	}

	if !h.waitForPanel(ctx) {
		h.log.Debug("panel marker not found", zap.Duration("timeout", h.opts.PanelTimeout))
	}

	h.waitForImages(ctx, quota)

	urls, err := h.extract(ctx, quota)
	if err != nil {
		return 0, err
	}

	return set.Merge(urls), nil
}
