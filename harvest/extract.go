package harvest

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// imageSources returns the src of every image element of the current DOM.
// Elements that cannot be read are skipped.
func (h *Harvester) imageSources(ctx context.Context) ([]string, error) {
	if r, ok := h.doc.(AttributeReader); ok {
		return r.QueryAttribute(ctx, h.profile.ImageSelector, "src")
	}

	elements, err := h.doc.QueryAll(ctx, h.profile.ImageSelector)
	if err != nil {
		return nil, err
	}

	ans := make([]string, 0, len(elements))

	for _, el := range elements {
		src, err := el.Attribute(ctx, "src")
		if err != nil {
			continue
		}

		ans = append(ans, src)
	}

	return ans, nil
}

// extract reads the image elements of the current DOM and returns up to
// limit rewritten urls.
func (h *Harvester) extract(ctx context.Context, limit int) ([]string, error) {
	srcs, err := h.imageSources(ctx)
	if err != nil {
		return nil, err
	}

	set := NewResultSet(limit)

	for _, src := range srcs {
		if set.Full() {
			break
		}

		if !h.profile.Accept(src) {
			continue
		}

		set.Add(h.profile.Rewrite(src))
	}

	h.log.Debug("extracted images",
		zap.Int("elements", len(srcs)),
		zap.Int("accepted", set.Len()),
	)

	return set.URLs(), nil
}

// validImageCount counts the image elements that would be accepted.
func (h *Harvester) validImageCount(ctx context.Context) int {
	srcs, err := h.imageSources(ctx)
	if err != nil {
		return 0
	}

	count := 0

	for _, src := range srcs {
		if h.profile.Accept(src) {
			count++
		}
	}

	return count
}

// waitForPanel waits for any detail panel marker of the profile.
func (h *Harvester) waitForPanel(ctx context.Context) bool {
	if len(h.profile.PanelSelects) == 0 {
		return false
	}

	return WaitUntil(ctx, h.doc, h.opts.PanelTimeout, h.opts.PollInterval, func() bool {
		for _, sel := range h.profile.PanelSelects {
			elements, err := h.doc.QueryAll(ctx, sel)
			if err == nil && len(elements) > 0 {
				return true
			}
		}

		return false
	})
}

// waitForImages waits until target valid images are present, or until the
// count stopped changing for the stable window, or until the image timeout.
// An empty page is never considered stable.
func (h *Harvester) waitForImages(ctx context.Context, target int) bool {
	last := -1
	changedAt := time.Now()

	return WaitUntil(ctx, h.doc, h.opts.ImageTimeout, h.opts.PollInterval, func() bool {
		count := h.validImageCount(ctx)
		if count >= target {
			return true
		}

		if count != last {
			last = count
			changedAt = time.Now()

			return false
		}

		return count > 0 && time.Since(changedAt) >= h.opts.StableWindow
	})
}
