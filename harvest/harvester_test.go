package harvest_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hoanhv-vvt/thamdinh-extensions/harvest"
)

func fastOptions(extra ...harvest.Option) []harvest.Option {
	opts := []harvest.Option{
		harvest.WithPanelTimeout(50 * time.Millisecond),
		harvest.WithImageTimeout(150 * time.Millisecond),
		harvest.WithStableWindow(20 * time.Millisecond),
		harvest.WithMultiTimeout(2 * time.Second),
		harvest.WithPollInterval(5 * time.Millisecond),
	}

	return append(opts, extra...)
}

func newHarvester(t *testing.T, doc harvest.Document, extra ...harvest.Option) *harvest.Harvester {
	t.Helper()

	h, err := harvest.New(doc, fastOptions(extra...)...)
	require.NoError(t, err)

	return h
}

func photo(id string) string {
	return fmt.Sprintf("https://lh5.googleusercontent.com/p/%s=w80-h106-k-no", id)
}

func large(id string) string {
	return fmt.Sprintf("https://lh5.googleusercontent.com/p/%s=w2048-h2048", id)
}

func Test_ClampMaxImages(t *testing.T) {
	tests := []struct {
		in   int
		want int
	}{
		{in: -5, want: 0},
		{in: 0, want: 0},
		{in: 1, want: 1},
		{in: 50, want: 50},
		{in: 51, want: 50},
		{in: 1000, want: 50},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.in), func(t *testing.T) {
			assert.Equal(t, tt.want, harvest.ClampMaxImages(tt.in))
		})
	}
}

func Test_HarvestCapsAtFifty(t *testing.T) {
	page := newFakePage()

	srcs := make([]string, 0, 80)
	for i := 0; i < 80; i++ {
		srcs = append(srcs, photo(fmt.Sprintf("img%02d", i)))
	}

	page.setImages(srcs...)

	resp, err := newHarvester(t, page).Harvest(context.Background(), harvest.Request{MaxImages: 500})
	require.NoError(t, err)

	assert.Len(t, resp.ImageURLs, harvest.MaxImagesLimit)
	assert.Equal(t, large("img00"), resp.ImageURLs[0])
	assert.Equal(t, large("img49"), resp.ImageURLs[49])
}

func Test_HarvestEmptyPage(t *testing.T) {
	resp, err := newHarvester(t, newFakePage()).Harvest(context.Background(), harvest.Request{MaxImages: 10})
	require.NoError(t, err)

	assert.Empty(t, resp.ImageURLs)
	assert.Equal(t, harvest.ModeSingle, resp.Mode)
}

func Test_HarvestZeroMaxImages(t *testing.T) {
	page := newFakePage()
	page.setImages(photo("a"), photo("b"))

	resp, err := newHarvester(t, page).Harvest(context.Background(), harvest.Request{MaxImages: 0})
	require.NoError(t, err)

	assert.Empty(t, resp.ImageURLs)
}

func Test_HarvestSingleFiltersAndDeduplicates(t *testing.T) {
	page := newFakePage()
	page.setImages(
		photo("a"),
		"https://lh5.googleusercontent.com/p/a=w400-h300-k-no",
		"https://maps.gstatic.com/logo/google_logo.png",
		"https://lh5.googleusercontent.com/p/b=s0",
		"https://lh5.googleusercontent.com/maps/vt/tile=w256-h256",
		"",
		photo("b"),
		"https://lh3.ggpht.com/streetview/pano=w203-h100-k-no",
	)

	resp, err := newHarvester(t, page).Harvest(context.Background(), harvest.Request{MaxImages: 10})
	require.NoError(t, err)

	assert.Equal(t, []string{
		large("a"),
		large("b"),
		"https://lh3.ggpht.com/streetview/pano=w1200-h600-k-no",
	}, resp.ImageURLs)
	assert.Equal(t, harvest.ModeSingle, resp.Mode)
}

func Test_HarvestSkipsUnreadableElements(t *testing.T) {
	page := newFakePage()
	page.nodes[imageSelector()] = []harvest.Element{
		&fakeElement{attrErr: errStale},
		img(photo("ok")),
	}

	resp, err := newHarvester(t, page).Harvest(context.Background(), harvest.Request{MaxImages: 5})
	require.NoError(t, err)

	assert.Equal(t, []string{large("ok")}, resp.ImageURLs)
}

func Test_HarvestReadsSourcesInOneCall(t *testing.T) {
	page := &attrPage{
		fakePage: newFakePage(),
		srcs: []string{
			photo("a"),
			"",
			"https://maps.gstatic.com/logo/google_logo.png",
			photo("a"),
			photo("b"),
		},
	}

	resp, err := newHarvester(t, page).Harvest(context.Background(), harvest.Request{MaxImages: 5})
	require.NoError(t, err)

	assert.Equal(t, []string{large("a"), large("b")}, resp.ImageURLs)
	assert.Positive(t, page.reads)
}

func Test_HarvestBusy(t *testing.T) {
	page := newFakePage()
	page.gate = make(chan struct{})
	page.entered = make(chan struct{})
	page.setImages(photo("a"), photo("b"))

	h := newHarvester(t, page)

	type result struct {
		resp harvest.Response
		err  error
	}

	done := make(chan result, 1)

	go func() {
		resp, err := h.Harvest(context.Background(), harvest.Request{MaxImages: 2})
		done <- result{resp: resp, err: err}
	}()

	<-page.entered

	assert.True(t, h.Busy())

	start := time.Now()
	_, err := h.Harvest(context.Background(), harvest.Request{MaxImages: 2})
	require.ErrorIs(t, err, harvest.ErrBusy)
	assert.Less(t, time.Since(start), 50*time.Millisecond)

	close(page.gate)

	first := <-done
	require.NoError(t, first.err)
	assert.Equal(t, []string{large("a"), large("b")}, first.resp.ImageURLs)
	assert.False(t, h.Busy())

	// the harvester is usable again once settled
	_, err = h.Harvest(context.Background(), harvest.Request{MaxImages: 1})
	require.NoError(t, err)
}

func Test_HarvestMultiUnionCapped(t *testing.T) {
	page := newFakePage()
	page.addResult("first", photo("a1"), photo("a2"), photo("a3"))
	page.addResult("second", photo("a2"), photo("b1"), photo("b2"))
	page.addResult("third", photo("c1"), photo("c2"), photo("c3"))

	resp, err := newHarvester(t, page).Harvest(context.Background(), harvest.Request{MaxImages: 5})
	require.NoError(t, err)

	// quota per location is ceil(5/3) = 2
	assert.Equal(t, []string{
		large("a1"), large("a2"),
		large("b1"),
		large("c1"), large("c2"),
	}, resp.ImageURLs)
	assert.Equal(t, harvest.ModeMulti, resp.Mode)
	assert.Equal(t, 3, resp.LocationsVisited)
	assert.Equal(t, []string{"first", "second", "third"}, page.Visited())
}

func Test_HarvestMultiStopsWhenFull(t *testing.T) {
	page := newFakePage()
	page.addResult("first", photo("a1"), photo("a2"))
	page.addResult("second", photo("b1"), photo("b2"))
	page.addResult("third", photo("c1"), photo("c2"))

	resp, err := newHarvester(t, page).Harvest(context.Background(), harvest.Request{MaxImages: 4})
	require.NoError(t, err)

	assert.Len(t, resp.ImageURLs, 4)
	assert.Equal(t, 2, resp.LocationsVisited)
	assert.Equal(t, []string{"first", "second"}, page.Visited())
}

func Test_HarvestMultiVisitsBoundedPrefix(t *testing.T) {
	page := newFakePage()
	for i := 0; i < 6; i++ {
		page.addResult(fmt.Sprintf("r%d", i), photo(fmt.Sprintf("r%d", i)))
	}

	resp, err := newHarvester(t, page, harvest.WithMaxResults(10)).Harvest(context.Background(), harvest.Request{MaxImages: 50})
	require.NoError(t, err)

	assert.Equal(t, 3, resp.LocationsVisited)
	assert.Equal(t, []string{large("r0"), large("r1"), large("r2")}, resp.ImageURLs)
}

func Test_HarvestMultiSkipsStaleResult(t *testing.T) {
	page := newFakePage()
	page.addResult("first", photo("a1"))
	stale := page.addResult("second", photo("b1"))
	stale.onClick = func(context.Context) error { return errStale }
	page.addResult("third", photo("c1"))

	resp, err := newHarvester(t, page).Harvest(context.Background(), harvest.Request{MaxImages: 6})
	require.NoError(t, err)

	assert.Equal(t, []string{large("a1"), large("c1")}, resp.ImageURLs)
	assert.Equal(t, 3, resp.LocationsVisited)
}

func Test_HarvestMultiTimeoutFallsBack(t *testing.T) {
	page := newFakePage()
	page.setImages(photo("current1"), photo("current2"))

	for i := 0; i < 3; i++ {
		el := page.addResult(fmt.Sprintf("slow%d", i))
		el.onClick = func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		}
	}

	h := newHarvester(t, page, harvest.WithMultiTimeout(100*time.Millisecond))

	start := time.Now()
	resp, err := h.Harvest(context.Background(), harvest.Request{MaxImages: 5})
	require.NoError(t, err)

	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, harvest.ModeFallback, resp.Mode)
	assert.Equal(t, []string{large("current1"), large("current2")}, resp.ImageURLs)
}

func Test_HarvestCancelledContext(t *testing.T) {
	page := newFakePage()
	page.setImages(photo("a"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	h := newHarvester(t, page)

	_, err := h.Harvest(ctx, harvest.Request{MaxImages: 3})
	require.ErrorIs(t, err, context.Canceled)
	assert.False(t, h.Busy())
}

func Test_HarvestNavigation(t *testing.T) {
	t.Run("navigates before harvesting", func(t *testing.T) {
		page := &navPage{fakePage: newFakePage()}
		page.setImages(photo("a"))

		resp, err := newHarvester(t, page).Harvest(context.Background(), harvest.Request{
			Address:   "1600 Amphitheatre Parkway",
			MaxImages: 3,
		})
		require.NoError(t, err)

		assert.Equal(t, []string{"1600 Amphitheatre Parkway"}, page.addresses)
		assert.Equal(t, []string{large("a")}, resp.ImageURLs)
	})

	t.Run("navigation error", func(t *testing.T) {
		page := &navPage{fakePage: newFakePage()}
		page.navErr = errors.New("net::ERR_NAME_NOT_RESOLVED")

		_, err := newHarvester(t, page).Harvest(context.Background(), harvest.Request{Address: "x", MaxImages: 3})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "ERR_NAME_NOT_RESOLVED")
	})

	t.Run("document cannot navigate", func(t *testing.T) {
		_, err := newHarvester(t, newFakePage()).Harvest(context.Background(), harvest.Request{Address: "x", MaxImages: 3})
		require.ErrorIs(t, err, harvest.ErrNavigationUnsupported)
	})
}

func Test_NewInvalidProfile(t *testing.T) {
	p := harvest.Profile{Name: "broken", Rules: []harvest.Rule{{Pattern: "img", Role: "picture"}}}

	_, err := harvest.New(newFakePage(), harvest.WithProfile(p))
	require.ErrorIs(t, err, harvest.ErrInvalidProfile)
}
