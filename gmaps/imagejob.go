package gmaps

import (
	"context"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/gosom/scrapemate"
	"github.com/playwright-community/playwright-go"
	"go.uber.org/zap"

	"github.com/hoanhv-vvt/thamdinh-extensions/exiter"
	"github.com/hoanhv-vvt/thamdinh-extensions/harvest"
	"github.com/hoanhv-vvt/thamdinh-extensions/harvest/pwdom"
)

const (
	metaResponse = "harvest_response"
	metaError    = "harvest_error"
)

type ImageJobOptions func(*ImageJob)

// ImageJob searches one address and harvests the images of the page.
type ImageJob struct {
	scrapemate.Job

	InputID        string
	Address        string
	MaxImages      int
	HarvestOptions []harvest.Option
	ExitMonitor    exiter.Exiter
	Logger         *zap.Logger
}

func NewImageJob(inputID, address string, maxImages int, opts ...ImageJobOptions) *ImageJob {
	const (
		defaultPrio       = scrapemate.PriorityMedium
		defaultMaxRetries = 1
	)

	job := ImageJob{
		Job: scrapemate.Job{
			ID:         uuid.New().String(),
			Method:     http.MethodGet,
			URL:        harvest.SearchURL(address),
			MaxRetries: defaultMaxRetries,
			Priority:   defaultPrio,
		},
		InputID:   inputID,
		Address:   address,
		MaxImages: harvest.ClampMaxImages(maxImages),
		Logger:    zap.NewNop(),
	}

	for _, opt := range opts {
		opt(&job)
	}

	return &job
}

func WithExitMonitor(exitMonitor exiter.Exiter) ImageJobOptions {
	return func(j *ImageJob) {
		j.ExitMonitor = exitMonitor
	}
}

func WithHarvestOptions(opts ...harvest.Option) ImageJobOptions {
	return func(j *ImageJob) {
		j.HarvestOptions = append(j.HarvestOptions, opts...)
	}
}

func WithLogger(l *zap.Logger) ImageJobOptions {
	return func(j *ImageJob) {
		if l != nil {
			j.Logger = l
		}
	}
}

// BrowserActions never sets resp.Error, a failed harvest still yields a row.
func (j *ImageJob) BrowserActions(ctx context.Context, page playwright.Page) scrapemate.Response {
	resp := scrapemate.Response{
		URL:  j.GetURL(),
		Meta: make(map[string]any),
	}

	doc := pwdom.New(page, pwdom.WithLogger(j.Logger))

	hresp, err := j.harvest(ctx, doc)

	resp.Meta[metaResponse] = hresp

	if err != nil {
		resp.Meta[metaError] = err
	} else {
		resp.StatusCode = http.StatusOK
		resp.URL = page.URL()
	}

	return resp
}

func (j *ImageJob) harvest(ctx context.Context, doc harvest.Document) (harvest.Response, error) {
	opts := append([]harvest.Option{
		harvest.WithLogger(j.Logger.With(zap.String("input_id", j.InputID))),
	}, j.HarvestOptions...)

	h, err := harvest.New(doc, opts...)
	if err != nil {
		return harvest.Response{}, err
	}

	return h.Harvest(ctx, harvest.Request{Address: j.Address, MaxImages: j.MaxImages})
}

func (j *ImageJob) Process(_ context.Context, resp *scrapemate.Response) (any, []scrapemate.IJob, error) {
	defer func() {
		resp.Document = nil
		resp.Body = nil
		resp.Meta = nil
	}()

	hresp, ok := resp.Meta[metaResponse].(harvest.Response)
	if !ok {
		return nil, nil, fmt.Errorf("missing harvest response for %q", j.Address)
	}

	herr, _ := resp.Meta[metaError].(error)

	ans := NewPlaceImages(j.InputID, j.Address, hresp, herr)

	if herr != nil {
		j.Logger.Warn("harvest failed",
			zap.String("input_id", j.InputID),
			zap.String("address", j.Address),
			zap.Error(herr),
		)
	}

	if j.ExitMonitor != nil {
		if herr != nil {
			j.ExitMonitor.IncrSeedFailed(1)
		}

		j.ExitMonitor.IncrImagesFound(len(ans.Images))
		j.ExitMonitor.IncrSeedCompleted(1)
	}

	return ans, nil, nil
}

// Snapshot harvests a document that is already loaded, for example a saved
// page, and returns its row.
func Snapshot(ctx context.Context, doc harvest.Document, inputID string, maxImages int, opts ...harvest.Option) (*PlaceImages, error) {
	h, err := harvest.New(doc, opts...)
	if err != nil {
		return nil, err
	}

	resp, err := h.Harvest(ctx, harvest.Request{MaxImages: maxImages})
	if err != nil {
		return nil, err
	}

	ans := NewPlaceImages(inputID, "", resp, nil)
	ans.Link = ""

	return ans, nil
}
