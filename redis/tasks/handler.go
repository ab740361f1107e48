// Package tasks turns queued redis tasks into harvests.
package tasks

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/hoanhv-vvt/thamdinh-extensions/browser"
	"github.com/hoanhv-vvt/thamdinh-extensions/harvest"
)

// TabOpener opens the page context of one task. browser.Driver is one.
type TabOpener interface {
	NewTab(ctx context.Context) (browser.Tab, error)
}

// Uploader copies result files to object storage.
type Uploader interface {
	Upload(ctx context.Context, bucketName, key string, body io.Reader) error
}

// Handler processes harvest tasks. Every task gets its own tab, so tasks
// running in parallel never share a page.
type Handler struct {
	tabs        TabOpener
	taskTimeout time.Duration
	dataFolder  string
	harvestOpts []harvest.Option
	uploader    Uploader
	bucket      string
	log         *zap.Logger
}

type HandlerOption func(*Handler)

func WithTaskTimeout(timeout time.Duration) HandlerOption {
	return func(h *Handler) {
		if timeout > 0 {
			h.taskTimeout = timeout
		}
	}
}

// WithDataFolder sets where result files are written.
func WithDataFolder(folder string) HandlerOption {
	return func(h *Handler) {
		h.dataFolder = folder
	}
}

func WithHarvestOptions(opts ...harvest.Option) HandlerOption {
	return func(h *Handler) {
		h.harvestOpts = opts
	}
}

// WithUploader uploads every result file to bucket.
func WithUploader(u Uploader, bucket string) HandlerOption {
	return func(h *Handler) {
		h.uploader = u
		h.bucket = bucket
	}
}

func WithLogger(l *zap.Logger) HandlerOption {
	return func(h *Handler) {
		if l != nil {
			h.log = l
		}
	}
}

func NewHandler(tabs TabOpener, opts ...HandlerOption) *Handler {
	h := &Handler{
		tabs:        tabs,
		taskTimeout: 2 * time.Minute,
		dataFolder:  ".",
		log:         zap.NewNop(),
	}

	for _, opt := range opts {
		opt(h)
	}

	return h
}

// ProcessTask processes a task based on its type.
func (h *Handler) ProcessTask(ctx context.Context, task *asynq.Task) error {
	ctx, cancel := context.WithTimeout(ctx, h.taskTimeout)
	defer cancel()

	switch task.Type() {
	case TypeHarvestImages:
		return h.processHarvestTask(ctx, task)
	case TypeHealthCheck:
		return nil
	default:
		return fmt.Errorf("unknown task type %q: %w", task.Type(), asynq.SkipRetry)
	}
}

// Register adds the handled task types to mux.
func (h *Handler) Register(mux *asynq.ServeMux) {
	mux.HandleFunc(TypeHarvestImages, h.ProcessTask)
	mux.HandleFunc(TypeHealthCheck, h.ProcessTask)
}
