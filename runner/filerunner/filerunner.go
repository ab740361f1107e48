package filerunner

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/gosom/scrapemate"
	"github.com/gosom/scrapemate/adapters/writers/csvwriter"
	"github.com/gosom/scrapemate/adapters/writers/jsonwriter"
	"github.com/gosom/scrapemate/scrapemateapp"
	"github.com/schollz/progressbar/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/hoanhv-vvt/thamdinh-extensions/deduper"
	"github.com/hoanhv-vvt/thamdinh-extensions/exiter"
	"github.com/hoanhv-vvt/thamdinh-extensions/gmaps"
	"github.com/hoanhv-vvt/thamdinh-extensions/runner"
	"github.com/hoanhv-vvt/thamdinh-extensions/tlmt"
)

type fileRunner struct {
	cfg     *runner.Config
	log     *zap.Logger
	input   io.Reader
	writers []scrapemate.ResultWriter
	app     *scrapemateapp.ScrapemateApp
	outfile *os.File
}

func New(cfg *runner.Config) (runner.Runner, error) {
	if cfg.RunMode != runner.RunModeFile {
		return nil, fmt.Errorf("%w: %d", runner.ErrInvalidRunMode, cfg.RunMode)
	}

	ans := &fileRunner{
		cfg: cfg,
		log: cfg.Logger.Named("filerunner"),
	}

	if err := ans.setInput(); err != nil {
		return nil, err
	}

	if err := ans.setWriters(); err != nil {
		return nil, err
	}

	if err := ans.setApp(); err != nil {
		return nil, err
	}

	return ans, nil
}

func (r *fileRunner) Run(ctx context.Context) (err error) {
	var seedJobs []scrapemate.IJob

	t0 := time.Now().UTC()

	bar := progressbar.NewOptions(-1,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetDescription("harvesting"),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "=",
			SaucerHead:    ">",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)

	exitMonitor := exiter.New(
		exiter.WithLogger(r.log),
		exiter.WithProgress(func(s exiter.Stats) {
			_ = bar.Set(s.SeedCompleted)
		}),
	)

	defer func() {
		stats := exitMonitor.Stats()
		params := map[string]any{
			"job_count":    len(seedJobs),
			"failed_count": stats.SeedFailed,
			"image_count":  stats.ImagesFound,
			"duration":     time.Now().UTC().Sub(t0).String(),
		}

		if err != nil {
			params["error"] = err.Error()
		}

		_ = runner.Telemetry().Send(ctx, tlmt.NewEvent("file_runner", params))
	}()

	seedJobs, err = runner.CreateSeedJobs(
		r.input,
		r.cfg.MaxImages,
		deduper.New(),
		exitMonitor,
		gmaps.WithHarvestOptions(r.cfg.HarvestOptions()...),
		gmaps.WithLogger(r.log),
	)
	if err != nil {
		return err
	}

	if len(seedJobs) == 0 {
		r.log.Warn("no addresses in input")

		return nil
	}

	bar.ChangeMax(len(seedJobs))
	exitMonitor.SetSeedCount(len(seedJobs))

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	exitMonitor.SetCancelFunc(cancel)

	go exitMonitor.Run(ctx)

	r.log.Info("harvest started", zap.Int("addresses", len(seedJobs)), zap.Int("concurrency", r.cfg.Concurrency))

	err = r.app.Start(ctx, seedJobs...)
	if errors.Is(err, context.Canceled) && exitMonitor.Stats().Done() {
		err = nil
	}

	_ = bar.Finish()

	stats := exitMonitor.Stats()
	r.log.Info("harvest finished",
		zap.Int("addresses", stats.SeedCompleted),
		zap.Int("failed", stats.SeedFailed),
		zap.Int("images", stats.ImagesFound),
		zap.Duration("elapsed", time.Since(t0)),
	)

	if err != nil {
		return err
	}

	return r.upload(ctx)
}

// upload publishes the results file once the app flushed it.
func (r *fileRunner) upload(ctx context.Context) error {
	if r.cfg.S3Uploader == nil || r.outfile == nil {
		return nil
	}

	if err := r.outfile.Sync(); err != nil {
		return err
	}

	key := fmt.Sprintf("%s/%s", time.Now().UTC().Format("20060102T150405Z"), filepath.Base(r.outfile.Name()))

	// the run context may already be cancelled by the exit monitor
	uploadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Minute)
	defer cancel()

	if err := r.cfg.S3Uploader.UploadFile(uploadCtx, r.cfg.S3Bucket, key, r.outfile.Name()); err != nil {
		return err
	}

	r.log.Info("results uploaded", zap.String("bucket", r.cfg.S3Bucket), zap.String("key", key))

	return nil
}

func (r *fileRunner) Close(context.Context) error {
	var err error

	if r.app != nil {
		err = multierr.Append(err, r.app.Close())
	}

	if closer, ok := r.input.(io.Closer); ok && r.input != os.Stdin {
		err = multierr.Append(err, closer.Close())
	}

	if r.outfile != nil {
		err = multierr.Append(err, r.outfile.Close())
	}

	return err
}

func (r *fileRunner) setInput() error {
	switch r.cfg.InputFile {
	case "stdin":
		r.input = os.Stdin
	default:
		f, err := os.Open(r.cfg.InputFile)
		if err != nil {
			return err
		}

		r.input = f
	}

	return nil
}

func (r *fileRunner) setWriters() error {
	var resultsWriter io.Writer

	switch r.cfg.ResultsFile {
	case "stdout":
		resultsWriter = os.Stdout
	default:
		f, err := os.Create(r.cfg.ResultsFile)
		if err != nil {
			return err
		}

		r.outfile = f

		resultsWriter = r.outfile
	}

	if r.cfg.JSON {
		r.writers = append(r.writers, jsonwriter.NewJSONWriter(resultsWriter))
	} else {
		r.writers = append(r.writers, csvwriter.NewCsvWriter(csv.NewWriter(resultsWriter)))
	}

	return nil
}

func (r *fileRunner) setApp() error {
	opts := []func(*scrapemateapp.Config) error{
		scrapemateapp.WithConcurrency(r.cfg.Concurrency),
		scrapemateapp.WithExitOnInactivity(r.cfg.ExitOnInactivityDuration),
	}

	if len(r.cfg.Proxies) > 0 {
		opts = append(opts,
			scrapemateapp.WithProxies(r.cfg.Proxies),
		)
	}

	// images stay enabled, the harvest waits for them to load
	if r.cfg.Debug {
		opts = append(opts, scrapemateapp.WithJS(scrapemateapp.Headfull()))
	} else {
		opts = append(opts, scrapemateapp.WithJS())
	}

	if !r.cfg.DisablePageReuse {
		opts = append(opts, scrapemateapp.WithPageReuseLimit(200))
	}

	matecfg, err := scrapemateapp.NewConfig(
		r.writers,
		opts...,
	)
	if err != nil {
		return err
	}

	r.app, err = scrapemateapp.NewScrapeMateApp(matecfg)
	if err != nil {
		return err
	}

	return nil
}
