// Package webrunner serves the harvest api and works off queued jobs.
package webrunner

import (
	"context"
	"database/sql"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gosom/scrapemate"
	"github.com/gosom/scrapemate/adapters/writers/csvwriter"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hoanhv-vvt/thamdinh-extensions/browser"
	"github.com/hoanhv-vvt/thamdinh-extensions/gmaps"
	"github.com/hoanhv-vvt/thamdinh-extensions/harvest"
	"github.com/hoanhv-vvt/thamdinh-extensions/runner"
	"github.com/hoanhv-vvt/thamdinh-extensions/tlmt"
	"github.com/hoanhv-vvt/thamdinh-extensions/web"
	"github.com/hoanhv-vvt/thamdinh-extensions/web/postgres"
	"github.com/hoanhv-vvt/thamdinh-extensions/web/sqlite"
)

const (
	dbfname      = "jobs.db"
	pollInterval = time.Second
	jobTimeout   = 2 * time.Minute
)

// JobHarvester runs the harvest of one queued job.
type JobHarvester interface {
	Harvest(ctx context.Context, req harvest.Request) (harvest.Response, error)
}

type webrunner struct {
	cfg    *runner.Config
	log    *zap.Logger
	svc    *web.Service
	driver browser.Driver
	tabs   []browser.Tab
	db     *sql.DB
}

func New(cfg *runner.Config) (runner.Runner, error) {
	if cfg.DataFolder == "" {
		return nil, fmt.Errorf("%w: data folder is required", runner.ErrInvalidConfig)
	}

	if err := os.MkdirAll(cfg.DataFolder, os.ModePerm); err != nil {
		return nil, err
	}

	ans := webrunner{
		cfg: cfg,
		log: cfg.Logger.Named("webrunner"),
	}

	repo, err := ans.openRepository()
	if err != nil {
		return nil, err
	}

	driver, err := browser.New(cfg.Driver, cfg.BrowserOptions())
	if err != nil {
		if ans.db != nil {
			_ = ans.db.Close()
		}

		return nil, err
	}

	ans.svc = web.NewService(repo, cfg.DataFolder)
	ans.driver = driver

	return &ans, nil
}

// Run opens one tab for the synchronous api and one for the job worker, so
// a queued job never makes the api answer busy.
func (w *webrunner) Run(ctx context.Context) error {
	apiHarvester, err := w.newHarvester(ctx)
	if err != nil {
		return err
	}

	workHarvester, err := w.newHarvester(ctx)
	if err != nil {
		return err
	}

	srv, err := web.New(w.svc, w.cfg.Addr,
		web.WithHarvester(apiHarvester),
		web.WithAPIKey(w.cfg.APIKey),
		web.WithLogger(w.log.Named("api")),
	)
	if err != nil {
		return err
	}

	egroup, ctx := errgroup.WithContext(ctx)

	egroup.Go(func() error {
		return Work(ctx, w.svc, workHarvester, w.log)
	})

	egroup.Go(func() error {
		return srv.Start(ctx)
	})

	return egroup.Wait()
}

func (w *webrunner) Close(context.Context) error {
	var err error

	for _, tab := range w.tabs {
		err = multierr.Append(err, tab.Close())
	}

	err = multierr.Append(err, w.driver.Close())

	if w.db != nil {
		err = multierr.Append(err, w.db.Close())
	}

	return err
}

// openRepository uses postgres when a dsn is configured, sqlite otherwise.
func (w *webrunner) openRepository() (web.JobRepository, error) {
	if w.cfg.Dsn == "" {
		return sqlite.New(filepath.Join(w.cfg.DataFolder, dbfname))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	repo, db, err := postgres.Open(ctx, w.cfg.Dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	w.db = db

	w.log.Info("storing jobs in postgres")

	return repo, nil
}

func (w *webrunner) newHarvester(ctx context.Context) (*harvest.Harvester, error) {
	tab, err := w.driver.NewTab(ctx)
	if err != nil {
		return nil, fmt.Errorf("open tab: %w", err)
	}

	w.tabs = append(w.tabs, tab)

	return harvest.New(tab.Document(), w.cfg.HarvestOptions()...)
}

// Work polls for pending jobs and harvests them one at a time until ctx
// ends.
func Work(ctx context.Context, svc *web.Service, h JobHarvester, log *zap.Logger) error {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			jobs, err := svc.SelectPending(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}

				return err
			}

			for i := range jobs {
				if ctx.Err() != nil {
					return nil
				}

				t0 := time.Now().UTC()
				err := HarvestJob(ctx, svc, h, &jobs[i])

				params := map[string]any{
					"duration": time.Now().UTC().Sub(t0).String(),
				}

				if err != nil {
					params["error"] = err.Error()

					log.Error("job failed", zap.String("job_id", jobs[i].ID), zap.Error(err))
				} else {
					log.Info("job done", zap.String("job_id", jobs[i].ID))
				}

				_ = runner.Telemetry().Send(ctx, tlmt.NewEvent("web_runner", params))
			}
		}
	}
}

// HarvestJob runs one job to a terminal status and writes its csv export.
// The returned error is the harvest failure, already recorded on the job.
func HarvestJob(ctx context.Context, svc *web.Service, h JobHarvester, job *web.Job) error {
	job.Status = web.StatusWorking

	if err := svc.Update(ctx, job); err != nil {
		return err
	}

	jobCtx, cancel := context.WithTimeout(ctx, jobTimeout)
	defer cancel()

	resp, harvestErr := h.Harvest(jobCtx, harvest.Request{
		Address:   job.Data.Address,
		MaxImages: job.Data.MaxImages,
	})

	row := gmaps.NewPlaceImages(job.ID, job.Data.Address, resp, harvestErr)

	// a finished job must not stay in working, even during shutdown
	finishCtx := context.WithoutCancel(ctx)

	writeErr := writeCSV(finishCtx, svc.CSVPath(job.ID), row)

	job.Result = web.NewJobResult(resp, harvestErr)
	job.Status = web.StatusOK

	if harvestErr != nil {
		job.Status = web.StatusFailed
	}

	if err := svc.Update(finishCtx, job); err != nil {
		return multierr.Combine(harvestErr, writeErr, err)
	}

	return multierr.Append(harvestErr, writeErr)
}

func writeCSV(ctx context.Context, path string, row *gmaps.PlaceImages) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}

	defer func() {
		err = multierr.Append(err, f.Close())
	}()

	in := make(chan scrapemate.Result, 1)
	in <- scrapemate.Result{Data: row}

	close(in)

	return csvwriter.NewCsvWriter(csv.NewWriter(f)).Run(ctx, in)
}
