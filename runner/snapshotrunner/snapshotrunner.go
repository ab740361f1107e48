// Package snapshotrunner harvests a saved html page without a browser.
package snapshotrunner

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/hoanhv-vvt/thamdinh-extensions/gmaps"
	"github.com/hoanhv-vvt/thamdinh-extensions/harvest/htmldom"
	"github.com/hoanhv-vvt/thamdinh-extensions/runner"
)

type snapshotRunner struct {
	cfg     *runner.Config
	log     *zap.Logger
	out     io.Writer
	outfile *os.File
}

func New(cfg *runner.Config) (runner.Runner, error) {
	if cfg.RunMode != runner.RunModeSnapshot {
		return nil, fmt.Errorf("%w: %d", runner.ErrInvalidRunMode, cfg.RunMode)
	}

	ans := snapshotRunner{
		cfg: cfg,
		log: cfg.Logger.Named("snapshot"),
		out: os.Stdout,
	}

	if cfg.ResultsFile != "" && cfg.ResultsFile != "stdout" {
		f, err := os.Create(cfg.ResultsFile)
		if err != nil {
			return nil, err
		}

		ans.outfile = f
		ans.out = f
	}

	return &ans, nil
}

// NewWithWriter is New writing to w instead of the configured results file.
func NewWithWriter(cfg *runner.Config, w io.Writer) (runner.Runner, error) {
	if cfg.RunMode != runner.RunModeSnapshot {
		return nil, fmt.Errorf("%w: %d", runner.ErrInvalidRunMode, cfg.RunMode)
	}

	return &snapshotRunner{cfg: cfg, log: cfg.Logger.Named("snapshot"), out: w}, nil
}

func (r *snapshotRunner) Run(ctx context.Context) error {
	doc, err := htmldom.Open(r.cfg.SnapshotFile)
	if err != nil {
		return err
	}

	row, err := gmaps.Snapshot(ctx, doc, filepath.Base(r.cfg.SnapshotFile), r.cfg.MaxImages, r.cfg.HarvestOptions()...)
	if err != nil {
		return err
	}

	r.log.Info("snapshot harvested",
		zap.String("file", r.cfg.SnapshotFile),
		zap.String("mode", row.Mode),
		zap.Int("images", len(row.Images)),
	)

	if r.cfg.JSON {
		enc := json.NewEncoder(r.out)
		enc.SetIndent("", "  ")

		return enc.Encode(row)
	}

	for _, u := range row.Images {
		if _, err := fmt.Fprintln(r.out, u); err != nil {
			return err
		}
	}

	return nil
}

func (r *snapshotRunner) Close(context.Context) error {
	var err error

	if r.outfile != nil {
		err = multierr.Append(err, r.outfile.Close())
	}

	return err
}
