package tasks

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hibiken/asynq"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/hoanhv-vvt/thamdinh-extensions/gmaps"
	"github.com/hoanhv-vvt/thamdinh-extensions/harvest"
)

func CreateHarvestTask(payload *HarvestPayload) (*asynq.Task, error) {
	if err := payload.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}

	payload.Normalize()

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal harvest payload: %w", err)
	}

	return asynq.NewTask(TypeHarvestImages, data), nil
}

// ResultPath is where the result of a job is written.
func (h *Handler) ResultPath(jobID string) string {
	return filepath.Join(h.dataFolder, filepath.Base(jobID)+".json")
}

func (h *Handler) processHarvestTask(ctx context.Context, task *asynq.Task) error {
	var payload HarvestPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("%w: %w: %w", ErrInvalidPayload, err, asynq.SkipRetry)
	}

	if err := payload.Validate(); err != nil {
		return fmt.Errorf("%w: %w: %w", ErrInvalidPayload, err, asynq.SkipRetry)
	}

	payload.Normalize()

	log := h.log.With(zap.String("job_id", payload.JobID))

	resp, err := h.harvest(ctx, &payload)
	if err != nil {
		if errors.Is(err, harvest.ErrBusy) {
			return fmt.Errorf("job %s: %w: %w", payload.JobID, err, asynq.SkipRetry)
		}

		return fmt.Errorf("job %s: %w", payload.JobID, err)
	}

	row := gmaps.NewPlaceImages(payload.JobID, payload.Address, resp, nil)

	data, err := json.MarshalIndent(row, "", "  ")
	if err != nil {
		return err
	}

	outpath := h.ResultPath(payload.JobID)

	if err := os.WriteFile(outpath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write result: %w", err)
	}

	log.Info("harvest task done", zap.Int("images", len(row.Images)), zap.String("path", outpath))

	if h.uploader == nil {
		return nil
	}

	key := "harvests/" + filepath.Base(outpath)

	if err := h.uploader.Upload(ctx, h.bucket, key, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to upload result: %w", err)
	}

	log.Info("result uploaded", zap.String("bucket", h.bucket), zap.String("key", key))

	return nil
}

func (h *Handler) harvest(ctx context.Context, payload *HarvestPayload) (resp harvest.Response, err error) {
	tab, err := h.tabs.NewTab(ctx)
	if err != nil {
		return harvest.Response{}, fmt.Errorf("open tab: %w", err)
	}

	defer func() {
		err = multierr.Append(err, tab.Close())
	}()

	harvester, err := harvest.New(tab.Document(), h.harvestOpts...)
	if err != nil {
		return harvest.Response{}, fmt.Errorf("%w: %w", err, asynq.SkipRetry)
	}

	return harvester.Harvest(ctx, harvest.Request{
		Address:   payload.Address,
		MaxImages: payload.MaxImages,
	})
}
