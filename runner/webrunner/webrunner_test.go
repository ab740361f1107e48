package webrunner_test

import (
	"context"
	"encoding/csv"
	"errors"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hoanhv-vvt/thamdinh-extensions/harvest"
	"github.com/hoanhv-vvt/thamdinh-extensions/runner/webrunner"
	"github.com/hoanhv-vvt/thamdinh-extensions/web"
	"github.com/hoanhv-vvt/thamdinh-extensions/web/memory"
)

type fakeHarvester struct {
	resp  harvest.Response
	err   error
	calls atomic.Int32
}

func (f *fakeHarvester) Harvest(context.Context, harvest.Request) (harvest.Response, error) {
	f.calls.Add(1)

	return f.resp, f.err
}

func newPendingJob(t *testing.T, svc *web.Service) web.Job {
	t.Helper()

	job := web.Job{
		ID:     uuid.NewString(),
		Name:   "test",
		Date:   time.Now().UTC(),
		Status: web.StatusPending,
		Data:   web.JobData{Address: "1 Main St", MaxImages: 2},
	}

	require.NoError(t, svc.Create(context.Background(), &job))

	return job
}

func TestHarvestJobOK(t *testing.T) {
	svc := web.NewService(memory.New(), t.TempDir())
	job := newPendingJob(t, svc)

	h := &fakeHarvester{resp: harvest.Response{
		ImageURLs: []string{"https://lh5.googleusercontent.com/p/a=w2048-h2048"},
		Mode:      harvest.ModeSingle,
	}}

	require.NoError(t, webrunner.HarvestJob(context.Background(), svc, h, &job))

	got, err := svc.Get(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, web.StatusOK, got.Status)
	require.NotNil(t, got.Result)
	assert.Equal(t, h.resp.ImageURLs, got.Result.ImageURLs)

	f, err := os.Open(svc.CSVPath(job.ID))
	require.NoError(t, err)

	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "input_id", records[0][0])
	assert.Equal(t, job.ID, records[1][0])
	assert.Equal(t, "1", records[1][5])
}

func TestHarvestJobFailed(t *testing.T) {
	svc := web.NewService(memory.New(), t.TempDir())
	job := newPendingJob(t, svc)

	h := &fakeHarvester{err: errors.New("navigation failed")}

	err := webrunner.HarvestJob(context.Background(), svc, h, &job)
	require.Error(t, err)

	got, err := svc.Get(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, web.StatusFailed, got.Status)
	require.NotNil(t, got.Result)
	assert.Equal(t, "navigation failed", got.Result.Error)
	assert.FileExists(t, svc.CSVPath(job.ID))
}

func TestWorkPicksPendingJobs(t *testing.T) {
	svc := web.NewService(memory.New(), t.TempDir())
	first := newPendingJob(t, svc)
	second := newPendingJob(t, svc)

	h := &fakeHarvester{resp: harvest.Response{Mode: harvest.ModeSingle}}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)

	go func() {
		done <- webrunner.Work(ctx, svc, h, zap.NewNop())
	}()

	assert.Eventually(t, func() bool {
		a, _ := svc.Get(context.Background(), first.ID)
		b, _ := svc.Get(context.Background(), second.ID)

		return a.Done() && b.Done()
	}, 10*time.Second, 50*time.Millisecond)

	cancel()

	require.NoError(t, <-done)
	assert.EqualValues(t, 2, h.calls.Load())
}
