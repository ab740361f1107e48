package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hoanhv-vvt/thamdinh-extensions/browser"
	"github.com/hoanhv-vvt/thamdinh-extensions/gmaps"
	"github.com/hoanhv-vvt/thamdinh-extensions/harvest"
	"github.com/hoanhv-vvt/thamdinh-extensions/harvest/htmldom"
)

// snapshotDoc serves a saved page and ignores navigation.
type snapshotDoc struct {
	*htmldom.Document
	navigated []string
}

func (d *snapshotDoc) Navigate(_ context.Context, address string) error {
	d.navigated = append(d.navigated, address)

	return nil
}

type fakeTab struct {
	doc    harvest.Document
	closed bool
}

func (t *fakeTab) Document() harvest.Document { return t.doc }

func (t *fakeTab) Close() error {
	t.closed = true

	return nil
}

type fakeOpener struct {
	tab *fakeTab
	err error
}

func (o *fakeOpener) NewTab(context.Context) (browser.Tab, error) {
	if o.err != nil {
		return nil, o.err
	}

	return o.tab, nil
}

type fakeUploader struct {
	bucket, key string
	body        []byte
}

func (u *fakeUploader) Upload(_ context.Context, bucket, key string, body io.Reader) error {
	u.bucket = bucket
	u.key = key

	var err error
	u.body, err = io.ReadAll(body)

	return err
}

func newSnapshotOpener(t *testing.T) (*fakeOpener, *snapshotDoc) {
	t.Helper()

	doc, err := htmldom.Open("../../harvest/htmldom/testdata/single.html")
	require.NoError(t, err)

	sd := &snapshotDoc{Document: doc}

	return &fakeOpener{tab: &fakeTab{doc: sd}}, sd
}

func fastHarvest() HandlerOption {
	return WithHarvestOptions(
		harvest.WithImageTimeout(100*time.Millisecond),
		harvest.WithStableWindow(10*time.Millisecond),
		harvest.WithPanelTimeout(20*time.Millisecond),
		harvest.WithPollInterval(5*time.Millisecond),
	)
}

func TestNewHandler(t *testing.T) {
	h := NewHandler(nil)
	assert.Equal(t, 2*time.Minute, h.taskTimeout)
	assert.Equal(t, ".", h.dataFolder)

	h = NewHandler(nil, WithTaskTimeout(time.Minute), WithDataFolder("/data"), WithTaskTimeout(0))
	assert.Equal(t, time.Minute, h.taskTimeout)
	assert.Equal(t, "/data", h.dataFolder)
}

func TestCreateHarvestTask(t *testing.T) {
	task, err := CreateHarvestTask(&HarvestPayload{JobID: "j1", Address: "Main St 1", MaxImages: 4})
	require.NoError(t, err)
	assert.Equal(t, TypeHarvestImages, task.Type())

	var got HarvestPayload
	require.NoError(t, json.Unmarshal(task.Payload(), &got))
	assert.Equal(t, HarvestPayload{JobID: "j1", Address: "Main St 1", MaxImages: 4}, got)

	_, err = CreateHarvestTask(&HarvestPayload{JobID: "j1"})
	assert.ErrorIs(t, err, ErrInvalidPayload)

	_, err = CreateHarvestTask(&HarvestPayload{JobID: "j1", Address: "Main St 1", MaxImages: -1})
	assert.ErrorIs(t, err, ErrInvalidPayload)

	task, err = CreateHarvestTask(&HarvestPayload{JobID: "j2", Address: "Main St 1", MaxImages: 100})
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(task.Payload(), &got))
	assert.Equal(t, harvest.MaxImagesLimit, got.MaxImages)
}

func TestProcessTask(t *testing.T) {
	t.Run("unknown task type is not retried", func(t *testing.T) {
		err := NewHandler(nil).ProcessTask(context.Background(), asynq.NewTask("unknown", nil))

		require.Error(t, err)
		assert.ErrorIs(t, err, asynq.SkipRetry)
	})

	t.Run("health check", func(t *testing.T) {
		assert.NoError(t, NewHandler(nil).ProcessTask(context.Background(), asynq.NewTask(TypeHealthCheck, nil)))
	})

	t.Run("invalid payload is not retried", func(t *testing.T) {
		h := NewHandler(nil)

		for _, payload := range []string{`{`, `{"job_id":"x"}`, `{"job_id":"x","address":"a","max_images":99}`} {
			err := h.ProcessTask(context.Background(), asynq.NewTask(TypeHarvestImages, []byte(payload)))

			assert.ErrorIs(t, err, asynq.SkipRetry, payload)
			assert.ErrorIs(t, err, ErrInvalidPayload, payload)
		}
	})

	t.Run("harvest writes the result file", func(t *testing.T) {
		opener, doc := newSnapshotOpener(t)
		uploader := &fakeUploader{}

		h := NewHandler(opener,
			WithDataFolder(t.TempDir()),
			WithUploader(uploader, "bucket"),
			fastHarvest(),
		)

		task, err := CreateHarvestTask(&HarvestPayload{JobID: "job-1", Address: "Main St 1", MaxImages: 2})
		require.NoError(t, err)

		require.NoError(t, h.ProcessTask(context.Background(), task))

		assert.Equal(t, []string{"Main St 1"}, doc.navigated)
		assert.True(t, opener.tab.closed)

		data, err := os.ReadFile(h.ResultPath("job-1"))
		require.NoError(t, err)

		var row gmaps.PlaceImages
		require.NoError(t, json.Unmarshal(data, &row))
		assert.Equal(t, "job-1", row.InputID)
		assert.Equal(t, "single", row.Mode)
		assert.Len(t, row.Images, 2)

		assert.Equal(t, "bucket", uploader.bucket)
		assert.Equal(t, "harvests/job-1.json", uploader.key)
		assert.Equal(t, data, uploader.body)
	})

	t.Run("tab failure is retried", func(t *testing.T) {
		h := NewHandler(&fakeOpener{err: errors.New("browser gone")}, WithDataFolder(t.TempDir()))

		task, err := CreateHarvestTask(&HarvestPayload{JobID: "job-2", Address: "a"})
		require.NoError(t, err)

		err = h.ProcessTask(context.Background(), task)
		require.Error(t, err)
		assert.NotErrorIs(t, err, asynq.SkipRetry)
		assert.NoFileExists(t, h.ResultPath("job-2"))
	})
}

func TestResultPathStaysInDataFolder(t *testing.T) {
	h := NewHandler(nil, WithDataFolder("/data"))

	assert.Equal(t, "/data/x.json", h.ResultPath("../../x"))
}
