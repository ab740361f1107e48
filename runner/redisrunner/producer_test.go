package redisrunner

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hoanhv-vvt/thamdinh-extensions/redis/tasks"
	"github.com/hoanhv-vvt/thamdinh-extensions/runner"
)

type recordingQueue struct {
	types    []string
	payloads []tasks.HarvestPayload
}

func (q *recordingQueue) EnqueueTask(_ context.Context, taskType string, payload []byte) error {
	var p tasks.HarvestPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return err
	}

	q.types = append(q.types, taskType)
	q.payloads = append(q.payloads, p)

	return nil
}

func TestProducerRun(t *testing.T) {
	input := filepath.Join(t.TempDir(), "input.txt")
	require.NoError(t, os.WriteFile(input, []byte("# addresses\n1 Main St #!# a1\n\n1 main st\n2 Side Rd\n"), 0o600))

	cfg := &runner.Config{
		InputFile: input,
		MaxImages: 80,
		RunMode:   runner.RunModeRedisProduce,
		Logger:    zap.NewNop(),
	}

	q := &recordingQueue{}

	require.NoError(t, NewProducerWithQueue(cfg, q).Run(context.Background()))

	require.Len(t, q.payloads, 2)
	assert.Equal(t, []string{tasks.TypeHarvestImages, tasks.TypeHarvestImages}, q.types)

	assert.Equal(t, "a1", q.payloads[0].JobID)
	assert.Equal(t, "1 Main St", q.payloads[0].Address)
	assert.Equal(t, 50, q.payloads[0].MaxImages)

	assert.NotEmpty(t, q.payloads[1].JobID)
	assert.Equal(t, "2 Side Rd", q.payloads[1].Address)
}

func TestProducerMissingInput(t *testing.T) {
	cfg := &runner.Config{InputFile: filepath.Join(t.TempDir(), "missing.txt"), Logger: zap.NewNop()}

	assert.Error(t, NewProducerWithQueue(cfg, &recordingQueue{}).Run(context.Background()))
}

func TestNewRejectsOtherModes(t *testing.T) {
	cfg := &runner.Config{RunMode: runner.RunModeFile, Logger: zap.NewNop()}

	_, err := New(cfg)
	assert.ErrorIs(t, err, runner.ErrInvalidRunMode)

	_, err = NewProducer(cfg)
	assert.ErrorIs(t, err, runner.ErrInvalidRunMode)
}
