package snapshotrunner_test

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hoanhv-vvt/thamdinh-extensions/gmaps"
	"github.com/hoanhv-vvt/thamdinh-extensions/harvest"
	"github.com/hoanhv-vvt/thamdinh-extensions/runner"
	"github.com/hoanhv-vvt/thamdinh-extensions/runner/snapshotrunner"
)

const page = `<html><body><div role="main">
<img src="https://lh5.googleusercontent.com/p/first=w80-h80-k-no">
<img src="https://maps.gstatic.com/logo.png">
<img src="https://lh5.googleusercontent.com/p/second=w80-h80-k-no">
</div></body></html>`

func newConfig(t *testing.T, jsonOut bool) *runner.Config {
	t.Helper()

	path := filepath.Join(t.TempDir(), "place.html")
	require.NoError(t, os.WriteFile(path, []byte(page), 0o600))

	return &runner.Config{
		RunMode:      runner.RunModeSnapshot,
		SnapshotFile: path,
		MaxImages:    10,
		MaxResults:   3,
		MultiTimeout: time.Second,
		JSON:         jsonOut,
		Profile:      harvest.DefaultProfile(),
		Logger:       zap.NewNop(),
	}
}

func Test_SnapshotLines(t *testing.T) {
	var out bytes.Buffer

	r, err := snapshotrunner.NewWithWriter(newConfig(t, false), &out)
	require.NoError(t, err)

	require.NoError(t, r.Run(context.Background()))
	require.NoError(t, r.Close(context.Background()))

	assert.Equal(t,
		"https://lh5.googleusercontent.com/p/first=w2048-h2048\nhttps://lh5.googleusercontent.com/p/second=w2048-h2048\n",
		out.String(),
	)
}

func Test_SnapshotJSON(t *testing.T) {
	var out bytes.Buffer

	r, err := snapshotrunner.NewWithWriter(newConfig(t, true), &out)
	require.NoError(t, err)

	require.NoError(t, r.Run(context.Background()))

	var row gmaps.PlaceImages
	require.NoError(t, json.Unmarshal(out.Bytes(), &row))

	assert.Equal(t, "place.html", row.InputID)
	assert.Equal(t, "single", row.Mode)
	assert.Len(t, row.Images, 2)
}

func Test_SnapshotWrongMode(t *testing.T) {
	_, err := snapshotrunner.New(&runner.Config{RunMode: runner.RunModeWeb, Logger: zap.NewNop()})
	require.ErrorIs(t, err, runner.ErrInvalidRunMode)
}

func Test_SnapshotMissingFile(t *testing.T) {
	cfg := newConfig(t, false)
	cfg.SnapshotFile = filepath.Join(t.TempDir(), "missing.html")

	r, err := snapshotrunner.NewWithWriter(cfg, &bytes.Buffer{})
	require.NoError(t, err)

	require.Error(t, r.Run(context.Background()))
}
