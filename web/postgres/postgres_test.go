package postgres_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hoanhv-vvt/thamdinh-extensions/testcontainers"
	"github.com/hoanhv-vvt/thamdinh-extensions/web"
	"github.com/hoanhv-vvt/thamdinh-extensions/web/postgres"
)

func newJob(name string, date time.Time) web.Job {
	return web.Job{
		ID:     uuid.NewString(),
		Name:   name,
		Date:   date,
		Status: web.StatusPending,
		Data:   web.JobData{Address: name + " street", MaxImages: 7},
	}
}

func Test_Repository(t *testing.T) {
	testcontainers.WithTestContext(t, func(tc *testcontainers.TestContext) {
		ctx := tc.Ctx

		repo, db, err := postgres.Open(ctx, tc.PostgresConfig.DSN())
		require.NoError(t, err)

		defer db.Close()

		now := time.Now().UTC().Truncate(time.Millisecond)
		first := newJob("first", now.Add(-time.Hour))
		second := newJob("second", now)

		require.NoError(t, repo.Create(ctx, &first))
		require.NoError(t, repo.Create(ctx, &second))
		assert.ErrorIs(t, repo.Create(ctx, &second), web.ErrAlreadyExists)

		got, err := repo.Get(ctx, first.ID)
		require.NoError(t, err)
		assert.Equal(t, first.Data, got.Data)
		assert.WithinDuration(t, first.Date, got.Date, time.Millisecond)
		assert.Nil(t, got.Result)

		all, err := repo.Select(ctx, web.SelectParams{})
		require.NoError(t, err)
		require.Len(t, all, 2)
		assert.Equal(t, "second", all[0].Name)

		pending, err := repo.Select(ctx, web.SelectParams{Status: web.StatusPending, Limit: 1, OldestFirst: true})
		require.NoError(t, err)
		require.Len(t, pending, 1)
		assert.Equal(t, "first", pending[0].Name)

		first.Status = web.StatusFailed
		first.Result = &web.JobResult{ImageURLs: []string{}, Error: "navigation failed"}
		require.NoError(t, repo.Update(ctx, &first))

		got, err = repo.Get(ctx, first.ID)
		require.NoError(t, err)
		assert.Equal(t, web.StatusFailed, got.Status)
		require.NotNil(t, got.Result)
		assert.Equal(t, "navigation failed", got.Result.Error)

		require.NoError(t, repo.Delete(ctx, first.ID))
		assert.ErrorIs(t, repo.Delete(ctx, first.ID), web.ErrNotFound)

		_, err = repo.Get(ctx, first.ID)
		assert.ErrorIs(t, err, web.ErrNotFound)
	}, testcontainers.WithPostgres(), testcontainers.WithoutRedis())
}
