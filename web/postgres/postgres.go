// Package postgres stores web jobs in PostgreSQL through the pgx driver.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver

	"github.com/hoanhv-vvt/thamdinh-extensions/web"
)

const (
	columns         = `id, name, status, data, result, created_at, updated_at`
	uniqueViolation = "23505"
)

type repository struct {
	db *sql.DB
}

// Open connects to dsn and makes sure the jobs table exists.
func Open(ctx context.Context, dsn string) (web.JobRepository, *sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, nil, err
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)

	repo, err := NewRepository(ctx, db)
	if err != nil {
		_ = db.Close()

		return nil, nil, err
	}

	return repo, db, nil
}

func NewRepository(ctx context.Context, db *sql.DB) (web.JobRepository, error) {
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}

	if err := createSchema(ctx, db); err != nil {
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &repository{db: db}, nil
}

func (repo *repository) Get(ctx context.Context, id string) (web.Job, error) {
	const q = `SELECT ` + columns + ` FROM jobs WHERE id = $1`

	ans, err := rowToJob(repo.db.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return web.Job{}, web.ErrNotFound
	}

	return ans, err
}

func (repo *repository) Create(ctx context.Context, job *web.Job) error {
	item, err := jobToRow(job)
	if err != nil {
		return err
	}

	const q = `INSERT INTO jobs (` + columns + `) VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err = repo.db.ExecContext(ctx, q,
		item.ID, item.Name, item.Status, item.Data, item.Result, item.CreatedAt, item.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return fmt.Errorf("%w: %s", web.ErrAlreadyExists, job.ID)
		}

		return fmt.Errorf("failed to create job: %w", err)
	}

	return nil
}

func (repo *repository) Delete(ctx context.Context, id string) error {
	const q = `DELETE FROM jobs WHERE id = $1`

	res, err := repo.db.ExecContext(ctx, q, id)
	if err != nil {
		return fmt.Errorf("failed to delete job: %w", err)
	}

	return affected(res)
}

func (repo *repository) Select(ctx context.Context, params web.SelectParams) ([]web.Job, error) {
	q := `SELECT ` + columns + ` FROM jobs`

	var args []any

	if params.Status != "" {
		args = append(args, params.Status)
		q += fmt.Sprintf(" WHERE status = $%d", len(args))
	}

	if params.OldestFirst {
		q += " ORDER BY created_at ASC, id ASC"
	} else {
		q += " ORDER BY created_at DESC, id DESC"
	}

	if params.Limit > 0 {
		args = append(args, params.Limit)
		q += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := repo.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select jobs: %w", err)
	}

	defer rows.Close()

	var ans []web.Job

	for rows.Next() {
		job, err := rowToJob(rows)
		if err != nil {
			return nil, err
		}

		ans = append(ans, job)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return ans, nil
}

func (repo *repository) Update(ctx context.Context, job *web.Job) error {
	item, err := jobToRow(job)
	if err != nil {
		return err
	}

	const q = `UPDATE jobs SET name = $1, status = $2, data = $3, result = $4, updated_at = $5 WHERE id = $6`

	res, err := repo.db.ExecContext(ctx, q, item.Name, item.Status, item.Data, item.Result, item.UpdatedAt, item.ID)
	if err != nil {
		return fmt.Errorf("failed to update job: %w", err)
	}

	return affected(res)
}

func affected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}

	if n == 0 {
		return web.ErrNotFound
	}

	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func rowToJob(row scannable) (web.Job, error) {
	var j job

	err := row.Scan(&j.ID, &j.Name, &j.Status, &j.Data, &j.Result, &j.CreatedAt, &j.UpdatedAt)
	if err != nil {
		return web.Job{}, err
	}

	ans := web.Job{
		ID:     j.ID,
		Name:   j.Name,
		Status: j.Status,
		Date:   j.CreatedAt.UTC(),
	}

	if err := json.Unmarshal(j.Data, &ans.Data); err != nil {
		return web.Job{}, err
	}

	if len(j.Result) > 0 {
		ans.Result = &web.JobResult{}

		if err := json.Unmarshal(j.Result, ans.Result); err != nil {
			return web.Job{}, err
		}
	}

	return ans, nil
}

func jobToRow(item *web.Job) (job, error) {
	data, err := json.Marshal(item.Data)
	if err != nil {
		return job{}, err
	}

	ans := job{
		ID:        item.ID,
		Name:      item.Name,
		Status:    item.Status,
		Data:      data,
		CreatedAt: item.Date.UTC(),
		UpdatedAt: time.Now().UTC(),
	}

	if item.Result != nil {
		ans.Result, err = json.Marshal(item.Result)
		if err != nil {
			return job{}, err
		}
	}

	return ans, nil
}

type job struct {
	ID        string
	Name      string
	Status    string
	Data      []byte
	Result    []byte
	CreatedAt time.Time
	UpdatedAt time.Time
}

func createSchema(ctx context.Context, db *sql.DB) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS jobs (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			status TEXT NOT NULL,
			data JSONB NOT NULL,
			result JSONB,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_jobs_status_created_at ON jobs (status, created_at)`,
	}

	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}

	return nil
}
