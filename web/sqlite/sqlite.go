// Package sqlite stores web jobs in a sqlite database.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	_ "modernc.org/sqlite" // sqlite driver

	"github.com/hoanhv-vvt/thamdinh-extensions/web"
)

const columns = `id, name, status, data, result, created_at, updated_at`

type repo struct {
	db *sql.DB
}

func New(path string) (web.JobRepository, error) {
	db, err := initDatabase(path)
	if err != nil {
		return nil, err
	}

	return &repo{db: db}, nil
}

func (repo *repo) Get(ctx context.Context, id string) (web.Job, error) {
	const q = `SELECT ` + columns + ` FROM jobs WHERE id = ?`

	row := repo.db.QueryRowContext(ctx, q, id)

	ans, err := rowToJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return web.Job{}, web.ErrNotFound
	}

	return ans, err
}

func (repo *repo) Create(ctx context.Context, job *web.Job) error {
	item, err := jobToRow(job)
	if err != nil {
		return err
	}

	const q = `INSERT INTO jobs (` + columns + `) VALUES (?, ?, ?, ?, ?, ?, ?)`

	_, err = repo.db.ExecContext(ctx, q,
		item.ID, item.Name, item.Status, item.Data, item.Result, item.CreatedAt, item.UpdatedAt,
	)

	return err
}

func (repo *repo) Delete(ctx context.Context, id string) error {
	const q = `DELETE FROM jobs WHERE id = ?`

	res, err := repo.db.ExecContext(ctx, q, id)
	if err != nil {
		return err
	}

	return affected(res)
}

func (repo *repo) Select(ctx context.Context, params web.SelectParams) ([]web.Job, error) {
	q := `SELECT ` + columns + ` FROM jobs`

	var args []any

	if params.Status != "" {
		q += ` WHERE status = ?`

		args = append(args, params.Status)
	}

	if params.OldestFirst {
		q += " ORDER BY created_at ASC, rowid ASC"
	} else {
		q += " ORDER BY created_at DESC, rowid DESC"
	}

	if params.Limit > 0 {
		q += " LIMIT ?"

		args = append(args, params.Limit)
	}

	rows, err := repo.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
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

func (repo *repo) Update(ctx context.Context, job *web.Job) error {
	item, err := jobToRow(job)
	if err != nil {
		return err
	}

	const q = `UPDATE jobs SET name = ?, status = ?, data = ?, result = ?, updated_at = ? WHERE id = ?`

	res, err := repo.db.ExecContext(ctx, q, item.Name, item.Status, item.Data, item.Result, item.UpdatedAt, item.ID)
	if err != nil {
		return err
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
		Date:   time.Unix(j.CreatedAt, 0).UTC(),
	}

	if err := json.Unmarshal([]byte(j.Data), &ans.Data); err != nil {
		return web.Job{}, err
	}

	if j.Result.Valid {
		ans.Result = &web.JobResult{}

		if err := json.Unmarshal([]byte(j.Result.String), ans.Result); err != nil {
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
		Data:      string(data),
		CreatedAt: item.Date.Unix(),
		UpdatedAt: time.Now().UTC().Unix(),
	}

	if item.Result != nil {
		result, err := json.Marshal(item.Result)
		if err != nil {
			return job{}, err
		}

		ans.Result = sql.NullString{String: string(result), Valid: true}
	}

	return ans, nil
}

type job struct {
	ID        string
	Name      string
	Status    string
	Data      string
	Result    sql.NullString
	CreatedAt int64
	UpdatedAt int64
}

func initDatabase(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(30 * time.Minute)

	pragmas := []string{
		"PRAGMA busy_timeout = 5000",
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA cache_size=1000",
	}

	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()

			return nil, err
		}
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()

		return nil, err
	}

	return db, createSchema(db)
}

func createSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS jobs (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			status TEXT NOT NULL,
			data TEXT NOT NULL,
			result TEXT,
			created_at INT NOT NULL,
			updated_at INT NOT NULL
		)
	`)

	return err
}
