package web

import (
	"context"
	"errors"
	"time"

	"github.com/hoanhv-vvt/thamdinh-extensions/harvest"
)

const (
	StatusPending = "pending"
	StatusWorking = "working"
	StatusOK      = "ok"
	StatusFailed  = "failed"
)

type SelectParams struct {
	Status string
	Limit  int
	// OldestFirst orders by creation date ascending. The default is newest first.
	OldestFirst bool
}

type JobRepository interface {
	Get(context.Context, string) (Job, error)
	Create(context.Context, *Job) error
	Delete(context.Context, string) error
	Select(context.Context, SelectParams) ([]Job, error)
	Update(context.Context, *Job) error
}

type Job struct {
	ID     string
	Name   string
	Date   time.Time
	Status string
	Data   JobData
	Result *JobResult
}

func (j *Job) Validate() error {
	if j.ID == "" {
		return errors.New("missing id")
	}

	if j.Name == "" {
		return errors.New("missing name")
	}

	if j.Status == "" {
		return errors.New("missing status")
	}

	if j.Date.IsZero() {
		return errors.New("missing date")
	}

	return j.Data.Validate()
}

// Done reports whether the job reached a terminal status.
func (j *Job) Done() bool {
	return j.Status == StatusOK || j.Status == StatusFailed
}

type JobData struct {
	Address   string `json:"address"`
	MaxImages int    `json:"max_images"`
}

func (d *JobData) Validate() error {
	if d.Address == "" {
		return errors.New("missing address")
	}

	if d.MaxImages < 0 {
		return errors.New("max images must not be negative")
	}

	return nil
}

// JobResult is what a finished job produced. Error is set for failed jobs.
type JobResult struct {
	ImageURLs        []string `json:"image_urls"`
	Mode             string   `json:"mode"`
	LocationsVisited int      `json:"locations_visited"`
	ElapsedMS        int64    `json:"elapsed_ms"`
	Error            string   `json:"error,omitempty"`
}

// NewJobResult converts a harvest outcome into a storable result.
func NewJobResult(resp harvest.Response, err error) *JobResult {
	ans := JobResult{
		ImageURLs:        resp.ImageURLs,
		Mode:             string(resp.Mode),
		LocationsVisited: resp.LocationsVisited,
		ElapsedMS:        resp.Elapsed.Milliseconds(),
	}

	if ans.ImageURLs == nil {
		ans.ImageURLs = []string{}
	}

	if err != nil {
		ans.Error = err.Error()
	}

	return &ans
}
