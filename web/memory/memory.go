// Package memory is an in-process JobRepository.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/hoanhv-vvt/thamdinh-extensions/web"
)

type repo struct {
	mu    *sync.RWMutex
	items map[string]web.Job
}

func New() web.JobRepository {
	ans := repo{
		mu:    &sync.RWMutex{},
		items: make(map[string]web.Job),
	}

	return &ans
}

func (r *repo) Get(_ context.Context, id string) (web.Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	job, ok := r.items[id]
	if !ok {
		return web.Job{}, web.ErrNotFound
	}

	return job, nil
}

func (r *repo) Create(_ context.Context, job *web.Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.items[job.ID]; ok {
		return web.ErrAlreadyExists
	}

	r.items[job.ID] = *job

	return nil
}

func (r *repo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.items[id]; !ok {
		return web.ErrNotFound
	}

	delete(r.items, id)

	return nil
}

func (r *repo) Select(_ context.Context, params web.SelectParams) ([]web.Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	filtered := make([]web.Job, 0, len(r.items))

	for _, item := range r.items {
		if params.Status == "" || item.Status == params.Status {
			filtered = append(filtered, item)
		}
	}

	sort.Slice(filtered, func(i, j int) bool {
		if params.OldestFirst {
			return filtered[i].Date.Before(filtered[j].Date)
		}

		return filtered[i].Date.After(filtered[j].Date)
	})

	if params.Limit > 0 && len(filtered) > params.Limit {
		filtered = filtered[:params.Limit]
	}

	return filtered, nil
}

func (r *repo) Update(_ context.Context, job *web.Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.items[job.ID]; !ok {
		return web.ErrNotFound
	}

	r.items[job.ID] = *job

	return nil
}
