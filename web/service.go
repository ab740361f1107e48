package web

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

type Service struct {
	repo       JobRepository
	dataFolder string
}

func NewService(repo JobRepository, dataFolder string) *Service {
	return &Service{
		repo:       repo,
		dataFolder: dataFolder,
	}
}

func (s *Service) Create(ctx context.Context, job *Job) error {
	if err := job.Validate(); err != nil {
		return err
	}

	return s.repo.Create(ctx, job)
}

func (s *Service) All(ctx context.Context) ([]Job, error) {
	return s.repo.Select(ctx, SelectParams{})
}

func (s *Service) Get(ctx context.Context, id string) (Job, error) {
	if err := validateID(id); err != nil {
		return Job{}, err
	}

	return s.repo.Get(ctx, id)
}

// Delete removes the job and its csv file, if any.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := validateID(id); err != nil {
		return err
	}

	if _, err := s.repo.Get(ctx, id); err != nil {
		return err
	}

	err := os.Remove(s.CSVPath(id))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}

	return s.repo.Delete(ctx, id)
}

func (s *Service) Update(ctx context.Context, job *Job) error {
	return s.repo.Update(ctx, job)
}

// SelectPending returns the oldest pending job, if any.
func (s *Service) SelectPending(ctx context.Context) ([]Job, error) {
	return s.repo.Select(ctx, SelectParams{Status: StatusPending, Limit: 1, OldestFirst: true})
}

// CSVPath is where the csv export of a job is written.
func (s *Service) CSVPath(id string) string {
	return filepath.Join(s.dataFolder, id+".csv")
}

// GetCSV returns the path of the csv export of a finished job.
func (s *Service) GetCSV(_ context.Context, id string) (string, error) {
	if err := validateID(id); err != nil {
		return "", err
	}

	datapath := s.CSVPath(id)

	if _, err := os.Stat(datapath); errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("csv file for job %s: %w", id, ErrNotFound)
	} else if err != nil {
		return "", err
	}

	return datapath, nil
}

func validateID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidID, id)
	}

	return nil
}
