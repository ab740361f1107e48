package web

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrInvalidID     = errors.New("invalid job id")
	ErrNoResult      = errors.New("job has no result yet")
)
