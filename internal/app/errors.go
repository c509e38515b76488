package service

import "errors"

var (
	// ErrRepository wraps any storage failure. The in-memory snapshot is left unchanged.
	ErrRepository = errors.New("repository failure")
	// ErrNotFound is returned by updates and deletes of unknown ids.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists is returned when adding an entity whose id is taken.
	ErrAlreadyExists = errors.New("already exists")
	// ErrInvalidInput is returned for input that cannot be normalized, such as a
	// dose or schedule without a subject.
	ErrInvalidInput = errors.New("invalid input")
	// ErrNotStarted is returned when background jobs are submitted before Start.
	ErrNotStarted = errors.New("service not started")
)
