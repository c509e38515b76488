package repository

import "errors"

// Sentinel kinds for repository errors.
var (
	ErrNotFound      = errors.New("entity not found")
	ErrDuplicate     = errors.New("duplicate entity")
	ErrInvalidEntity = errors.New("invalid entity")
)
