package api

import "errors"

// Sentinel kinds for API errors.
var (
	ErrBadRequest         = errors.New("bad request")
	ErrInvalidQueryParam  = errors.New("invalid query parameter")
	ErrMismatchedEntityID = errors.New("body id does not match path id")
	ErrSubjectsReadOnly   = errors.New("subject repository is read only")
)
