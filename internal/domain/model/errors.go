package model

import "errors"

var (
	// ErrInvalidSchedule indicates a schedule that violates a recurrence invariant.
	ErrInvalidSchedule = errors.New("invalid schedule")
	// ErrMissingSubject indicates an entity without a subject id.
	ErrMissingSubject = errors.New("missing subject id")
	// ErrInvalidDate indicates a malformed calendar day.
	ErrInvalidDate = errors.New("invalid date")
	// ErrInvalidTimeOfDay indicates a malformed time of day.
	ErrInvalidTimeOfDay = errors.New("invalid time of day")
	// ErrInvalidRetention indicates a retention period outside the supported set.
	ErrInvalidRetention = errors.New("invalid retention period")
)
