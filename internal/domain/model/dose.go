package model

import "time"

// Status is the outcome of a dose or a reconciled slot.
type Status string

const (
	StatusTaken   Status = "taken"
	StatusSkipped Status = "skipped"
	StatusMissed  Status = "missed"
	// StatusPending applies to slots only: not yet matched and not yet due.
	StatusPending Status = "pending"
)

// DoseEvent is a dose the user recorded, independent of any schedule.
type DoseEvent struct {
	ID            string    `json:"id"`
	SubjectID     string    `json:"subject_id"`
	SubjectName   string    `json:"subject_name"`
	Timestamp     time.Time `json:"timestamp"`
	Taken         bool      `json:"taken"`
	SkippedReason string    `json:"skipped_reason,omitempty"`
	Notes         string    `json:"notes,omitempty"`
}

// Status derives the outcome: Taken, Skipped when a reason is given, Missed otherwise.
func (e DoseEvent) Status() Status {
	switch {
	case e.Taken:
		return StatusTaken
	case e.SkippedReason != "":
		return StatusSkipped
	default:
		return StatusMissed
	}
}
