package model

import "time"

// HistoryRecord is an append-only log entry of a dose outcome.
type HistoryRecord struct {
	ID            string    `json:"id"`
	SubjectID     string    `json:"subject_id"`
	SubjectName   string    `json:"subject_name"`
	ScheduledTime time.Time `json:"scheduled_time"`
	RecordedTime  time.Time `json:"recorded_time"`
	Status        Status    `json:"status"`
	Notes         string    `json:"notes,omitempty"`
}
